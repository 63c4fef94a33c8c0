package health

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"

	kserrors "github.com/kubesight/kubesight/internal/errors"
	"github.com/kubesight/kubesight/internal/notify"
	"github.com/kubesight/kubesight/internal/observability"
	"github.com/kubesight/kubesight/internal/store"
)

// --- Mock implementations ---

type mockErrors struct {
	errs []kserrors.Error
}

func (m *mockErrors) GetActiveErrors() []kserrors.Error { return m.errs }

type dashboard struct {
	TotalPods   int `json:"totalPods"`
	RunningPods int `json:"runningPods"`
}

// --- Helper to build a test server's mux ---

func newTestServer(t *testing.T, ready bool) (*Server, *store.ViewStore, *notify.Hub) {
	t.Helper()
	metrics := observability.NewMetrics()
	views := store.NewViewStore()
	hub := notify.NewHub(metrics)
	t.Cleanup(hub.Close)
	errs := &mockErrors{errs: []kserrors.Error{
		*kserrors.New(kserrors.ErrForbidden, "cluster.ListPods", "pods is forbidden"),
	}}
	srv := NewServer(0, metrics, ReadinessFunc(func() bool { return ready }), views, hub, errs, true)
	return srv, views, hub
}

func serve(srv *Server, req *http.Request) *http.Response {
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)
	return w.Result()
}

// --- Tests ---

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t, true)
	resp := serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var result map[string]string
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if result["status"] != "ok" {
		t.Fatalf("expected status=ok, got %s", result["status"])
	}
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		ready bool
		code  int
	}{
		{true, http.StatusOK},
		{false, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		srv, _, _ := newTestServer(t, tt.ready)
		resp := serve(srv, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		if resp.StatusCode != tt.code {
			t.Errorf("ready=%v: expected %d, got %d", tt.ready, tt.code, resp.StatusCode)
		}
		var result map[string]bool
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		resp.Body.Close()
		if result["ready"] != tt.ready {
			t.Errorf("expected ready=%v, got %v", tt.ready, result["ready"])
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, views, _ := newTestServer(t, true)
	if _, err := views.Put("dashboard", dashboard{TotalPods: 3}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	serve(srv, httptest.NewRequest(http.MethodGet, "/v1/views/dashboard", nil)).Body.Close()

	resp := serve(srv, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "kubesight_view_size_bytes") {
		t.Fatalf("expected view size histogram in /metrics output:\n%s", body)
	}
}

func TestViewsListsNames(t *testing.T) {
	srv, views, _ := newTestServer(t, true)
	for _, name := range []string{"workloads/deployment", "dashboard"} {
		if _, err := views.Put(name, dashboard{}); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	resp := serve(srv, httptest.NewRequest(http.MethodGet, "/v1/views", nil))
	defer resp.Body.Close()

	var result map[string][]string
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	got := result["views"]
	if len(got) != 2 || got[0] != "dashboard" || got[1] != "workloads/deployment" {
		t.Fatalf("views = %v", got)
	}
}

func TestViewServesLatestSnapshot(t *testing.T) {
	srv, views, _ := newTestServer(t, true)
	if _, err := views.Put("workloads/deployment", dashboard{TotalPods: 7, RunningPods: 5}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	resp := serve(srv, httptest.NewRequest(http.MethodGet, "/v1/views/workloads/deployment", nil))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q", ct)
	}
	if resp.Header.Get("Content-Encoding") != "" {
		t.Fatalf("unexpected Content-Encoding %q", resp.Header.Get("Content-Encoding"))
	}
	var got dashboard
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.TotalPods != 7 || got.RunningPods != 5 {
		t.Fatalf("got %+v", got)
	}
}

func TestViewNotModified(t *testing.T) {
	srv, views, _ := newTestServer(t, true)
	if _, err := views.Put("dashboard", dashboard{TotalPods: 1}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	first := serve(srv, httptest.NewRequest(http.MethodGet, "/v1/views/dashboard", nil))
	first.Body.Close()
	etag := first.Header.Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag header")
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/views/dashboard", nil)
	req.Header.Set("If-None-Match", etag)
	resp := serve(srv, req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", resp.StatusCode)
	}

	if _, err := views.Put("dashboard", dashboard{TotalPods: 2}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/v1/views/dashboard", nil)
	req.Header.Set("If-None-Match", etag)
	resp = serve(srv, req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after a new generation, got %d", resp.StatusCode)
	}
}

func TestViewZstd(t *testing.T) {
	srv, views, _ := newTestServer(t, true)
	if _, err := views.Put("dashboard", dashboard{TotalPods: 12, RunningPods: 9}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/views/dashboard", nil)
	req.Header.Set("Accept-Encoding", "gzip, zstd;q=0.9")
	resp := serve(srv, req)
	defer resp.Body.Close()

	if resp.Header.Get("Content-Encoding") != "zstd" {
		t.Fatalf("expected zstd Content-Encoding, got %q", resp.Header.Get("Content-Encoding"))
	}
	dec, err := zstd.NewReader(resp.Body)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()

	var got dashboard
	if err := json.NewDecoder(dec).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TotalPods != 12 || got.RunningPods != 9 {
		t.Fatalf("got %+v", got)
	}
}

func TestViewUnknown(t *testing.T) {
	srv, _, _ := newTestServer(t, true)
	resp := serve(srv, httptest.NewRequest(http.MethodGet, "/v1/views/nodes", nil))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestDebugErrors(t *testing.T) {
	srv, _, _ := newTestServer(t, true)
	resp := serve(srv, httptest.NewRequest(http.MethodGet, "/debug/errors", nil))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "pods is forbidden") {
		t.Fatalf("expected active error in body: %s", body)
	}
}

func TestDebugEndpointsDisabled(t *testing.T) {
	srv := NewServer(0, observability.NewMetrics(), ReadinessFunc(func() bool { return true }), store.NewViewStore(), nil, nil, false)

	for _, path := range []string{"/debug/errors", "/debug/pprof/"} {
		resp := serve(srv, httptest.NewRequest(http.MethodGet, path, nil))
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: expected 404 with debug disabled, got %d", path, resp.StatusCode)
		}
	}
}

func TestEventStream(t *testing.T) {
	srv, _, hub := newTestServer(t, true)
	ts := httptest.NewServer(srv.httpServer.Handler)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for hub.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed to the hub")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Publish(notify.Event{Type: notify.NamespaceSwitched, Context: "prod", Namespace: "team-b"})

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev notify.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Type != notify.NamespaceSwitched || ev.Namespace != "team-b" || ev.ID == "" {
		t.Fatalf("unexpected event %+v", ev)
	}

	conn.Close()
	deadline = time.Now().Add(5 * time.Second)
	for hub.Subscribers() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription not released after client disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStartStop(t *testing.T) {
	srv, _, _ := newTestServer(t, true)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	resp, err := http.Get("http://" + srv.httpServer.Addr + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
