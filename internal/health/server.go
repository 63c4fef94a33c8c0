package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	kserrors "github.com/kubesight/kubesight/internal/errors"
	"github.com/kubesight/kubesight/internal/notify"
	"github.com/kubesight/kubesight/internal/observability"
	"github.com/kubesight/kubesight/internal/store"
)

const (
	eventBuffer  = 32
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// ReadinessChecker reports whether the engine is ready to serve views.
type ReadinessChecker interface {
	IsReady() bool
}

// ReadinessFunc adapts a func to ReadinessChecker.
type ReadinessFunc func() bool

// IsReady calls f.
func (f ReadinessFunc) IsReady() bool { return f() }

// ViewSource returns the latest snapshot of each view.
type ViewSource interface {
	Get(view string) (*store.Entry, bool)
	Names() []string
}

// EventSource is subscribed to once per /v1/events client.
type EventSource interface {
	Subscribe(buffer int) (<-chan notify.Event, func())
}

// ErrorSource lists active engine errors for debugging.
type ErrorSource interface {
	GetActiveErrors() []kserrors.Error
}

// Server exposes health, readiness, metrics, the view snapshots and the
// notification stream.
type Server struct {
	httpServer *http.Server
	metrics    *observability.Metrics
	readiness  ReadinessChecker
	views      ViewSource
	events     EventSource
	errs       ErrorSource
	listener   net.Listener
	encoder    *zstd.Encoder
	upgrader   websocket.Upgrader
	done       chan struct{}
}

// NewServer creates a new server on the given port.
// Pass port=0 to let the OS pick a free port (useful for tests).
// When enableDebug is true, pprof and debug endpoints are registered.
func NewServer(port int, metrics *observability.Metrics, readiness ReadinessChecker, views ViewSource, events EventSource, errs ErrorSource, enableDebug bool) *Server {
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	s := &Server{
		metrics:   metrics,
		readiness: readiness,
		views:     views,
		events:    events,
		errs:      errs,
		encoder:   enc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 8192,
		},
		done: make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /v1/views", s.handleViews)
	mux.HandleFunc("GET /v1/views/{name...}", s.handleView)
	mux.HandleFunc("GET /v1/events", s.handleEvents)

	if enableDebug {
		// pprof handlers, only enabled when KUBESIGHT_DEBUG_ENDPOINTS=true
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

		mux.HandleFunc("/debug/errors", s.handleDebugErrors)
	}

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", port),
		Handler:        mux,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	return s
}

// Start begins listening and serving HTTP in a background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("health server listen: %w", err)
	}
	s.listener = ln
	// Update Addr to the actual address (important when port=0).
	s.httpServer.Addr = ln.Addr().String()

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("http server exited", "error", err)
		}
	}()
	return nil
}

// Stop closes event streams and gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ready := s.readiness.IsReady()
	if ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"ready": ready})
}

func (s *Server) handleViews(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string][]string{"views": s.views.Names()})
}

// handleView serves the latest snapshot body of one view. The generation
// is the ETag; clients sending Accept-Encoding: zstd get a compressed body.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	e, ok := s.views.Get(name)
	if !ok {
		http.Error(w, fmt.Sprintf("view %q has no snapshot yet", name), http.StatusNotFound)
		return
	}

	etag := `"` + strconv.FormatUint(e.Generation, 10) + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Last-Modified", e.UpdatedAt.UTC().Format(http.TimeFormat))
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Add("Vary", "Accept-Encoding")
	body := e.Body
	if s.encoder != nil && acceptsZstd(r) {
		body = s.compress(body)
		w.Header().Set("Content-Encoding", "zstd")
		s.observeSize("zstd", len(body))
	} else {
		s.observeSize("json", len(body))
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func acceptsZstd(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		enc, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if enc == "zstd" {
			return true
		}
	}
	return false
}

func (s *Server) compress(body []byte) []byte {
	start := time.Now()
	out := s.encoder.EncodeAll(body, make([]byte, 0, len(body)/2))
	if s.metrics != nil && len(body) > 0 {
		s.metrics.CompressionDuration.Observe(time.Since(start).Seconds())
		s.metrics.CompressionRatio.Set(float64(len(out)) / float64(len(body)))
	}
	return out
}

func (s *Server) observeSize(encoding string, n int) {
	if s.metrics != nil {
		s.metrics.ViewSizeBytes.WithLabelValues(encoding).Observe(float64(n))
	}
}

// handleEvents upgrades to a websocket and streams notifications as JSON
// text frames until the client goes away or the server stops.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		http.Error(w, "event stream disabled", http.StatusNotFound)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, cancel := s.events.Subscribe(eventBuffer)
	defer cancel()

	// The read side only exists to notice the client closing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-s.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"),
				time.Now().Add(writeWait))
			return
		case <-gone:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				slog.Debug("websocket write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleDebugErrors(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	errs := []kserrors.Error{}
	if s.errs != nil {
		errs = s.errs.GetActiveErrors()
	}
	_ = json.NewEncoder(w).Encode(errs)
}
