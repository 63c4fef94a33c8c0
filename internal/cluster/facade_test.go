package cluster

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes/fake"
	clienttesting "k8s.io/client-go/testing"
	metricsv1beta1 "k8s.io/metrics/pkg/apis/metrics/v1beta1"

	kserrors "github.com/kubesight/kubesight/internal/errors"
	"github.com/kubesight/kubesight/internal/kube"
	"github.com/kubesight/kubesight/internal/notify"
	"github.com/kubesight/kubesight/internal/observability"
	"github.com/kubesight/kubesight/internal/profile"
	"github.com/kubesight/kubesight/pkg/model"
)

type staticSelection struct {
	sel profile.Selection
	ok  bool
}

func (s staticSelection) Selection() (profile.Selection, bool) { return s.sel, s.ok }

type fakeMetricsAPI struct {
	nodes []metricsv1beta1.NodeMetrics
	pods  []metricsv1beta1.PodMetrics
	err   error

	lastNamespace string
}

func (m *fakeMetricsAPI) ListNodeMetrics(context.Context) ([]metricsv1beta1.NodeMetrics, error) {
	return m.nodes, m.err
}

func (m *fakeMetricsAPI) ListPodMetrics(_ context.Context, namespace string) ([]metricsv1beta1.PodMetrics, error) {
	m.lastNamespace = namespace
	return m.pods, m.err
}

// newTestFacade wires a Facade to a fake clientset in namespace "team-a".
func newTestFacade(t *testing.T, metrics kube.MetricsAPI, objects ...runtime.Object) (*Facade, *fake.Clientset, *kserrors.ErrorCollector) {
	t.Helper()
	client := fake.NewSimpleClientset(objects...)
	sel := staticSelection{
		sel: profile.Selection{
			Profile:   model.ConnectionProfile{Name: "prod", Kind: model.ProfileDiscovered},
			Namespace: "team-a",
			Clients:   &kube.Clients{Kube: client, Metrics: metrics},
		},
		ok: true,
	}
	ec := kserrors.NewErrorCollector(kserrors.RealClock{})
	f := New(sel,
		WithTimeout(time.Second),
		WithErrorCollector(ec),
		WithMetrics(observability.NewMetrics()),
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }),
	)
	return f, client, ec
}

func pod(ns, name string, labels map[string]string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: ns, Labels: labels},
		Status:     corev1.PodStatus{Phase: corev1.PodRunning},
	}
}

func TestFacade_NotConnected(t *testing.T) {
	f := New(staticSelection{})

	pods := f.ListPods(context.Background(), "", "")
	assert.NotNil(t, pods)
	assert.Empty(t, pods)
	assert.Empty(t, f.ListNodes(context.Background()))
	assert.Nil(t, f.GetWorkload(context.Background(), model.KindDeployment, "web", ""))

	err := f.ScaleWorkload(context.Background(), model.KindDeployment, "web", 2, "")
	require.Error(t, err)
	assert.Equal(t, kserrors.ErrNotConnected, kserrors.CodeOf(err))
	assert.False(t, f.CheckConnectivity(context.Background()))
}

func TestListNamespaces_SortedWithProtectedFlag(t *testing.T) {
	f, _, _ := newTestFacade(t, nil,
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "team-b"}},
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "kube-system"}},
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "default"}},
	)

	got := f.ListNamespaces(context.Background())
	require.Len(t, got, 3)
	assert.Equal(t, "default", got[0].Name)
	assert.Equal(t, "kube-system", got[1].Name)
	assert.Equal(t, "team-b", got[2].Name)
	assert.True(t, got[0].Protected)
	assert.False(t, got[2].Protected)
}

func TestCreateNamespace_InvalidNameMakesNoCall(t *testing.T) {
	f, client, _ := newTestFacade(t, nil)

	err := f.CreateNamespace(context.Background(), "Bad_Name")
	require.Error(t, err)
	assert.Equal(t, kserrors.ErrInvalidInput, kserrors.CodeOf(err))
	assert.Empty(t, client.Actions())
}

func TestCreateAndDeleteNamespace(t *testing.T) {
	f, client, _ := newTestFacade(t, nil)
	hub := notify.NewHub(nil)
	f.publisher = hub
	events, cancel := hub.Subscribe(4)
	defer cancel()

	require.NoError(t, f.CreateNamespace(context.Background(), "team-c"))
	_, err := client.CoreV1().Namespaces().Get(context.Background(), "team-c", metav1.GetOptions{})
	require.NoError(t, err)

	ev := <-events
	assert.Equal(t, notify.ResourcesChanged, ev.Type)
	assert.Equal(t, "namespaces", ev.Resource)
	assert.Equal(t, "prod", ev.Context)

	require.NoError(t, f.DeleteNamespace(context.Background(), "team-c"))
	err = f.DeleteNamespace(context.Background(), "team-c")
	require.Error(t, err)
	assert.Equal(t, kserrors.ErrNotFound, kserrors.CodeOf(err))
}

func TestDeleteNamespace_ProtectedIsOnlyFlagged(t *testing.T) {
	f, client, _ := newTestFacade(t, nil,
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "kube-system"}},
	)

	listed := f.ListNamespaces(context.Background())
	require.Len(t, listed, 1)
	assert.True(t, listed[0].Protected)

	require.NoError(t, f.DeleteNamespace(context.Background(), "kube-system"))
	_, err := client.CoreV1().Namespaces().Get(context.Background(), "kube-system", metav1.GetOptions{})
	assert.True(t, k8serrors.IsNotFound(err))
}

func TestListPods_UsesActiveNamespace(t *testing.T) {
	f, _, _ := newTestFacade(t, nil,
		pod("team-a", "web-1", nil),
		pod("team-b", "web-2", nil),
	)

	got := f.ListPods(context.Background(), "", "")
	require.Len(t, got, 1)
	assert.Equal(t, "web-1", got[0].Name)

	all := f.ListPods(context.Background(), "", model.AllNamespaces)
	assert.Len(t, all, 2)
}

func TestListPodsMatching_CanonicalSelector(t *testing.T) {
	f, client, _ := newTestFacade(t, nil,
		pod("team-a", "web-1", map[string]string{"app": "web", "tier": "frontend"}),
		pod("team-a", "web-2", map[string]string{"app": "web", "tier": "backend"}),
		pod("team-a", "db-1", map[string]string{"app": "db"}),
	)

	got := f.ListPodsMatching(context.Background(), map[string]string{"tier": "frontend", "app": "web"}, "")
	require.Len(t, got, 1)
	assert.Equal(t, "web-1", got[0].Name)

	actions := client.Actions()
	require.NotEmpty(t, actions)
	list, ok := actions[len(actions)-1].(clienttesting.ListAction)
	require.True(t, ok)
	assert.Equal(t, "app=web,tier=frontend", list.GetListRestrictions().Labels.String())
}

func TestSelectorString(t *testing.T) {
	assert.Equal(t, "", SelectorString(nil))
	assert.Equal(t, "a=1", SelectorString(map[string]string{"a": "1"}))
	assert.Equal(t, "a=1,b=2,c=3", SelectorString(map[string]string{"c": "3", "a": "1", "b": "2"}))
}

func TestListPods_DegradesAndReports(t *testing.T) {
	f, client, ec := newTestFacade(t, nil, pod("team-a", "web-1", nil))
	client.PrependReactor("list", "pods", func(clienttesting.Action) (bool, runtime.Object, error) {
		return true, nil, k8serrors.NewForbidden(schema.GroupResource{Resource: "pods"}, "", errors.New("denied"))
	})

	got := f.ListPods(context.Background(), "", "")
	assert.NotNil(t, got)
	assert.Empty(t, got)

	active := ec.GetActiveErrors()
	require.Len(t, active, 1)
	assert.Equal(t, kserrors.ErrForbidden, active[0].Code)
	assert.Equal(t, "cluster.list_pods", active[0].Component)

	client.ReactionChain = client.ReactionChain[1:]
	assert.Len(t, f.ListPods(context.Background(), "", ""), 1)
	assert.Empty(t, ec.GetActiveErrors(), "a successful call clears the component's errors")
}

func TestGetPodLogs(t *testing.T) {
	f, _, _ := newTestFacade(t, nil, pod("team-a", "web-1", nil))

	logs := f.GetPodLogs(context.Background(), "web-1", "", LogOptions{TailLines: 100})
	assert.Equal(t, "fake logs", logs)

	disconnected := New(staticSelection{})
	assert.Contains(t, disconnected.GetPodLogs(context.Background(), "web-1", "", LogOptions{}), "Error fetching logs:")
}

func TestListNodes_SortedByName(t *testing.T) {
	f, _, _ := newTestFacade(t, nil,
		&corev1.Node{ObjectMeta: metav1.ObjectMeta{Name: "node-b"}},
		&corev1.Node{
			ObjectMeta: metav1.ObjectMeta{Name: "node-a"},
			Status: corev1.NodeStatus{
				Capacity: corev1.ResourceList{corev1.ResourceCPU: resource.MustParse("4")},
				Conditions: []corev1.NodeCondition{
					{Type: corev1.NodeReady, Status: corev1.ConditionTrue},
				},
			},
		},
	)

	got := f.ListNodes(context.Background())
	require.Len(t, got, 2)
	assert.Equal(t, "node-a", got[0].Name)
	assert.True(t, got[0].Ready)
	assert.Equal(t, 4000.0, got[0].Capacity.CPUMillicores)
	assert.False(t, got[1].Ready)
}

func TestCheckConnectivity_RecordsProbe(t *testing.T) {
	f, client, _ := newTestFacade(t, nil)

	ok, at := f.LastProbe()
	assert.False(t, ok)
	assert.True(t, at.IsZero())

	assert.True(t, f.CheckConnectivity(context.Background()))
	ok, at = f.LastProbe()
	assert.True(t, ok)
	assert.False(t, at.IsZero())

	client.PrependReactor("list", "nodes", func(clienttesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("dial tcp 10.0.0.1:6443: connect: connection refused")
	})
	assert.False(t, f.CheckConnectivity(context.Background()))
	ok, _ = f.LastProbe()
	assert.False(t, ok)
}

func TestGetPodMetrics(t *testing.T) {
	mapi := &fakeMetricsAPI{pods: []metricsv1beta1.PodMetrics{{
		ObjectMeta: metav1.ObjectMeta{Name: "web-1", Namespace: "team-a"},
		Containers: []metricsv1beta1.ContainerMetrics{{
			Name: "app",
			Usage: corev1.ResourceList{
				corev1.ResourceCPU:    resource.MustParse("250m"),
				corev1.ResourceMemory: resource.MustParse("64Mi"),
			},
		}},
	}}}
	f, _, _ := newTestFacade(t, mapi)

	m := f.GetPodMetrics(context.Background(), "")
	assert.Equal(t, "team-a", mapi.lastNamespace)
	u := m.Lookup(model.PodKey("team-a", "web-1"))
	require.NotNil(t, u)
	assert.Equal(t, 250.0, u.CPUMillicores)
	assert.Equal(t, float64(64*1024*1024), u.MemoryBytes)
}

func TestGetMetrics_UnavailableYieldsEmptyMap(t *testing.T) {
	f, _, ec := newTestFacade(t, nil)
	m := f.GetNodeMetrics(context.Background())
	assert.NotNil(t, m)
	assert.Empty(t, m)
	assert.Equal(t, []string{string(kserrors.ErrMetricsUnavailable)}, ec.GetActiveErrorCodes())

	f, _, ec = newTestFacade(t, &fakeMetricsAPI{err: k8serrors.NewNotFound(schema.GroupResource{Group: "metrics.k8s.io", Resource: "pods"}, "")})
	m = f.GetPodMetrics(context.Background(), model.AllNamespaces)
	assert.Empty(t, m)
	assert.Equal(t, []string{string(kserrors.ErrMetricsUnavailable)}, ec.GetActiveErrorCodes())
}

func TestListEvents_NewestFirst(t *testing.T) {
	at := func(min int) metav1.Time {
		return metav1.NewTime(time.Date(2026, 3, 1, 12, min, 0, 0, time.UTC))
	}
	f, _, _ := newTestFacade(t, nil,
		&corev1.Event{ObjectMeta: metav1.ObjectMeta{Name: "old", Namespace: "team-a"}, LastTimestamp: at(1), Type: "Normal"},
		&corev1.Event{ObjectMeta: metav1.ObjectMeta{Name: "new", Namespace: "team-a"}, LastTimestamp: at(9), Type: "Warning"},
		&corev1.Event{ObjectMeta: metav1.ObjectMeta{Name: "mid", Namespace: "team-a"}, LastTimestamp: at(5), Type: "Normal"},
	)

	got := f.ListEvents(context.Background(), "")
	require.Len(t, got, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{got[0].Name, got[1].Name, got[2].Name})
	assert.Equal(t, model.SeverityWarning, got[0].Severity)
}
