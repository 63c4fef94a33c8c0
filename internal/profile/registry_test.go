package profile

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/client-go/kubernetes/fake"

	kserrors "github.com/kubesight/kubesight/internal/errors"
	"github.com/kubesight/kubesight/internal/kube"
	"github.com/kubesight/kubesight/internal/notify"
	"github.com/kubesight/kubesight/pkg/model"
)

// staticSource is a DiscoveredSource with fixed output.
type staticSource struct {
	profiles []model.ConnectionProfile
	current  string
	err      error
}

func (s staticSource) Discover() ([]model.ConnectionProfile, string, error) {
	return s.profiles, s.current, s.err
}

// memStore is an in-memory RecordStore that can be told to fail.
type memStore struct {
	mu       sync.Mutex
	records  []Record
	loadErr  error
	saveErr  error
	saveCall int
}

func (m *memStore) Load() ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out, nil
}

func (m *memStore) Save(records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCall++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records = append([]Record(nil), records...)
	return nil
}

// recorder captures published notifications.
type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Publish(ev notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []notify.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Type, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func fakeFactory() ClientFactory {
	return ClientFactoryFunc(func(p model.ConnectionProfile) (*kube.Clients, error) {
		return &kube.Clients{Kube: fake.NewSimpleClientset()}, nil
	})
}

func discovered(names ...string) staticSource {
	src := staticSource{}
	for _, n := range names {
		src.profiles = append(src.profiles, model.ConnectionProfile{Name: n, Kind: model.ProfileDiscovered, TLSVerify: true})
	}
	if len(names) > 0 {
		src.current = names[0]
	}
	return src
}

func newTestRegistry(src DiscoveredSource, store RecordStore, opts ...Option) *Registry {
	r := NewRegistry(src, store, fakeFactory(), opts...)
	r.Load()
	return r
}

func TestLoad_MergesAndSkipsDuplicateCustom(t *testing.T) {
	store := &memStore{records: []Record{
		{Name: "staging", Server: "https://staging:6443"},
		{Name: "prod", Server: "https://evil:6443"},
	}}
	r := newTestRegistry(discovered("dev", "prod"), store)

	assert.Equal(t, []string{"dev", "prod", "staging"}, r.ProfileNames())
	assert.Equal(t, "dev", r.CurrentContext())

	p, ok := r.Profile("prod")
	require.True(t, ok)
	assert.Equal(t, model.ProfileDiscovered, p.Kind, "discovered profile wins a name collision")

	staging, ok := r.Profile("staging")
	require.True(t, ok)
	assert.Equal(t, model.ProfileCustom, staging.Kind)
	assert.True(t, staging.TLSVerify)
}

func TestLoad_FailuresYieldEmpty(t *testing.T) {
	src := staticSource{err: errors.New("no kubeconfig")}
	store := &memStore{loadErr: errors.New("malformed")}
	r := newTestRegistry(src, store)

	assert.Empty(t, r.ProfileNames())
	_, ok := r.ActiveProfileName()
	assert.False(t, ok)
}

func TestSwitchContext_NotFoundLeavesSelection(t *testing.T) {
	r := newTestRegistry(discovered("dev"), &memStore{})
	require.NoError(t, r.SwitchContext("dev"))
	r.SetNamespace("shop")

	err := r.SwitchContext("missing")
	require.Error(t, err)
	assert.Equal(t, kserrors.ErrProfileNotFound, kserrors.CodeOf(err))

	name, ok := r.ActiveProfileName()
	assert.True(t, ok)
	assert.Equal(t, "dev", name)
	assert.Equal(t, "shop", r.Namespace())
}

func TestSwitchContext_ResetsNamespaceAndPublishes(t *testing.T) {
	rec := &recorder{}
	r := newTestRegistry(discovered("dev", "prod"), &memStore{}, WithPublisher(rec))

	require.NoError(t, r.SwitchContext("dev"))
	r.SetNamespace("shop")
	require.NoError(t, r.SwitchContext("prod"))

	sel, ok := r.Selection()
	require.True(t, ok)
	assert.Equal(t, "prod", sel.Profile.Name)
	assert.Equal(t, model.DefaultNamespace, sel.Namespace)
	assert.NotNil(t, sel.Clients)

	assert.Equal(t, []notify.Type{notify.ContextSwitched, notify.NamespaceSwitched, notify.ContextSwitched}, rec.types())
}

func TestSwitchContext_FactoryFailureLeavesSelection(t *testing.T) {
	calls := 0
	factory := ClientFactoryFunc(func(p model.ConnectionProfile) (*kube.Clients, error) {
		calls++
		if p.Name == "broken" {
			return nil, errors.New("bad certificate")
		}
		return &kube.Clients{Kube: fake.NewSimpleClientset()}, nil
	})
	r := NewRegistry(discovered("dev", "broken"), &memStore{}, factory)
	r.Load()
	require.NoError(t, r.SwitchContext("dev"))

	err := r.SwitchContext("broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad certificate")

	name, _ := r.ActiveProfileName()
	assert.Equal(t, "dev", name)
	assert.Equal(t, 2, calls)
}

func TestAddCustomProfile_DuplicateDoesNotTouchStore(t *testing.T) {
	store := &memStore{records: []Record{{Name: "staging", Server: "https://staging:6443"}}}
	r := newTestRegistry(discovered("dev"), store)

	for _, name := range []string{"dev", "staging"} {
		err := r.AddCustomProfile(CustomProfile{Name: name, Endpoint: "https://x:6443"})
		require.Error(t, err)
		assert.Equal(t, kserrors.ErrProfileDuplicate, kserrors.CodeOf(err))
	}
	assert.Equal(t, 0, store.saveCall)
	assert.Len(t, store.records, 1)
}

func TestAddCustomProfile_SaveFailureIsAllOrNothing(t *testing.T) {
	store := &memStore{saveErr: errors.New("disk full")}
	r := newTestRegistry(discovered("dev"), store)

	err := r.AddCustomProfile(CustomProfile{Name: "lab", Endpoint: "https://lab:6443", Token: "t"})
	require.Error(t, err)
	assert.Equal(t, kserrors.ErrProfileStore, kserrors.CodeOf(err))
	assert.Equal(t, []string{"dev"}, r.ProfileNames())
}

func TestAddCustomProfile_Success(t *testing.T) {
	store := &memStore{}
	r := newTestRegistry(discovered("dev"), store)

	err := r.AddCustomProfile(CustomProfile{Name: "lab", Endpoint: "https://lab:6443", Token: "t", Insecure: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"dev", "lab"}, r.ProfileNames())
	p, _ := r.Profile("lab")
	assert.Equal(t, "t", p.Token)
	assert.False(t, p.TLSVerify)
	assert.Equal(t, []Record{{Name: "lab", Server: "https://lab:6443", Token: "t", Insecure: true}}, store.records)
}

func TestAddCustomProfile_InvalidInput(t *testing.T) {
	store := &memStore{}
	r := newTestRegistry(discovered(), store)

	err := r.AddCustomProfile(CustomProfile{Name: "", Endpoint: "not-a-url"})
	require.Error(t, err)
	assert.Equal(t, kserrors.ErrInvalidInput, kserrors.CodeOf(err))
	assert.Equal(t, 0, store.saveCall)
}

func TestDeleteCustomProfile(t *testing.T) {
	rec := &recorder{}
	store := &memStore{records: []Record{{Name: "lab", Server: "https://lab:6443"}}}
	r := newTestRegistry(discovered("dev"), store, WithPublisher(rec))

	err := r.DeleteCustomProfile("dev")
	require.Error(t, err)
	assert.Equal(t, kserrors.ErrProfileNotFound, kserrors.CodeOf(err), "discovered profiles cannot be deleted")

	require.NoError(t, r.SwitchContext("lab"))
	require.NoError(t, r.DeleteCustomProfile("lab"))

	assert.Equal(t, []string{"dev"}, r.ProfileNames())
	assert.Empty(t, store.records)
	_, ok := r.ActiveProfileName()
	assert.False(t, ok, "deleting the active profile clears the selection")
	assert.Equal(t, notify.ContextSwitched, rec.types()[len(rec.types())-1])
}

func TestSetNamespace_EmptyMeansDefault(t *testing.T) {
	r := newTestRegistry(discovered("dev"), &memStore{})
	r.SetNamespace("shop")
	assert.Equal(t, "shop", r.Namespace())
	r.SetNamespace("")
	assert.Equal(t, model.DefaultNamespace, r.Namespace())
}

func TestSelection_NoTornReadsDuringSwitch(t *testing.T) {
	r := newTestRegistry(discovered("a", "b"), &memStore{})
	require.NoError(t, r.SwitchContext("a"))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				sel, ok := r.Selection()
				if ok && sel.Clients == nil {
					t.Error("selection without clients")
					return
				}
			}
		}()
	}

	for i := 0; i < 100; i++ {
		name := "a"
		if i%2 == 1 {
			name = "b"
		}
		require.NoError(t, r.SwitchContext(name))
		r.SetNamespace("ns")
	}
	close(stop)
	wg.Wait()
}
