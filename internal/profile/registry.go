package profile

import (
	"log/slog"
	"sync"

	kserrors "github.com/kubesight/kubesight/internal/errors"
	"github.com/kubesight/kubesight/internal/kube"
	"github.com/kubesight/kubesight/internal/notify"
	"github.com/kubesight/kubesight/internal/observability"
	"github.com/kubesight/kubesight/internal/validation"
	"github.com/kubesight/kubesight/pkg/model"
)

const component = "profile"

// Selection is the live {context, namespace} pair with the clients bound to
// that context. It is always handed out by value.
type Selection struct {
	Profile   model.ConnectionProfile
	Namespace string
	Clients   *kube.Clients
}

// CustomProfile is user input for a new custom profile.
type CustomProfile struct {
	Name     string `validate:"required,max=253"`
	Endpoint string `validate:"required,url"`
	Token    string
	Insecure bool
}

// Registry owns the known connection profiles and the active selection.
// Reads take a shared lock; Load, SwitchContext and the custom-profile
// mutations are serialized by switchMu.
type Registry struct {
	source    DiscoveredSource
	store     RecordStore
	factory   ClientFactory
	publisher notify.Publisher
	metrics   *observability.Metrics

	switchMu sync.Mutex

	mu        sync.RWMutex
	profiles  []model.ConnectionProfile
	current   string
	active    *Selection
	namespace string
}

// Option configures a Registry.
type Option func(*Registry)

// WithPublisher sets where switch notifications go.
func WithPublisher(p notify.Publisher) Option {
	return func(r *Registry) { r.publisher = p }
}

// WithMetrics enables registry metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// NewRegistry creates an empty Registry. Call Load to populate it.
func NewRegistry(source DiscoveredSource, store RecordStore, factory ClientFactory, opts ...Option) *Registry {
	r := &Registry{
		source:    source,
		store:     store,
		factory:   factory,
		namespace: model.DefaultNamespace,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load merges discovered profiles with persisted custom profiles. A custom
// entry whose name is already taken is skipped. Failures on either side are
// logged and yield an empty set for that side.
func (r *Registry) Load() {
	r.switchMu.Lock()
	defer r.switchMu.Unlock()
	r.loadLocked()
}

// Reload is Load under another name, for explicit user refreshes.
func (r *Registry) Reload() { r.Load() }

func (r *Registry) loadLocked() {
	discovered, current, err := r.source.Discover()
	if err != nil {
		slog.Warn("failed to load discovered profiles", "error", err)
		discovered, current = nil, ""
	}

	records, err := r.store.Load()
	if err != nil {
		slog.Warn("failed to load custom profiles", "error", err)
		records = nil
	}

	merged := make([]model.ConnectionProfile, 0, len(discovered)+len(records))
	seen := make(map[string]struct{}, cap(merged))
	for _, p := range discovered {
		if _, dup := seen[p.Name]; dup {
			continue
		}
		seen[p.Name] = struct{}{}
		merged = append(merged, p)
	}
	custom := 0
	for _, rec := range records {
		if _, dup := seen[rec.Name]; dup {
			slog.Warn("skipping custom profile with duplicate name", "name", rec.Name)
			continue
		}
		seen[rec.Name] = struct{}{}
		merged = append(merged, fromRecord(rec))
		custom++
	}

	var cleared string
	r.mu.Lock()
	r.profiles = merged
	r.current = current
	if r.active != nil {
		if p, ok := findProfile(merged, r.active.Profile.Name); ok {
			r.active.Profile = p
		} else {
			cleared = r.active.Profile.Name
			r.active = nil
		}
	}
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.ProfilesLoaded.WithLabelValues(string(model.ProfileDiscovered)).Set(float64(len(merged) - custom))
		r.metrics.ProfilesLoaded.WithLabelValues(string(model.ProfileCustom)).Set(float64(custom))
	}
	slog.Info("connection profiles loaded", "discovered", len(merged)-custom, "custom", custom)

	if cleared != "" {
		slog.Warn("active profile no longer exists, selection cleared", "profile", cleared)
		r.publish(notify.Event{Type: notify.ContextSwitched})
	}
}

// ProfileNames returns discovered names (sorted) followed by custom names in
// store order.
func (r *Registry) ProfileNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.profiles))
	for i, p := range r.profiles {
		names[i] = p.Name
	}
	return names
}

// Profiles returns a copy of every known profile.
func (r *Registry) Profiles() []model.ConnectionProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.ConnectionProfile, len(r.profiles))
	copy(out, r.profiles)
	return out
}

// Profile looks up one profile by name.
func (r *Registry) Profile(name string) (model.ConnectionProfile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return findProfile(r.profiles, name)
}

// CurrentContext returns the context the external configuration marks as
// current, or "".
func (r *Registry) CurrentContext() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// ActiveProfileName returns the active profile name, if any.
func (r *Registry) ActiveProfileName() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.active == nil {
		return "", false
	}
	return r.active.Profile.Name, true
}

// Selection returns a consistent copy of the active selection.
func (r *Registry) Selection() (Selection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.active == nil {
		return Selection{Namespace: r.namespace}, false
	}
	sel := *r.active
	sel.Namespace = r.namespace
	return sel, true
}

// Namespace returns the active namespace.
func (r *Registry) Namespace() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namespace
}

// SwitchContext makes name the active profile and resets the namespace to
// default. Clients are built before the swap; on any failure nothing changes.
func (r *Registry) SwitchContext(name string) error {
	r.switchMu.Lock()
	defer r.switchMu.Unlock()

	p, ok := r.Profile(name)
	if !ok {
		r.countSwitch("not_found")
		return kserrors.New(kserrors.ErrProfileNotFound, component, "context "+name+" not found")
	}

	clients, err := r.factory.ForProfile(p)
	if err != nil {
		r.countSwitch("error")
		slog.Warn("failed to build clients for context", "context", name, "error", err)
		return kserrors.Wrap(err, kserrors.ErrConfigInvalid, component, "cannot connect to context %s", name)
	}

	r.mu.Lock()
	r.active = &Selection{Profile: p, Clients: clients}
	r.namespace = model.DefaultNamespace
	r.mu.Unlock()

	r.countSwitch("ok")
	slog.Info("switched context", "context", name, "kind", p.Kind)
	r.publish(notify.Event{Type: notify.ContextSwitched, Context: name, Namespace: model.DefaultNamespace})
	return nil
}

// SetNamespace changes the active namespace without checking that it exists.
// An empty name selects the default namespace.
func (r *Registry) SetNamespace(ns string) {
	if ns == "" {
		ns = model.DefaultNamespace
	}
	r.mu.Lock()
	r.namespace = ns
	ctxName := ""
	if r.active != nil {
		ctxName = r.active.Profile.Name
	}
	r.mu.Unlock()

	r.publish(notify.Event{Type: notify.NamespaceSwitched, Context: ctxName, Namespace: ns})
}

// AddCustomProfile validates and persists a new custom profile, then
// reloads. A duplicate name or a store failure leaves everything unchanged.
func (r *Registry) AddCustomProfile(cp CustomProfile) error {
	if err := validation.Struct(cp); err != nil {
		return kserrors.Wrap(nil, kserrors.ErrInvalidInput, component, "%s", err.Error())
	}

	r.switchMu.Lock()
	defer r.switchMu.Unlock()

	if _, exists := r.Profile(cp.Name); exists {
		return kserrors.New(kserrors.ErrProfileDuplicate, component, "context "+cp.Name+" already exists")
	}

	records, err := r.store.Load()
	if err != nil {
		return kserrors.Wrap(err, kserrors.ErrProfileStore, component, "cannot read profile store")
	}
	for _, rec := range records {
		if rec.Name == cp.Name {
			return kserrors.New(kserrors.ErrProfileDuplicate, component, "context "+cp.Name+" already exists")
		}
	}

	records = append(records, Record{
		Name:     cp.Name,
		Server:   cp.Endpoint,
		Token:    cp.Token,
		Insecure: cp.Insecure,
	})
	if err := r.store.Save(records); err != nil {
		return kserrors.Wrap(err, kserrors.ErrProfileStore, component, "cannot save profile store")
	}

	slog.Info("custom profile added", "name", cp.Name)
	r.loadLocked()
	return nil
}

// DeleteCustomProfile removes a custom profile from the store and reloads.
// Deleting the active profile clears the selection.
func (r *Registry) DeleteCustomProfile(name string) error {
	r.switchMu.Lock()
	defer r.switchMu.Unlock()

	records, err := r.store.Load()
	if err != nil {
		return kserrors.Wrap(err, kserrors.ErrProfileStore, component, "cannot read profile store")
	}

	idx := -1
	for i, rec := range records {
		if rec.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return kserrors.New(kserrors.ErrProfileNotFound, component, "custom context "+name+" not found")
	}

	records = append(records[:idx:idx], records[idx+1:]...)
	if err := r.store.Save(records); err != nil {
		return kserrors.Wrap(err, kserrors.ErrProfileStore, component, "cannot save profile store")
	}

	slog.Info("custom profile deleted", "name", name)
	r.loadLocked()
	return nil
}

func (r *Registry) publish(ev notify.Event) {
	if r.publisher != nil {
		r.publisher.Publish(ev)
	}
}

func (r *Registry) countSwitch(status string) {
	if r.metrics != nil {
		r.metrics.ContextSwitchesTotal.WithLabelValues(status).Inc()
	}
}

func findProfile(profiles []model.ConnectionProfile, name string) (model.ConnectionProfile, bool) {
	for _, p := range profiles {
		if p.Name == name {
			return p, true
		}
	}
	return model.ConnectionProfile{}, false
}

func fromRecord(rec Record) model.ConnectionProfile {
	return model.ConnectionProfile{
		Name:      rec.Name,
		Kind:      model.ProfileCustom,
		Endpoint:  rec.Server,
		Token:     rec.Token,
		TLSVerify: !rec.Insecure,
	}
}
