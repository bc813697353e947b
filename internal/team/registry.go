package team

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/Iron-Ham/callin/internal/errors"
	"github.com/Iron-Ham/callin/internal/event"
	"github.com/Iron-Ham/callin/internal/logging"
	"github.com/Iron-Ham/callin/internal/thread"
)

// RegistryConfig holds dependencies shared by every team of a Registry.
type RegistryConfig struct {
	Threads   *thread.Manager // Required
	Bus       *event.Bus      // Optional; receives activation events
	Logger    *logging.Logger // Optional
	Registrar Registrar       // Optional default registrar for new teams
}

// Registry owns a set of named teams sharing one thread manager. It wires
// the thread lifecycle hooks into its teams and holds the optional team
// manager collaborator.
type Registry struct {
	mu         sync.RWMutex
	threads    *thread.Manager
	bus        *event.Bus
	logger     *logging.Logger
	registrar  Registrar
	teams      map[string]*Team
	order      []string // insertion order for deterministic iteration
	configured map[string]bool

	manager atomic.Pointer[StateChangeHandler]
}

// NewRegistry creates a Registry and installs its thread hooks.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.Threads == nil {
		return nil, errors.NewValidationError("thread manager is required").WithField("Threads")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}

	r := &Registry{
		threads:    cfg.Threads,
		bus:        cfg.Bus,
		logger:     logger,
		registrar:  cfg.Registrar,
		teams:      make(map[string]*Team),
		configured: make(map[string]bool),
	}

	cfg.Threads.OnThreadStarted(func(parent, child *thread.Thread) {
		for _, t := range r.Teams() {
			t.inheritActivation(parent, child)
		}
	})
	cfg.Threads.OnThreadEnded(func(th *thread.Thread) {
		for _, t := range r.Teams() {
			t.DeactivateForEndedThread(th)
		}
	})

	return r, nil
}

// Threads returns the registry's thread manager.
func (r *Registry) Threads() *thread.Manager { return r.threads }

// NewTeam creates a team named name and adds it to the registry. Options
// given here override the registry defaults.
func (r *Registry) NewTeam(name string, opts ...Option) (*Team, error) {
	base := []Option{
		WithBus(r.bus),
		WithLogger(r.logger),
		withTeamManager(r.stateChangeHandler),
	}
	if r.registrar != nil {
		base = append(base, WithRegistrar(r.registrar))
	}

	t, err := New(Config{Name: name, Threads: r.threads}, append(base, opts...)...)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.teams[name]; exists {
		return nil, errors.NewAlreadyExistsError("team", name)
	}
	r.teams[name] = t
	r.order = append(r.order, name)
	r.logger.Debug("team created", "team", name, "team_id", t.ID())
	return t, nil
}

// Team returns the team named name, or nil.
func (r *Registry) Team(name string) *Team {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.teams[name]
}

// Teams returns all teams in creation order.
func (r *Registry) Teams() []*Team {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Team, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.teams[name])
	}
	return out
}

// SetTeamManager installs the collaborator that receives registration
// transitions of every team in the registry. It can be set once.
func (r *Registry) SetTeamManager(h StateChangeHandler) error {
	if h == nil {
		return errors.NewValidationError("team manager must not be nil").WithField("handler")
	}
	if !r.manager.CompareAndSwap(nil, &h) {
		return errors.NewPreconditionError("set team manager", errors.ErrTeamManagerAlreadySet)
	}
	r.logger.Info("team manager installed")
	return nil
}

func (r *Registry) stateChangeHandler() StateChangeHandler {
	if p := r.manager.Load(); p != nil {
		return *p
	}
	return nil
}

// ApplyActivation makes exactly the named teams globally active among the
// teams it manages. Teams named by a previous call and missing now are
// globally deactivated; teams activated by other means are left alone.
// Unknown names fail the whole call before anything changes.
func (r *Registry) ApplyActivation(names []string) (activated, deactivated []string, err error) {
	want := make(map[string]bool, len(names))
	for _, name := range names {
		if r.Team(name) == nil {
			return nil, nil, errors.NewNotFoundError("team", name)
		}
		want[name] = true
	}

	r.mu.Lock()
	prev := r.configured
	r.configured = want
	r.mu.Unlock()

	for _, t := range r.Teams() {
		name := t.Name()
		switch {
		case want[name] && !prev[name]:
			if err := t.Activate(thread.All); err != nil {
				return activated, deactivated, err
			}
			activated = append(activated, name)
		case prev[name] && !want[name]:
			if err := t.Deactivate(thread.All); err != nil {
				return activated, deactivated, err
			}
			deactivated = append(deactivated, name)
		}
	}

	if len(activated) > 0 || len(deactivated) > 0 {
		r.logger.Info("activation applied", "activated", activated, "deactivated", deactivated)
		if r.bus != nil {
			r.bus.Publish(event.NewActivationReloadedEvent(slices.Clone(activated), slices.Clone(deactivated)))
		}
	}
	return activated, deactivated, nil
}
