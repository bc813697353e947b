package team

import (
	"cmp"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Iron-Ham/callin/internal/errors"
	"github.com/Iron-Ham/callin/internal/event"
	"github.com/Iron-Ham/callin/internal/logging"
	"github.com/Iron-Ham/callin/internal/thread"
)

// Config holds required dependencies for creating a Team.
type Config struct {
	Name    string          // Human-readable team name
	Threads *thread.Manager // Source of thread identities and liveness
}

// threadEntry records that a thread is active and how it got there.
type threadEntry struct {
	th       *thread.Thread
	explicit bool
}

// threadSlot holds state owned by one thread. Only that thread reads or
// writes the fields, so they need no lock.
type threadSlot struct {
	implicitDepth   int
	executingCallin bool
}

// Team is one instantiated team: a set of callin bindings plus the
// activation state deciding when they apply.
type Team struct {
	id          string
	name        string
	threads     *thread.Manager
	registrar   Registrar
	teamManager func() StateChangeHandler
	bus         *event.Bus
	logger      *logging.Logger
	inheritable bool

	// regMu is the coarse registration guard; always taken before stateMu.
	regMu        sync.Mutex
	registration atomic.Int32

	stateMu      sync.RWMutex
	globalActive bool
	lazyGlobal   bool
	activated    map[thread.ID]threadEntry

	slots sync.Map // thread.ID -> *threadSlot
}

// New creates an inactive, unregistered Team.
func New(cfg Config, opts ...Option) (*Team, error) {
	if cfg.Name == "" {
		return nil, errors.NewValidationError("team name is required").WithField("Name")
	}
	if cfg.Threads == nil {
		return nil, errors.NewValidationError("thread manager is required").WithField("Threads")
	}

	tc := &teamConfig{}
	for _, opt := range opts {
		opt(tc)
	}
	logger := tc.logger
	if logger == nil {
		logger = logging.NopLogger()
	}

	return &Team{
		id:          uuid.NewString(),
		name:        cfg.Name,
		threads:     cfg.Threads,
		registrar:   tc.registrar,
		teamManager: tc.teamManager,
		bus:         tc.bus,
		logger:      logger.WithTeam(cfg.Name),
		inheritable: tc.inheritable,
		activated:   make(map[thread.ID]threadEntry),
	}, nil
}

// ID returns the team's unique identifier.
func (t *Team) ID() string { return t.id }

// Name returns the team's name.
func (t *Team) Name() string { return t.name }

// String returns the team's name.
func (t *Team) String() string { return t.name }

// RegistrationState returns whether the team is currently registered at its bases.
func (t *Team) RegistrationState() RegistrationState {
	return RegistrationState(t.registration.Load())
}

// Activate makes the team active for th. thread.All activates it for every
// thread. Activating an already active thread is a no-op apart from turning
// an implicit entry into an explicit one.
func (t *Team) Activate(th *thread.Thread) error {
	if th == nil {
		return errors.NewPreconditionError("activate", errors.ErrNilThread)
	}

	var events []event.Event
	t.regMu.Lock()
	if th.IsAll() {
		t.stateMu.Lock()
		wasGlobal := t.globalActive
		t.globalActive = true
		t.lazyGlobal = true
		t.stateMu.Unlock()

		t.threads.AddGlobalActiveTeam(t)
		if !wasGlobal {
			events = append(events, event.NewTeamActivatedEvent(t.id, t.name, "", event.ScopeGlobal))
		}
	} else {
		if !th.Alive() {
			t.regMu.Unlock()
			return errors.NewPreconditionError("activate", errors.ErrThreadNotAlive).WithThread(th.String())
		}
		t.stateMu.Lock()
		_, had := t.activated[th.ID()]
		t.activated[th.ID()] = threadEntry{th: th, explicit: true}
		t.stateMu.Unlock()

		if !had {
			events = append(events, event.NewTeamActivatedEvent(t.id, t.name, th.String(), event.ScopeExplicit))
		}
	}
	events = append(events, t.registerLocked()...)
	t.regMu.Unlock()

	t.publish(events)
	return nil
}

// Deactivate makes the team inactive for th. thread.All ends global
// activation and drops every per-thread entry. Deactivating one thread of a
// lazily global team first materialises explicit entries for every live
// thread, so all other threads stay active.
func (t *Team) Deactivate(th *thread.Thread) error {
	if th == nil {
		return errors.NewPreconditionError("deactivate", errors.ErrNilThread)
	}

	var events []event.Event
	t.regMu.Lock()
	if th.IsAll() {
		t.stateMu.Lock()
		wasGlobal := t.globalActive
		t.globalActive = false
		t.lazyGlobal = false
		clear(t.activated)
		t.stateMu.Unlock()

		t.threads.RemoveGlobalActiveTeam(t)
		if wasGlobal {
			events = append(events, event.NewTeamDeactivatedEvent(t.id, t.name, "", event.ScopeGlobal, false))
		}
		events = append(events, t.unregisterLocked()...)
	} else {
		t.stateMu.RLock()
		lazy := t.lazyGlobal
		t.stateMu.RUnlock()

		// regMu keeps thread-end cleanup out until the entries are in place.
		var existing []*thread.Thread
		if lazy {
			existing = t.threads.ExistingThreads()
		}

		t.stateMu.Lock()
		if t.lazyGlobal {
			for _, other := range existing {
				if other.Alive() {
					t.activated[other.ID()] = threadEntry{th: other, explicit: true}
				}
			}
			t.lazyGlobal = false
		}
		_, had := t.activated[th.ID()]
		delete(t.activated, th.ID())
		empty := t.isEmptyLocked()
		t.stateMu.Unlock()

		if had {
			events = append(events, event.NewTeamDeactivatedEvent(t.id, t.name, th.String(), event.ScopeExplicit, false))
		}
		if empty {
			events = append(events, t.unregisterLocked()...)
		}
	}
	t.regMu.Unlock()

	t.publish(events)
	return nil
}

// DeactivateForEndedThread drops th's entry and per-thread state after the
// thread ended. It never materialises lazy global activation and is safe to
// call from a thread-end hook.
func (t *Team) DeactivateForEndedThread(th *thread.Thread) {
	if th == nil || th.IsAll() {
		return
	}

	var events []event.Event
	t.regMu.Lock()
	t.stateMu.Lock()
	_, had := t.activated[th.ID()]
	delete(t.activated, th.ID())
	empty := t.isEmptyLocked()
	t.stateMu.Unlock()
	t.slots.Delete(th.ID())

	if had {
		events = append(events, event.NewTeamDeactivatedEvent(t.id, t.name, th.String(), event.ScopeExplicit, true))
	}
	if empty {
		events = append(events, t.unregisterLocked()...)
	}
	t.regMu.Unlock()

	t.publish(events)
}

// ActivateForNewThread is called by the thread manager for every new thread
// while the team is in the global-active set. Lazily global teams already
// cover the thread; narrowed global teams get an explicit entry for it.
func (t *Team) ActivateForNewThread(th *thread.Thread) {
	var events []event.Event
	t.regMu.Lock()
	t.stateMu.Lock()
	added := false
	if t.globalActive && !t.lazyGlobal {
		if _, had := t.activated[th.ID()]; !had {
			t.activated[th.ID()] = threadEntry{th: th, explicit: true}
			added = true
		}
	}
	t.stateMu.Unlock()

	if added {
		events = append(events, event.NewTeamActivatedEvent(t.id, t.name, th.String(), event.ScopeExplicit))
		events = append(events, t.registerLocked()...)
	}
	t.regMu.Unlock()

	t.publish(events)
}

// ImplicitlyActivate enters a team-level method body on the current thread.
// The thread gets an implicit entry unless it already has one, and its
// nesting depth grows by one.
func (t *Team) ImplicitlyActivate() error {
	th, err := t.threads.MustCurrent("implicit activation")
	if err != nil {
		return err
	}

	var events []event.Event
	t.regMu.Lock()
	t.stateMu.Lock()
	_, had := t.activated[th.ID()]
	if !had {
		t.activated[th.ID()] = threadEntry{th: th, explicit: false}
	}
	t.stateMu.Unlock()

	t.slot(th).implicitDepth++

	if !had {
		events = append(events, event.NewTeamActivatedEvent(t.id, t.name, th.String(), event.ScopeImplicit))
		events = append(events, t.registerLocked()...)
	}
	t.regMu.Unlock()

	t.publish(events)
	return nil
}

// ImplicitlyDeactivate leaves a team-level method body on the current
// thread. The entry is removed only when it is implicit, the team is not
// lazily global and this was the outermost body.
func (t *Team) ImplicitlyDeactivate() error {
	th, err := t.threads.MustCurrent("implicit deactivation")
	if err != nil {
		return err
	}
	slot := t.slot(th)
	if slot.implicitDepth <= 0 {
		return errors.NewPreconditionError("implicit deactivation", errors.ErrUnbalancedImplicitDeactivation).
			WithThread(th.String())
	}

	var events []event.Event
	t.regMu.Lock()
	t.stateMu.Lock()
	entry, had := t.activated[th.ID()]
	removed := had && !entry.explicit && !t.lazyGlobal && slot.implicitDepth == 1
	if removed {
		delete(t.activated, th.ID())
	}
	empty := t.isEmptyLocked()
	t.stateMu.Unlock()

	slot.implicitDepth--

	if removed {
		events = append(events, event.NewTeamDeactivatedEvent(t.id, t.name, th.String(), event.ScopeImplicit, false))
		if empty {
			events = append(events, t.unregisterLocked()...)
		}
	}
	t.regMu.Unlock()

	t.publish(events)
	return nil
}

// Within runs fn as a team-level method body: implicitly activated on the
// current thread for its duration, on every exit path.
func (t *Team) Within(fn func() error) (err error) {
	if err := t.ImplicitlyActivate(); err != nil {
		return err
	}
	defer func() {
		if derr := t.ImplicitlyDeactivate(); derr != nil && err == nil {
			err = derr
		}
	}()
	return fn()
}

// IsActive reports whether the team intercepts join points on th. For
// thread.All it reports global activation. Asking about an ended thread is
// a precondition violation.
func (t *Team) IsActive(th *thread.Thread) (bool, error) {
	if th == nil {
		return false, errors.NewPreconditionError("query activation", errors.ErrNilThread)
	}
	if th.IsAll() {
		t.stateMu.RLock()
		defer t.stateMu.RUnlock()
		return t.globalActive, nil
	}
	if !th.Alive() {
		return false, errors.NewPreconditionError("query activation", errors.ErrThreadNotAlive).WithThread(th.String())
	}

	t.stateMu.RLock()
	defer t.stateMu.RUnlock()
	if t.lazyGlobal {
		return true, nil
	}
	_, ok := t.activated[th.ID()]
	return ok, nil
}

// ActivatedThreads returns the threads the team is active for, ordered by
// ID. For a lazily global team that is every live thread.
func (t *Team) ActivatedThreads() []*thread.Thread {
	t.stateMu.RLock()
	if t.lazyGlobal {
		t.stateMu.RUnlock()
		return t.threads.ExistingThreads()
	}
	out := make([]*thread.Thread, 0, len(t.activated))
	for _, e := range t.activated {
		out = append(out, e.th)
	}
	t.stateMu.RUnlock()

	slices.SortFunc(out, func(a, b *thread.Thread) int { return cmp.Compare(a.ID(), b.ID()) })
	return out
}

// SaveActivationState captures the current thread's activation.
func (t *Team) SaveActivationState() (ActivationState, error) {
	th, err := t.threads.MustCurrent("save activation")
	if err != nil {
		return Inactive, err
	}
	return t.stateFor(th), nil
}

func (t *Team) stateFor(th *thread.Thread) ActivationState {
	t.stateMu.RLock()
	defer t.stateMu.RUnlock()
	if t.lazyGlobal {
		return ExplicitActive
	}
	e, ok := t.activated[th.ID()]
	switch {
	case !ok:
		return Inactive
	case e.explicit:
		return ExplicitActive
	default:
		return ImplicitActive
	}
}

// RestoreActivationState puts the current thread back into a state captured
// by SaveActivationState.
func (t *Team) RestoreActivationState(state ActivationState) error {
	if err := state.Validate(); err != nil {
		return err
	}
	th, err := t.threads.MustCurrent("restore activation")
	if err != nil {
		return err
	}
	if t.stateFor(th) == state {
		return nil
	}

	switch state {
	case Inactive:
		return t.Deactivate(th)
	case ExplicitActive:
		return t.Activate(th)
	}

	var events []event.Event
	t.regMu.Lock()
	t.stateMu.Lock()
	_, had := t.activated[th.ID()]
	t.activated[th.ID()] = threadEntry{th: th, explicit: false}
	t.stateMu.Unlock()
	if !had {
		events = append(events, event.NewTeamActivatedEvent(t.id, t.name, th.String(), event.ScopeImplicit))
	}
	events = append(events, t.registerLocked()...)
	t.regMu.Unlock()

	t.publish(events)
	return nil
}

// Suspended runs fn with the team inactive on the current thread and
// restores the previous activation afterwards, also when fn fails or panics.
func (t *Team) Suspended(fn func() error) (err error) {
	state, err := t.SaveActivationState()
	if err != nil {
		return err
	}
	if err := t.RestoreActivationState(Inactive); err != nil {
		return err
	}
	defer func() {
		if rerr := t.RestoreActivationState(state); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return fn()
}

// IsExecutingCallin reports whether th is currently inside one of this
// team's callin bodies.
func (t *Team) IsExecutingCallin(th *thread.Thread) bool {
	if th == nil || th.IsAll() {
		return false
	}
	if v, ok := t.slots.Load(th.ID()); ok {
		return v.(*threadSlot).executingCallin
	}
	return false
}

// SetExecutingCallin sets th's executing-callin flag and returns the
// previous value so callers can restore it.
func (t *Team) SetExecutingCallin(th *thread.Thread, executing bool) bool {
	if th == nil || th.IsAll() {
		return false
	}
	slot := t.slot(th)
	prev := slot.executingCallin
	slot.executingCallin = executing
	return prev
}

// ImplicitDepth returns th's nesting depth of team-level method bodies.
func (t *Team) ImplicitDepth(th *thread.Thread) int {
	if th == nil || th.IsAll() {
		return 0
	}
	if v, ok := t.slots.Load(th.ID()); ok {
		return v.(*threadSlot).implicitDepth
	}
	return 0
}

// inheritActivation gives child an explicit entry when parent has one.
func (t *Team) inheritActivation(parent, child *thread.Thread) {
	if !t.inheritable || parent == nil {
		return
	}
	t.stateMu.RLock()
	e, ok := t.activated[parent.ID()]
	lazy := t.lazyGlobal
	t.stateMu.RUnlock()
	if lazy || !ok || !e.explicit {
		return
	}
	if err := t.Activate(child); err != nil {
		t.logger.Warn("inheritable activation failed", "thread", child.String(), "error", err)
	}
}

func (t *Team) slot(th *thread.Thread) *threadSlot {
	v, _ := t.slots.LoadOrStore(th.ID(), &threadSlot{})
	return v.(*threadSlot)
}

// isEmptyLocked reports whether nothing keeps the team registered.
// stateMu must be held.
func (t *Team) isEmptyLocked() bool {
	return len(t.activated) == 0 && !t.lazyGlobal
}

// registerLocked moves the team to Registered if it is not already.
// regMu must be held and stateMu must not be.
func (t *Team) registerLocked() []event.Event {
	if t.RegistrationState() == Registered {
		return nil
	}
	if h := t.stateChangeHandler(); h != nil {
		h.HandleTeamStateChange(t, Registered)
	} else if t.registrar != nil {
		t.registrar.RegisterAtBases(t)
	}
	t.registration.Store(int32(Registered))
	t.logger.Debug("team registered")
	return []event.Event{event.NewTeamRegisteredEvent(t.id, t.name)}
}

// unregisterLocked moves the team to Unregistered if it is not already.
// regMu must be held and stateMu must not be.
func (t *Team) unregisterLocked() []event.Event {
	if t.RegistrationState() == Unregistered {
		return nil
	}
	if h := t.stateChangeHandler(); h != nil {
		h.HandleTeamStateChange(t, Unregistered)
	} else if t.registrar != nil {
		t.registrar.UnregisterFromBases(t)
	}
	t.registration.Store(int32(Unregistered))
	t.logger.Debug("team unregistered")
	return []event.Event{event.NewTeamUnregisteredEvent(t.id, t.name)}
}

func (t *Team) stateChangeHandler() StateChangeHandler {
	if t.teamManager == nil {
		return nil
	}
	return t.teamManager()
}

func (t *Team) publish(events []event.Event) {
	if t.bus == nil {
		return
	}
	for _, e := range events {
		t.bus.Publish(e)
	}
}
