package thread

import (
	"cmp"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/Iron-Ham/callin/internal/errors"
	"github.com/Iron-Ham/callin/internal/event"
	"github.com/Iron-Ham/callin/internal/logging"
)

// NewThreadActivator is implemented by teams in the global-active set. The
// manager calls ActivateForNewThread for every thread started while the team
// is in the set.
type NewThreadActivator interface {
	ActivateForNewThread(th *Thread)
}

// StartHook runs synchronously when a thread starts, before its function
// does. parent is nil for attached root threads.
type StartHook func(parent, child *Thread)

// EndHook runs once when a thread ends, after it is no longer alive and no
// longer listed by ExistingThreads.
type EndHook func(th *Thread)

// Manager tracks live threads and drives thread lifecycle hooks.
// It is safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	threads map[ID]*Thread
	byGID   map[int64]*Thread
	global  []NewThreadActivator

	hooksMu    sync.RWMutex
	startHooks []StartHook
	endHooks   []EndHook

	nextID atomic.Uint64
	wg     conc.WaitGroup

	panicMu    sync.Mutex
	firstPanic *panics.Recovered

	bus    *event.Bus
	logger *logging.Logger
}

// NewManager creates a Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		threads: make(map[ID]*Thread),
		byGID:   make(map[int64]*Thread),
		logger:  logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnThreadStarted registers a hook run for every thread started afterwards.
func (m *Manager) OnThreadStarted(h StartHook) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.startHooks = append(m.startHooks, h)
}

// OnThreadEnded registers a hook run for every thread ending afterwards.
func (m *Manager) OnThreadEnded(h EndHook) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.endHooks = append(m.endHooks, h)
}

// Attach gives the calling goroutine a thread identity. The thread stays
// alive until Detach.
func (m *Manager) Attach(name string) (*Thread, error) {
	gid := goid.Get()

	m.mu.Lock()
	if existing, ok := m.byGID[gid]; ok {
		m.mu.Unlock()
		return nil, errors.NewAlreadyExistsError("thread for goroutine", existing.String())
	}
	th := newThread(ID(m.nextID.Add(1)), name, nil)
	m.threads[th.id] = th
	m.byGID[gid] = th
	m.mu.Unlock()

	m.started(nil, th)
	return th, nil
}

// Detach ends a thread created by Attach. Detaching an ended thread is a no-op.
func (m *Manager) Detach(th *Thread) {
	m.end(th, false)
}

// Go spawns fn on a new goroutine with its own thread identity. The calling
// goroutine's thread, if any, becomes the parent. Start hooks have run by the
// time Go returns; the thread ends when fn returns or panics. A panic is
// recovered, logged and reported by Wait.
func (m *Manager) Go(name string, fn func(th *Thread)) *Thread {
	parent := m.Current()

	th := newThread(ID(m.nextID.Add(1)), name, parent)
	m.mu.Lock()
	m.threads[th.id] = th
	m.mu.Unlock()

	m.started(parent, th)

	bound := make(chan struct{})
	m.wg.Go(func() {
		gid := goid.Get()
		m.mu.Lock()
		m.byGID[gid] = th
		m.mu.Unlock()
		close(bound)

		r := panics.Try(func() { fn(th) })
		if r != nil {
			m.logger.WithThread(th.String()).Error("thread panicked",
				"panic", r.Value, "stack", string(r.Stack))
			m.recordPanic(r)
		}
		m.end(th, r != nil)
	})
	<-bound
	return th
}

// Wait blocks until every thread spawned with Go has ended. It returns the
// first recovered panic as an error, or nil.
func (m *Manager) Wait() error {
	m.wg.Wait()

	m.panicMu.Lock()
	defer m.panicMu.Unlock()
	return m.firstPanic.AsError()
}

func (m *Manager) recordPanic(r *panics.Recovered) {
	m.panicMu.Lock()
	defer m.panicMu.Unlock()
	if m.firstPanic == nil {
		m.firstPanic = r
	}
}

// Current returns the calling goroutine's thread, or nil if it has none.
func (m *Manager) Current() *Thread {
	gid := goid.Get()
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byGID[gid]
}

// MustCurrent returns the calling goroutine's thread or a precondition error
// if the goroutine was never attached.
func (m *Manager) MustCurrent(operation string) (*Thread, error) {
	if th := m.Current(); th != nil {
		return th, nil
	}
	return nil, errors.NewPreconditionError(operation, errors.ErrThreadNotAttached)
}

// ExistingThreads returns the live threads ordered by ID.
func (m *Manager) ExistingThreads() []*Thread {
	m.mu.RLock()
	out := make([]*Thread, 0, len(m.threads))
	for _, th := range m.threads {
		out = append(out, th)
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Thread) int { return cmp.Compare(a.id, b.id) })
	return out
}

// AddGlobalActiveTeam puts t into the global-active set. Adding a member
// twice keeps a single entry.
func (m *Manager) AddGlobalActiveTeam(t NewThreadActivator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !slices.Contains(m.global, t) {
		m.global = append(m.global, t)
	}
}

// RemoveGlobalActiveTeam drops t from the global-active set.
func (m *Manager) RemoveGlobalActiveTeam(t NewThreadActivator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := slices.Index(m.global, t); i >= 0 {
		m.global = slices.Delete(m.global, i, i+1)
	}
}

// GlobalActiveTeams returns a snapshot of the global-active set in insertion order.
func (m *Manager) GlobalActiveTeams() []NewThreadActivator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.global)
}

func (m *Manager) started(parent, th *Thread) {
	for _, t := range m.GlobalActiveTeams() {
		t.ActivateForNewThread(th)
	}

	m.hooksMu.RLock()
	hooks := slices.Clone(m.startHooks)
	m.hooksMu.RUnlock()
	for _, h := range hooks {
		h(parent, th)
	}

	parentName := ""
	if parent != nil {
		parentName = parent.String()
	}
	m.logger.Debug("thread started", "thread", th.String(), "parent", parentName)
	if m.bus != nil {
		m.bus.Publish(event.NewThreadStartedEvent(uint64(th.id), th.name, parentName))
	}
}

func (m *Manager) end(th *Thread, panicked bool) {
	if th == nil || th.IsAll() || !th.markEnded() {
		return
	}

	m.mu.Lock()
	delete(m.threads, th.id)
	for gid, bound := range m.byGID {
		if bound == th {
			delete(m.byGID, gid)
			break
		}
	}
	m.mu.Unlock()

	m.hooksMu.RLock()
	hooks := slices.Clone(m.endHooks)
	m.hooksMu.RUnlock()
	for _, h := range hooks {
		h(th)
	}

	m.logger.Debug("thread ended", "thread", th.String(), "panicked", panicked)
	if m.bus != nil {
		m.bus.Publish(event.NewThreadEndedEvent(uint64(th.id), th.name, panicked))
	}
	th.closeDone()
}
