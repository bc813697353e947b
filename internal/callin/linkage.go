package callin

import (
	"sync"

	"github.com/Iron-Ham/callin/internal/errors"
	"github.com/Iron-Ham/callin/internal/logging"
	"github.com/Iron-Ham/callin/internal/team"
	"github.com/Iron-Ham/callin/internal/thread"
)

// LinkageConfig holds required dependencies for creating a Linkage.
type LinkageConfig struct {
	Threads *thread.Manager // Resolves the calling thread in Call
}

// teamBinding is what Bind recorded for one team.
type teamBinding struct {
	advice     Advice
	joinPoints []JoinPoint
}

// Linkage holds the bases and the bindings of teams to base methods. It
// implements team.Registrar: teams created with it as registrar appear at
// their bases exactly while they are registered.
type Linkage struct {
	threads     *thread.Manager
	superOffset int32
	logger      *logging.Logger

	mu    sync.RWMutex
	bases map[string]*Base
	bound map[*team.Team]teamBinding
}

var _ team.Registrar = (*Linkage)(nil)

// NewLinkage creates an empty Linkage.
func NewLinkage(cfg LinkageConfig, opts ...Option) (*Linkage, error) {
	if cfg.Threads == nil {
		return nil, errors.NewValidationError("thread manager is required").WithField("Threads")
	}
	l := &Linkage{
		threads:     cfg.Threads,
		superOffset: DefaultSuperCallOffset,
		logger:      logging.NopLogger(),
		bases:       make(map[string]*Base),
		bound:       make(map[*team.Team]teamBinding),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// SuperCallOffset returns the offset used for super base calls.
func (l *Linkage) SuperCallOffset() int32 { return l.superOffset }

// DefineBase adds a base named name.
func (l *Linkage) DefineBase(name string, opts ...BaseOption) (*Base, error) {
	if name == "" {
		return nil, errors.NewValidationError("base name is required").WithField("name")
	}
	b := &Base{
		name:        name,
		superOffset: l.superOffset,
		logger:      l.logger,
	}
	for _, opt := range opts {
		opt(b)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.bases[name]; exists {
		return nil, errors.NewAlreadyExistsError("base", name)
	}
	l.bases[name] = b
	return b, nil
}

// Base returns the base named name.
func (l *Linkage) Base(name string) (*Base, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.bases[name]
	if !ok {
		return nil, errors.NewNotFoundError("base", name).WithCause(errors.ErrNoSuchBase)
	}
	return b, nil
}

// Bind records that t intercepts the given join points with advice. A nil
// advice means NoBindings. A team is bound once, before it is first
// registered.
func (l *Linkage) Bind(t *team.Team, advice Advice, joinPoints ...JoinPoint) error {
	if t == nil {
		return errors.NewValidationError("team is required").WithField("team")
	}
	if advice == nil {
		advice = NoBindings{}
	}
	if t.RegistrationState() == team.Registered {
		return errors.NewValidationError("team must be bound before it is activated").WithField("team").WithValue(t.Name())
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.bound[t]; exists {
		return errors.NewAlreadyExistsError("binding for team", t.Name())
	}
	for _, jp := range joinPoints {
		if _, ok := l.bases[jp.Base]; !ok {
			return errors.NewNotFoundError("base", jp.Base).WithCause(errors.ErrNoSuchBase)
		}
	}
	l.bound[t] = teamBinding{advice: advice, joinPoints: joinPoints}
	return nil
}

// RegisterAtBases puts t at the front of every base it binds.
func (l *Linkage) RegisterAtBases(t *team.Team) {
	for b, rt := range l.registrations(t) {
		b.register(rt)
	}
	l.logger.WithTeam(t.Name()).Debug("registered at bases")
}

// UnregisterFromBases removes t from every base it binds.
func (l *Linkage) UnregisterFromBases(t *team.Team) {
	for b := range l.registrations(t) {
		b.unregister(t)
	}
	l.logger.WithTeam(t.Name()).Debug("unregistered from bases")
}

func (l *Linkage) registrations(t *team.Team) map[*Base]registeredTeam {
	l.mu.RLock()
	defer l.mu.RUnlock()
	tb, ok := l.bound[t]
	if !ok {
		return nil
	}
	out := make(map[*Base]registeredTeam)
	for _, jp := range tb.joinPoints {
		b := l.bases[jp.Base]
		rt, ok := out[b]
		if !ok {
			rt = registeredTeam{team: t, advice: tb.advice, callins: make(map[MethodID]int)}
			out[b] = rt
		}
		rt.callins[jp.Method] = jp.CallinID
	}
	return out
}

// Call invokes method id of the named base on the calling goroutine's
// thread.
func (l *Linkage) Call(base string, obj BaseObject, id MethodID, args ...any) (any, error) {
	th, err := l.threads.MustCurrent("call " + base)
	if err != nil {
		return nil, err
	}
	b, err := l.Base(base)
	if err != nil {
		return nil, err
	}
	return b.Invoke(th, obj, id, args...)
}
