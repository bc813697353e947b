package callin

import (
	"slices"
	"sync"

	"github.com/Iron-Ham/callin/internal/errors"
	"github.com/Iron-Ham/callin/internal/logging"
	"github.com/Iron-Ham/callin/internal/team"
	"github.com/Iron-Ham/callin/internal/thread"
)

// registeredTeam is a team registered at one base, with the callin ids it
// uses for that base's methods.
type registeredTeam struct {
	team    *team.Team
	advice  Advice
	callins map[MethodID]int
}

// Base is an interceptable base class: the call site for its methods and
// the list of teams currently registered at it.
type Base struct {
	name        string
	static      StaticDispatcher
	superOffset int32
	logger      *logging.Logger

	mu    sync.RWMutex
	teams []registeredTeam // precedence order, newest registration first
}

// Name returns the base name.
func (b *Base) Name() string { return b.name }

// Teams returns the registered teams in precedence order.
func (b *Base) Teams() []*team.Team {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*team.Team, 0, len(b.teams))
	for _, rt := range b.teams {
		out = append(out, rt.team)
	}
	return out
}

func (b *Base) register(rt registeredTeam) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.teams = slices.DeleteFunc(b.teams, func(r registeredTeam) bool { return r.team == rt.team })
	b.teams = slices.Insert(b.teams, 0, rt)
}

func (b *Base) unregister(t *team.Team) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.teams = slices.DeleteFunc(b.teams, func(r registeredTeam) bool { return r.team == t })
}

// Snapshot returns the teams that intercept method id on th, in precedence
// order, with their callin ids. A team already executing a callin on th is
// skipped so its own calls into the base reach the original.
func (b *Base) Snapshot(th *thread.Thread, id MethodID) ([]ActiveTeam, []int, error) {
	b.mu.RLock()
	candidates := slices.Clone(b.teams)
	b.mu.RUnlock()

	var (
		active    []ActiveTeam
		callinIDs []int
	)
	for _, rt := range candidates {
		callinID, ok := rt.callins[id]
		if !ok {
			continue
		}
		on, err := rt.team.IsActive(th)
		if err != nil {
			return nil, nil, err
		}
		if !on || rt.team.IsExecutingCallin(th) {
			continue
		}
		active = append(active, ActiveTeam{Team: rt.team, Advice: rt.advice})
		callinIDs = append(callinIDs, callinID)
	}
	return active, callinIDs, nil
}

// Invoke is the call site of method id on obj, or of a static method when
// obj is nil. It snapshots the active teams once and dispatches through
// them, or calls the original directly when none is active.
func (b *Base) Invoke(th *thread.Thread, obj BaseObject, id MethodID, args ...any) (any, error) {
	if th == nil {
		return nil, errors.NewPreconditionError("invoke "+b.name, errors.ErrNilThread)
	}

	teams, callinIDs, err := b.Snapshot(th, id)
	if err != nil {
		return nil, err
	}

	if b.logger.Enabled(logging.LevelDebug) {
		b.logger.WithJoinPoint(b.name, int32(id)).Debug("dispatching join point",
			"thread", th.String(), "teams", len(teams), "constructor", id.IsConstructor())
	}

	inv := &Invocation{
		Thread:          th,
		Base:            b.name,
		BaseObject:      obj,
		Static:          b.static,
		Teams:           teams,
		CallinIDs:       callinIDs,
		MethodID:        id,
		Args:            args,
		SuperCallOffset: b.superOffset,
	}
	return inv.Run()
}
