package callin

import (
	"github.com/Iron-Ham/callin/internal/errors"
	"github.com/Iron-Ham/callin/internal/team"
	"github.com/Iron-Ham/callin/internal/thread"
)

// Invocation is one join point occurrence: the snapshot of active teams and
// everything needed to reach the original method. It must not be modified
// while it runs.
type Invocation struct {
	Thread     *thread.Thread
	Base       string           // Base name, used in errors
	BaseObject BaseObject       // nil for static methods
	Static     StaticDispatcher // Used when BaseObject is nil
	Teams      []ActiveTeam     // Precedence order, highest first
	CallinIDs  []int            // Index-aligned with Teams
	MethodID   MethodID
	Args       []any

	// SuperCallOffset is added to MethodID for BaseCallSuper. Zero means
	// DefaultSuperCallOffset.
	SuperCallOffset int32
}

// Run dispatches the invocation from the first team, or calls the original
// directly when no team is active.
func (inv *Invocation) Run() (any, error) {
	if err := inv.validate(); err != nil {
		return nil, err
	}
	if len(inv.Teams) == 0 {
		return inv.callOrig(-1, inv.Args, BaseCallPlain)
	}
	return inv.callAllBindings(0, inv.Args, BaseCallPlain)
}

// CallAllBindings runs the before, replace and after phases of the team at
// idx with the invocation's arguments. Teams after idx run nested inside
// its replace phase.
func (inv *Invocation) CallAllBindings(idx int) (any, error) {
	if err := inv.validate(); err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(inv.Teams) {
		return nil, inv.dispatchError("call all bindings", errors.ErrIndexOutOfRange).WithCallin(idx)
	}
	return inv.callAllBindings(idx, inv.Args, BaseCallPlain)
}

func (inv *Invocation) validate() error {
	if len(inv.CallinIDs) != len(inv.Teams) {
		return errors.NewValidationError("callin ids must align with active teams").
			WithField("CallinIDs").WithValue(len(inv.CallinIDs))
	}
	for _, at := range inv.Teams {
		if at.Team == nil || at.Advice == nil {
			return errors.NewValidationError("active team needs a team and advice").WithField("Teams")
		}
	}
	return nil
}

func (inv *Invocation) callAllBindings(idx int, args []any, flags BaseCallFlags) (any, error) {
	at := inv.Teams[idx]
	f := &Frame{inv: inv, idx: idx, args: args, flags: flags}

	f.prevExecuting = at.Team.SetExecutingCallin(inv.Thread, true)
	defer at.Team.SetExecutingCallin(inv.Thread, f.prevExecuting)

	var (
		result any
		err    error
	)
	if inv.MethodID.IsConstructor() {
		result, err = f.CallNext(args, flags)
	} else {
		if err := at.Advice.Before(f); err != nil {
			return nil, err
		}
		result, err = at.Advice.Replace(f)
	}
	if err != nil {
		return nil, err
	}

	if err := at.Advice.After(f, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (inv *Invocation) callOrig(idx int, args []any, flags BaseCallFlags) (any, error) {
	id := inv.MethodID
	if inv.BaseObject == nil {
		if inv.Static == nil {
			return nil, inv.dispatchError("call static original", errors.ErrNoOriginal)
		}
		callinID := -1
		if idx >= 0 {
			callinID = inv.CallinIDs[idx]
		}
		return inv.Static.CallOrigStatic(callinID, id, args)
	}

	if flags == BaseCallSuper {
		offset := inv.SuperCallOffset
		if offset == 0 {
			offset = DefaultSuperCallOffset
		}
		id += MethodID(offset)
	}
	return inv.BaseObject.CallOrig(id, args)
}

func (inv *Invocation) dispatchError(msg string, cause error) *errors.DispatchError {
	return errors.NewDispatchError(msg, cause).WithBase(inv.Base).WithMethod(int32(inv.MethodID))
}

// Frame is the view of an invocation handed to one team's advice.
type Frame struct {
	inv           *Invocation
	idx           int
	args          []any
	flags         BaseCallFlags
	prevExecuting bool
}

// Thread returns the thread the join point runs on.
func (f *Frame) Thread() *thread.Thread { return f.inv.Thread }

// Team returns the team whose advice is running.
func (f *Frame) Team() *team.Team { return f.inv.Teams[f.idx].Team }

// Index returns the team's position in the snapshot.
func (f *Frame) Index() int { return f.idx }

// CallinID returns the team's callin id for this join point.
func (f *Frame) CallinID() int { return f.inv.CallinIDs[f.idx] }

// MethodID returns the bound method id.
func (f *Frame) MethodID() MethodID { return f.inv.MethodID }

// Base returns the base name.
func (f *Frame) Base() string { return f.inv.Base }

// BaseObject returns the intercepted object, nil for static methods.
func (f *Frame) BaseObject() BaseObject { return f.inv.BaseObject }

// Args returns the arguments this team received. Advice must not modify
// the slice; pass a new one to CallNext instead.
func (f *Frame) Args() []any { return f.args }

// Flags returns the base-call flags this team was reached with.
func (f *Frame) Flags() BaseCallFlags { return f.flags }

// Proceed calls CallNext with the frame's own arguments and flags.
func (f *Frame) Proceed() (any, error) {
	return f.CallNext(f.args, f.flags)
}

// CallNext advances the chain. The next team, if any, runs all three of its
// phases with baseCallArgs; otherwise the original method is called. A nil
// baseCallArgs reuses the frame's arguments. It may be called any number of
// times from replace advice.
func (f *Frame) CallNext(baseCallArgs []any, flags BaseCallFlags) (any, error) {
	if baseCallArgs == nil {
		baseCallArgs = f.args
	}

	tm := f.Team()
	tm.SetExecutingCallin(f.inv.Thread, f.prevExecuting)
	defer tm.SetExecutingCallin(f.inv.Thread, true)

	if next := f.idx + 1; next < len(f.inv.Teams) {
		return f.inv.callAllBindings(next, baseCallArgs, flags)
	}
	return f.inv.callOrig(f.idx, baseCallArgs, flags)
}
