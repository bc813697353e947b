package team

import "github.com/Iron-Ham/callin/internal/errors"

// RegistrationState tells whether a team is registered at its bases.
type RegistrationState int

const (
	// Unregistered means the bases do not route join points to the team.
	Unregistered RegistrationState = iota
	// Registered means the bases route join points to the team.
	Registered
)

// String returns the string representation of the registration state.
func (s RegistrationState) String() string {
	switch s {
	case Unregistered:
		return "unregistered"
	case Registered:
		return "registered"
	default:
		return "unknown"
	}
}

// ActivationState is the snapshot of one thread's activation used to
// suspend a team and restore it afterwards.
type ActivationState int

const (
	// Inactive means the thread has no entry and the team is not lazily global.
	Inactive ActivationState = iota
	// ImplicitActive means the thread is active through a team-level method body.
	ImplicitActive
	// ExplicitActive means the thread was activated by client code or globally.
	ExplicitActive
)

// String returns the string representation of the activation state.
func (s ActivationState) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case ImplicitActive:
		return "implicit"
	case ExplicitActive:
		return "explicit"
	default:
		return "unknown"
	}
}

// Validate returns an error for values outside the three defined states.
func (s ActivationState) Validate() error {
	switch s {
	case Inactive, ImplicitActive, ExplicitActive:
		return nil
	default:
		return errors.NewActivationError("restore activation", errors.ErrInvalidActivationState)
	}
}

// Registrar performs the base-side work of (un)registering a team. It is
// called with the team's registration guard held, at most once per
// transition.
type Registrar interface {
	RegisterAtBases(t *Team)
	UnregisterFromBases(t *Team)
}

// StateChangeHandler is the optional team-manager collaborator. When
// installed on a Registry it receives every registration transition instead
// of the team's Registrar.
type StateChangeHandler interface {
	HandleTeamStateChange(t *Team, state RegistrationState)
}

// StateChangeFunc adapts a function to StateChangeHandler.
type StateChangeFunc func(t *Team, state RegistrationState)

// HandleTeamStateChange calls f(t, state).
func (f StateChangeFunc) HandleTeamStateChange(t *Team, state RegistrationState) {
	f(t, state)
}
