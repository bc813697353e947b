package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "team.registered", "thread.ended")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeTeamActivated      = "team.activated"
	TypeTeamDeactivated    = "team.deactivated"
	TypeTeamRegistered     = "team.registered"
	TypeTeamUnregistered   = "team.unregistered"
	TypeThreadStarted      = "thread.started"
	TypeThreadEnded        = "thread.ended"
	TypeActivationReloaded = "activation.reloaded"
)

// baseEvent provides common fields for all events.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Team Activation Events
// -----------------------------------------------------------------------------

// ActivationScope says how an activation change applies.
type ActivationScope string

const (
	// ScopeGlobal covers every thread (the All sentinel).
	ScopeGlobal ActivationScope = "global"
	// ScopeExplicit covers one thread, requested by client code.
	ScopeExplicit ActivationScope = "explicit"
	// ScopeImplicit covers one thread, entered around a team-level method body.
	ScopeImplicit ActivationScope = "implicit"
)

// TeamActivatedEvent is emitted when a team becomes active for a thread or globally.
// Nested implicit activations of an already active thread are not reported.
type TeamActivatedEvent struct {
	baseEvent
	TeamID   string
	TeamName string
	Thread   string // Thread name; empty for ScopeGlobal
	Scope    ActivationScope
}

// NewTeamActivatedEvent creates a TeamActivatedEvent.
func NewTeamActivatedEvent(teamID, teamName, thread string, scope ActivationScope) TeamActivatedEvent {
	return TeamActivatedEvent{
		baseEvent: newBaseEvent(TypeTeamActivated),
		TeamID:    teamID,
		TeamName:  teamName,
		Thread:    thread,
		Scope:     scope,
	}
}

// TeamDeactivatedEvent is emitted when a team stops being active for a thread or globally.
type TeamDeactivatedEvent struct {
	baseEvent
	TeamID   string
	TeamName string
	Thread   string
	Scope    ActivationScope
	Ended    bool // True when triggered by the thread ending
}

// NewTeamDeactivatedEvent creates a TeamDeactivatedEvent.
func NewTeamDeactivatedEvent(teamID, teamName, thread string, scope ActivationScope, ended bool) TeamDeactivatedEvent {
	return TeamDeactivatedEvent{
		baseEvent: newBaseEvent(TypeTeamDeactivated),
		TeamID:    teamID,
		TeamName:  teamName,
		Thread:    thread,
		Scope:     scope,
		Ended:     ended,
	}
}

// TeamRegisteredEvent is emitted once per transition of a team into the
// registered state, after its bases have been told about it.
type TeamRegisteredEvent struct {
	baseEvent
	TeamID   string
	TeamName string
}

// NewTeamRegisteredEvent creates a TeamRegisteredEvent.
func NewTeamRegisteredEvent(teamID, teamName string) TeamRegisteredEvent {
	return TeamRegisteredEvent{
		baseEvent: newBaseEvent(TypeTeamRegistered),
		TeamID:    teamID,
		TeamName:  teamName,
	}
}

// TeamUnregisteredEvent is emitted once per transition of a team out of the
// registered state.
type TeamUnregisteredEvent struct {
	baseEvent
	TeamID   string
	TeamName string
}

// NewTeamUnregisteredEvent creates a TeamUnregisteredEvent.
func NewTeamUnregisteredEvent(teamID, teamName string) TeamUnregisteredEvent {
	return TeamUnregisteredEvent{
		baseEvent: newBaseEvent(TypeTeamUnregistered),
		TeamID:    teamID,
		TeamName:  teamName,
	}
}

// -----------------------------------------------------------------------------
// Thread Lifecycle Events
// -----------------------------------------------------------------------------

// ThreadStartedEvent is emitted when a thread is attached or spawned.
type ThreadStartedEvent struct {
	baseEvent
	ThreadID uint64
	Name     string
	Parent   string // Empty for root threads
}

// NewThreadStartedEvent creates a ThreadStartedEvent.
func NewThreadStartedEvent(id uint64, name, parent string) ThreadStartedEvent {
	return ThreadStartedEvent{
		baseEvent: newBaseEvent(TypeThreadStarted),
		ThreadID:  id,
		Name:      name,
		Parent:    parent,
	}
}

// ThreadEndedEvent is emitted after a thread ended and every team dropped its entries.
type ThreadEndedEvent struct {
	baseEvent
	ThreadID uint64
	Name     string
	Panicked bool
}

// NewThreadEndedEvent creates a ThreadEndedEvent.
func NewThreadEndedEvent(id uint64, name string, panicked bool) ThreadEndedEvent {
	return ThreadEndedEvent{
		baseEvent: newBaseEvent(TypeThreadEnded),
		ThreadID:  id,
		Name:      name,
		Panicked:  panicked,
	}
}

// -----------------------------------------------------------------------------
// Configuration Events
// -----------------------------------------------------------------------------

// ActivationReloadedEvent is emitted after the configured set of globally
// active teams was applied.
type ActivationReloadedEvent struct {
	baseEvent
	Activated   []string
	Deactivated []string
}

// NewActivationReloadedEvent creates an ActivationReloadedEvent.
func NewActivationReloadedEvent(activated, deactivated []string) ActivationReloadedEvent {
	return ActivationReloadedEvent{
		baseEvent:   newBaseEvent(TypeActivationReloaded),
		Activated:   activated,
		Deactivated: deactivated,
	}
}
