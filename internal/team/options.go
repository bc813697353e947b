package team

import (
	"github.com/Iron-Ham/callin/internal/event"
	"github.com/Iron-Ham/callin/internal/logging"
)

// Option configures a Team.
type Option func(*teamConfig)

// teamConfig holds optional settings for a Team.
type teamConfig struct {
	registrar   Registrar
	bus         *event.Bus
	logger      *logging.Logger
	inheritable bool
	teamManager func() StateChangeHandler
}

// WithRegistrar sets the collaborator told about registration transitions.
// Without one, transitions only update state and publish events.
func WithRegistrar(r Registrar) Option {
	return func(c *teamConfig) { c.registrar = r }
}

// WithBus publishes activation and registration events on b.
func WithBus(b *event.Bus) Option {
	return func(c *teamConfig) { c.bus = b }
}

// WithLogger sets the team's logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *teamConfig) { c.logger = l }
}

// WithInheritableActivation makes threads spawned by an explicitly activated
// thread start explicitly activated too. It only takes effect for teams
// created through a Registry, which owns the thread-start hook.
func WithInheritableActivation() Option {
	return func(c *teamConfig) { c.inheritable = true }
}

// withTeamManager lets a Registry route transitions to its installed handler.
func withTeamManager(lookup func() StateChangeHandler) Option {
	return func(c *teamConfig) { c.teamManager = lookup }
}
