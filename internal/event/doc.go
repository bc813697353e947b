// Package event provides a synchronous pub-sub bus for activation and thread
// lifecycle notifications.
//
// Teams publish activation, deactivation, registration and unregistration
// events; the thread manager publishes thread start and end events. Observers
// such as the scenario tracer and the CLI subscribe without the publishers
// knowing about them.
//
// # Thread Safety
//
// [Bus] is safe for concurrent use. Handlers run synchronously on the
// publishing goroutine and a panicking handler never prevents delivery to the
// others. Publishers must not hold their own locks while publishing, since a
// handler is free to call back into them.
//
// # Event Type Naming Convention
//
// Event types follow the pattern "category.action":
//   - team.activated, team.deactivated, team.registered, team.unregistered
//   - thread.started, thread.ended
//   - activation.reloaded
package event
