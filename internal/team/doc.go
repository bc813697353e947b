// Package team implements team instances and their activation registry.
//
// A [Team] intercepts join points only while it is active. Activation has
// three axes that are considered together:
//
//   - Global: Activate(thread.All) makes the team active for every thread,
//     lazily, without per-thread bookkeeping.
//   - Per thread: explicit entries (Activate/Deactivate) behave like set
//     membership; implicit entries (ImplicitlyActivate/ImplicitlyDeactivate,
//     entered around team-level method bodies) are counted per thread so
//     re-entrant calls do not deactivate early.
//   - Registration: the team is registered at its bases exactly when it is
//     lazily global or has at least one thread entry. Each transition calls
//     the [Registrar] (or the installed [StateChangeHandler]) exactly once.
//
// # Locking
//
// Every team has two guards. The registration guard is coarse and is held
// across the call into the registrar, which may be slow. The state guard is
// fine, protects only flags and the thread map, and is never held while the
// registrar runs, so IsActive never waits for a slow registration.
// Registrars and handlers must not call Activate or Deactivate on the team
// they are handed.
//
// # Threads
//
// Threads come from a [thread.Manager]. Operations scoped to "the current
// thread" resolve it through [thread.Manager.Current] and fail with a
// precondition error on goroutines that were never attached. A [Registry]
// wires the manager's hooks so entries of ended threads are dropped and
// inheritable activation reaches spawned threads.
package team
