// Package thread gives goroutines the thread identity the activation
// registry is keyed by.
//
// Go has no thread objects, so a [Thread] is an explicit handle with a
// lifetime: it is created by [Manager.Attach] (for a goroutine that already
// runs, typically main) or [Manager.Go] (which spawns one), and it ends when
// the goroutine's function returns or [Manager.Detach] is called. The manager
// maps goroutine ids to threads so code deep inside a call chain can ask for
// [Manager.Current] without threading a handle through every signature.
//
// The manager is also the thread-manager collaborator of the team runtime:
//   - [Manager.ExistingThreads] lists live threads, used when a lazily
//     globally active team narrows to "all but one" thread.
//   - The global-active team set receives [NewThreadActivator] callbacks for
//     every new thread.
//   - Start and end hooks let teams propagate inheritable activation and drop
//     entries of ended threads explicitly, instead of relying on weak
//     references.
//
// [All] is the process-wide sentinel meaning "every thread". It is never
// alive, never attached and never mutated.
package thread
