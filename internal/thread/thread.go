package thread

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ID identifies a thread for the lifetime of its Manager. Zero is reserved
// for the All sentinel.
type ID uint64

// Thread is the identity of one goroutine as seen by the team runtime.
type Thread struct {
	id     ID
	name   string
	parent *Thread
	alive  atomic.Bool

	done    chan struct{}
	endOnce sync.Once
}

// All is the sentinel standing for every thread.
var All = &Thread{name: "ALL_THREADS", done: make(chan struct{})}

func newThread(id ID, name string, parent *Thread) *Thread {
	th := &Thread{
		id:     id,
		name:   name,
		parent: parent,
		done:   make(chan struct{}),
	}
	th.alive.Store(true)
	return th
}

// ID returns the thread's identifier.
func (t *Thread) ID() ID { return t.id }

// Name returns the thread's name. Names are informational and need not be unique.
func (t *Thread) Name() string { return t.name }

// Parent returns the thread that spawned t, or nil for attached root threads.
func (t *Thread) Parent() *Thread { return t.parent }

// IsAll reports whether t is the All sentinel.
func (t *Thread) IsAll() bool { return t == All }

// Alive reports whether the thread has not ended yet.
func (t *Thread) Alive() bool { return t.alive.Load() }

// Done returns a channel closed once the thread ended and every end hook ran.
func (t *Thread) Done() <-chan struct{} { return t.done }

// String returns "name#id".
func (t *Thread) String() string {
	if t == nil {
		return "<nil>"
	}
	if t.IsAll() {
		return t.name
	}
	return fmt.Sprintf("%s#%d", t.name, t.id)
}

// markEnded flips the liveness flag. It reports false if the thread had already ended.
func (t *Thread) markEnded() bool {
	return t.alive.CompareAndSwap(true, false)
}

func (t *Thread) closeDone() {
	t.endOnce.Do(func() { close(t.done) })
}
