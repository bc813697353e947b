package callin

import (
	"sync"

	"github.com/Iron-Ham/callin/internal/errors"
)

// OrigFunc is the body of an original method.
type OrigFunc func(args []any) (any, error)

// DispatchTable maps bound method ids to original method bodies. It serves
// as both a BaseObject and a StaticDispatcher; static lookups ignore the
// callin id. Super-call slots are plain entries at id + offset.
type DispatchTable struct {
	base string

	mu  sync.RWMutex
	fns map[MethodID]OrigFunc
}

// NewDispatchTable creates an empty table for the named base.
func NewDispatchTable(base string) *DispatchTable {
	return &DispatchTable{base: base, fns: make(map[MethodID]OrigFunc)}
}

// Define sets the original body for id.
func (t *DispatchTable) Define(id MethodID, fn OrigFunc) *DispatchTable {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fns[id] = fn
	return t
}

// CallOrig calls the body defined for id.
func (t *DispatchTable) CallOrig(id MethodID, args []any) (any, error) {
	t.mu.RLock()
	fn, ok := t.fns[id]
	t.mu.RUnlock()
	if !ok {
		return nil, errors.NewDispatchError("call original", errors.ErrNoOriginal).
			WithBase(t.base).WithMethod(int32(id))
	}
	return fn(args)
}

// CallOrigStatic calls the body defined for id.
func (t *DispatchTable) CallOrigStatic(_ int, id MethodID, args []any) (any, error) {
	return t.CallOrig(id, args)
}
