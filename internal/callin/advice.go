package callin

// Advice is the per-team callin logic for all join points the team binds.
// The frame's CallinID tells which binding is being dispatched.
type Advice interface {
	Before(f *Frame) error
	Replace(f *Frame) (any, error)
	After(f *Frame, result any) error
}

// NoBindings is the advice of a team without callin bindings. Before and
// After do nothing and Replace proceeds to the next team or the original.
type NoBindings struct{}

// Before does nothing.
func (NoBindings) Before(*Frame) error { return nil }

// Replace calls f.Proceed once.
func (NoBindings) Replace(f *Frame) (any, error) { return f.Proceed() }

// After does nothing.
func (NoBindings) After(*Frame, any) error { return nil }

// BeforeFunc is before advice for one callin id.
type BeforeFunc func(f *Frame) error

// ReplaceFunc is replace advice for one callin id. It decides whether and
// how often to call f.CallNext.
type ReplaceFunc func(f *Frame) (any, error)

// AfterFunc is after advice for one callin id. result is what the replace
// phase produced.
type AfterFunc func(f *Frame, result any) error

// Bindings is advice assembled from functions keyed by callin id. Callin ids
// without a replace function proceed unchanged. Bindings must be fully
// configured before the team is bound.
type Bindings struct {
	before  map[int][]BeforeFunc
	replace map[int]ReplaceFunc
	after   map[int][]AfterFunc
}

// NewBindings creates empty Bindings.
func NewBindings() *Bindings {
	return &Bindings{
		before:  make(map[int][]BeforeFunc),
		replace: make(map[int]ReplaceFunc),
		after:   make(map[int][]AfterFunc),
	}
}

// OnBefore adds before advice for callinID. Several functions run in the
// order they were added.
func (b *Bindings) OnBefore(callinID int, fn BeforeFunc) *Bindings {
	b.before[callinID] = append(b.before[callinID], fn)
	return b
}

// OnReplace sets the replace advice for callinID, replacing any earlier one.
func (b *Bindings) OnReplace(callinID int, fn ReplaceFunc) *Bindings {
	b.replace[callinID] = fn
	return b
}

// OnAfter adds after advice for callinID. Several functions run in the
// order they were added.
func (b *Bindings) OnAfter(callinID int, fn AfterFunc) *Bindings {
	b.after[callinID] = append(b.after[callinID], fn)
	return b
}

// Before runs the before functions of f's callin id and stops at the first error.
func (b *Bindings) Before(f *Frame) error {
	for _, fn := range b.before[f.CallinID()] {
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// Replace runs the replace function of f's callin id, or proceeds.
func (b *Bindings) Replace(f *Frame) (any, error) {
	if fn, ok := b.replace[f.CallinID()]; ok {
		return fn(f)
	}
	return f.Proceed()
}

// After runs the after functions of f's callin id and stops at the first error.
func (b *Bindings) After(f *Frame, result any) error {
	for _, fn := range b.after[f.CallinID()] {
		if err := fn(f, result); err != nil {
			return err
		}
	}
	return nil
}
