package callin

import (
	"slices"
	"strings"
	"testing"

	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/Iron-Ham/callin/internal/errors"
	"github.com/Iron-Ham/callin/internal/team"
	"github.com/Iron-Ham/callin/internal/thread"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	mDeposit MethodID = 10
	mBalance MethodID = 20
)

var mNew = ConstructorID(1)

type fixture struct {
	threads *thread.Manager
	reg     *team.Registry
	link    *Linkage
	base    *Base
	table   *DispatchTable
	main    *thread.Thread
	trace   []string
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	threads := thread.NewManager()
	link, err := NewLinkage(LinkageConfig{Threads: threads}, opts...)
	if err != nil {
		t.Fatalf("NewLinkage: %v", err)
	}
	reg, err := team.NewRegistry(team.RegistryConfig{Threads: threads, Registrar: link})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	table := NewDispatchTable("Account")
	base, err := link.DefineBase("Account", WithStatic(table))
	if err != nil {
		t.Fatalf("DefineBase: %v", err)
	}
	main, err := threads.Attach("main")
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	t.Cleanup(func() {
		threads.Detach(main)
		if err := threads.Wait(); err != nil {
			t.Errorf("Wait: %v", err)
		}
	})
	return &fixture{threads: threads, reg: reg, link: link, base: base, table: table, main: main}
}

func (f *fixture) record(s string) { f.trace = append(f.trace, s) }

// newTeam creates a team bound to the given methods of Account with
// callinID.
func (f *fixture) newTeam(t *testing.T, name string, advice Advice, callinID int, methods ...MethodID) *team.Team {
	t.Helper()
	tm, err := f.reg.NewTeam(name)
	if err != nil {
		t.Fatalf("NewTeam: %v", err)
	}
	jps := make([]JoinPoint, 0, len(methods))
	for _, m := range methods {
		jps = append(jps, JoinPoint{Base: "Account", Method: m, CallinID: callinID})
	}
	if err := f.link.Bind(tm, advice, jps...); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	return tm
}

// activate activates teams for the main thread so that they end up in the
// given precedence order.
func (f *fixture) activate(t *testing.T, teams ...*team.Team) {
	t.Helper()
	for _, tm := range slices.Backward(teams) {
		if err := tm.Activate(f.main); err != nil {
			t.Fatalf("Activate: %v", err)
		}
	}
}

// tracing returns advice that records every phase under name.
func (f *fixture) tracing(name string, callinID int) *Bindings {
	return NewBindings().
		OnBefore(callinID, func(*Frame) error { f.record(name + ".before"); return nil }).
		OnReplace(callinID, func(fr *Frame) (any, error) {
			f.record(name + ".replace")
			return fr.Proceed()
		}).
		OnAfter(callinID, func(*Frame, any) error { f.record(name + ".after"); return nil })
}

func (f *fixture) deposit(calls *int) {
	f.table.Define(mDeposit, func(args []any) (any, error) {
		*calls++
		f.record("base")
		return args[0].(int) + 1, nil
	})
}

func TestDispatch_PassThrough(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.deposit(&calls)
	t1 := f.newTeam(t, "T1", NoBindings{}, 1, mDeposit)
	t2 := f.newTeam(t, "T2", nil, 2, mDeposit)
	f.activate(t, t1, t2)

	got, err := f.base.Invoke(f.main, f.table, mDeposit, 41)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != 42 {
		t.Errorf("result = %v, want 42", got)
	}
	if calls != 1 {
		t.Errorf("base calls = %d, want 1", calls)
	}
}

func TestDispatch_ReplaceTransformsArgsAndResult(t *testing.T) {
	f := newFixture(t)
	var seen []int
	f.table.Define(mDeposit, func(args []any) (any, error) {
		seen = append(seen, args[0].(int))
		return args[0].(int) + 1, nil
	})

	advice := NewBindings().OnReplace(1, func(fr *Frame) (any, error) {
		doubled := []any{fr.Args()[0].(int) * 2}
		res, err := fr.CallNext(doubled, BaseCallPlain)
		if err != nil {
			return nil, err
		}
		return res.(int) * 100, nil
	})
	f.activate(t, f.newTeam(t, "T1", advice, 1, mDeposit))

	got, err := f.base.Invoke(f.main, f.table, mDeposit, 5)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !slices.Equal(seen, []int{10}) {
		t.Errorf("base saw %v, want [10]", seen)
	}
	if got != 1100 {
		t.Errorf("result = %v, want 1100", got)
	}
}

func TestDispatch_Veto(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.deposit(&calls)

	veto := NewBindings().OnReplace(1, func(*Frame) (any, error) {
		f.record("T1.replace")
		return "vetoed", nil
	})
	t1 := f.newTeam(t, "T1", veto, 1, mDeposit)
	t2 := f.newTeam(t, "T2", f.tracing("T2", 2), 2, mDeposit)
	f.activate(t, t1, t2)

	got, err := f.base.Invoke(f.main, f.table, mDeposit, 1)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != "vetoed" {
		t.Errorf("result = %v, want vetoed", got)
	}
	if calls != 0 {
		t.Errorf("base calls = %d, want 0", calls)
	}
	if !slices.Equal(f.trace, []string{"T1.replace"}) {
		t.Errorf("trace = %v, want only T1.replace", f.trace)
	}
}

func TestDispatch_RepeatedCallNext(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.deposit(&calls)

	twice := NewBindings().OnReplace(1, func(fr *Frame) (any, error) {
		first, err := fr.Proceed()
		if err != nil {
			return nil, err
		}
		second, err := fr.Proceed()
		if err != nil {
			return nil, err
		}
		return first.(int) + second.(int), nil
	})
	t1 := f.newTeam(t, "T1", twice, 1, mDeposit)
	t2 := f.newTeam(t, "T2", f.tracing("T2", 2), 2, mDeposit)
	f.activate(t, t1, t2)

	got, err := f.base.Invoke(f.main, f.table, mDeposit, 1)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != 4 || calls != 2 {
		t.Errorf("result = %v, base calls = %d; want 4 and 2", got, calls)
	}
	want := []string{
		"T2.before", "T2.replace", "base", "T2.after",
		"T2.before", "T2.replace", "base", "T2.after",
	}
	if !slices.Equal(f.trace, want) {
		t.Errorf("trace = %v, want %v", f.trace, want)
	}
}

func TestDispatch_NestingOrder(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.deposit(&calls)

	t1 := f.newTeam(t, "T1", f.tracing("T1", 1), 1, mDeposit)
	t2 := f.newTeam(t, "T2", f.tracing("T2", 2), 2, mDeposit)
	// T1 activated last takes precedence.
	if err := t2.Activate(f.main); err != nil {
		t.Fatal(err)
	}
	if err := t1.Activate(f.main); err != nil {
		t.Fatal(err)
	}
	if got := f.base.Teams(); len(got) != 2 || got[0] != t1 {
		t.Fatalf("base teams = %v, want [T1 T2]", got)
	}

	if _, err := f.base.Invoke(f.main, f.table, mDeposit, 1); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	want := []string{"T1.before", "T1.replace", "T2.before", "T2.replace", "base", "T2.after", "T1.after"}
	if !slices.Equal(f.trace, want) {
		t.Errorf("trace = %v, want %v", f.trace, want)
	}
}

func TestDispatch_BeforeFailureIsTransparent(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.deposit(&calls)

	boom := errors.New("overdrawn")
	failing := NewBindings().
		OnBefore(1, func(*Frame) error { return boom }).
		OnAfter(1, func(*Frame, any) error { f.record("T1.after"); return nil })
	t1 := f.newTeam(t, "T1", failing, 1, mDeposit)
	t2 := f.newTeam(t, "T2", f.tracing("T2", 2), 2, mDeposit)
	f.activate(t, t1, t2)

	_, err := f.base.Invoke(f.main, f.table, mDeposit, 1)
	if err != boom {
		t.Errorf("error = %v, want the advice error unwrapped", err)
	}
	if calls != 0 || len(f.trace) != 0 {
		t.Errorf("base calls = %d, trace = %v; want nothing to run", calls, f.trace)
	}
}

func TestDispatch_BaseFailureSkipsAfter(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("base failed")
	f.table.Define(mDeposit, func([]any) (any, error) { return nil, boom })

	t1 := f.newTeam(t, "T1", f.tracing("T1", 1), 1, mDeposit)
	t2 := f.newTeam(t, "T2", f.tracing("T2", 2), 2, mDeposit)
	f.activate(t, t1, t2)

	_, err := f.base.Invoke(f.main, f.table, mDeposit, 1)
	if err != boom {
		t.Errorf("error = %v, want the base error unwrapped", err)
	}
	want := []string{"T1.before", "T1.replace", "T2.before", "T2.replace"}
	if !slices.Equal(f.trace, want) {
		t.Errorf("trace = %v, want %v", f.trace, want)
	}
}

func TestDispatch_AfterSeesButCannotChangeResult(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.deposit(&calls)

	var seen any
	advice := NewBindings().
		OnReplace(1, func(fr *Frame) (any, error) {
			res, err := fr.Proceed()
			if err != nil {
				return nil, err
			}
			return res.(int) * 2, nil
		}).
		OnAfter(1, func(_ *Frame, result any) error {
			seen = result
			return nil
		})
	f.activate(t, f.newTeam(t, "T1", advice, 1, mDeposit))

	got, err := f.base.Invoke(f.main, f.table, mDeposit, 1)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if seen != 4 || got != 4 {
		t.Errorf("after saw %v, caller got %v; want 4 and 4", seen, got)
	}
}

func TestDispatch_AfterFailurePropagates(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.deposit(&calls)

	boom := errors.New("audit failed")
	advice := NewBindings().OnAfter(1, func(*Frame, any) error { return boom })
	f.activate(t, f.newTeam(t, "T1", advice, 1, mDeposit))

	if _, err := f.base.Invoke(f.main, f.table, mDeposit, 1); err != boom {
		t.Errorf("error = %v, want the after error", err)
	}
	if calls != 1 {
		t.Errorf("base calls = %d, want 1", calls)
	}
}

func TestDispatch_Constructor(t *testing.T) {
	f := newFixture(t)
	f.table.Define(mNew, func([]any) (any, error) {
		f.record("base")
		return nil, nil
	})

	t1 := f.newTeam(t, "T1", f.tracing("T1", 1), 1, mNew)
	t2 := f.newTeam(t, "T2", f.tracing("T2", 2), 2, mNew)
	f.activate(t, t1, t2)

	if !mNew.IsConstructor() || mDeposit.IsConstructor() {
		t.Fatal("constructor bit not detected")
	}
	if _, err := f.base.Invoke(f.main, f.table, mNew); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	want := []string{"base", "T2.after", "T1.after"}
	if !slices.Equal(f.trace, want) {
		t.Errorf("trace = %v, want %v", f.trace, want)
	}
}

func TestDispatch_SnapshotIsFixed(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.deposit(&calls)

	var t2 *team.Team
	t1 := f.newTeam(t, "T1", NewBindings().OnBefore(1, func(fr *Frame) error {
		return t2.Deactivate(fr.Thread())
	}), 1, mDeposit)
	t2 = f.newTeam(t, "T2", f.tracing("T2", 2), 2, mDeposit)
	f.activate(t, t1, t2)

	if _, err := f.base.Invoke(f.main, f.table, mDeposit, 1); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !slices.Contains(f.trace, "T2.after") {
		t.Errorf("trace = %v, T2 should still run in the current invocation", f.trace)
	}

	f.trace = nil
	if _, err := f.base.Invoke(f.main, f.table, mDeposit, 1); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !slices.Equal(f.trace, []string{"base"}) {
		t.Errorf("trace = %v, T2 should be gone from the next invocation", f.trace)
	}
}

func TestDispatch_SuperCall(t *testing.T) {
	tests := []struct {
		name   string
		opts   []Option
		offset MethodID
	}{
		{"default offset", nil, 1},
		{"configured offset", []Option{WithSuperCallOffset(3)}, 3},
		{"ignored offset", []Option{WithSuperCallOffset(0)}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.opts...)
			f.table.Define(mDeposit, func([]any) (any, error) { return "direct", nil })
			f.table.Define(mDeposit+tt.offset, func([]any) (any, error) { return "super", nil })

			advice := NewBindings().OnReplace(1, func(fr *Frame) (any, error) {
				return fr.CallNext(nil, BaseCallSuper)
			})
			t1 := f.newTeam(t, "T1", advice, 1, mDeposit)
			t2 := f.newTeam(t, "T2", nil, 2, mDeposit)
			f.activate(t, t1, t2)

			got, err := f.base.Invoke(f.main, f.table, mDeposit)
			if err != nil {
				t.Fatalf("Invoke: %v", err)
			}
			if got != "super" {
				t.Errorf("result = %v, want super", got)
			}
		})
	}
}

type staticRecorder struct {
	callinIDs []int
}

func (s *staticRecorder) CallOrigStatic(callinID int, id MethodID, args []any) (any, error) {
	s.callinIDs = append(s.callinIDs, callinID)
	return int(id), nil
}

func TestDispatch_Static(t *testing.T) {
	f := newFixture(t)
	rec := &staticRecorder{}
	statics, err := f.link.DefineBase("Math", WithStatic(rec))
	if err != nil {
		t.Fatalf("DefineBase: %v", err)
	}

	t1, _ := f.reg.NewTeam("T1")
	t2, _ := f.reg.NewTeam("T2")
	_ = f.link.Bind(t1, nil, JoinPoint{Base: "Math", Method: mBalance, CallinID: 7})
	_ = f.link.Bind(t2, nil, JoinPoint{Base: "Math", Method: mBalance, CallinID: 9})

	if _, err := statics.Invoke(f.main, nil, mBalance); err != nil {
		t.Fatalf("Invoke without teams: %v", err)
	}
	f.activate(t, t1, t2)
	got, err := statics.Invoke(f.main, nil, mBalance)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != int(mBalance) {
		t.Errorf("result = %v, want %d", got, mBalance)
	}
	if !slices.Equal(rec.callinIDs, []int{-1, 9}) {
		t.Errorf("static callin ids = %v, want [-1 9]", rec.callinIDs)
	}
}

func TestDispatch_ExecutingCallinBypassesOwnTeam(t *testing.T) {
	f := newFixture(t)
	calls := 0

	var t1 *team.Team
	advice := NewBindings().
		OnBefore(1, func(fr *Frame) error {
			if !t1.IsExecutingCallin(fr.Thread()) {
				t.Error("team should be executing a callin during before advice")
			}
			// A call from inside the advice reaches the original directly.
			_, err := f.base.Invoke(fr.Thread(), f.table, mDeposit, 100)
			return err
		})
	t1 = f.newTeam(t, "T1", advice, 1, mDeposit)
	f.activate(t, t1)

	f.table.Define(mDeposit, func(args []any) (any, error) {
		calls++
		if args[0] != 100 && t1.IsExecutingCallin(f.main) {
			t.Error("original body should not run as part of a callin")
		}
		return args[0], nil
	})

	if _, err := f.base.Invoke(f.main, f.table, mDeposit, 1); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if calls != 2 {
		t.Errorf("base calls = %d, want 2", calls)
	}
	if t1.IsExecutingCallin(f.main) {
		t.Error("executing-callin flag should be cleared after dispatch")
	}
}

func TestDispatch_InactiveTeamsAreSkipped(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.deposit(&calls)

	t1 := f.newTeam(t, "T1", f.tracing("T1", 1), 1, mDeposit)
	other := f.newTeam(t, "Other", f.tracing("Other", 3), 3, mBalance)
	f.activate(t, t1, other)

	worker := f.threads.Go("worker", func(th *thread.Thread) {
		if _, err := f.base.Invoke(th, f.table, mDeposit, 1); err != nil {
			t.Errorf("Invoke: %v", err)
		}
	})
	<-worker.Done()

	if !slices.Equal(f.trace, []string{"base"}) {
		t.Errorf("trace = %v, want only base on a thread without activation", f.trace)
	}
}

func TestDispatch_DeadThread(t *testing.T) {
	f := newFixture(t)
	f.activate(t, f.newTeam(t, "T1", nil, 1, mDeposit))

	dead := f.threads.Go("dead", func(*thread.Thread) {})
	<-dead.Done()

	_, err := f.base.Invoke(dead, f.table, mDeposit, 1)
	if !errors.Is(err, errors.ErrThreadNotAlive) {
		t.Errorf("Invoke(dead) error = %v, want ErrThreadNotAlive", err)
	}
	if _, err := f.base.Invoke(nil, f.table, mDeposit, 1); !errors.Is(err, errors.ErrNilThread) {
		t.Errorf("Invoke(nil) error = %v, want ErrNilThread", err)
	}
}

func TestDispatch_PanicPropagates(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.deposit(&calls)

	t1 := f.newTeam(t, "T1", NewBindings().OnBefore(1, func(*Frame) error { panic("advice bug") }), 1, mDeposit)
	f.activate(t, t1)

	func() {
		defer func() {
			if r := recover(); r != "advice bug" {
				t.Errorf("recovered %v, want advice bug", r)
			}
		}()
		_, _ = f.base.Invoke(f.main, f.table, mDeposit, 1)
		t.Error("Invoke should have panicked")
	}()
	if t1.IsExecutingCallin(f.main) {
		t.Error("executing-callin flag should be restored while unwinding")
	}
}

func TestInvocation_Validation(t *testing.T) {
	f := newFixture(t)
	tm, _ := f.reg.NewTeam("T1")

	inv := &Invocation{
		Thread:    f.main,
		Base:      "Account",
		Teams:     []ActiveTeam{{Team: tm, Advice: NoBindings{}}},
		CallinIDs: nil,
		MethodID:  mDeposit,
	}
	if _, err := inv.Run(); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Run() error = %v, want ErrInvalidInput", err)
	}

	inv.CallinIDs = []int{1}
	if _, err := inv.CallAllBindings(1); !errors.Is(err, errors.ErrIndexOutOfRange) {
		t.Errorf("CallAllBindings(1) error = %v, want ErrIndexOutOfRange", err)
	}

	_, err := inv.CallAllBindings(0)
	if !errors.Is(err, errors.ErrNoOriginal) {
		t.Errorf("CallAllBindings(0) error = %v, want ErrNoOriginal", err)
	}
	if err != nil && !strings.Contains(err.Error(), "base=Account") {
		t.Errorf("error = %q, want base context", err.Error())
	}
}

func TestLinkage_Registration(t *testing.T) {
	f := newFixture(t)
	tm := f.newTeam(t, "T1", nil, 1, mDeposit, mBalance)

	if len(f.base.Teams()) != 0 {
		t.Fatal("inactive team should not be registered at the base")
	}
	f.activate(t, tm)
	if got := f.base.Teams(); len(got) != 1 || got[0] != tm {
		t.Errorf("base teams = %v, want [T1]", got)
	}
	if err := tm.Deactivate(f.main); err != nil {
		t.Fatal(err)
	}
	if len(f.base.Teams()) != 0 {
		t.Error("deactivated team should leave the base")
	}
}

func TestLinkage_Errors(t *testing.T) {
	f := newFixture(t)

	if _, err := NewLinkage(LinkageConfig{}); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("NewLinkage() error = %v, want ErrInvalidInput", err)
	}
	if _, err := f.link.DefineBase("Account"); !errors.Is(err, &errors.AlreadyExistsError{}) {
		t.Errorf("duplicate DefineBase() error = %v, want AlreadyExistsError", err)
	}
	if _, err := f.link.Base("Ledger"); !errors.Is(err, errors.ErrNoSuchBase) {
		t.Errorf("Base(Ledger) error = %v, want ErrNoSuchBase", err)
	}

	tm, _ := f.reg.NewTeam("T1")
	if err := f.link.Bind(tm, nil, JoinPoint{Base: "Ledger", Method: mDeposit}); !errors.Is(err, errors.ErrNoSuchBase) {
		t.Errorf("Bind(unknown base) error = %v, want ErrNoSuchBase", err)
	}
	if err := f.link.Bind(tm, nil, JoinPoint{Base: "Account", Method: mDeposit}); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if err := f.link.Bind(tm, nil); !errors.Is(err, &errors.AlreadyExistsError{}) {
		t.Errorf("second Bind() error = %v, want AlreadyExistsError", err)
	}

	active, _ := f.reg.NewTeam("T2")
	_ = active.Activate(f.main)
	if err := f.link.Bind(active, nil); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Bind(active team) error = %v, want ErrInvalidInput", err)
	}

	if _, err := f.link.Call("Account", f.table, mBalance); !errors.Is(err, errors.ErrNoOriginal) {
		t.Errorf("Call(undefined method) error = %v, want ErrNoOriginal", err)
	}
	if _, err := f.link.Call("Ledger", f.table, mBalance); !errors.Is(err, errors.ErrNoSuchBase) {
		t.Errorf("Call(unknown base) error = %v, want ErrNoSuchBase", err)
	}

	var g errgroup.Group
	g.Go(func() error {
		_, err := f.link.Call("Account", f.table, mDeposit, 1)
		if !errors.Is(err, errors.ErrThreadNotAttached) {
			t.Errorf("Call() off-thread error = %v, want ErrThreadNotAttached", err)
		}
		return nil
	})
	_ = g.Wait()
}

func TestLinkage_ConcurrentCalls(t *testing.T) {
	f := newFixture(t)
	f.table.Define(mDeposit, func(args []any) (any, error) { return args[0].(int) + 1, nil })

	doubler := NewBindings().OnReplace(1, func(fr *Frame) (any, error) {
		return fr.CallNext([]any{fr.Args()[0].(int) * 2}, BaseCallPlain)
	})
	tm := f.newTeam(t, "T1", doubler, 1, mDeposit)

	var g errgroup.Group
	for i := range 8 {
		g.Go(func() error {
			th, err := f.threads.Attach("caller")
			if err != nil {
				return err
			}
			defer f.threads.Detach(th)

			// Even callers activate the team for themselves only.
			if i%2 == 0 {
				if err := tm.Activate(th); err != nil {
					return err
				}
			}
			want := i + 1
			if i%2 == 0 {
				want = 2*i + 1
			}
			for range 100 {
				got, err := f.link.Call("Account", f.table, mDeposit, i)
				if err != nil {
					return err
				}
				if got != want {
					return errors.NewValidationError("unexpected result").WithValue(got)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("caller: %v", err)
	}
	if tm.RegistrationState() != team.Unregistered {
		t.Errorf("state = %v, want unregistered once every caller ended", tm.RegistrationState())
	}
}
