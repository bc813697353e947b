package scenario

import (
	"fmt"

	"github.com/Iron-Ham/callin/internal/callin"
)

// original returns the body of a base method.
func (rt *Runtime) original(target string, m Method) callin.OrigFunc {
	return func(args []any) (any, error) {
		rt.rec.add(Entry{Thread: rt.currentName(), Phase: PhaseBase, Target: target, Detail: fmt.Sprint(args)})

		switch m.Op {
		case OrigAdd:
			n, err := intArg(target, args)
			if err != nil {
				return nil, err
			}
			return n + m.Value, nil
		case OrigConst:
			return m.Value, nil
		case OrigFail:
			return nil, fmt.Errorf("%s failed", target)
		default:
			if len(args) == 0 {
				return nil, nil
			}
			return args[0], nil
		}
	}
}

// bindAdvice adds the operations of bd to b under bd's callin id.
func (rt *Runtime) bindAdvice(b *callin.Bindings, bd Binding) {
	target := bd.Base + "." + bd.Method

	for _, op := range bd.Before {
		fn := rt.adviceOp("before", target, op)
		b.OnBefore(bd.Callin, func(f *callin.Frame) error {
			return fn(f, fmt.Sprint(f.Args()))
		})
	}
	b.OnReplace(bd.Callin, rt.replaceOp(target, bd.Replace))
	for _, op := range bd.After {
		fn := rt.adviceOp("after", target, op)
		b.OnAfter(bd.Callin, func(f *callin.Frame, result any) error {
			return fn(f, "result="+fmt.Sprint(result))
		})
	}
}

func (rt *Runtime) adviceOp(phase, target, op string) func(f *callin.Frame, detail string) error {
	return func(f *callin.Frame, detail string) error {
		rt.record(f, phase, target, op+" "+detail)
		switch op {
		case AdviceFail:
			return fmt.Errorf("%s %s advice failed at %s", f.Team().Name(), phase, target)
		case AdviceDeactivate:
			return f.Team().Deactivate(f.Thread())
		default:
			return nil
		}
	}
}

func (rt *Runtime) replaceOp(target, op string) callin.ReplaceFunc {
	return func(f *callin.Frame) (any, error) {
		rt.record(f, "replace", target, op+" "+fmt.Sprint(f.Args()))

		switch op {
		case ReplaceDouble:
			n, err := intArg(target, f.Args())
			if err != nil {
				return nil, err
			}
			next := append([]any{n * 2}, f.Args()[1:]...)
			return f.CallNext(next, f.Flags())
		case ReplaceVeto:
			return nil, nil
		case ReplaceTwice:
			first, err := f.Proceed()
			if err != nil {
				return nil, err
			}
			second, err := f.Proceed()
			if err != nil {
				return nil, err
			}
			a, aok := first.(int)
			b, bok := second.(int)
			if aok && bok {
				return a + b, nil
			}
			return second, nil
		case ReplaceSuper:
			return f.CallNext(nil, callin.BaseCallSuper)
		case ReplaceFail:
			return nil, fmt.Errorf("%s replace advice failed at %s", f.Team().Name(), target)
		default:
			return f.Proceed()
		}
	}
}

func (rt *Runtime) record(f *callin.Frame, phase, target, detail string) {
	rt.rec.add(Entry{
		Thread: f.Thread().String(),
		Team:   f.Team().Name(),
		Phase:  phase,
		Target: target,
		Detail: detail,
	})
}

func (rt *Runtime) currentName() string {
	if th := rt.threads.Current(); th != nil {
		return th.String()
	}
	return "-"
}

func intArg(target string, args []any) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%s: missing integer argument", target)
	}
	n, ok := args[0].(int)
	if !ok {
		return 0, fmt.Errorf("%s: argument %v is not an integer", target, args[0])
	}
	return n, nil
}
