package scenario

import (
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Iron-Ham/callin/internal/callin"
	"github.com/Iron-Ham/callin/internal/errors"
	"github.com/Iron-Ham/callin/internal/event"
	"github.com/Iron-Ham/callin/internal/logging"
	"github.com/Iron-Ham/callin/internal/team"
	"github.com/Iron-Ham/callin/internal/thread"
)

// Options tune how a scenario runtime is built.
type Options struct {
	Logger          *logging.Logger
	SuperCallOffset int32    // zero keeps the default
	ActivateTeams   []string // activated globally on top of the file's own modes
	Inheritable     bool     // inheritable activation for every team
	RecordEvents    bool     // add registration events to the trace
}

// Runtime is a scenario turned into live teams, bases and threads.
type Runtime struct {
	scenario *Scenario
	logger   *logging.Logger

	threads  *thread.Manager
	bus      *event.Bus
	registry *team.Registry
	linkage  *callin.Linkage

	bases   map[string]*callin.Base
	objects map[string]callin.BaseObject // nil entries for static bases
	methods map[string]map[string]callin.MethodID

	rec *recorder
}

// Build creates the runtime for s. Teams with activation mode "all" and the
// teams named in opts.ActivateTeams are globally active afterwards.
func Build(s *Scenario, opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}

	bus := event.NewBus(event.WithLogger(logger))
	threads := thread.NewManager(thread.WithBus(bus), thread.WithLogger(logger))

	linkOpts := []callin.Option{callin.WithLogger(logger)}
	if opts.SuperCallOffset != 0 {
		linkOpts = append(linkOpts, callin.WithSuperCallOffset(opts.SuperCallOffset))
	}
	linkage, err := callin.NewLinkage(callin.LinkageConfig{Threads: threads}, linkOpts...)
	if err != nil {
		return nil, err
	}

	registry, err := team.NewRegistry(team.RegistryConfig{
		Threads:   threads,
		Bus:       bus,
		Logger:    logger,
		Registrar: linkage,
	})
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		scenario: s,
		logger:   logger.With("scenario", s.Name),
		threads:  threads,
		bus:      bus,
		registry: registry,
		linkage:  linkage,
		bases:    make(map[string]*callin.Base),
		objects:  make(map[string]callin.BaseObject),
		methods:  make(map[string]map[string]callin.MethodID),
		rec:      &recorder{},
	}

	if opts.RecordEvents {
		bus.SubscribeAll(rt.recordEvent)
	}
	if err := rt.defineBases(); err != nil {
		return nil, err
	}
	if err := rt.defineTeams(opts.Inheritable); err != nil {
		return nil, err
	}
	if _, _, err := registry.ApplyActivation(opts.ActivateTeams); err != nil {
		return nil, err
	}
	return rt, nil
}

// Registry returns the runtime's team registry.
func (rt *Runtime) Registry() *team.Registry { return rt.registry }

// Bus returns the runtime's event bus.
func (rt *Runtime) Bus() *event.Bus { return rt.bus }

func (rt *Runtime) defineBases() error {
	for _, b := range rt.scenario.Bases {
		table := callin.NewDispatchTable(b.Name)
		ids := make(map[string]callin.MethodID, len(b.Methods))
		for _, m := range b.Methods {
			id := callin.MethodID(m.ID)
			if m.Constructor {
				id = callin.ConstructorID(id)
			}
			ids[m.Name] = id
			table.Define(id, rt.original(b.Name+"."+m.Name, m))
		}

		var opts []callin.BaseOption
		if b.Static {
			opts = append(opts, callin.WithStatic(table))
			rt.objects[b.Name] = nil
		} else {
			rt.objects[b.Name] = table
		}
		base, err := rt.linkage.DefineBase(b.Name, opts...)
		if err != nil {
			return err
		}
		rt.bases[b.Name] = base
		rt.methods[b.Name] = ids
	}
	return nil
}

func (rt *Runtime) defineTeams(inheritable bool) error {
	for _, st := range rt.scenario.Teams {
		var opts []team.Option
		if inheritable || st.Inheritable {
			opts = append(opts, team.WithInheritableActivation())
		}
		tm, err := rt.registry.NewTeam(st.Name, opts...)
		if err != nil {
			return err
		}

		bindings := callin.NewBindings()
		joinPoints := make([]callin.JoinPoint, 0, len(st.Bindings))
		for _, bd := range st.Bindings {
			rt.bindAdvice(bindings, bd)
			joinPoints = append(joinPoints, callin.JoinPoint{
				Base:     bd.Base,
				Method:   rt.methods[bd.Base][bd.Method],
				CallinID: bd.Callin,
			})
		}
		if err := rt.linkage.Bind(tm, bindings, joinPoints...); err != nil {
			return err
		}

		if st.Activate == ActivateAll {
			if err := tm.Activate(thread.All); err != nil {
				return err
			}
		}
	}
	return nil
}

// Run attaches the calling goroutine as the main thread, activates teams
// with mode "main" for it and performs the scenario's calls. Calls on
// other thread names run on threads spawned from main, one per name, in
// order of first appearance. A Runtime can be run repeatedly; each run
// starts a fresh trace.
func (rt *Runtime) Run() (*Report, error) {
	main, err := rt.threads.Attach(MainThread)
	if err != nil {
		return nil, err
	}
	results, err := rt.runAll(main)
	rt.threads.Detach(main)
	if err != nil {
		rt.rec.drain()
		return nil, err
	}

	rt.logger.Debug("scenario run finished", "calls", len(results))
	return &Report{Scenario: rt.scenario.Name, Trace: rt.rec.drain(), Results: results}, nil
}

func (rt *Runtime) runAll(main *thread.Thread) ([]Result, error) {
	for _, st := range rt.scenario.Teams {
		if st.Activate != ActivateMain {
			continue
		}
		if err := rt.registry.Team(st.Name).Activate(main); err != nil {
			return nil, err
		}
	}

	results := make([]Result, len(rt.scenario.Calls))
	groups, order := rt.groupCalls()

	var g errgroup.Group
	for _, name := range order {
		idxs := groups[name]
		if name == MainThread {
			if err := rt.runCalls(main, idxs, results); err != nil {
				return nil, err
			}
			continue
		}

		var runErr error
		th := rt.threads.Go(name, func(th *thread.Thread) {
			runErr = rt.runCalls(th, idxs, results)
		})
		g.Go(func() error {
			<-th.Done()
			return runErr
		})
		if !rt.scenario.Parallel {
			if err := g.Wait(); err != nil {
				return nil, err
			}
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Close waits for every spawned thread and reports a recovered panic.
func (rt *Runtime) Close() error {
	return rt.threads.Wait()
}

func (rt *Runtime) groupCalls() (map[string][]int, []string) {
	groups := make(map[string][]int)
	var order []string
	for i, c := range rt.scenario.Calls {
		if _, ok := groups[c.Thread]; !ok {
			order = append(order, c.Thread)
		}
		groups[c.Thread] = append(groups[c.Thread], i)
	}
	return groups, order
}

func (rt *Runtime) runCalls(th *thread.Thread, idxs []int, results []Result) error {
	for _, i := range idxs {
		c := rt.scenario.Calls[i]
		target := c.Base + "." + c.Method

		value, err := rt.bases[c.Base].Invoke(th, rt.objects[c.Base], rt.methods[c.Base][c.Method], c.Args...)
		if errors.IsPrecondition(err) {
			return err
		}

		detail := fmt.Sprint(value)
		if err != nil {
			detail = "error: " + err.Error()
		}
		rt.rec.add(Entry{Thread: th.String(), Phase: PhaseReturn, Target: target, Detail: detail})

		res := Result{Index: i, Call: c, Thread: th.String(), Value: value, Err: err}
		res.Passed, res.Reason = check(c, value, err)
		results[i] = res
	}
	return nil
}

func check(c Call, value any, err error) (bool, string) {
	switch {
	case c.ExpectError != "":
		if err == nil {
			return false, fmt.Sprintf("expected error containing %q, got %v", c.ExpectError, value)
		}
		if !strings.Contains(err.Error(), c.ExpectError) {
			return false, fmt.Sprintf("expected error containing %q, got %q", c.ExpectError, err.Error())
		}
		return true, ""
	case err != nil:
		return false, "unexpected error: " + err.Error()
	case c.Expect != nil && fmt.Sprint(c.Expect) != fmt.Sprint(value):
		return false, fmt.Sprintf("expected %v, got %v", c.Expect, value)
	default:
		return true, ""
	}
}

func (rt *Runtime) recordEvent(e event.Event) {
	var entry Entry
	switch ev := e.(type) {
	case event.TeamRegisteredEvent:
		entry = Entry{Team: ev.TeamName, Target: ev.EventType()}
	case event.TeamUnregisteredEvent:
		entry = Entry{Team: ev.TeamName, Target: ev.EventType()}
	case event.ActivationReloadedEvent:
		entry = Entry{Target: ev.EventType(), Detail: fmt.Sprintf("activated=%v deactivated=%v", ev.Activated, ev.Deactivated)}
	default:
		return
	}
	entry.Phase = PhaseEvent
	entry.Thread = "-"
	if th := rt.threads.Current(); th != nil {
		entry.Thread = th.String()
	}
	rt.rec.add(entry)
}
