package cmd

import (
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/callin/internal/config"
	"github.com/Iron-Ham/callin/internal/errors"
	"github.com/Iron-Ham/callin/internal/logging"
	"github.com/Iron-Ham/callin/internal/scenario"
)

type runOptions struct {
	events  bool
	noColor bool
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario and print its dispatch trace",
		Long: `Run a scenario file and print its dispatch trace.

The teams listed in activation.teams (or --teams) are activated globally
before the scenario's own activations. The command fails when a call does
not meet its expectation.

Examples:
  callin run account.yaml
  callin run account.yaml --teams audit,billing --events
  callin run account.yaml --watch   # re-run on config changes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScenario(cmd, args[0], opts, a.cfg.Activation.Watch)
		},
	}
	addRunFlags(cmd, &opts)
	cmd.Flags().Bool("watch", false, "keep running and apply activation.teams whenever the config file changes")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "watch <scenario.yaml>",
		Short: "Run a scenario again whenever the config file changes",
		Long: `Run a scenario, then watch the config file. Every change to
activation.teams is applied to the globally active teams and the scenario
runs again. Stop with Ctrl-C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScenario(cmd, args[0], opts, true)
		},
	}
	addRunFlags(cmd, &opts)
	return cmd
}

func addRunFlags(cmd *cobra.Command, opts *runOptions) {
	cmd.Flags().StringSlice("teams", nil, "teams to activate globally (overrides activation.teams)")
	cmd.Flags().Int32("super-call-offset", 0, "distance from a method slot to its super-call slot")
	cmd.Flags().Bool("inheritable", false, "threads inherit their parent's explicit activation")
	cmd.Flags().BoolVar(&opts.events, "events", false, "include registration events in the trace")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "disable styled output")
}

func (a *app) runScenario(cmd *cobra.Command, path string, opts runOptions, watch bool) error {
	s, err := scenario.Load(a.fs, path)
	if err != nil {
		return err
	}

	logger, err := a.newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	rt, err := scenario.Build(s, scenario.Options{
		Logger:          logger,
		SuperCallOffset: a.cfg.Dispatch.SuperCallOffset,
		ActivateTeams:   a.cfg.Activation.Teams,
		Inheritable:     a.cfg.Threads.InheritableActivation,
		RecordEvents:    opts.events,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	w := &watcher{rt: rt, p: newPrinter(out, !opts.noColor), logger: logger}
	runErr := w.run()

	if watch {
		if a.v.ConfigFileUsed() == "" {
			runErr = errors.Join(runErr, fmt.Errorf("watching needs a config file; pass --config or create %s", config.ConfigFile()))
		} else {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			fmt.Fprintf(out, "watching %s\n", a.v.ConfigFileUsed())
			config.Watch(a.v, w.reload)
			<-ctx.Done()
			w.stop()
			runErr = nil
		}
	}

	return errors.Join(runErr, rt.Close())
}

// watcher re-runs a scenario runtime after configuration changes.
type watcher struct {
	mu      sync.Mutex
	stopped bool
	rt      *scenario.Runtime
	p       *printer
	logger  *logging.Logger
}

func (w *watcher) run() error {
	report, err := w.rt.Run()
	if err != nil {
		return err
	}
	w.p.report(report)
	if n := len(report.Failures()); n > 0 {
		return fmt.Errorf("%d of %d calls failed", n, len(report.Results))
	}
	return nil
}

func (w *watcher) reload(cfg *config.Config, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if err != nil {
		w.logger.Warn("config reload rejected", "error", err)
		w.p.notice("config reload rejected: %v", err)
		return
	}

	activated, deactivated, err := w.rt.Registry().ApplyActivation(cfg.Activation.Teams)
	if err != nil {
		w.logger.Warn("activation reload failed", "error", err)
		w.p.notice("activation reload failed: %v", err)
		return
	}
	w.p.notice("activated %v, deactivated %v", activated, deactivated)

	if err := w.run(); err != nil {
		w.p.notice("%v", err)
	}
}

// stop waits for an in-flight reload and ignores later ones.
func (w *watcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
}
