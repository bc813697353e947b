// Package cmd implements the callin command line.
package cmd

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/callin/internal/config"
	"github.com/Iron-Ham/callin/internal/errors"
	"github.com/Iron-Ham/callin/internal/logging"
)

// flagKeys maps command flags to the config keys they override.
var flagKeys = map[string]string{
	"log-level":         "logging.level",
	"teams":             "activation.teams",
	"watch":             "activation.watch",
	"super-call-offset": "dispatch.super_call_offset",
	"inheritable":       "threads.inheritable_activation",
}

// app is the state shared by one command tree.
type app struct {
	fs      afero.Fs
	cfgFile string
	v       *viper.Viper
	cfg     *config.Config
}

// Execute runs the root command
func Execute() error {
	return newRootCmd(afero.NewOsFs()).Execute()
}

func newRootCmd(fs afero.Fs) *cobra.Command {
	a := &app{fs: fs}

	root := &cobra.Command{
		Use:   "callin",
		Short: "Team activation and callin dispatch runtime",
		Long: `Callin runs scenarios against the team activation registry and the
callin dispatch chain, printing every advice phase and original method
call in the order the runtime performed them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initConfig(cmd.Flags())
		},
	}

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is $XDG_CONFIG_HOME/callin/config.yaml)")
	root.PersistentFlags().String("log-level", "", "minimum log level (debug/info/warn/error)")

	root.AddCommand(newRunCmd(a), newWatchCmd(a), newConfigCmd(a))
	return root
}

func (a *app) initConfig(flags *pflag.FlagSet) error {
	v := config.New()
	v.SetFs(a.fs)

	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(config.ConfigDir())
		v.AddConfigPath(".")
	}

	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	// A missing file is fine unless it was named explicitly
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &notFound) {
			return errors.Wrap(err, "reading config")
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	a.v, a.cfg = v, cfg
	return nil
}

func (a *app) newLogger() (*logging.Logger, error) {
	return logging.NewLogger(a.cfg.Logging.Dir, a.cfg.Logging.Level)
}
