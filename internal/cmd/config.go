package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/callin/internal/config"
)

const defaultConfigContent = `# Callin Configuration

logging:
  # Minimum level: DEBUG, INFO, WARN or ERROR
  level: INFO
  # Directory for callin.log; empty logs to stderr
  dir: ""

dispatch:
  # Distance from a method's dispatch slot to its super-call slot
  super_call_offset: 1

activation:
  # Teams activated globally at startup
  teams: []
  # Re-apply teams whenever this file changes
  watch: false

threads:
  # Threads inherit their parent's explicit activation
  inheritable_activation: false
`

func newConfigCmd(a *app) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "View or create callin configuration",
		Long: `View or create callin configuration.

Without arguments, displays the effective configuration.`,
		RunE: a.runConfigShow,
	}

	configCmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the effective configuration",
			RunE:  a.runConfigShow,
		},
		&cobra.Command{
			Use:               "init",
			Short:             "Create a default config file",
			Long:              `Create a default config file at the --config path, or at $XDG_CONFIG_HOME/callin/config.yaml.`,
			PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
			RunE:              a.runConfigInit,
		},
		&cobra.Command{
			Use:   "path",
			Short: "Show the config file path",
			RunE:  a.runConfigPath,
		},
	)
	return configCmd
}

func (a *app) runConfigShow(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	if used := a.v.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "# Config file: %s\n", used)
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}

	data, err := yaml.Marshal(a.v.AllSettings())
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

func (a *app) runConfigInit(cmd *cobra.Command, _ []string) error {
	path := a.cfgFile
	if path == "" {
		path = config.ConfigFile()
	}

	if exists, err := afero.Exists(a.fs, path); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := a.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := afero.WriteFile(a.fs, path, []byte(defaultConfigContent), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", path)
	return nil
}

func (a *app) runConfigPath(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	if used := a.v.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "Active config: %s\n", used)
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", config.ConfigFile())
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", config.ConfigFile())
	fmt.Fprintln(out, "  2. ./config.yaml (current directory)")
	fmt.Fprintf(out, "\nEnvironment variables: %s_* (e.g., %s_ACTIVATION_TEAMS)\n", config.EnvPrefix, config.EnvPrefix)
	return nil
}
