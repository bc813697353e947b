package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/callin/internal/logging"
)

// EnvPrefix is the prefix of environment variables overriding config keys.
// CALLIN_ACTIVATION_TEAMS overrides activation.teams.
const EnvPrefix = "CALLIN"

// Config represents the complete runtime configuration
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch"`
	Activation ActivationConfig `mapstructure:"activation"`
	Threads    ThreadsConfig    `mapstructure:"threads"`
}

// LoggingConfig controls the structured logger
type LoggingConfig struct {
	// Level is the minimum level written: DEBUG, INFO, WARN or ERROR (default: INFO)
	Level string `mapstructure:"level"`
	// Dir is the directory holding callin.log; empty logs to stderr
	Dir string `mapstructure:"dir"`
}

// DispatchConfig controls the callin dispatch chain
type DispatchConfig struct {
	// SuperCallOffset is the distance between a method's dispatch slot and
	// its super-call slot (default: 1)
	SuperCallOffset int32 `mapstructure:"super_call_offset"`
}

// ActivationConfig controls startup team activation
type ActivationConfig struct {
	// Teams are activated globally at startup. Accepts a YAML list or a
	// comma-separated string.
	Teams []string `mapstructure:"teams"`
	// Watch keeps the globally active teams in sync with the config file
	Watch bool `mapstructure:"watch"`
}

// ThreadsConfig controls thread lifecycle features
type ThreadsConfig struct {
	// InheritableActivation makes threads spawned by an explicitly activated
	// thread start activated too
	InheritableActivation bool `mapstructure:"inheritable_activation"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level: logging.LevelInfo,
			Dir:   "",
		},
		Dispatch: DispatchConfig{
			SuperCallOffset: 1,
		},
		Activation: ActivationConfig{
			Teams: []string{},
			Watch: false,
		},
		Threads: ThreadsConfig{
			InheritableActivation: false,
		},
	}
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults registers default values with viper
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	// Logging defaults
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.dir", defaults.Logging.Dir)

	// Dispatch defaults
	v.SetDefault("dispatch.super_call_offset", defaults.Dispatch.SuperCallOffset)

	// Activation defaults
	v.SetDefault("activation.teams", defaults.Activation.Teams)
	v.SetDefault("activation.watch", defaults.Activation.Watch)

	// Thread defaults
	v.SetDefault("threads.inheritable_activation", defaults.Threads.InheritableActivation)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// LoadFile reads the config file at path from fs, layered over defaults
// and environment overrides. The returned viper instance can be watched.
func LoadFile(fs afero.Fs, path string) (*Config, *viper.Viper, error) {
	v := New()
	v.SetFs(fs)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, nil, err
	}
	cfg, err := Load(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToSliceHookFunc(","),
		trimStringSliceHook,
	)
}

// trimStringSliceHook trims list entries and drops empty ones, so
// "audit, billing," decodes to [audit billing].
func trimStringSliceHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf([]string{}) {
		return data, nil
	}
	in, ok := data.([]string)
	if !ok {
		return data, nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "callin")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".callin"
	}
	return filepath.Join(home, ".config", "callin")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
