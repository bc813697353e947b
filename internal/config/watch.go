package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ChangeFunc receives the reloaded configuration, or the error that made
// the new file unusable.
type ChangeFunc func(cfg *Config, err error)

// Watch reloads the configuration whenever the file behind v changes and
// passes the result to fn. v must have a config file set.
func Watch(v *viper.Viper, fn ChangeFunc) {
	v.OnConfigChange(changeHandler(v, fn))
	v.WatchConfig()
}

func changeHandler(v *viper.Viper, fn ChangeFunc) func(fsnotify.Event) {
	return func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		fn(Load(v))
	}
}
