package config

import (
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"poa/internal/logger"
)

// WatchLogLevel re-reads app.log_level whenever the file at path is written
// and hands it to apply. Nothing else is reloaded; credentials stay as loaded.
func WatchLogLevel(path string, apply func(level string)) error {
	if strings.TrimSpace(path) == "" || apply == nil {
		return nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	current := strings.ToLower(strings.TrimSpace(v.GetString("app.log_level")))
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		lvl := strings.ToLower(strings.TrimSpace(v.GetString("app.log_level")))
		if lvl == "" || lvl == current {
			return
		}
		logger.Infof("配置变更: log_level %s -> %s", current, lvl)
		current = lvl
		apply(lvl)
	})
	v.WatchConfig()
	return nil
}
