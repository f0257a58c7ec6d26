package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const reloadDebounce = 200 * time.Millisecond

// Watch reloads path whenever it changes on disk and passes every valid
// result to onChange. Invalid files are logged and ignored so the previous
// configuration stays in effect.
func Watch(path string, logger *slog.Logger, onChange func(*Config)) error {
	if path == "" {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("watch config file %s: %w", path, err)
	}

	v.OnConfigChange(func(event fsnotify.Event) {
		if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
			return
		}
		logger.Info("detected config change", "file", event.Name)
		// Editors often truncate before writing.
		time.Sleep(reloadDebounce)

		cfg, err := LoadFile(path)
		if err != nil {
			logger.Error("config reload rejected", "file", path, "error", err)
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()

	return nil
}
