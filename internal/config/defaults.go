package config

import (
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/fenilsonani/dlsort/internal/platform"
)

// DefaultExcludePatterns are partial downloads and OS litter left in place
var DefaultExcludePatterns = []string{
	"*.crdownload",
	"*.part",
	"*.partial",
	"*.download",
	"*.tmp",
	".DS_Store",
	"desktop.ini",
	"Thumbs.db",
}

// SetDefaults registers the built-in value of every key on v
func SetDefaults(v *viper.Viper) {
	configDir := GetConfigDir()
	dataDir := GetDataDir()

	v.SetDefault("base_dir", platform.DefaultDownloadsDir())
	v.SetDefault("rules_file", filepath.Join(configDir, "categories.json"))
	v.SetDefault("directories_file", filepath.Join(configDir, "category_directories.json"))
	v.SetDefault("create_missing_dirs", true)
	v.SetDefault("failure_policy", "continue")
	v.SetDefault("exclude_patterns", DefaultExcludePatterns)
	v.SetDefault("poll_interval", 100*time.Millisecond)
	v.SetDefault("lock_file", filepath.Join(dataDir, "sort.lock"))

	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", filepath.Join(dataDir, "history.db"))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")

	v.SetDefault("watch.debounce", 2*time.Second)

	v.SetDefault("daemon.lock_file", filepath.Join(dataDir, "dlsort.lock"))
	v.SetDefault("daemon.watch", true)
	v.SetDefault("daemon.notifications.enabled", false)
	v.SetDefault("daemon.notifications.on_success", false)
	v.SetDefault("daemon.notifications.on_failure", true)
	v.SetDefault("daemon.notifications.webhook.url", "")
	v.SetDefault("daemon.notifications.webhook.method", "POST")
	v.SetDefault("daemon.schedules", []map[string]any{
		{"name": "hourly", "schedule": "@hourly", "dry_run": false},
	})
}

// GetDefault returns the default configuration
func GetDefault() *Config {
	v := viper.New()
	cfg, err := Load(v)
	if err != nil {
		// Defaults always validate unless the home directory is unknown
		return &Config{
			BaseDir:           platform.DefaultDownloadsDir(),
			CreateMissingDirs: true,
			FailurePolicy:     "continue",
			ExcludePatterns:   append([]string(nil), DefaultExcludePatterns...),
			PollInterval:      100 * time.Millisecond,
			LockFile:          filepath.Join(GetDataDir(), "sort.lock"),
			Log:               LogConfig{Level: "info", Format: "console"},
			Watch:             WatchConfig{Debounce: 2 * time.Second},
		}
	}
	return cfg
}
