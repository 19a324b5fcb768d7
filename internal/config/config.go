// Package config loads dlsort's application settings. Values come from the
// config file, DLSORT_* environment variables and bound CLI flags, layered
// over the defaults in defaults.go.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fenilsonani/dlsort/internal/document"
	"github.com/fenilsonani/dlsort/internal/platform"
	"github.com/fenilsonani/dlsort/internal/security"
	"github.com/fenilsonani/dlsort/internal/session"
)

// EnvPrefix is prepended to every environment override, e.g. DLSORT_BASE_DIR
const EnvPrefix = "DLSORT"

// Config represents the application configuration
type Config struct {
	BaseDir           string        `mapstructure:"base_dir" yaml:"base_dir"`
	RulesFile         string        `mapstructure:"rules_file" yaml:"rules_file"`
	DirectoriesFile   string        `mapstructure:"directories_file" yaml:"directories_file"`
	CreateMissingDirs bool          `mapstructure:"create_missing_dirs" yaml:"create_missing_dirs"`
	FailurePolicy     string        `mapstructure:"failure_policy" yaml:"failure_policy"`
	ExcludePatterns   []string      `mapstructure:"exclude_patterns" yaml:"exclude_patterns"`
	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	// LockFile is held for the length of every sort, across processes
	LockFile string        `mapstructure:"lock_file" yaml:"lock_file"`
	Journal  JournalConfig `mapstructure:"journal" yaml:"journal"`
	Log      LogConfig     `mapstructure:"log" yaml:"log"`
	Watch    WatchConfig   `mapstructure:"watch" yaml:"watch"`
	Daemon   DaemonConfig  `mapstructure:"daemon" yaml:"daemon"`
}

// JournalConfig controls the sort history database
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // console or json
	File   string `mapstructure:"file" yaml:"file,omitempty"`
}

// WatchConfig controls the downloads directory watcher
type WatchConfig struct {
	// Debounce is how long the directory must stay quiet before sorting
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// DaemonConfig holds daemon mode configuration
type DaemonConfig struct {
	Schedules []Schedule `mapstructure:"schedules" yaml:"schedules"`
	LockFile  string     `mapstructure:"lock_file" yaml:"lock_file"`
	// Watch also sorts whenever new downloads settle
	Watch         bool               `mapstructure:"watch" yaml:"watch"`
	Notifications NotificationConfig `mapstructure:"notifications" yaml:"notifications"`
}

// NotificationConfig holds notification settings
type NotificationConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	OnSuccess bool          `mapstructure:"on_success" yaml:"on_success"`
	OnFailure bool          `mapstructure:"on_failure" yaml:"on_failure"`
	Webhook   WebhookConfig `mapstructure:"webhook" yaml:"webhook"`
}

// WebhookConfig holds webhook notification settings
type WebhookConfig struct {
	URL     string            `mapstructure:"url" yaml:"url"`
	Method  string            `mapstructure:"method" yaml:"method"`
	Headers map[string]string `mapstructure:"headers" yaml:"headers,omitempty"`
}

// Schedule defines a scheduled sort
type Schedule struct {
	Name     string `mapstructure:"name" yaml:"name"`
	Schedule string `mapstructure:"schedule" yaml:"schedule"` // Cron expression
	DryRun   bool   `mapstructure:"dry_run" yaml:"dry_run"`
}

// Load unmarshals configuration from v after applying the defaults. Paths
// starting with ~ are expanded.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// InitViper points v at the config file (cfgFile, or config.yaml in the
// config directory) and enables DLSORT_* environment overrides. A missing
// default config file is not an error.
func InitViper(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(GetConfigDir())
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Save writes cfg as YAML, replacing the file atomically
func Save(cfg *Config, configPath string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := document.WriteFileAtomic(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if !filepath.IsAbs(c.BaseDir) {
		return fmt.Errorf("base_dir must be absolute: %q", c.BaseDir)
	}

	for key, path := range map[string]string{
		"rules_file":       c.RulesFile,
		"directories_file": c.DirectoriesFile,
	} {
		if !filepath.IsAbs(path) {
			return fmt.Errorf("%s must be absolute: %q", key, path)
		}
		if _, err := document.FormatFor(path); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}

	if !filepath.IsAbs(c.LockFile) {
		return fmt.Errorf("lock_file must be absolute: %q", c.LockFile)
	}

	if c.Journal.Enabled && !filepath.IsAbs(c.Journal.Path) {
		return fmt.Errorf("journal.path must be absolute: %q", c.Journal.Path)
	}

	if _, err := session.ParsePolicy(c.FailurePolicy); err != nil {
		return err
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be > 0")
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must be >= 0")
	}

	// Validate exclude patterns (glob syntax)
	for _, pattern := range c.ExcludePatterns {
		if err := security.ValidateGlobPattern(pattern); err != nil {
			return fmt.Errorf("invalid exclude pattern '%s': %w", pattern, err)
		}
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "console", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (want console or json)", c.Log.Format)
	}

	seen := make(map[string]bool, len(c.Daemon.Schedules))
	for _, s := range c.Daemon.Schedules {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("every schedule needs a name")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate schedule name %q", s.Name)
		}
		seen[s.Name] = true
		if strings.TrimSpace(s.Schedule) == "" {
			return fmt.Errorf("schedule %q has no cron expression", s.Name)
		}
	}

	if n := c.Daemon.Notifications; n.Enabled && n.Webhook.URL != "" {
		if !strings.HasPrefix(n.Webhook.URL, "http://") && !strings.HasPrefix(n.Webhook.URL, "https://") {
			return fmt.Errorf("daemon.notifications.webhook.url must be http(s): %q", n.Webhook.URL)
		}
	}

	return nil
}

// Policy returns the parsed failure policy
func (c *Config) Policy() session.Policy {
	p, _ := session.ParsePolicy(c.FailurePolicy)
	return p
}

func (c *Config) expandPaths() {
	c.BaseDir = ExpandPath(c.BaseDir)
	c.RulesFile = ExpandPath(c.RulesFile)
	c.DirectoriesFile = ExpandPath(c.DirectoriesFile)
	c.LockFile = ExpandPath(c.LockFile)
	c.Journal.Path = ExpandPath(c.Journal.Path)
	c.Log.File = ExpandPath(c.Log.File)
	c.Daemon.LockFile = ExpandPath(c.Daemon.LockFile)
}

// ExpandPath replaces a leading ~ with the home directory
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// GetConfigDir returns the directory holding config.yaml and the rule documents
func GetConfigDir() string {
	if info, err := platform.GetInfo(); err == nil {
		return info.ConfigDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dlsort"
	}
	return filepath.Join(home, ".config", "dlsort")
}

// GetDataDir returns the directory holding the journal and lock file
func GetDataDir() string {
	if info, err := platform.GetInfo(); err == nil {
		return info.DataDir
	}
	return GetConfigDir()
}

// GetConfigPath returns the default config path
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// EnsureConfigExists creates a default config file if it doesn't exist
func EnsureConfigExists() (string, error) {
	configPath := GetConfigPath()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := Save(GetDefault(), configPath); err != nil {
			return "", err
		}
	}

	return configPath, nil
}
