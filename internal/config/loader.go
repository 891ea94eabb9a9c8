package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/hugo-lorenzo-mato/crashguard/internal/fsutil"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "CRASHGUARD",
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance.
// This allows integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: "CRASHGUARD",
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (CRASHGUARD_*)
// 3. Project config (.crashguard.yaml in current directory)
// 4. User config (~/.config/crashguard/config.yaml)
// 5. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName(".crashguard")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")

		// The user config only applies without a project config.
		if !fileExists(".crashguard.yaml") {
			if path, err := UserConfigPath(); err == nil && fileExists(path) {
				l.v.SetConfigFile(path)
			}
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else if err := l.mergeLegacyKeys(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// mergeLegacyKeys re-reads the config file and merges keys written without
// underscores (appname, maxfiles) under their canonical names.
func (l *Loader) mergeLegacyKeys() error {
	path := l.v.ConfigFileUsed()
	if path == "" || !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
		return nil
	}
	// Dotfile managers commonly symlink the config into place.
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	data, err := fsutil.ReadFileScoped(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if raw == nil {
		return nil
	}
	return l.v.MergeConfigMap(normalizeLegacyConfigMap(raw))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// setDefaults configures default values.
func (l *Loader) setDefaults() {
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")

	l.v.SetDefault("hooks", []string{})

	l.v.SetDefault("artifact.dir", "crashdumps")
	l.v.SetDefault("artifact.app_name", "")
	l.v.SetDefault("artifact.max_files", 10)
	l.v.SetDefault("artifact.detail", "normal")
	l.v.SetDefault("artifact.report_mode", "alongside")
	l.v.SetDefault("artifact.include_env", true)
	l.v.SetDefault("artifact.include_goroutines", true)

	l.v.SetDefault("report.max_depth", 64)
	l.v.SetDefault("report.skip", 0)
	l.v.SetDefault("report.system_info", true)

	l.v.SetDefault("fatal_output.enabled", false)

	l.v.SetDefault("watchdog.timeout", "0s")
	l.v.SetDefault("watchdog.grace", "5s")
}

// ConfigFile returns the config file path if one was used.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Get returns a configuration value by key.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// Set sets a configuration value.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// IsSet checks if a key has been set.
func (l *Loader) IsSet(key string) bool {
	return l.v.IsSet(key)
}

// AllSettings returns all settings as a map.
func (l *Loader) AllSettings() map[string]interface{} {
	return l.v.AllSettings()
}
