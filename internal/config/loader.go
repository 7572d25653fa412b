package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding file values,
// e.g. CHATLOGGER_DATABASE_URL.
const EnvPrefix = "CHATLOGGER"

// Loader reads configuration through a dedicated viper instance and can
// watch the file for changes.
type Loader struct {
	v        *viper.Viper
	path     string
	validate *validator.Validate
	mu       sync.Mutex
	hasFile  bool
}

// NewLoader creates a loader for the YAML file at path. An empty path
// loads defaults and environment variables only.
func NewLoader(path string) *Loader {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
	}

	return &Loader{v: v, path: path, validate: validator.New()}
}

// LoadConfig loads and validates configuration from the file at path.
func LoadConfig(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// Load reads the file (a missing file is allowed), applies environment
// overrides and validates the result.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.path != "" {
		if err := l.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: failed to read config file %s: %v", ErrConfiguration, l.path, err)
			}
			slog.Info("Configuration file not found, using defaults and environment", "path", l.path)
		} else {
			l.hasFile = true
		}
	}

	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}
	if err := l.validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return cfg, nil
}

// Watch reloads the configuration whenever the file changes and passes each
// valid result to onChange. Invalid edits are logged and ignored. Watch is a
// no-op when no configuration file was loaded.
func (l *Loader) Watch(logger *slog.Logger, onChange func(*Config)) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "config_watcher")

	l.mu.Lock()
	hasFile := l.hasFile
	l.mu.Unlock()
	if !hasFile {
		log.Debug("No configuration file loaded, not watching for changes")
		return
	}

	l.v.OnConfigChange(func(e fsnotify.Event) {
		l.mu.Lock()
		cfg, err := l.decode()
		l.mu.Unlock()
		if err != nil {
			log.Error("Ignoring invalid configuration change", "path", e.Name, "op", e.Op.String(), "error", err)
			return
		}
		log.Info("Configuration reloaded", "path", e.Name, "op", e.Op.String())
		onChange(cfg)
	})
	l.v.WatchConfig()
	log.Info("Watching configuration file for changes", "path", l.path)
}
