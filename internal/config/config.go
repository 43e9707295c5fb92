// Package config loads the sessionlock configuration file and environment overrides.
package config

import (
	"errors"
	"fmt"
	"github.com/MatthiasKunnen/sessionlock/internal/logging"
	"github.com/spf13/viper"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	BackendExec   = "exec"
	BackendLogind = "logind"

	EnvPrefix = "SESSIONLOCK"

	DefaultIdleTimeout = 5 * time.Minute
	DefaultCooldown    = 30 * time.Second
)

// Config holds the complete sessionlock configuration.
type Config struct {
	Lock  LockConfig  `mapstructure:"lock"`
	Watch WatchConfig `mapstructure:"watch"`
	Log   LogConfig   `mapstructure:"log"`
}

// LockConfig controls a single lock action.
type LockConfig struct {
	// Backend is BackendExec to run the platform's lock programs, or BackendLogind to ask
	// systemd-logind over D-Bus.
	Backend string `mapstructure:"backend"`
	// Timeout bounds a lock action. Zero waits for the lock programs indefinitely.
	Timeout time.Duration `mapstructure:"timeout"`
}

// WatchConfig controls the auto-lock service.
type WatchConfig struct {
	// IdleTimeout is the period of inactivity after which the session is locked.
	// Zero disables idle locking.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	// Cooldown is the minimum time between two idle triggered locks.
	Cooldown time.Duration `mapstructure:"cooldown"`
	// LockBeforeSleep locks the session before the system suspends.
	LockBeforeSleep bool `mapstructure:"lock_before_sleep"`
	// LockSecrets also locks the Secret Service collections after the session was locked.
	LockSecrets bool `mapstructure:"lock_secrets"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("lock.backend", BackendExec)
	v.SetDefault("lock.timeout", time.Duration(0))

	v.SetDefault("watch.idle_timeout", DefaultIdleTimeout)
	v.SetDefault("watch.cooldown", DefaultCooldown)
	v.SetDefault("watch.lock_before_sleep", true)
	v.SetDefault("watch.lock_secrets", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logging.FormatConsole)
}

// Dir returns the directory searched for config.yaml.
func Dir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "sessionlock")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "sessionlock")
	}

	return filepath.Join(home, ".config", "sessionlock")
}

// Load reads the configuration into v and decodes it.
// If path is empty, config.yaml is looked up in Dir and a missing file is not an error.
// Environment variables prefixed with SESSIONLOCK_ override file values,
// e.g. SESSIONLOCK_WATCH_IDLE_TIMEOUT for watch.idle_timeout.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(Dir())
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Lock.Backend {
	case BackendExec, BackendLogind:
	default:
		errs = append(errs, fmt.Errorf("lock.backend: unknown backend %q, expected %q or %q",
			c.Lock.Backend, BackendExec, BackendLogind))
	}

	if c.Lock.Timeout < 0 {
		errs = append(errs, fmt.Errorf("lock.timeout: must not be negative, got %s", c.Lock.Timeout))
	}
	if c.Watch.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("watch.idle_timeout: must not be negative, got %s", c.Watch.IdleTimeout))
	}
	if c.Watch.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("watch.cooldown: must not be negative, got %s", c.Watch.Cooldown))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", logging.FormatConsole, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
