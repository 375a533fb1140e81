package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	logx "cronsched/pkg/logx"
)

var ErrInvalid = errors.New("invalid config")

// Config is the settings file of the scheduler process.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// Omitted fields take the defaults listed on each section.
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Engine    EngineConfig    `json:"engine"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Roster    RosterConfig    `json:"roster"`
	Storage   StorageConfig   `json:"storage"`
	Reload    ReloadConfig    `json:"reload"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console *bool       `json:"console,omitempty"` // default true
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"` // default ./out/output.log
}

// EngineConfig controls the worker pool.
//
// Defaults: workers 2, queue_size 256, history_size 200.
type EngineConfig struct {
	Workers     int `json:"workers,omitempty"`
	QueueSize   int `json:"queue_size,omitempty"`
	HistorySize int `json:"history_size,omitempty"`
}

type SchedulerConfig struct {
	// DispatchWarnEvery rate-limits "dispatch failed" warnings per job (default 5s).
	DispatchWarnEvery string `json:"dispatch_warn_every,omitempty"`
}

type RosterConfig struct {
	Path string `json:"path"` // default ./config.txt
}

// StorageConfig controls the optional execution history store.
//
// Example:
//
//	storage: { driver: sqlite, path: ./out/history.db, busy_timeout: 2s }
type StorageConfig struct {
	Driver      string `json:"driver"` // none (default), file, sqlite
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

type ReloadConfig struct {
	Enabled bool `json:"enabled"`
}

const (
	DefaultRosterPath  = "./config.txt"
	DefaultLogFilePath = logx.DefaultFilePath
)

// Default returns a config with every default filled in.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills empty fields in place.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Console == nil {
		on := true
		c.Logging.Console = &on
	}
	if strings.TrimSpace(c.Logging.File.Path) == "" {
		c.Logging.File.Path = DefaultLogFilePath
	}
	if strings.TrimSpace(c.Roster.Path) == "" {
		c.Roster.Path = DefaultRosterPath
	}
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Driver == "" {
		c.Storage.Driver = "none"
	}
}

// ConsoleEnabled reports logging.console with its default applied.
func (l LoggingConfig) ConsoleEnabled() bool {
	return l.Console == nil || *l.Console
}

// Validate checks value ranges. Call ApplyDefaults first.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}
	if c.Engine.Workers < 0 {
		errs = append(errs, fmt.Errorf("engine.workers must be >= 0"))
	}
	if c.Engine.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("engine.queue_size must be >= 0"))
	}
	if c.Engine.HistorySize < 0 {
		errs = append(errs, fmt.Errorf("engine.history_size must be >= 0"))
	}
	if _, err := c.DispatchWarnEvery(); err != nil {
		errs = append(errs, err)
	}
	switch c.Storage.Driver {
	case "", "none":
	case "file", "sqlite":
		if strings.TrimSpace(c.Storage.Path) == "" {
			errs = append(errs, fmt.Errorf("storage.path required for driver %q", c.Storage.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	if _, err := c.StorageBusyTimeout(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func (c *Config) DispatchWarnEvery() (time.Duration, error) {
	return ParseDurationOrDefault("scheduler.dispatch_warn_every", c.Scheduler.DispatchWarnEvery, 5*time.Second)
}

func (c *Config) StorageBusyTimeout() (time.Duration, error) {
	return ParseDurationOrDefault("storage.busy_timeout", c.Storage.BusyTimeout, time.Second)
}
