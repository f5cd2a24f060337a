// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for threadsync
// binaries.
//
// Configuration is loaded from a single YAML file named by:
//   - the THREADSYNC_CONFIG environment variable, or
//   - the --config flag passed to the command
//
// There is no automatic discovery. The file may contain
// environment-specific sections (development, production) that
// override base values when the environment matches.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/threadsync/schema"
)

// EnvVariable names the environment variable consulted by Load.
const EnvVariable = "THREADSYNC_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Production is for deployed clients.
	Production Environment = "production"
)

// Draft persistence backends accepted in drafts.backend.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendPebble = "pebble"
)

// Config is the top-level threadsync configuration.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment"`

	// Root is the base directory for local state. Draft paths may
	// reference it as ${THREADSYNC_ROOT}.
	Root string `yaml:"root"`

	// Viewer identifies the local user and the role used for
	// message redaction.
	Viewer ViewerConfig `yaml:"viewer"`

	// Drafts configures durable draft persistence.
	Drafts DraftsConfig `yaml:"drafts"`

	// Logging configures the slog handler built by the binaries.
	Logging LoggingConfig `yaml:"logging"`

	// Events configures the event bridge.
	Events EventsConfig `yaml:"events"`

	Development *Overrides `yaml:"development,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains the fields an environment section may replace.
type Overrides struct {
	Drafts  *DraftsConfig  `yaml:"drafts,omitempty"`
	Logging *LoggingConfig `yaml:"logging,omitempty"`
	Events  *EventsConfig  `yaml:"events,omitempty"`
}

// ViewerConfig identifies who is looking at the threads.
type ViewerConfig struct {
	// ID is the local user's id; used as the sender of replayed sends
	// when a step does not name one.
	ID string `yaml:"id"`

	// Role drives the sanitizer. Guardian and parent viewers never
	// see AI-authored system messages.
	Role string `yaml:"role"`
}

// DraftsConfig selects the draft persistence backend.
type DraftsConfig struct {
	// Backend is one of memory, file, sqlite, pebble.
	Backend string `yaml:"backend"`

	// Path is the file (file, sqlite) or directory (pebble) backing
	// the store. Ignored for memory.
	Path string `yaml:"path"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`
}

// EventsConfig configures the event bridge.
type EventsConfig struct {
	// MaxBackoff caps the delay between resubscription attempts, as a
	// Go duration string. Default: 30s.
	MaxBackoff string `yaml:"max_backoff"`
}

// Default returns the configuration every file is merged over.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	root := filepath.Join(homeDir, ".cache", "threadsync")

	return &Config{
		Environment: Development,
		Root:        root,
		Viewer: ViewerConfig{
			Role: "member",
		},
		Drafts: DraftsConfig{
			Backend: BackendFile,
			Path:    "${THREADSYNC_ROOT}/drafts.cbor",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Events: EventsConfig{
			MaxBackoff: "30s",
		},
	}
}

// Load loads configuration from the file named by THREADSYNC_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your threadsync.yaml, or use --config", EnvVariable)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path, applies the matching
// environment section, and expands ${VAR} references in paths.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
		if overrides == nil {
			overrides = &Overrides{Logging: &LoggingConfig{Format: "json"}}
		}
	}
	if overrides == nil {
		return
	}

	if overrides.Drafts != nil {
		if overrides.Drafts.Backend != "" {
			c.Drafts.Backend = overrides.Drafts.Backend
		}
		if overrides.Drafts.Path != "" {
			c.Drafts.Path = overrides.Drafts.Path
		}
	}
	if overrides.Logging != nil {
		if overrides.Logging.Level != "" {
			c.Logging.Level = overrides.Logging.Level
		}
		if overrides.Logging.Format != "" {
			c.Logging.Format = overrides.Logging.Format
		}
	}
	if overrides.Events != nil && overrides.Events.MaxBackoff != "" {
		c.Events.MaxBackoff = overrides.Events.MaxBackoff
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Root = expandVars(c.Root, vars)
	vars["THREADSYNC_ROOT"] = c.Root
	c.Drafts.Path = expandVars(c.Drafts.Path, vars)
}

// expandVars expands ${VAR} and ${VAR:-default}, consulting vars first
// and then the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name := parts[1]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	switch c.Drafts.Backend {
	case BackendMemory:
	case BackendFile, BackendSQLite, BackendPebble:
		if c.Drafts.Path == "" {
			errs = append(errs, fmt.Errorf("drafts.path is required for the %s backend", c.Drafts.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid drafts.backend: %q", c.Drafts.Backend))
	}

	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		errs = append(errs, fmt.Errorf("invalid logging.format: %q", c.Logging.Format))
	}

	if _, err := c.MaxBackoff(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ViewerRole returns the configured role as a schema.Role.
func (c *Config) ViewerRole() schema.Role {
	return schema.Role(strings.TrimSpace(c.Viewer.Role))
}

// LogLevel parses logging.level.
func (c *Config) LogLevel() (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
}

// MaxBackoff parses events.max_backoff. An empty value yields zero,
// which the engine replaces with its default.
func (c *Config) MaxBackoff() (time.Duration, error) {
	if c.Events.MaxBackoff == "" {
		return 0, nil
	}
	duration, err := time.ParseDuration(c.Events.MaxBackoff)
	if err != nil {
		return 0, fmt.Errorf("invalid events.max_backoff: %w", err)
	}
	if duration < 0 {
		return 0, fmt.Errorf("invalid events.max_backoff: %s is negative", c.Events.MaxBackoff)
	}
	return duration, nil
}
