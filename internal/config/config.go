// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

// Package config loads yana configuration from a YAML file overlaid by
// command-line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/yanaFramework/yanaFramework-sub012/internal/logging"
	"github.com/yanaFramework/yanaFramework-sub012/internal/xdg"
)

// DatabaseURLEnv is read when activation.database-url is not configured.
const DatabaseURLEnv = "DATABASE_URL"

// Config is the complete yana configuration.
type Config struct {
	Log        LogConfig        `koanf:"log"`
	Plugins    PluginsConfig    `koanf:"plugins"`
	Dispatch   DispatchConfig   `koanf:"dispatch"`
	Activation ActivationConfig `koanf:"activation"`
	Metrics    MetricsConfig    `koanf:"metrics"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// PluginsConfig configures plugin discovery.
type PluginsConfig struct {
	Dirs    []string `koanf:"dirs"`
	Exclude []string `koanf:"exclude"`
	// Settings overlays the settings declared in plugin manifests, keyed by
	// plugin id.
	Settings map[string]map[string]any `koanf:"settings"`
}

// DispatchConfig configures event broadcasting.
type DispatchConfig struct {
	// Timeout bounds one top-level broadcast. Zero disables the bound.
	Timeout time.Duration `koanf:"timeout"`
	// MaxChain bounds how many follow-up events the run loop sends for one
	// request.
	MaxChain int `koanf:"max-chain"`
}

// ActivationConfig configures activation overrides. When DatabaseURL is set
// overrides live in PostgreSQL; otherwise Overrides seeds an in-memory store.
type ActivationConfig struct {
	DatabaseURL string          `koanf:"database-url"`
	Overrides   map[string]bool `koanf:"overrides"`
}

// MetricsConfig configures the observability server.
type MetricsConfig struct {
	// Addr is the listen address; empty disables the server.
	Addr string `koanf:"addr"`
}

// Default values.
const (
	DefaultLogFormat = logging.FormatText
	DefaultLogLevel  = "info"
	DefaultTimeout   = 30 * time.Second
	DefaultMaxChain  = 16
)

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"log-format":   "log.format",
	"log-level":    "log.level",
	"plugins-dir":  "plugins.dirs",
	"exclude":      "plugins.exclude",
	"timeout":      "dispatch.timeout",
	"max-chain":    "dispatch.max-chain",
	"database-url": "activation.database-url",
	"metrics-addr": "metrics.addr",
}

// RegisterFlags adds the configuration flags to fs. Flags only override the
// file when they are set explicitly.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("log-format", DefaultLogFormat, "log format (json or text)")
	fs.String("log-level", DefaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringSlice("plugins-dir", nil, "plugin directories, scanned in order (default: XDG_DATA_HOME/yana/plugins)")
	fs.StringSlice("exclude", nil, "glob patterns of plugin directories to skip")
	fs.Duration("timeout", DefaultTimeout, "timeout for one event broadcast (0 = none)")
	fs.Int("max-chain", DefaultMaxChain, "maximum follow-up events per request")
	fs.String("database-url", "", "PostgreSQL URL for activation overrides (default: $"+DatabaseURLEnv+")")
	fs.String("metrics-addr", "", "metrics/health HTTP address (empty = disabled)")
}

// Load reads configuration. path names the YAML file; when empty the XDG
// config file is used if it exists. fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, err
	}

	if path == "" {
		if def, err := xdg.ConfigFile(); err == nil {
			if _, statErr := os.Stat(def); statErr == nil {
				path = def
			}
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
		}
		slog.Debug("loaded config file", "path", path)
	}

	if fs != nil {
		if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, flagKey(fs)), nil); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("operation", "load flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "decode").Wrap(err)
	}

	if cfg.Activation.DatabaseURL == "" {
		cfg.Activation.DatabaseURL = os.Getenv(DatabaseURLEnv)
	}

	if err := cfg.Validate(); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return &cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	dir, err := xdg.PluginsDir()
	if err != nil {
		dir = "plugins"
	}

	defaults := map[string]any{
		"log.format":         DefaultLogFormat,
		"log.level":          DefaultLogLevel,
		"plugins.dirs":       []string{dir},
		"dispatch.timeout":   DefaultTimeout,
		"dispatch.max-chain": DefaultMaxChain,
	}
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}
	return nil
}

// flagKey translates flags into configuration keys. Flags that carry no
// configuration, such as --config, are skipped.
func flagKey(fs *pflag.FlagSet) func(f *pflag.Flag) (string, interface{}) {
	return func(f *pflag.Flag) (string, interface{}) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error
	if err := logging.ValidateFormat(c.Log.Format); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	if len(c.Plugins.Dirs) == 0 {
		errs = append(errs, errors.New("plugins.dirs must name at least one directory"))
	}
	if c.Dispatch.Timeout < 0 {
		errs = append(errs, fmt.Errorf("dispatch.timeout must not be negative, got %s", c.Dispatch.Timeout))
	}
	if c.Dispatch.MaxChain < 1 {
		errs = append(errs, fmt.Errorf("dispatch.max-chain must be at least 1, got %d", c.Dispatch.MaxChain))
	}
	return errors.Join(errs...)
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.Log.Level))); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
