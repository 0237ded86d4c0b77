// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package main

import (
	"context"
	"os/user"

	"github.com/spf13/pflag"

	"github.com/yanaFramework/yanaFramework-sub012/internal/config"
	"github.com/yanaFramework/yanaFramework-sub012/internal/observability"
	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin"
	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin/builtin"
	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin/native"
	"github.com/yanaFramework/yanaFramework-sub012/internal/store"
)

// Deps contains injectable dependencies for the yana commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// ConfigLoader loads configuration from a file and flags.
	// Default: config.Load
	ConfigLoader func(path string, fs *pflag.FlagSet) (*config.Config, error)

	// OverrideStoreFactory opens the activation override store. The returned
	// function releases it.
	// Default: openOverrides
	OverrideStoreFactory func(ctx context.Context, cfg *config.Config) (plugin.OverrideStore, func(), error)

	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// NativePlugins registers compiled-in plugins.
	// Default: builtin.Register
	NativePlugins func(r *native.Registry) error
}

func (d *Deps) withDefaults() *Deps {
	if d == nil {
		d = &Deps{}
	}
	if d.ConfigLoader == nil {
		d.ConfigLoader = config.Load
	}
	if d.OverrideStoreFactory == nil {
		d.OverrideStoreFactory = openOverrides
	}
	if d.MigratorFactory == nil {
		d.MigratorFactory = func(databaseURL string) (Migrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	if d.ObservabilityServerFactory == nil {
		d.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if d.NativePlugins == nil {
		d.NativePlugins = builtin.Register
	}
	return d
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Force(version int) error
	Version() (version uint, dirty bool, err error)
	PendingMigrations() ([]uint, error)
	AppliedMigrations() ([]uint, error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// openOverrides opens the PostgreSQL override store when a database is
// configured, and an in-memory store seeded from the configuration
// otherwise.
func openOverrides(ctx context.Context, cfg *config.Config) (plugin.OverrideStore, func(), error) {
	if cfg.Activation.DatabaseURL == "" {
		return store.NewMemoryOverrides(cfg.Activation.Overrides), func() {}, nil
	}

	pool, err := store.Connect(ctx, cfg.Activation.DatabaseURL, store.DefaultRetryPolicy)
	if err != nil {
		return nil, nil, err
	}
	return store.NewPostgresOverrides(pool, store.WithChangedBy(actor())), pool.Close, nil
}

// actor names who changes activation overrides.
func actor() string {
	u, err := user.Current()
	if err != nil {
		return "yana"
	}
	return u.Username
}
