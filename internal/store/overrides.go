// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package store

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.OverrideStore = (*PostgresOverrides)(nil)
	_ plugin.OverrideStore = (*MemoryOverrides)(nil)
)

// PostgresOverrides stores activation overrides in the plugin_activation
// table.
type PostgresOverrides struct {
	pool      poolIface
	policy    RetryPolicy
	changedBy string
}

// PostgresOption configures PostgresOverrides.
type PostgresOption func(*PostgresOverrides)

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p RetryPolicy) PostgresOption {
	return func(s *PostgresOverrides) {
		s.policy = p
	}
}

// WithChangedBy records who changes overrides.
func WithChangedBy(actor string) PostgresOption {
	return func(s *PostgresOverrides) {
		s.changedBy = actor
	}
}

// NewPostgresOverrides creates a PostgreSQL override store.
func NewPostgresOverrides(pool poolIface, opts ...PostgresOption) *PostgresOverrides {
	s := &PostgresOverrides{pool: pool, policy: DefaultRetryPolicy}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup implements plugin.OverrideStore.
func (s *PostgresOverrides) Lookup(ctx context.Context, pluginID string) (active, found bool, err error) {
	err = withRetry(ctx, s.policy, func(ctx context.Context) error {
		return s.pool.QueryRow(ctx,
			`SELECT active FROM plugin_activation WHERE plugin_id = $1`,
			pluginID).Scan(&active)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, oops.Code(plugin.CodeActivationLookup).
			With("plugin", pluginID).
			With("operation", "lookup activation").
			Wrap(err)
	}
	return active, true, nil
}

// Set implements plugin.OverrideStore.
func (s *PostgresOverrides) Set(ctx context.Context, pluginID string, active bool) error {
	err := withRetry(ctx, s.policy, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO plugin_activation (plugin_id, active, changed_by)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (plugin_id) DO UPDATE
			 SET active = EXCLUDED.active, changed_by = EXCLUDED.changed_by, updated_at = now()`,
			pluginID, active, s.changedBy)
		return err
	})
	if err != nil {
		return oops.With("plugin", pluginID).With("operation", "set activation").Wrap(err)
	}
	return nil
}

// Delete implements plugin.OverrideStore.
func (s *PostgresOverrides) Delete(ctx context.Context, pluginID string) error {
	err := withRetry(ctx, s.policy, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `DELETE FROM plugin_activation WHERE plugin_id = $1`, pluginID)
		return err
	})
	if err != nil {
		return oops.With("plugin", pluginID).With("operation", "delete activation").Wrap(err)
	}
	return nil
}

// List implements plugin.OverrideStore.
func (s *PostgresOverrides) List(ctx context.Context) (map[string]bool, error) {
	var overrides map[string]bool
	err := withRetry(ctx, s.policy, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, `SELECT plugin_id, active FROM plugin_activation ORDER BY plugin_id`)
		if err != nil {
			return err
		}
		defer rows.Close()

		overrides = make(map[string]bool)
		for rows.Next() {
			var id string
			var active bool
			if err := rows.Scan(&id, &active); err != nil {
				return err
			}
			overrides[id] = active
		}
		return rows.Err()
	})
	if err != nil {
		return nil, oops.With("operation", "list activations").Wrap(err)
	}
	return overrides, nil
}

// MemoryOverrides keeps activation overrides in memory. It is used when no
// database is configured.
type MemoryOverrides struct {
	mu        sync.RWMutex
	overrides map[string]bool
}

// NewMemoryOverrides creates a store seeded with initial overrides.
func NewMemoryOverrides(initial map[string]bool) *MemoryOverrides {
	s := &MemoryOverrides{overrides: make(map[string]bool, len(initial))}
	for id, active := range initial {
		s.overrides[plugin.NormalizeName(id)] = active
	}
	return s
}

// Lookup implements plugin.OverrideStore.
func (s *MemoryOverrides) Lookup(_ context.Context, pluginID string) (active, found bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	active, found = s.overrides[pluginID]
	return active, found, nil
}

// Set implements plugin.OverrideStore.
func (s *MemoryOverrides) Set(_ context.Context, pluginID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[pluginID] = active
	return nil
}

// Delete implements plugin.OverrideStore.
func (s *MemoryOverrides) Delete(_ context.Context, pluginID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.overrides, pluginID)
	return nil
}

// List implements plugin.OverrideStore.
func (s *MemoryOverrides) List(_ context.Context) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.overrides))
	for id, active := range s.overrides {
		out[id] = active
	}
	return out, nil
}
