// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package plugin

import (
	"context"
	"log/slog"
)

// ActivationOracle decides whether a plugin currently takes part in
// broadcasts.
type ActivationOracle interface {
	IsActive(ctx context.Context, pluginID string) bool
}

// OverrideStore holds runtime activation overrides keyed by plugin id.
type OverrideStore interface {
	// Lookup returns the override for a plugin; found is false when no
	// override exists.
	Lookup(ctx context.Context, pluginID string) (active, found bool, err error)
	Set(ctx context.Context, pluginID string, active bool) error
	Delete(ctx context.Context, pluginID string) error
	List(ctx context.Context) (map[string]bool, error)
}

// OverrideOracle is the default ActivationOracle. It combines the
// descriptors of the current repository with an override store.
type OverrideOracle struct {
	repos     *RepositoryStore
	overrides OverrideStore
}

// Compile-time interface check.
var _ ActivationOracle = (*OverrideOracle)(nil)

// NewOverrideOracle creates an oracle reading repositories from repos. A nil
// overrides store means manifest defaults only.
func NewOverrideOracle(repos *RepositoryStore, overrides OverrideStore) *OverrideOracle {
	return &OverrideOracle{repos: repos, overrides: overrides}
}

// IsActive reports whether pluginID is active:
//   - unknown plugins are inactive;
//   - plugins with activation "always" are active;
//   - an override, if present, decides;
//   - otherwise the manifest default applies.
//
// Failed override lookups count as inactive.
func (a *OverrideOracle) IsActive(ctx context.Context, pluginID string) bool {
	desc, ok := a.repos.Load().Plugin(pluginID)
	if !ok {
		return false
	}
	if desc.ActiveByDefault() {
		return true
	}
	if a.overrides == nil {
		return desc.Activation != ActivationOff
	}

	active, found, err := a.overrides.Lookup(ctx, desc.ID)
	if err != nil {
		slog.WarnContext(ctx, "activation lookup failed, treating plugin as inactive",
			"plugin", desc.ID,
			"code", CodeActivationLookup,
			"error", err)
		RecordActivationFailure(desc.ID)
		return false
	}
	if found {
		return active
	}
	return desc.Activation != ActivationOff
}

// Status returns a StatusFunc for Build that reports explicit overrides. A
// failed lookup is reported as inactive.
func (a *OverrideOracle) Status(ctx context.Context) StatusFunc {
	return func(id string) Status {
		if a.overrides == nil {
			return StatusUnknown
		}
		active, found, err := a.overrides.Lookup(ctx, id)
		switch {
		case err != nil:
			slog.WarnContext(ctx, "activation lookup failed during build, treating plugin as inactive",
				"plugin", id,
				"error", err)
			RecordActivationFailure(id)
			return StatusInactive
		case !found:
			return StatusUnknown
		case active:
			return StatusActive
		default:
			return StatusInactive
		}
	}
}

// Overrides returns the underlying override store, which may be nil.
func (a *OverrideOracle) Overrides() OverrideStore {
	return a.overrides
}
