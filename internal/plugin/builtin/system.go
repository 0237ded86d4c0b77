// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

// Package builtin holds the plugins compiled into yana.
package builtin

import (
	"context"

	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin"
	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin/native"
)

// SystemID is the id of the system plugin.
const SystemID = "system"

// System answers introspection events: ping, plugins and events. It is
// always active.
var System = native.Definition{
	Manifest: plugin.Manifest{
		ID:         SystemID,
		Version:    "1.0.0",
		Type:       string(plugin.TypeConfig),
		Activation: string(plugin.ActivationAlways),
		Methods: []plugin.MethodConfig{
			{Name: "ping"},
			{Name: "plugins"},
			{Name: "events"},
		},
	},
	New: newSystem,
}

// Register adds every builtin plugin to r.
func Register(r *native.Registry) error {
	return r.Register(System)
}

func newSystem(deps plugin.Dependencies) (plugin.Instance, error) {
	return native.NewHandlers(map[string]native.Handler{
		"ping": native.Return("pong"),
		"plugins": func(ctx context.Context, _ plugin.Call) (plugin.Result, error) {
			return plugin.Continue(pluginTable(ctx, deps)), nil
		},
		"events": func(_ context.Context, _ plugin.Call) (plugin.Result, error) {
			return plugin.Continue(eventTable(deps.Repository)), nil
		},
	}), nil
}

// pluginTable maps each known plugin id to whether it is active.
func pluginTable(ctx context.Context, deps plugin.Dependencies) map[string]any {
	out := make(map[string]any)
	for _, desc := range deps.Repository.Plugins() {
		out[desc.ID] = deps.Oracle.IsActive(ctx, desc.ID)
	}
	return out
}

// eventTable maps each event to its implementers in discovery order.
func eventTable(repo *plugin.Repository) map[string]any {
	events := repo.Events()
	out := make(map[string]any, len(events))
	for _, event := range events {
		ids := repo.ImplementerIDs(event)
		list := make([]any, len(ids))
		for i, id := range ids {
			list[i] = id
		}
		out[event] = list
	}
	return out
}
