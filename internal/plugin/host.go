// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package plugin

import (
	"context"
	"log/slog"
)

// Args is the argument bundle passed to every handler of a broadcast.
type Args map[string]any

// Call describes one handler invocation.
type Call struct {
	// Event is the broadcast event name.
	Event string
	// Method is the handler to run: the event name for named handlers, the
	// catch-all name for catch-all handlers.
	Method string
	Args   Args
}

// Instance is a live plugin. The dispatcher only ever talks to plugins
// through this interface.
type Instance interface {
	// HasHandler reports whether the instance can handle the named method.
	// Names are matched case-insensitively.
	HasHandler(name string) bool

	// Invoke runs a handler. Returned errors propagate to the sender.
	Invoke(ctx context.Context, call Call) (Result, error)
}

// Closer is implemented by instances holding resources that must be freed
// when their call chain ends.
type Closer interface {
	Close() error
}

// Sender sends events. Plugins use it to raise nested events within their
// own call chain.
type Sender interface {
	SendEvent(ctx context.Context, event string, args Args) (any, error)
}

// Dependencies is the bundle handed to each plugin instance on construction.
type Dependencies struct {
	Logger     *slog.Logger
	Repository *Repository
	Oracle     ActivationOracle
	Sender     Sender
	// Settings holds the plugin's manifest settings overlaid with the
	// configured per-plugin settings.
	Settings map[string]any
}

// Loader creates live plugin instances for one runtime.
type Loader interface {
	Load(ctx context.Context, desc *PluginDescriptor, deps Dependencies) (Instance, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, desc *PluginDescriptor, deps Dependencies) (Instance, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, desc *PluginDescriptor, deps Dependencies) (Instance, error) {
	return f(ctx, desc, deps)
}

// Source yields plugin descriptors. Sources report per-plugin failures by
// logging and skipping; a returned error means the whole source failed.
type Source interface {
	Discover(ctx context.Context) ([]*PluginDescriptor, error)
}
