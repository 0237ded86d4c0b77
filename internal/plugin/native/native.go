// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

// Package native hosts plugins compiled into the binary.
package native

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samber/oops"

	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin"
)

// Handler handles one event.
type Handler func(ctx context.Context, call plugin.Call) (plugin.Result, error)

// Handlers is an Instance dispatching to handlers keyed by method name.
// Build it with NewHandlers so keys are normalized.
type Handlers map[string]Handler

// Compile-time interface check.
var _ plugin.Instance = Handlers(nil)

// NewHandlers normalizes handler names.
func NewHandlers(handlers map[string]Handler) Handlers {
	h := make(Handlers, len(handlers))
	for name, fn := range handlers {
		h[plugin.NormalizeName(name)] = fn
	}
	return h
}

// HasHandler implements plugin.Instance.
func (h Handlers) HasHandler(name string) bool {
	_, ok := h[plugin.NormalizeName(name)]
	return ok
}

// Invoke implements plugin.Instance.
func (h Handlers) Invoke(ctx context.Context, call plugin.Call) (plugin.Result, error) {
	fn, ok := h[plugin.NormalizeName(call.Method)]
	if !ok {
		return plugin.Result{}, oops.In("native").With("method", call.Method).Errorf("no handler for %s", call.Method)
	}
	return fn(ctx, call)
}

// Return builds a handler that always returns v; false aborts.
func Return(v any) Handler {
	return func(context.Context, plugin.Call) (plugin.Result, error) {
		return plugin.FromValue(v), nil
	}
}

// Definition is a compiled-in plugin: its manifest plus a constructor.
type Definition struct {
	Manifest plugin.Manifest
	New      func(deps plugin.Dependencies) (plugin.Instance, error)
}

// Registry holds compiled-in plugin definitions. It is both the Source
// describing them and the Loader instantiating them.
type Registry struct {
	mu   sync.RWMutex
	defs []Definition
	byID map[string]int
}

// Compile-time interface checks.
var (
	_ plugin.Source = (*Registry)(nil)
	_ plugin.Loader = (*Registry)(nil)
)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]int)}
}

// Register adds a definition. The manifest runtime is forced to native.
func (r *Registry) Register(def Definition) error {
	if def.New == nil {
		return fmt.Errorf("native plugin %s: constructor is nil", def.Manifest.ID)
	}
	def.Manifest.Runtime = plugin.RuntimeNative
	if err := def.Manifest.Validate(); err != nil {
		return fmt.Errorf("native plugin %s: %w", def.Manifest.ID, err)
	}

	id := plugin.NormalizeName(def.Manifest.ID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byID[id]; dup {
		return fmt.Errorf("native plugin %s already registered", id)
	}
	r.byID[id] = len(r.defs)
	r.defs = append(r.defs, def)
	return nil
}

// MustRegister is Register panicking on error, for package-level setup.
func (r *Registry) MustRegister(def Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Discover implements plugin.Source. Definitions are returned in
// registration order; invalid ones are logged and skipped.
func (r *Registry) Discover(_ context.Context) ([]*plugin.PluginDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descs := make([]*plugin.PluginDescriptor, 0, len(r.defs))
	for _, def := range r.defs {
		desc, err := def.Manifest.Descriptor("")
		if err != nil {
			slog.Warn("skipping native plugin",
				"plugin", def.Manifest.ID,
				"error", plugin.ErrPluginReflection("native:"+def.Manifest.ID, err))
			continue
		}
		descs = append(descs, desc)
	}
	return descs, nil
}

// Load implements plugin.Loader.
func (r *Registry) Load(_ context.Context, desc *plugin.PluginDescriptor, deps plugin.Dependencies) (plugin.Instance, error) {
	r.mu.RLock()
	i, ok := r.byID[desc.ID]
	var def Definition
	if ok {
		def = r.defs[i]
	}
	r.mu.RUnlock()

	if !ok {
		return nil, oops.In("native").With("plugin", desc.ID).Errorf("native plugin not registered")
	}
	inst, err := def.New(deps)
	if err != nil {
		return nil, oops.In("native").With("plugin", desc.ID).Wrap(err)
	}
	return inst, nil
}
