// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

// Package goplugin provides a Loader for binary plugins using HashiCorp's
// go-plugin system over net/rpc.
package goplugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin"
	"github.com/yanaFramework/yanaFramework-sub012/pkg/pluginsdk"
)

// DefaultCallTimeout bounds a single handler call when the caller's
// context carries no deadline.
const DefaultCallTimeout = 5 * time.Second

// Sentinel errors for programmatic error checking.
var (
	// ErrLoaderClosed is returned when operations are attempted on a closed loader.
	ErrLoaderClosed = errors.New("loader is closed")
	// ErrPluginNotLoaded is returned when operating on a plugin that isn't loaded.
	ErrPluginNotLoaded = errors.New("plugin not loaded")
	// ErrNotBinary is returned for descriptors of another runtime.
	ErrNotBinary = errors.New("not a binary plugin")
)

// Compile-time interface checks.
var (
	_ plugin.Loader   = (*Loader)(nil)
	_ plugin.Instance = (*Instance)(nil)
)

// Loader starts binary plugins via HashiCorp go-plugin. Each plugin runs in
// one child process shared by every call chain; processes that exit are
// restarted on the next Load.
type Loader struct {
	clientFactory ClientFactory
	plugins       map[string]*process
	mu            sync.Mutex
	closed        bool
}

// process holds state for a single running plugin.
type process struct {
	client   PluginClient
	remote   remote
	handlers map[string]bool
}

// NewLoader creates a binary plugin loader.
func NewLoader() *Loader {
	return NewLoaderWithFactory(&DefaultClientFactory{})
}

// NewLoaderWithFactory creates a loader with a custom client factory (for testing).
// Panics if factory is nil.
func NewLoaderWithFactory(factory ClientFactory) *Loader {
	if factory == nil {
		panic("goplugin: factory cannot be nil")
	}
	return &Loader{
		clientFactory: factory,
		plugins:       make(map[string]*process),
	}
}

// Load implements plugin.Loader.
func (l *Loader) Load(_ context.Context, desc *plugin.PluginDescriptor, deps plugin.Dependencies) (plugin.Instance, error) {
	if desc.Runtime != plugin.RuntimeBinary {
		return nil, fmt.Errorf("%w: %s", ErrNotBinary, desc.ID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrLoaderClosed
	}

	p, ok := l.plugins[desc.ID]
	if ok && p.client.Exited() {
		logger(deps).Warn("plugin process exited, restarting", "plugin", desc.ID)
		p.client.Kill()
		ok = false
	}
	if !ok {
		var err error
		if p, err = l.start(desc); err != nil {
			return nil, err
		}
		l.plugins[desc.ID] = p
		logger(deps).Debug("plugin process started", "plugin", desc.ID, "handlers", len(p.handlers))
	}

	return &Instance{id: desc.ID, proc: p}, nil
}

func (l *Loader) start(desc *plugin.PluginDescriptor) (*process, error) {
	execPath := filepath.Join(desc.Location, desc.Entry)
	if _, err := os.Stat(execPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("plugin executable not found: %s: %w", execPath, err)
		}
		return nil, fmt.Errorf("cannot access plugin executable %s: %w", execPath, err)
	}

	client := l.clientFactory.NewClient(execPath)

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to connect to plugin %s: %w", desc.ID, err)
	}

	raw, err := rpcClient.Dispense(pluginsdk.PluginName)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to dispense plugin %s: %w", desc.ID, err)
	}

	r, ok := raw.(remote)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("plugin %s does not implement the handler protocol", desc.ID)
	}

	names, err := r.Handlers()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to list handlers of plugin %s: %w", desc.ID, err)
	}
	handlers := make(map[string]bool, len(names))
	for _, name := range names {
		handlers[plugin.NormalizeName(name)] = true
	}

	return &process{client: client, remote: r, handlers: handlers}, nil
}

// Unload kills a plugin's process.
func (l *Loader) Unload(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrLoaderClosed
	}

	p, ok := l.plugins[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPluginNotLoaded, id)
	}
	p.client.Kill()
	delete(l.plugins, id)
	return nil
}

// Plugins returns ids of all running plugins.
func (l *Loader) Plugins() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	ids := make([]string, 0, len(l.plugins))
	for id := range l.plugins {
		ids = append(ids, id)
	}
	return ids
}

// Close shuts down the loader and all plugin processes.
func (l *Loader) Close(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, p := range l.plugins {
		p.client.Kill()
	}
	l.closed = true
	clear(l.plugins)
	return nil
}

func logger(deps plugin.Dependencies) *slog.Logger {
	if deps.Logger != nil {
		return deps.Logger
	}
	return slog.Default()
}

// Instance is a handle on a running binary plugin.
type Instance struct {
	id   string
	proc *process
}

// HasHandler implements plugin.Instance.
func (i *Instance) HasHandler(name string) bool {
	return i.proc.handlers[plugin.NormalizeName(name)]
}

// Invoke implements plugin.Instance.
func (i *Instance) Invoke(ctx context.Context, call plugin.Call) (plugin.Result, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultCallTimeout)
		defer cancel()
	}

	res, err := i.proc.remote.Invoke(ctx, pluginsdk.Call{
		Event:  call.Event,
		Method: call.Method,
		Args:   call.Args,
	})
	if err != nil {
		return plugin.Result{}, plugin.ErrInvocation(i.id, call.Event, call.Method, err)
	}
	if res.Abort {
		return plugin.Abort(), nil
	}
	return plugin.FromValue(res.Value), nil
}
