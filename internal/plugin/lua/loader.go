// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package lua

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin"
)

// Compile-time interface check.
var _ plugin.Loader = (*Loader)(nil)

// compiled is a cached prototype of a plugin entry file.
type compiled struct {
	proto   *lua.FunctionProto
	modTime time.Time
}

// Loader creates Lua plugin instances. Entry files are compiled once and
// recompiled when they change on disk; every instance gets its own state.
type Loader struct {
	factory *StateFactory
	cache   map[string]compiled
	mu      sync.Mutex
	closed  bool
}

// NewLoader creates a Lua loader.
func NewLoader() *Loader {
	return &Loader{
		factory: NewStateFactory(),
		cache:   make(map[string]compiled),
	}
}

// Load implements plugin.Loader. It runs the entry file in a fresh state
// and indexes the global functions the file defines as handlers.
func (l *Loader) Load(ctx context.Context, desc *plugin.PluginDescriptor, deps plugin.Dependencies) (plugin.Instance, error) {
	errb := oops.In("lua").With("plugin", desc.ID).With("operation", "load")

	proto, err := l.proto(desc)
	if err != nil {
		return nil, errb.Wrap(err)
	}

	L, err := l.factory.NewState(ctx)
	if err != nil {
		return nil, errb.Hint("failed to create state").Wrap(err)
	}

	builtins := globalNames(L)
	registerFunctions(L, desc.ID, deps)

	L.Push(L.NewFunctionFromProto(proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		L.Close()
		return nil, errb.Hint("failed to run entry file").Wrap(err)
	}
	L.RemoveContext()

	handlers := make(map[string]*lua.LFunction)
	L.G.Global.ForEach(func(k, v lua.LValue) {
		name, ok := k.(lua.LString)
		if !ok || builtins[string(name)] || string(name) == hostModule {
			return
		}
		if fn, ok := v.(*lua.LFunction); ok {
			handlers[plugin.NormalizeName(string(name))] = fn
		}
	})

	return &Instance{
		id:       desc.ID,
		state:    L,
		handlers: handlers,
	}, nil
}

// proto returns the compiled entry file of desc, compiling it when the
// cache is cold or the file changed.
func (l *Loader) proto(desc *plugin.PluginDescriptor) (*lua.FunctionProto, error) {
	path := filepath.Clean(filepath.Join(desc.Location, desc.Entry))
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, oops.New("loader is closed")
	}
	if c, ok := l.cache[path]; ok && c.modTime.Equal(info.ModTime()) {
		return c.proto, nil
	}

	proto, err := Compile(path)
	if err != nil {
		return nil, err
	}
	l.cache[path] = compiled{proto: proto, modTime: info.ModTime()}
	return proto, nil
}

// Close drops the compiled cache. Instances already created stay usable
// until their chain closes them.
func (l *Loader) Close(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.cache = nil
	return nil
}

func globalNames(L *lua.LState) map[string]bool {
	names := make(map[string]bool)
	L.G.Global.ForEach(func(k, _ lua.LValue) {
		if name, ok := k.(lua.LString); ok {
			names[string(name)] = true
		}
	})
	return names
}
