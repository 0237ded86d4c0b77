// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package lua

import (
	"context"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"

	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Instance = (*Instance)(nil)
	_ plugin.Closer   = (*Instance)(nil)
)

// Instance is a loaded Lua plugin. Named handlers receive the argument
// table; the catch-all handler receives the event name and the argument
// table. Returning false aborts the broadcast.
//
// An instance belongs to one call chain and is not safe for concurrent use.
// Handlers may re-enter the instance through yana.send.
type Instance struct {
	id       string
	state    *lua.LState
	handlers map[string]*lua.LFunction
	closed   atomic.Bool
}

// HasHandler implements plugin.Instance.
func (i *Instance) HasHandler(name string) bool {
	_, ok := i.handlers[plugin.NormalizeName(name)]
	return ok
}

// Invoke implements plugin.Instance.
func (i *Instance) Invoke(ctx context.Context, call plugin.Call) (plugin.Result, error) {
	fn, ok := i.handlers[plugin.NormalizeName(call.Method)]
	if !ok {
		return plugin.Result{}, plugin.ErrInvocation(i.id, call.Event, call.Method, errNoHandler)
	}

	if i.closed.Load() {
		return plugin.Result{}, plugin.ErrInvocation(i.id, call.Event, call.Method, errClosed)
	}

	L := i.state
	outer := L.Context()
	L.SetContext(ctx)
	defer func() {
		if outer != nil {
			L.SetContext(outer)
		} else {
			L.RemoveContext()
		}
	}()

	args := []lua.LValue{toLua(L, call.Args)}
	if plugin.NormalizeName(call.Method) != plugin.NormalizeName(call.Event) {
		args = append([]lua.LValue{lua.LString(call.Event)}, args...)
	}

	if err := L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		return plugin.Result{}, plugin.ErrInvocation(i.id, call.Event, call.Method, err)
	}

	ret := L.Get(-1)
	L.Pop(1)
	return plugin.FromValue(fromLua(ret)), nil
}

// Close releases the Lua state.
func (i *Instance) Close() error {
	if i.closed.CompareAndSwap(false, true) {
		i.state.Close()
	}
	return nil
}
