// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package lua

import (
	"context"
	"log/slog"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin"
)

// hostModule is the global table exposing host functions to plugins.
const hostModule = "yana"

// registerFunctions installs the yana.* table:
//
//	yana.plugin_id          id of the running plugin
//	yana.log(level, msg)    log through the plugin logger
//	yana.setting(key)       read a plugin setting, nil if unset
//	yana.send(event, args)  send a nested event in the current call chain
func registerFunctions(L *lua.LState, pluginID string, deps plugin.Dependencies) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("plugin", pluginID)
	}

	mod := L.NewTable()
	L.SetField(mod, "plugin_id", lua.LString(pluginID))
	L.SetField(mod, "log", L.NewFunction(func(L *lua.LState) int {
		level := strings.ToLower(L.CheckString(1))
		msg := L.CheckString(2)
		ctx := stateContext(L)
		switch level {
		case "debug":
			logger.DebugContext(ctx, msg)
		case "warn", "warning":
			logger.WarnContext(ctx, msg)
		case "error":
			logger.ErrorContext(ctx, msg)
		default:
			logger.InfoContext(ctx, msg)
		}
		return 0
	}))
	L.SetField(mod, "setting", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		L.Push(toLua(L, deps.Settings[key]))
		return 1
	}))
	L.SetField(mod, "send", L.NewFunction(func(L *lua.LState) int {
		if deps.Sender == nil {
			L.RaiseError("yana.send: no sender available")
			return 0
		}
		event := L.CheckString(1)
		args := plugin.Args{}
		if t, ok := L.Get(2).(*lua.LTable); ok {
			if m, ok := fromLua(t).(map[string]any); ok {
				args = m
			}
		}
		v, err := deps.Sender.SendEvent(stateContext(L), event, args)
		if err != nil {
			L.RaiseError("yana.send(%s): %s", event, err.Error())
			return 0
		}
		L.Push(toLua(L, v))
		return 1
	}))
	L.SetGlobal(hostModule, mod)
}

func stateContext(L *lua.LState) context.Context {
	if ctx := L.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
