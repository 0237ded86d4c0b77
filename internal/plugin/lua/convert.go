// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package lua

import (
	"fmt"
	"math"

	lua "github.com/yuin/gopher-lua"

	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin"
)

// maxConvertDepth bounds recursion when converting nested tables.
const maxConvertDepth = 32

// toLua converts a Go value into a Lua value. Maps become tables keyed by
// string, slices become 1-based arrays; unsupported values become strings.
func toLua(L *lua.LState, v any) lua.LValue {
	return toLuaDepth(L, v, 0)
}

func toLuaDepth(L *lua.LState, v any, depth int) lua.LValue {
	if depth > maxConvertDepth {
		return lua.LNil
	}
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return val
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case int:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case plugin.Args:
		return mapToTable(L, val, depth)
	case map[string]any:
		return mapToTable(L, val, depth)
	case []any:
		t := L.CreateTable(len(val), 0)
		for _, item := range val {
			t.Append(toLuaDepth(L, item, depth+1))
		}
		return t
	case []string:
		t := L.CreateTable(len(val), 0)
		for _, item := range val {
			t.Append(lua.LString(item))
		}
		return t
	default:
		return lua.LString(fmt.Sprint(val))
	}
}

func mapToTable(L *lua.LState, m map[string]any, depth int) *lua.LTable {
	t := L.CreateTable(0, len(m))
	for k, item := range m {
		t.RawSetString(k, toLuaDepth(L, item, depth+1))
	}
	return t
}

// fromLua converts a Lua value into a Go value. Integral numbers become int,
// sequences become []any and other tables map[string]any. Functions and
// userdata become nil.
func fromLua(v lua.LValue) any {
	return fromLuaDepth(v, 0)
}

func fromLuaDepth(v lua.LValue, depth int) any {
	if depth > maxConvertDepth {
		return nil
	}
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LString:
		return string(val)
	case lua.LNumber:
		f := float64(val)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int(f)
		}
		return f
	case *lua.LTable:
		return tableToGo(val, depth)
	default:
		return nil
	}
}

func tableToGo(t *lua.LTable, depth int) any {
	n := t.MaxN()
	count := 0
	t.ForEach(func(lua.LValue, lua.LValue) { count++ })

	if n > 0 && n == count {
		out := make([]any, 0, n)
		for i := 1; i <= n; i++ {
			out = append(out, fromLuaDepth(t.RawGetInt(i), depth+1))
		}
		return out
	}

	out := make(map[string]any, count)
	t.ForEach(func(k, item lua.LValue) {
		out[k.String()] = fromLuaDepth(item, depth+1)
	})
	return out
}
