// Package luascript runs user-provided Lua scripts as plugins. Each
// script defines a global execute(input) function; a fresh interpreter
// state is created per invocation so scripts cannot leak state between
// requests.
package luascript

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/libreassistant/libreassistant/internal/plugin"
	"github.com/libreassistant/libreassistant/internal/registry"
)

// Script is a Lua-backed plugin. The script file must define a global
// execute(input) function taking a table and returning a string, a
// number, a boolean or a table.
type Script struct {
	path string
}

// New returns a plugin backed by the Lua script at path.
func New(path string) (*Script, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("luascript: script path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("luascript: %w", err)
	}
	return &Script{path: abs}, nil
}

// Execute loads the script in a fresh state and calls execute(input).
func (s *Script) Execute(ctx context.Context, input map[string]any) (any, error) {
	state := lua.NewState()
	defer state.Close()
	state.SetContext(ctx)

	// Scripts get a reduced os module: getenv and time only.
	state.PreloadModule("os", osModuleLoader)

	if err := state.DoFile(s.path); err != nil {
		return nil, fmt.Errorf("load script: %w", err)
	}

	fn := state.GetGlobal("execute")
	if fn.Type() != lua.LTFunction {
		return nil, fmt.Errorf("script must define a global function execute(input), got %s", fn.Type().String())
	}

	state.Push(fn)
	state.Push(toLua(state, input))
	if err := state.PCall(1, 1, nil); err != nil {
		return nil, fmt.Errorf("execute(): %w", err)
	}

	ret := state.Get(-1)
	state.Pop(1)
	return fromLua(ret)
}

// toLua converts a Go value to its Lua representation.
func toLua(state *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case string:
		return lua.LString(val)
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case map[string]any:
		tbl := state.NewTable()
		for k, item := range val {
			state.SetField(tbl, k, toLua(state, item))
		}
		return tbl
	case []any:
		tbl := state.NewTable()
		for _, item := range val {
			tbl.Append(toLua(state, item))
		}
		return tbl
	default:
		return lua.LString(fmt.Sprintf("%v", val))
	}
}

// fromLua converts an execute() return value back to a Go value.
func fromLua(v lua.LValue) (any, error) {
	switch v.Type() {
	case lua.LTNil:
		return nil, nil
	case lua.LTString:
		return v.String(), nil
	case lua.LTBool:
		return v == lua.LTrue, nil
	case lua.LTNumber:
		return float64(v.(lua.LNumber)), nil
	case lua.LTTable:
		return tableToGo(v.(*lua.LTable))
	default:
		return nil, fmt.Errorf("execute() returned unsupported type %s", v.Type().String())
	}
}

// tableToGo maps a Lua table to a Go map or, when all keys form a
// contiguous 1..n integer sequence, a slice.
func tableToGo(tbl *lua.LTable) (any, error) {
	m := make(map[string]any)
	arr := make([]any, 0)
	sequential := true
	var convErr error

	tbl.ForEach(func(k, v lua.LValue) {
		item, err := fromLua(v)
		if err != nil && convErr == nil {
			convErr = err
			return
		}
		if n, ok := k.(lua.LNumber); ok && float64(n) == float64(len(arr)+1) {
			arr = append(arr, item)
		} else {
			sequential = false
		}
		m[k.String()] = item
	})
	if convErr != nil {
		return nil, convErr
	}
	if sequential && len(arr) > 0 && len(arr) == len(m) {
		return arr, nil
	}
	return m, nil
}

// osModuleLoader exposes getenv and time to scripts, nothing else.
func osModuleLoader(state *lua.LState) int {
	mod := state.NewTable()
	state.SetField(mod, "getenv", state.NewFunction(func(ls *lua.LState) int {
		ls.Push(lua.LString(os.Getenv(ls.CheckString(1))))
		return 1
	}))
	state.SetField(mod, "time", state.NewFunction(func(ls *lua.LState) int {
		ls.Push(lua.LNumber(time.Now().Unix()))
		return 1
	}))
	state.Push(mod)
	return 1
}

var _ plugin.Plugin = (*Script)(nil)

// Entry builds the registry entry for one configured Lua plugin.
func Entry(id, description, scriptPath string) (registry.Entry, error) {
	s, err := New(scriptPath)
	if err != nil {
		return registry.Entry{}, err
	}
	return registry.Entry{
		Descriptor: registry.Descriptor{
			ID:          id,
			Name:        id,
			Description: description,
		},
		Plugin: s,
	}, nil
}
