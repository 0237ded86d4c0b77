// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package main

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/yanaFramework/yanaFramework-sub012/internal/config"
	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin"
	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin/builtin"
	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin/native"
	"github.com/yanaFramework/yanaFramework-sub012/internal/store"
)

// samplePlugins is the repository's plugin directory.
const samplePlugins = "../../plugins"

// testConfig returns a configuration over the sample Lua plugins. The binary
// sample is excluded because it needs a build step.
func testConfig() *config.Config {
	return &config.Config{
		Log:      config.LogConfig{Format: "text", Level: "error"},
		Plugins:  config.PluginsConfig{Dirs: []string{samplePlugins}, Exclude: []string{"echo"}},
		Dispatch: config.DispatchConfig{Timeout: 5 * time.Second, MaxChain: 8},
	}
}

func testDeps(cfg *config.Config) *Deps {
	return &Deps{
		ConfigLoader: func(string, *pflag.FlagSet) (*config.Config, error) {
			return cfg, nil
		},
	}
}

// execute runs the root command and returns everything it printed.
func execute(deps *Deps, stdin string, args ...string) (string, error) {
	cmd := newRootCmdWithDeps(deps)
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// persistentOverrides is an override store that is not the in-memory one, so
// the plugins enable/disable commands accept it.
type persistentOverrides struct {
	*store.MemoryOverrides
}

func withOverrides(deps *Deps, overrides plugin.OverrideStore) *Deps {
	deps.OverrideStoreFactory = func(context.Context, *config.Config) (plugin.OverrideStore, func(), error) {
		return overrides, func() {}, nil
	}
	return deps
}

// withNative registers extra compiled-in plugins next to the builtin ones.
func withNative(deps *Deps, defs ...native.Definition) *Deps {
	deps.NativePlugins = func(r *native.Registry) error {
		if err := builtin.Register(r); err != nil {
			return err
		}
		for _, def := range defs {
			if err := r.Register(def); err != nil {
				return err
			}
		}
		return nil
	}
	return deps
}

// ticker is a plugin whose tick event routes back to itself.
var ticker = native.Definition{
	Manifest: plugin.Manifest{
		ID:      "ticker",
		Version: "1.0.0",
		Methods: []plugin.MethodConfig{{Name: "tick", OnSuccess: "tick"}},
	},
	New: func(plugin.Dependencies) (plugin.Instance, error) {
		n := 0
		return native.NewHandlers(map[string]native.Handler{
			"tick": func(context.Context, plugin.Call) (plugin.Result, error) {
				n++
				return plugin.Continue(n), nil
			},
		}), nil
	},
}
