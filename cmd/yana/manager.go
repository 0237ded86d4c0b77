// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yanaFramework/yanaFramework-sub012/internal/config"
	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin"
	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin/goplugin"
	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin/lua"
	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin/native"
)

// session is a plugin manager together with the resources it holds.
type session struct {
	manager   *plugin.Manager
	overrides plugin.OverrideStore
	release   func()
}

// openSession builds a manager over the compiled-in plugins and the
// configured plugin directories, and publishes its first repository.
func openSession(ctx context.Context, cfg *config.Config, deps *Deps) (*session, error) {
	registry := native.NewRegistry()
	if err := deps.NativePlugins(registry); err != nil {
		return nil, fmt.Errorf("failed to register builtin plugins: %w", err)
	}

	scanner, err := plugin.NewScanner(cfg.Plugins.Dirs, plugin.WithExclude(cfg.Plugins.Exclude...))
	if err != nil {
		return nil, fmt.Errorf("invalid plugin configuration: %w", err)
	}

	overrides, release, err := deps.OverrideStoreFactory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open activation store: %w", err)
	}

	opts := []plugin.ManagerOption{
		plugin.WithSource(registry),
		plugin.WithSource(scanner),
		plugin.WithLoader(plugin.RuntimeNative, registry),
		plugin.WithLoader(plugin.RuntimeLua, lua.NewLoader()),
		plugin.WithLoader(plugin.RuntimeBinary, goplugin.NewLoader()),
		plugin.WithOverrides(overrides),
		plugin.WithBroadcastTimeout(cfg.Dispatch.Timeout),
	}
	for id, settings := range cfg.Plugins.Settings {
		opts = append(opts, plugin.WithPluginSettings(id, settings))
	}

	s := &session{
		manager:   plugin.NewManager(opts...),
		overrides: overrides,
		release:   release,
	}
	if _, err := s.manager.Rebuild(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to discover plugins: %w", err), s.close(ctx))
	}
	return s, nil
}

func (s *session) close(ctx context.Context) error {
	err := s.manager.Close(ctx)
	s.release()
	if err != nil {
		slog.WarnContext(ctx, "failed to close plugin manager", "error", err)
	}
	return err
}
