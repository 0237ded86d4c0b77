// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin"
	"github.com/yanaFramework/yanaFramework-sub012/internal/store"
)

// NewPluginsCmd creates the plugins subcommand.
func NewPluginsCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Inspect plugins and manage activation",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List discovered plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, deps, listPlugins)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "events [event]",
		Short: "List events and their implementers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, deps, func(ctx context.Context, cmd *cobra.Command, s *session) error {
				return listEvents(ctx, cmd, s, args)
			})
		},
	})
	cmd.AddCommand(newActivationCmd(deps, "enable", "Activate a plugin", func(ctx context.Context, m *plugin.Manager, id string) error {
		return m.SetActive(ctx, id, true)
	}))
	cmd.AddCommand(newActivationCmd(deps, "disable", "Deactivate a plugin", func(ctx context.Context, m *plugin.Manager, id string) error {
		return m.SetActive(ctx, id, false)
	}))
	cmd.AddCommand(newActivationCmd(deps, "reset", "Drop the activation override of a plugin", func(ctx context.Context, m *plugin.Manager, id string) error {
		return m.ResetActive(ctx, id)
	}))

	return cmd
}

func newActivationCmd(deps *Deps, use, short string, apply func(ctx context.Context, m *plugin.Manager, id string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <plugin>",
		Short: short,
		Long: short + `. Overrides are only persisted when activation.database-url
is configured.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, deps, func(ctx context.Context, cmd *cobra.Command, s *session) error {
				if _, ok := s.overrides.(*store.MemoryOverrides); ok {
					return oops.Code("CONFIG_INVALID").
						Errorf("activation overrides need a database; set activation.database-url or DATABASE_URL")
				}
				if err := apply(ctx, s.manager, args[0]); err != nil {
					return err
				}
				cmd.Printf("%s: active=%t\n", plugin.NormalizeName(args[0]), s.manager.IsActive(ctx, args[0]))
				return nil
			})
		},
	}
}

// withSession loads configuration, opens a session and runs fn with it.
func withSession(cmd *cobra.Command, deps *Deps, fn func(ctx context.Context, cmd *cobra.Command, s *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(cmd, deps)
	if err != nil {
		return err
	}
	s, err := openSession(ctx, cfg, deps)
	if err != nil {
		return err
	}
	defer func() { _ = s.close(ctx) }()

	return fn(ctx, cmd, s)
}

func listPlugins(ctx context.Context, cmd *cobra.Command, s *session) error {
	repo := s.manager.Repository()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVERSION\tTYPE\tRUNTIME\tACTIVATION\tACTIVE\tLOCATION")
	for _, desc := range repo.Plugins() {
		location := desc.Location
		if location == "" {
			location = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\t%s\n",
			desc.ID, desc.Version, desc.Type, desc.Runtime, desc.Activation,
			s.manager.IsActive(ctx, desc.ID), location)
	}
	return w.Flush()
}

func listEvents(_ context.Context, cmd *cobra.Command, s *session, args []string) error {
	repo := s.manager.Repository()

	events := repo.Events()
	if len(args) == 1 {
		name := plugin.NormalizeName(args[0])
		if _, ok := repo.Event(name); !ok {
			return plugin.ErrUndefinedEvent(name)
		}
		events = []string{name}
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EVENT\tOWNER\tTYPE\tON-SUCCESS\tON-ERROR\tIMPLEMENTERS")
	for _, event := range events {
		owner, _ := repo.Event(event)
		impls := repo.Implementations(event)
		names := make([]string, len(impls))
		for i, impl := range impls {
			names[i] = fmt.Sprintf("%s(%s,%d)", impl.PluginID, impl.Kind, impl.Method.Priority)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			event, owner.PluginID, owner.Type, dash(owner.OnSuccess), dash(owner.OnError),
			strings.Join(names, " "))
	}
	return w.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
