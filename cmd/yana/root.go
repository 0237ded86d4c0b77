// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yanaFramework/yanaFramework-sub012/internal/config"
	"github.com/yanaFramework/yanaFramework-sub012/internal/logging"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the yana CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmdWithDeps(nil)
}

func newRootCmdWithDeps(deps *Deps) *cobra.Command {
	deps = deps.withDefaults()

	cmd := &cobra.Command{
		Use:   "yana",
		Short: "Yana - plugin event dispatcher",
		Long: `Yana discovers plugins, indexes which plugins respond to which events,
and broadcasts events to them in priority order.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/yana/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewSendCmd(deps))
	cmd.AddCommand(NewRunCmd(deps))
	cmd.AddCommand(NewPluginsCmd(deps))
	cmd.AddCommand(NewMigrateCmd(deps))
	cmd.AddCommand(NewSchemaCmd())

	return cmd
}

// loadConfig loads configuration for cmd and installs the default logger.
func loadConfig(cmd *cobra.Command, deps *Deps) (*config.Config, error) {
	cfg, err := deps.ConfigLoader(configFile, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := cfg.LogLevel()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logging.SetDefault("yana", version, cfg.Log.Format, level)
	return cfg, nil
}
