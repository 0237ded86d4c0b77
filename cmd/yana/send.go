// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin"
)

// NewSendCmd creates the send subcommand.
func NewSendCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "send <event> [key=value...]",
		Short: "Send one event and print the result",
		Long: `Send one event to every active implementer and print the aggregate
result, followed by the event the result routes to, if any.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSendWithDeps(cmd, args, deps)
		},
	}
}

func runSendWithDeps(cmd *cobra.Command, args []string, deps *Deps) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	eventArgs, err := parseArgs(args[1:])
	if err != nil {
		return err
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

	chain := plugin.NewChain()
	defer func() { _ = chain.Close() }()
	ctx = plugin.WithChain(ctx, chain)

	res, sendErr := s.manager.Send(ctx, args[0], eventArgs)
	printStep(cmd.OutOrStdout(), plugin.NormalizeName(args[0]), res, sendErr)
	if next, ok := s.manager.NextEvent(ctx); ok {
		fmt.Fprintf(cmd.OutOrStdout(), "next: %s\n", next)
	}
	return sendErr
}

// printStep writes one line per sent event.
func printStep(w io.Writer, event string, res plugin.Result, err error) {
	switch {
	case err != nil && plugin.IsBroadcastInterrupted(err):
		fmt.Fprintf(w, "%s: %s (interrupted)\n", event, formatResult(res))
	case err != nil:
		fmt.Fprintf(w, "%s: error: %v\n", event, err)
	default:
		fmt.Fprintf(w, "%s: %s\n", event, formatResult(res))
	}
}
