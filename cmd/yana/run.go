// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yanaFramework/yanaFramework-sub012/internal/observability"
	"github.com/yanaFramework/yanaFramework-sub012/internal/plugin"
	"github.com/yanaFramework/yanaFramework-sub012/pkg/errutil"
)

// NewRunCmd creates the run subcommand.
func NewRunCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Read events from stdin and dispatch them",
		Long: `Read one request per line from stdin and dispatch it. A request is an
event name followed by key=value arguments; each request runs in its own call
chain and follows the events its results route to, up to dispatch.max-chain.

Lines starting with ':' control the dispatcher:

  :enable <plugin>    activate a plugin
  :disable <plugin>   deactivate a plugin
  :reset <plugin>     drop the activation override of a plugin
  :rebuild            rescan plugin directories`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRunWithDeps(cmd, deps)
		},
	}
}

func runRunWithDeps(cmd *cobra.Command, deps *Deps) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd, deps)
	if err != nil {
		return err
	}

	var ready atomic.Bool
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer := deps.ObservabilityServerFactory(cfg.Metrics.Addr, ready.Load)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return fmt.Errorf("failed to start observability server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := obsServer.Stop(shutdownCtx); err != nil {
				slog.Warn("error stopping observability server", "error", err)
			}
		}()

		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")

		metrics = obsServer.Metrics()
		slog.Info("observability server started", "addr", obsServer.Addr())
	}

	s, err := openSession(ctx, cfg, deps)
	if err != nil {
		return err
	}
	defer func() { _ = s.close(context.Background()) }()
	ready.Store(true)

	c := &controller{
		manager:  s.manager,
		maxChain: cfg.Dispatch.MaxChain,
		metrics:  metrics,
		out:      cmd.OutOrStdout(),
	}
	return c.serve(ctx, cmd.InOrStdin())
}

// controller turns request lines into call chains.
type controller struct {
	manager  *plugin.Manager
	maxChain int
	metrics  *observability.Metrics
	out      io.Writer
}

// serve handles lines from r until it is exhausted or ctx is done.
func (c *controller) serve(ctx context.Context, r io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			slog.Warn("failed to read requests", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("context cancelled, shutting down")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			c.handleLine(ctx, line)
		}
	}
}

func (c *controller) handleLine(ctx context.Context, line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}

	fields := strings.Fields(line)
	if strings.HasPrefix(fields[0], ":") {
		if err := c.control(ctx, fields); err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
			errutil.LogWarn(slog.Default(), "control command failed", err)
		}
		return
	}

	args, err := parseArgs(fields[1:])
	if err != nil {
		fmt.Fprintf(c.out, "error: %v\n", err)
		return
	}
	c.request(ctx, fields[0], args)
}

// request sends event in a fresh call chain and follows the events its
// results route to. Every event of the chain receives the same arguments.
func (c *controller) request(ctx context.Context, event string, args plugin.Args) {
	chain := plugin.NewChain()
	defer func() {
		if err := chain.Close(); err != nil {
			slog.WarnContext(ctx, "failed to release plugin instances", "error", err)
		}
	}()
	ctx = plugin.WithChain(ctx, chain)

	first := plugin.NormalizeName(event)
	status := "ok"
	sent := 0
	for {
		res, err := c.manager.Send(ctx, event, args)
		sent++
		printStep(c.out, plugin.NormalizeName(event), res, err)
		if err != nil {
			status = "error"
			errutil.LogErrorContext(ctx, slog.Default(), "event failed", err)
			// Nothing was recorded in the chain, so NextEvent would repeat
			// the previous routing.
			if plugin.IsUndefinedEvent(err) || errors.Is(err, plugin.ErrManagerClosed) {
				break
			}
		}

		next, ok := c.manager.NextEvent(ctx)
		if !ok {
			break
		}
		if sent >= c.maxChain {
			slog.WarnContext(ctx, "call chain truncated",
				"event", first,
				"next", next,
				"max_chain", c.maxChain)
			status = "truncated"
			break
		}
		event = next
	}

	if c.metrics != nil {
		c.metrics.RecordRequest(first, status, sent)
	}
}

// control runs a ':' command.
func (c *controller) control(ctx context.Context, fields []string) error {
	name := strings.TrimPrefix(fields[0], ":")
	if name == "rebuild" {
		repo, err := c.manager.Rebuild(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "rebuilt: %d plugins, %d events\n", len(repo.Plugins()), len(repo.Events()))
		return nil
	}

	if len(fields) != 2 {
		return fmt.Errorf("usage: :%s <plugin>", name)
	}
	id := fields[1]

	var err error
	switch name {
	case "enable":
		err = c.manager.SetActive(ctx, id, true)
	case "disable":
		err = c.manager.SetActive(ctx, id, false)
	case "reset":
		err = c.manager.ResetActive(ctx, id)
	default:
		return fmt.Errorf("unknown command :%s", name)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s: active=%t\n", plugin.NormalizeName(id), c.manager.IsActive(ctx, id))
	return nil
}

// monitorServerErrors cancels ctx when a server reports an error. It exits
// when an error is received, the channel is closed, or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
