// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

package plugin

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("yana/plugin")

// Resolver returns the live instance of a plugin, creating it on first use.
type Resolver func(ctx context.Context, pluginID string) (Instance, error)

// Dispatcher broadcasts one event to an ordered list of implementers.
// It holds no per-call state and is safe for concurrent use.
type Dispatcher struct{}

// NewDispatcher creates a dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Broadcast invokes the implementers of event strictly in the given order.
//
// The aggregate starts as Continue(true). An aborted result stops the
// broadcast and becomes the aggregate. A value returned by a plugin's own
// handler for event replaces the aggregate; a value returned by a catch-all
// handler does not. Plugins exposing neither are skipped. Instances are
// resolved only when their turn comes.
//
// Handler and resolver errors are returned as-is together with the aggregate
// accumulated so far. When ctx ends between two implementers the loop stops
// and the accumulated aggregate is returned with a BROADCAST_INTERRUPTED
// error.
func (d *Dispatcher) Broadcast(ctx context.Context, event string, impls []Implementation, resolve Resolver, args Args) (result Result, err error) {
	start := time.Now()
	status := StatusSuccess

	ctx, span := tracer.Start(ctx, "plugin.broadcast",
		trace.WithAttributes(
			attribute.String("plugin.event", event),
			attribute.Int("plugin.implementers", len(impls)),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.Bool("plugin.aborted", result.Aborted()))
		span.End()
		RecordBroadcast(event, status, time.Since(start))
	}()

	result = Continue(true)
	for i, impl := range impls {
		if ctxErr := ctx.Err(); ctxErr != nil {
			status = StatusInterrupted
			slog.WarnContext(ctx, "broadcast interrupted",
				"event", event,
				"invoked", i,
				"implementers", len(impls),
				"error", ctxErr)
			return result, ErrBroadcastInterrupted(event, i, len(impls), ctxErr)
		}

		inst, resolveErr := resolve(ctx, impl.PluginID)
		if resolveErr != nil {
			status = StatusError
			return result, resolveErr
		}

		call := Call{Event: event, Args: args}
		genuine := false
		switch {
		case inst.HasHandler(event):
			call.Method = event
			genuine = true
		case impl.Method.CatchAll && inst.HasHandler(impl.Method.Name):
			call.Method = impl.Method.Name
		default:
			RecordInvocation(impl.PluginID, StatusSkipped)
			slog.DebugContext(ctx, "plugin has no handler for event",
				"plugin", impl.PluginID,
				"event", event)
			continue
		}

		res, invokeErr := inst.Invoke(ctx, call)
		if invokeErr != nil {
			status = StatusError
			RecordInvocation(impl.PluginID, StatusError)
			slog.WarnContext(ctx, "plugin handler failed",
				"plugin", impl.PluginID,
				"event", event,
				"method", call.Method,
				"error", invokeErr)
			return result, invokeErr
		}

		if res.Aborted() {
			status = StatusAborted
			RecordInvocation(impl.PluginID, StatusAborted)
			span.SetAttributes(attribute.String("plugin.aborted_by", impl.PluginID))
			return Abort(), nil
		}

		RecordInvocation(impl.PluginID, StatusSuccess)
		if genuine {
			result = res
		}
	}

	return result, nil
}
