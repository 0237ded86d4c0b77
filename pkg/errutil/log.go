// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

// Package errutil logs and asserts oops errors.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs err at error level with its oops code and context.
func LogError(logger *slog.Logger, msg string, err error) {
	logAt(context.Background(), logger, slog.LevelError, msg, err)
}

// LogWarn logs err at warning level with its oops code and context.
func LogWarn(logger *slog.Logger, msg string, err error) {
	logAt(context.Background(), logger, slog.LevelWarn, msg, err)
}

// LogErrorContext is LogError carrying ctx to the handler, so trace and
// chain ids are attached.
func LogErrorContext(ctx context.Context, logger *slog.Logger, msg string, err error) {
	logAt(ctx, logger, slog.LevelError, msg, err)
}

func logAt(ctx context.Context, logger *slog.Logger, level slog.Level, msg string, err error) {
	attrs := Attrs(err)
	logger.Log(ctx, level, msg, attrs...)
}

// Attrs returns slog key/value pairs describing err. For oops errors these
// include the code and context map.
func Attrs(err error) []any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return []any{"error", err}
	}
	attrs := []any{"error", oopsErr.Error()}
	if code := oopsErr.Code(); code != nil && code != "" {
		attrs = append(attrs, "code", code)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	return attrs
}
