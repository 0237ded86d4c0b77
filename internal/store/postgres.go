// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yana Framework Contributors

// Package store provides persistence for plugin activation overrides.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// poolIface is the subset of pgxpool.Pool used by the store. pgxmock
// implements it for unit tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RetryPolicy bounds retries of transient database failures.
type RetryPolicy struct {
	Base       time.Duration
	MaxRetries uint64
}

// DefaultRetryPolicy retries three times starting at 50ms.
var DefaultRetryPolicy = RetryPolicy{Base: 50 * time.Millisecond, MaxRetries: 3}

func (p RetryPolicy) backoff() retry.Backoff {
	base := p.Base
	if base <= 0 {
		base = DefaultRetryPolicy.Base
	}
	return retry.WithMaxRetries(p.MaxRetries, retry.WithJitterPercent(20, retry.NewExponential(base)))
}

// Connect opens a pgx pool and waits until the database answers a ping.
func Connect(ctx context.Context, dsn string, policy RetryPolicy) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	err = retry.Do(ctx, policy.backoff(), func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}
	return pool, nil
}

// transient reports whether err is worth retrying: connection failures,
// serialization conflicts, deadlocks and admin shutdowns.
func transient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgerrcode.IsConnectionException(pgErr.Code) ||
			pgErr.Code == pgerrcode.SerializationFailure ||
			pgErr.Code == pgerrcode.DeadlockDetected ||
			pgErr.Code == pgerrcode.AdminShutdown ||
			pgErr.Code == pgerrcode.CannotConnectNow
	}
	return pgconn.SafeToRetry(err)
}

// withRetry runs fn, retrying transient failures under policy.
func withRetry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, policy.backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && transient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
