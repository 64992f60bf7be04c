// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

// Package store manages the PostgreSQL connection pool and schema migrations.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

const (
	pingBaseBackoff = 500 * time.Millisecond
	pingMaxRetries  = 5
)

// Open creates a connection pool and verifies connectivity with a ping.
// The ping is retried with exponential backoff so the service survives a
// database that is still coming up.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("STORE_OPEN_FAILED").
			With("operation", "create connection pool").
			Wrap(err)
	}

	backoff := retry.WithMaxRetries(pingMaxRetries, retry.NewExponential(pingBaseBackoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("STORE_PING_FAILED").
			With("operation", "ping database").
			Wrap(err)
	}

	return pool, nil
}
