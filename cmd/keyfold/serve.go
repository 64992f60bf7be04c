// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/keyfold/keyfold/internal/auth"
	"github.com/keyfold/keyfold/internal/auth/memory"
	authpg "github.com/keyfold/keyfold/internal/auth/postgres"
	"github.com/keyfold/keyfold/internal/config"
	"github.com/keyfold/keyfold/internal/logging"
	"github.com/keyfold/keyfold/internal/observability"
	"github.com/keyfold/keyfold/internal/store"
	"github.com/keyfold/keyfold/internal/web"
	"github.com/keyfold/keyfold/pkg/errutil"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication service",
		Long: `Start the HTTP authentication API together with the metrics and
health endpoints. The user store backend is either in-memory (volatile,
for development) or PostgreSQL.`,
		RunE: runServe,
	}

	flags := cmd.Flags()
	flags.String("listen", ":8080", "HTTP listen address")
	flags.String("metrics-listen", ":9100", "metrics and health listen address")
	flags.String("store", config.StoreMemory, "user store backend (memory or postgres)")
	flags.String("database-url", "", "PostgreSQL connection string")
	flags.String("log-format", "json", "log output format (json or text)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Flags(), configFile)
	if err != nil {
		return err
	}

	logging.SetDefault("keyfold", version, cfg.LogFormat)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var userStore auth.UserStore
	if cfg.Store == config.StorePostgres {
		pool, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		userStore = authpg.NewUserStore(pool)
	} else {
		logger.Warn("using in-memory user store, data will not survive restarts")
		userStore = memory.NewUserStore()
	}

	svc, err := auth.NewServiceWithLogger(userStore, auth.NewArgon2idHasher(), logger)
	if err != nil {
		return err
	}

	var ready atomic.Bool
	obs := observability.NewServer(cfg.MetricsListen, func() bool { return ready.Load() })
	obsErrCh, err := obs.Start()
	if err != nil {
		return err
	}

	webSrv, err := web.NewServer(cfg.Listen, svc, obs.Metrics(), logger)
	if err != nil {
		stopServer(obs.Stop, logger, "observability")
		return err
	}
	webErrCh, err := webSrv.Start()
	if err != nil {
		stopServer(obs.Stop, logger, "observability")
		return err
	}

	ready.Store(true)
	logger.Info("keyfold ready", "listen", webSrv.Addr(), "metrics", obs.Addr(), "store", cfg.Store)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err = <-webErrCh:
		if err != nil {
			errutil.LogError(logger, "web server failed", err)
		}
	case err = <-obsErrCh:
		if err != nil {
			errutil.LogError(logger, "observability server failed", err)
		}
	}

	ready.Store(false)
	stopServer(webSrv.Stop, logger, "web")
	stopServer(obs.Stop, logger, "observability")
	return err
}

func stopServer(stop func(context.Context) error, logger *slog.Logger, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := stop(ctx); err != nil {
		errutil.LogError(logger, name+" server shutdown failed", err)
	}
}
