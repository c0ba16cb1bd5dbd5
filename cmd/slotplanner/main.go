/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/friendsincode/slotplanner/internal/config"
	"github.com/friendsincode/slotplanner/internal/db"
	"github.com/friendsincode/slotplanner/internal/eventstore"
	"github.com/friendsincode/slotplanner/internal/logbuffer"
	"github.com/friendsincode/slotplanner/internal/logging"
	"github.com/friendsincode/slotplanner/internal/server"
	"github.com/friendsincode/slotplanner/internal/telemetry"
	"github.com/friendsincode/slotplanner/internal/templates"
	"github.com/friendsincode/slotplanner/internal/version"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:          "slotplanner",
	Short:        "Slot Planner - event slot scheduling",
	Long:         "Slot Planner manages the time slots of events: performances, setup, breaks and teardown, plus reusable slot templates.",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Get()
		fmt.Fprintf(cmd.OutOrStdout(), "slotplanner %s (%s) %s\n", info.Version, info.Commit, info.GoVersion)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = logging.Setup(cfg.Environment, cfg.LogLevel)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	logBuf := logbuffer.New(logbuffer.DefaultCapacity)
	logger = logging.SetupWithCapture(cfg.Environment, cfg.LogLevel, logbuffer.NewWriter(logBuf))

	logger.Info().Str("version", version.Version).Msg("slot planner starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerProvider, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{
		ServiceName:    "slotplanner",
		ServiceVersion: version.Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	srv, err := server.New(cfg, logBuf, logger)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}

	httpServer := srv.HTTPServer()
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error().Err(err).Msg("http server error")
	}

	logger.Info().Msg("shutting down gracefully...")

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := srv.Close(); err != nil {
		logger.Error().Err(err).Msg("shutdown cleanup failed")
	}

	logger.Info().Msg("slot planner stopped")
	return nil
}

// initDatabase connects and migrates the configured database.
func initDatabase() (*gorm.DB, error) {
	database, err := db.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(database); err != nil {
		_ = db.Close(database)
		return nil, err
	}
	return database, nil
}

// stores opens the event store and template repository used by the
// offline commands. The returned func releases both.
func stores(ctx context.Context) (*eventstore.Store, *templates.Store, func(), error) {
	database, err := initDatabase()
	if err != nil {
		return nil, nil, nil, err
	}
	closers := []func() error{func() error { return db.Close(database) }}

	var kv templates.KV
	switch cfg.TemplateBackend {
	case config.TemplatesRedis:
		redisKV, err := templates.NewRedisKV(ctx, templates.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			_ = db.Close(database)
			return nil, nil, nil, err
		}
		closers = append(closers, redisKV.Close)
		kv = redisKV
	case config.TemplatesMemory:
		logger.Warn().Msg("memory template backend does not persist across commands")
		kv = templates.NewMemoryKV()
	default:
		kv = templates.NewSQLKV(database)
	}

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn().Err(err).Msg("close failed")
			}
		}
	}
	return eventstore.New(database, logger), templates.NewStore(kv, cfg.TemplateKey, logger), cleanup, nil
}
