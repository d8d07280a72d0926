// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

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

	"github.com/tomtom215/circulation/docs"
	"github.com/tomtom215/circulation/internal/api"
	"github.com/tomtom215/circulation/internal/app"
	"github.com/tomtom215/circulation/internal/config"
	"github.com/tomtom215/circulation/internal/httpclient"
	"github.com/tomtom215/circulation/internal/logging"
	"github.com/tomtom215/circulation/internal/supervisor"
	"github.com/tomtom215/circulation/internal/supervisor/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logging is not configured yet.
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logConfig(cfg))
	api.Version = version
	httpclient.Version = version
	docs.SwaggerInfo.Version = version

	logging.Info().
		Str("database", cfg.Database.Driver).
		Str("credentials", cfg.Credentials.Backend).
		Bool("monitor", cfg.Monitor.Enabled).
		Msg("Starting Palace Circulation")

	if path := config.ConfigFile(); path != "" {
		if err := config.WatchConfigFile(path, reloadLogging); err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Config file changes will need a restart")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Error().Err(err).Msg("Server stopped with error")
		stop()
		os.Exit(1)
	}
	logging.Info().Msg("Application stopped gracefully")
}

func logConfig(cfg *config.Config) logging.Config {
	return logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Service:   "circulation",
		Version:   version,
	}
}

// reloadLogging applies logging changes from the config file. Everything
// else needs a restart.
func reloadLogging(cfg *config.Config, err error) {
	if err != nil {
		logging.Warn().Err(err).Msg("Ignoring invalid config file change")
		return
	}
	logging.Init(logConfig(cfg))
	logging.Info().Str("level", cfg.Logging.Level).Msg("Logging configuration reloaded")
}

func run(ctx context.Context, cfg *config.Config) error {
	components, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer func() {
		if err := components.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close resources")
		}
	}()
	logging.Info().
		Int64("collection_id", components.Collection.ID).
		Str("collection", components.Collection.Name).
		Msg("Collection ready")

	authMW, err := api.NewAuthMiddleware(&cfg.Security)
	if err != nil {
		return fmt.Errorf("configure authentication: %w", err)
	}
	if cfg.Security.AuthDisabled {
		logging.Warn().Msg("Authentication disabled (AUTH_DISABLED=true); every request runs as staff")
	}

	opts := []api.HandlerOption{
		api.WithMonitor(components.Monitor),
		api.WithDebug(cfg.Server.Debug),
	}
	if components.DB != nil {
		opts = append(opts, api.WithDatabase(components.DB))
	}
	handler := api.NewHandler(components.Store, components.Overdrive, components.Shelf, opts...)
	router := api.NewRouter(handler, authMW, cfg.Security)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       120 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	if cfg.Monitor.Enabled {
		tree.AddVendorService(services.NewMonitorService(components.Monitor, cfg.Monitor.Interval))
		logging.Info().Dur("interval", cfg.Monitor.Interval).Msg("Circulation monitor service added")
	} else {
		logging.Info().Msg("Circulation monitor disabled (MONITOR_ENABLED=false)")
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	var serveErr error
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			serveErr = err
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("supervised", svc.Name).Msg("Service failed to stop")
	}
	return serveErr
}
