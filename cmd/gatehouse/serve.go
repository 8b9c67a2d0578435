// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/auth"
	authpg "github.com/gatehouse/gatehouse/internal/auth/postgres"
	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/control"
	"github.com/gatehouse/gatehouse/internal/logging"
	"github.com/gatehouse/gatehouse/internal/observability"
	"github.com/gatehouse/gatehouse/internal/store"
	"github.com/gatehouse/gatehouse/internal/web"
	"github.com/gatehouse/gatehouse/internal/xdg"
)

// sessionSweepInterval is how often expired sessions are purged from the
// store while the server runs.
const sessionSweepInterval = time.Hour

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Gatehouse server",
		Long: `Start the Gatehouse server: the web server with the login, register
and dashboard routes, plus the metrics and control endpoints.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}

	cmd.Flags().String("http-addr", config.DefaultHTTPAddr, "web server listen address")
	cmd.Flags().String("metrics-addr", config.DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("control-addr", config.DefaultControlAddr, "control gRPC listen address (empty = disabled)")
	cmd.Flags().String("database-url", "", "PostgreSQL connection URL (default: DATABASE_URL env)")
	cmd.Flags().String("log-format", config.DefaultLogFormat, "log format (json or text)")
	cmd.Flags().String("cookie-name", config.DefaultCookieName, "session cookie name")
	cmd.Flags().Bool("cookie-secure", false, "mark the session cookie HTTPS-only")

	return cmd
}

// runServeWithDeps starts the server with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}

	// Set up default factories
	if deps.ConfigLoader == nil {
		deps.ConfigLoader = config.Load
	}
	if deps.PoolFactory == nil {
		deps.PoolFactory = store.Connect
	}
	if deps.MigrateRunner == nil {
		deps.MigrateRunner = runMigrations
	}
	if deps.WebServerFactory == nil {
		deps.WebServerFactory = func(addr string, svc web.AuthService, cookie web.CookieConfig, logger *slog.Logger) (WebServer, error) {
			return web.NewServer(addr, svc, cookie, logger)
		}
	}
	if deps.ControlServerFactory == nil {
		deps.ControlServerFactory = func(component string) (ControlServer, error) {
			return control.NewGRPCServer(component)
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}

	configPath := configFile
	if configPath == "" {
		configPath = xdg.DefaultConfigFile()
	}

	cfg, err := deps.ConfigLoader(configPath, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logging.SetDefault("gatehouse", version, cfg.LogFormat)

	slog.Info("starting gatehouse",
		"http_addr", cfg.HTTPAddr,
		"log_format", cfg.LogFormat,
	)

	// Apply migrations before taking traffic.
	if err := deps.MigrateRunner(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	pool, err := deps.PoolFactory(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	slog.Info("connected to database")

	authService, err := auth.NewServiceWithLogger(
		authpg.NewUserRepository(pool),
		authpg.NewSessionRepository(pool),
		auth.NewArgon2idHasher(),
		slog.Default(),
	)
	if err != nil {
		return fmt.Errorf("failed to create auth service: %w", err)
	}

	webServer, err := deps.WebServerFactory(cfg.HTTPAddr, authService, web.CookieConfig{
		Name:   cfg.CookieName,
		Secure: cfg.CookieSecure,
	}, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create web server: %w", err)
	}

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	webErrChan, err := webServer.Start()
	if err != nil {
		return fmt.Errorf("failed to start web server: %w", err)
	}
	go monitorServerErrors(ctx, cancel, webErrChan, "web")

	// Start control gRPC server if configured
	var controlServer ControlServer
	if cfg.ControlAddr != "" {
		controlServer, err = deps.ControlServerFactory("gatehouse")
		if err != nil {
			return fmt.Errorf("failed to create control gRPC server: %w", err)
		}
		controlErrChan, startErr := controlServer.Start(cfg.ControlAddr)
		if startErr != nil {
			stopServers(nil, nil, webServer)
			return fmt.Errorf("failed to start control gRPC server: %w", startErr)
		}
		go monitorServerErrors(ctx, cancel, controlErrChan, "control-grpc")
		slog.Info("control gRPC server started", "addr", cfg.ControlAddr)
	}

	// Start observability server if configured
	var obsServer ObservabilityServer
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, func() bool {
			pingCtx, pingCancel := context.WithTimeout(context.Background(), time.Second)
			defer pingCancel()
			return pool.Ping(pingCtx) == nil
		})
		obsErrChan, startErr := obsServer.Start()
		if startErr != nil {
			stopServers(controlServer, nil, webServer)
			return fmt.Errorf("failed to start observability server: %w", startErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		slog.Info("observability server started", "addr", obsServer.Addr())
	}

	// Purge expired sessions periodically while running
	go sweepSessions(ctx, authService)

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Gatehouse started")
	slog.Info("gatehouse ready", "http_addr", webServer.Addr())

	// Wait for shutdown signal or server failure
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	// Graceful shutdown
	slog.Info("shutting down...")
	stopServers(controlServer, obsServer, webServer)
	slog.Info("shutdown complete")
	return nil
}

// runMigrations applies all pending migrations.
func runMigrations(databaseURL string) error {
	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Debug("error closing migrator", "error", closeErr)
		}
	}()
	return migrator.Up()
}

// sweepSessions deletes expired sessions on a fixed interval until the
// context is cancelled.
func sweepSessions(ctx context.Context, svc *auth.Service) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := svc.SweepExpiredSessions(ctx)
			if err != nil {
				slog.Warn("session sweep failed", "error", err)
				continue
			}
			if deleted > 0 {
				slog.Info("purged expired sessions", "count", deleted)
			}
		}
	}
}

// stopServers shuts down the servers that are non-nil, web first so no new
// sessions are issued while the support servers wind down.
func stopServers(controlServer ControlServer, obsServer ObservabilityServer, webServer WebServer) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if webServer != nil {
		if err := webServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping web server", "error", err)
		}
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}
	if controlServer != nil {
		if err := controlServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping control gRPC server", "error", err)
		}
	}
}

// monitorServerErrors monitors a server's error channel and cancels the context on error.
// This ensures that server failures trigger graceful shutdown of the entire process.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
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
		// Context cancelled, exit monitoring
	}
}
