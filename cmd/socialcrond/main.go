package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"socialcron/internal/api"
	"socialcron/internal/config"
	"socialcron/internal/core"
	"socialcron/internal/driver"
	"socialcron/internal/logging"
	socialcronmcp "socialcron/internal/mcp"
	"socialcron/internal/notify"
	"socialcron/internal/store"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	logger := logging.New(cfg.Log.Level)

	baseCtx := context.Background()
	storeInst, err := store.Open(baseCtx, cfg.StateDir)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer storeInst.DB.Close()

	location := time.Local
	if cfg.UseUTC {
		location = time.UTC
	}

	drivers := driver.NewFactory(driver.Config{
		ServerURL:   cfg.Appium.ServerURL,
		DeviceName:  cfg.Appium.DeviceName,
		WaitTimeout: cfg.Appium.ElementWait,
	}, logger)

	var notifier notify.Notifier = &notify.NoOpNotifier{}
	if cfg.Notification.Bark.Enabled {
		bark, err := notify.NewBarkNotifier(cfg.Notification.Bark.URL)
		if err != nil {
			logger.Error("configure bark notifier", "err", err)
			os.Exit(1)
		}
		notifier = bark
	}

	engine := core.NewEngine(storeInst, storeInst, drivers, logger)
	scheduler := core.NewScheduler(storeInst, engine, notifier, logger, location)

	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	scheduler.Start(ctx)
	if err := scheduler.Initialize(ctx); err != nil {
		logger.Error("initialize scheduler", "err", err)
	}

	switch cfg.Mode {
	case "http", "":
		runHTTPMode(cfg, storeInst, scheduler, logger, location)
	case "mcp":
		runMCPMode(storeInst, scheduler, logger, location, cancel)
	case "both":
		runBothMode(cfg, storeInst, scheduler, logger, location)
	default:
		logger.Error("invalid mode", "mode", cfg.Mode, "valid", []string{"http", "mcp", "both"})
		os.Exit(1)
	}
}

// runHTTPMode starts only the HTTP server.
func runHTTPMode(cfg *config.Config, storeInst *store.Store, scheduler *core.Scheduler, logger *slog.Logger, location *time.Location) {
	server := api.NewServer(cfg.Server.Addr, cfg.Server.AuthToken, storeInst, scheduler, logger, location)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("received signal", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "err", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "err", err)
	}
	scheduler.Stop()
}

// runMCPMode starts only the MCP server on stdio.
func runMCPMode(storeInst *store.Store, scheduler *core.Scheduler, logger *slog.Logger, location *time.Location, cancel context.CancelFunc) {
	mcpServer := socialcronmcp.NewMCPServer(storeInst, scheduler, logger, location)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs
		logger.Info("received signal, shutting down...")
		scheduler.Stop()
		cancel()
	}()

	if err := mcpServer.Run(); err != nil {
		logger.Error("mcp server error", "err", err)
		os.Exit(1)
	}
}

// runBothMode starts both HTTP and MCP servers.
func runBothMode(cfg *config.Config, storeInst *store.Store, scheduler *core.Scheduler, logger *slog.Logger, location *time.Location) {
	mcpServer := socialcronmcp.NewMCPServer(storeInst, scheduler, logger, location)
	mcpErr := make(chan error, 1)
	go func() {
		if err := mcpServer.Run(); err != nil {
			mcpErr <- err
		}
	}()

	server := api.NewServer(cfg.Server.Addr, cfg.Server.AuthToken, storeInst, scheduler, logger, location)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("received signal", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "err", err)
	case err := <-mcpErr:
		logger.Error("mcp server error", "err", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "err", err)
	}
	scheduler.Stop()

	logger.Info("shutdown complete")
}
