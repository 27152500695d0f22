// accept-portal-dialog - Portal Permission Dialog Auto-Accepter
// Copyright (c) 2025 Deskflow Developers
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/godbus/dbus/v5"

	"github.com/deskflow/accept-portal-dialog/internal/config"
	"github.com/deskflow/accept-portal-dialog/internal/desktop"
	"github.com/deskflow/accept-portal-dialog/internal/logging"
	"github.com/deskflow/accept-portal-dialog/internal/watcher"
	"github.com/deskflow/accept-portal-dialog/internal/ydotool"
	"github.com/deskflow/accept-portal-dialog/pkg/version"
)

func main() {
	// Parse command line flags
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		configPath  = flag.String("config", "", "Path to the config file")
		debug       = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	// Show version
	if *showVersion {
		fmt.Println(version.Get().String())
		os.Exit(0)
	}

	// Setup logging
	logger := logging.Setup(logging.Config{Debug: *debug})

	if err := run(*configPath, *debug, logger); err != nil {
		logger.Error("accept-portal-dialog failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, debug bool, logger *slog.Logger) error {
	logger.Info("starting accept-portal-dialog", "version", version.Get().Version)

	// Load configuration
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	cfg, err := config.Load(configPath, logger)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// The config file can turn debug logging on even when the flag did not.
	if cfg.Program.VerboseLogging && !debug {
		logger = logging.Setup(logging.Config{Debug: true})
		logger.Debug("verbose logging enabled by config file")
	}

	variant, err := desktop.Detect()
	if err != nil {
		return err
	}
	logger.Info("detected desktop", "desktop", variant.String())

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("connecting to session bus: %w", err)
	}
	defer conn.Close()

	backend, lock, err := desktop.New(ctx, variant, conn, logger)
	if err != nil {
		return err
	}

	// Make sure the key injection daemon is up before watching.
	client := ydotool.NewClient(cfg.Program.SocketPath, logger)
	supervisor := ydotool.NewSupervisor(cfg.Program.SocketPath, client, logger)
	if err := supervisor.EnsureReady(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("preparing ydotool daemon: %w", err)
	}

	player := ydotool.NewPlayer(client, cfg.Program.SequenceKeySleep, logger)

	w, err := watcher.New(cfg, variant, backend, lock, player, logger)
	if err != nil {
		return err
	}

	return w.Run(ctx)
}
