package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/GriffinCanCode/agentshell/internal/api/middleware"
	"github.com/GriffinCanCode/agentshell/internal/infrastructure/config"
	"github.com/GriffinCanCode/agentshell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/agentshell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/agentshell/internal/infrastructure/server"
	"github.com/GriffinCanCode/agentshell/internal/providers/terminal"
	"github.com/GriffinCanCode/agentshell/internal/service"
)

const clearSequence = "\x1b[H\x1b[2J"

func main() {
	workspace := flag.String("workspace", ".", "Workspace root for the shell session")
	dev := flag.Bool("dev", false, "Development logging")
	logLevel := flag.String("log-level", "", "Log level override (debug, info, warn, error)")
	flag.Parse()

	if err := run(*workspace, *dev, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "agentshell: %v\n", err)
		os.Exit(1)
	}
}

func run(workspace string, dev bool, logLevel string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if dev {
		cfg.Logging.Development = true
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger := logging.NewFromLevel(cfg.Logging.Level, cfg.Logging.Development)
	defer logger.Sync()

	root, err := filepath.Abs(workspace)
	if err != nil {
		return fmt.Errorf("workspace root: %w", err)
	}

	if cols, rows, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		cfg.Terminal.Cols, cfg.Terminal.Rows = cols, rows
	}

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	manager := terminal.NewManager(terminal.Options{
		Config:  cfg,
		Logger:  logger.Logger,
		Metrics: metrics,
		ClearScreen: func() {
			fmt.Fprint(os.Stdout, clearSequence)
		},
	})
	defer manager.Close()

	if _, err := manager.Open(root); err != nil {
		return err
	}

	registry := service.NewRegistry()
	if err := registry.Register(terminal.NewProvider(manager, root)); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	stopResize := watchResize(manager, logger)
	defer stopResize()

	if cfg.Metrics.Addr != "" {
		srv := server.NewServer(server.Options{
			Addr:        cfg.Metrics.Addr,
			Development: cfg.Logging.Development,
			CORSOrigins: cfg.Metrics.CORSOrigins,
			RateLimit: middleware.RateLimitConfig{
				RequestsPerSecond: cfg.Metrics.ExecuteRPS,
				Burst:             cfg.Metrics.ExecuteBurst,
			},
			Manager:  manager,
			Registry: registry,
			Gatherer: reg,
			Metrics:  metrics,
			Logger:   logger,
		})
		go func() {
			if err := srv.Run(); err != nil {
				logger.Error("Debug server failed", zap.Error(err))
			}
		}()
		defer srv.Shutdown(context.Background())
	}

	r, err := newREPL(manager, root, os.Stdout)
	if err != nil {
		return err
	}
	return r.loop(ctx)
}
