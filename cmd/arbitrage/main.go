// Package main is the entry point for the flash-loan arbitrage bot.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/fd1az/flashloan-arb/business/arbitrage"
	arbitrageApp "github.com/fd1az/flashloan-arb/business/arbitrage/app"
	arbitrageDI "github.com/fd1az/flashloan-arb/business/arbitrage/di"
	"github.com/fd1az/flashloan-arb/business/blockchain"
	blockchainDI "github.com/fd1az/flashloan-arb/business/blockchain/di"
	"github.com/fd1az/flashloan-arb/business/execution"
	"github.com/fd1az/flashloan-arb/business/pricing"
	pricingDI "github.com/fd1az/flashloan-arb/business/pricing/di"
	"github.com/fd1az/flashloan-arb/internal/apm"
	"github.com/fd1az/flashloan-arb/internal/config"
	"github.com/fd1az/flashloan-arb/internal/di"
	"github.com/fd1az/flashloan-arb/internal/health"
	"github.com/fd1az/flashloan-arb/internal/logger"
	"github.com/fd1az/flashloan-arb/internal/metrics"
	"github.com/fd1az/flashloan-arb/internal/monolith"
	"github.com/fd1az/flashloan-arb/pkg/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	cliMode := flag.Bool("cli", false, "Run in CLI mode with logs (no TUI)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("flashloan-arb %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// TUI is the default, CLI is for debugging
	tuiMode := !*cliMode

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if !tuiMode {
			fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		}
		cancel()
		if ui.Program != nil {
			ui.Program.Quit()
		}
	}()

	if err := run(ctx, *configPath, tuiMode); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, tuiMode bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Set TUI mode in config so modules know
	cfg.TUIMode = tuiMode

	logLevel := logger.LevelInfo
	switch cfg.App.LogLevel {
	case "debug":
		logLevel = logger.LevelDebug
	case "warn":
		logLevel = logger.LevelWarn
	case "error":
		logLevel = logger.LevelError
	}

	var log *logger.Logger
	if tuiMode {
		// In TUI mode, suppress logs (discard output)
		log = logger.New(io.Discard, logLevel, cfg.App.Name, nil)
	} else {
		log = logger.New(os.Stderr, logLevel, cfg.App.Name, nil)
		log.Info(ctx, "starting flash-loan arbitrage bot",
			"version", version,
			"environment", cfg.App.Environment,
			"execution", cfg.Execution.Enabled,
			"dry_run", cfg.Execution.DryRun,
		)
	}

	if cfg.Telemetry.Enabled {
		traceProvider, err := apm.NewTraceProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
		defer traceProvider.Stop()

		meterProvider, err := metrics.NewMetricProvider(ctx,
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithProviderConfig(metrics.ProviderCfg{Provider: metrics.PrometheusProvider}),
		)
		if err != nil {
			return fmt.Errorf("failed to init metrics: %w", err)
		}
		defer meterProvider.Shutdown(context.Background())

		promServer := metrics.NewPrometheusServer(cfg.Telemetry.PrometheusPort, log)
		promServer.Start(ctx)
		defer promServer.Stop(context.Background())
	}

	mono, err := monolith.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	// Dependency order: blockchain provides heads and gas, pricing the
	// sources, execution the dispatcher the arbitrage pipeline calls.
	modules := []monolith.Module{
		&blockchain.Module{},
		&pricing.Module{},
		&execution.Module{},
		&arbitrage.Module{},
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}

	healthServer := health.NewServer(cfg.Telemetry.HealthPort, version, log)
	registerHealthChecks(healthServer, mono.Services())
	healthServer.Start(ctx)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = healthServer.Stop(stopCtx)
	}()

	if tuiMode {
		// TUI mode: Start modules in background so TUI shows immediately
		startFunc := func() error {
			ui.Send(ui.StartupMsg{Step: "config", Status: "done"})
			ui.Send(ui.StartupMsg{Step: "ethereum", Status: "connecting"})
			if err := mono.StartModules(ctx, modules...); err != nil {
				ui.Send(ui.StartupMsg{Step: "ethereum", Status: "failed", Message: err.Error()})
				return fmt.Errorf("failed to start modules: %w", err)
			}
			ui.Send(ui.StartupMsg{Step: "ethereum", Status: "connected"})
			return arbitrageDI.GetDetector(mono.Services()).Start(ctx)
		}
		stopFunc := func() {
			_ = arbitrageDI.GetDetector(mono.Services()).Stop()
		}
		return runTUI(ctx, startFunc, stopFunc)
	}

	// CLI mode: Start modules synchronously
	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	return runCLI(ctx, arbitrageDI.GetDetector(mono.Services()), log)
}

func registerHealthChecks(s *health.Server, sr di.ServiceRegistry) {
	s.RegisterCheck("ethereum", func(ctx context.Context) (bool, string) {
		svc := blockchainDI.GetBlockchainService(sr)
		return svc.Healthy(), svc.Status().Summary()
	})
	s.RegisterCheck("pricing", func(ctx context.Context) (bool, string) {
		svc := pricingDI.GetPricingService(sr)
		ready, total := svc.ReadyCount(), len(svc.Sources())
		return ready >= 2, fmt.Sprintf("%d/%d sources ready", ready, total)
	})
	if rc := sr.Get(monolith.ServiceRedis).(*redis.Client); rc != nil {
		s.RegisterCheck("redis", func(ctx context.Context) (bool, string) {
			if err := rc.Ping(ctx).Err(); err != nil {
				return false, err.Error()
			}
			return true, ""
		})
	}
}

func runCLI(ctx context.Context, detector *arbitrageApp.Detector, log *logger.Logger) error {
	log.Info(ctx, "all modules started, beginning arbitrage detection")

	if err := detector.Start(ctx); err != nil {
		return fmt.Errorf("failed to start detector: %w", err)
	}

	<-ctx.Done()

	log.Info(ctx, "shutting down")

	if err := detector.Stop(); err != nil {
		log.Error(ctx, "error stopping detector", "error", err)
	}

	return nil
}

func runTUI(ctx context.Context, startFunc func() error, stopFunc func()) error {
	startSignal := make(chan struct{}, 1)
	ui.OnStartModules = func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}

	// Create the program first so the welcome screen shows immediately
	p := tea.NewProgram(ui.New(), tea.WithAltScreen())
	ui.Program = p

	errCh := make(chan error, 1)
	started := make(chan struct{})
	go func() {
		select {
		case <-startSignal:
		case <-ctx.Done():
			errCh <- nil
			return
		}

		if err := startFunc(); err != nil {
			ui.Send(ui.ErrorMsg{Error: err})
			errCh <- err
			return
		}
		close(started)

		<-ctx.Done()
		errCh <- nil
	}()

	_, runErr := p.Run()

	// The program exits on q/ctrl+c without cancelling ctx; stop the
	// detector here so shutdown is the same either way.
	select {
	case <-started:
		stopFunc()
	default:
	}

	if runErr != nil {
		return fmt.Errorf("TUI error: %w", runErr)
	}

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}
