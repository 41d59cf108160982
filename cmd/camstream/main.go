// Package main implements the entry point for the Camstream daemon.
// Camstream maintains a live session against a network camera server,
// mirrors its camera configuration, follows its event stream, and exposes
// what it sees through structured logs and Prometheus metrics.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/camstream/config"
	"github.com/c360/camstream/health"
	"github.com/c360/camstream/metric"
	"github.com/c360/camstream/spy"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "camstream"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	// Run application with proper error handling
	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	// Parse and validate CLI flags
	cliCfg, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	// Load and validate configuration
	cfg, err := initializeConfiguration(cliCfg)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	// Rebuild the logger now that the configuration can fill in what the
	// flags left unset
	logger := setupLogger(effectiveLogging(cliCfg, cfg))
	slog.SetDefault(logger)

	// Metrics registry first; the session records into it
	var registry *metric.MetricsRegistry
	if cfg.Metrics.Enabled {
		registry = metric.NewMetricsRegistry()
	}

	session, err := setupSession(cfg, logger, registry)
	if err != nil {
		return err
	}

	var metricsServer *metric.Server
	if registry != nil {
		metricsServer = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
		metricsServer.SetHealthHandler(health.Handler(session.Health))
		slog.Info("Metrics server configured", "address", metricsServer.Address())
	}

	// Run application with signal handling
	return runWithSignalHandling(context.Background(), session, metricsServer, cliCfg.ShutdownTimeout)
}

// initializeCLI parses flags and sets up bootstrap logging
func initializeCLI() (*CLIConfig, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, true, nil
	}

	if cliCfg.ShowHelp {
		printHelp()
		return nil, true, nil
	}

	// Bootstrap logger so configuration loading itself gets logged; the
	// configuration may adjust level and format afterwards
	level, format := cliCfg.LogLevel, cliCfg.LogFormat
	if level == "" {
		level = config.LogLevelInfo
	}
	if format == "" {
		format = config.LogFormatJSON
	}
	slog.SetDefault(setupLogger(level, format))

	slog.Info("Starting Camstream (camera server client)",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, false, nil
}

// initializeConfiguration loads and validates configuration
func initializeConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	cfg, err := loadConfig(cliCfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// effectiveLogging resolves the logging settings: explicit flags win, then
// the configuration file, then the defaults.
func effectiveLogging(cliCfg *CLIConfig, cfg *config.Config) (level, format string) {
	level, format = cfg.Logging.Level, cfg.Logging.Format
	if cliCfg.LogLevel != "" {
		level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		format = cliCfg.LogFormat
	}
	if level == "" {
		level = config.LogLevelInfo
	}
	if format == "" {
		format = config.LogFormatJSON
	}
	return level, format
}

// setupSession builds the camera session with logging callouts
func setupSession(cfg *config.Config, logger *slog.Logger, registry *metric.MetricsRegistry) (*spy.Session, error) {
	opts := []spy.SessionOption{
		spy.WithCallouts(eventCallouts(logger)),
		spy.WithLogger(logger),
		spy.WithTap(cfg.Tap),
	}
	if registry != nil {
		opts = append(opts, spy.WithMetrics(registry.CoreMetrics()))
	}

	session, err := spy.NewSession(cfg.Server, opts...)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	slog.Info("Session configured", "server", cfg.Address(), "tap", cfg.Tap.Enabled)
	return session, nil
}

// runWithSignalHandling starts the session and handles shutdown signals
func runWithSignalHandling(
	ctx context.Context,
	session *spy.Session,
	metricsServer *metric.Server,
	shutdownTimeout time.Duration,
) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	g, gctx := errgroup.WithContext(signalCtx)
	if metricsServer != nil {
		g.Go(func() error {
			if err := metricsServer.Start(); err != nil {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return metricsServer.Stop()
		})
	}

	slog.Info("Starting camera session")
	if err := session.Start(gctx); err != nil {
		signalCancel()
		_ = g.Wait()
		return fmt.Errorf("start session: %w", err)
	}
	slog.Info("Camstream started successfully (camera session running)")

	<-gctx.Done()
	slog.Info("Received shutdown signal")

	return shutdown(session, g, shutdownTimeout)
}

// shutdown performs graceful shutdown of the session and the metrics server
func shutdown(session *spy.Session, g *errgroup.Group, timeout time.Duration) error {
	if err := session.Stop(timeout); err != nil {
		slog.Error("Error stopping session", "error", err)
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("Camstream shutdown complete")
	return nil
}

// printHelp prints help information
func printHelp() {
	printDetailedHelp()
}

// loadConfig loads configuration from the specified file path
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	cfg, err := loader.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
