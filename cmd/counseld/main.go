// Counseld is the counseling simulation daemon.
//
// It serves dialogue sessions and record conversions over HTTP, with
// health and Prometheus metrics endpoints.
//
// Configuration comes from a YAML file plus COUNSELSIM_* environment
// variables. See internal/config for details.
//
// Usage:
//
//	# Start with the default config (~/.config/counselsim/config.yaml)
//	counseld
//
//	# Explicit config file
//	counseld -config ./config.yaml
//
//	# Configure via environment
//	COUNSELSIM_SERVER_HTTP_PORT=9000 COUNSELSIM_GATEWAY_PROVIDER=stub counseld
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/counselsim/internal/casedata"
	"github.com/fyrsmithlabs/counselsim/internal/config"
	"github.com/fyrsmithlabs/counselsim/internal/convert"
	"github.com/fyrsmithlabs/counselsim/internal/gateway"
	"github.com/fyrsmithlabs/counselsim/internal/http"
	"github.com/fyrsmithlabs/counselsim/internal/logging"
	"github.com/fyrsmithlabs/counselsim/internal/metrics"
	"github.com/fyrsmithlabs/counselsim/internal/prompt"
	"github.com/fyrsmithlabs/counselsim/internal/session"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "config file path (default ~/.config/counselsim/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  counseld           Start the counseling simulation daemon\n")
			fmt.Fprintf(os.Stderr, "  counseld version   Show version information\n")
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("counseld\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the daemon and blocks until ctx is canceled.
//
//  1. Loads and validates configuration
//  2. Initializes the logger
//  3. Builds the gateway, prompt store, case file, and converter
//  4. Wires the HTTP server and session registry
//  5. Serves until cancellation, then shuts down within the configured
//     timeout
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Encoding)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logging.Sync(logger)
	}()

	logger.Info("starting counseld",
		zap.String("version", version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("provider", cfg.Gateway.Provider),
		zap.String("model", cfg.Gateway.Model),
		logging.Secret("api_key", cfg.Gateway.APIKey),
	)

	deps, err := initDependencies(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing dependencies: %w", err)
	}

	srv, err := http.NewServer(http.Dependencies{
		NewSession: func() *session.Session {
			return session.New(deps.gw, deps.prompts,
				session.WithLogger(logger.Named("session")),
				session.WithMetrics(deps.metrics),
				session.WithTemperature(cfg.Session.Temperature),
			)
		},
		Converter: deps.converter,
		Prompts:   deps.prompts,
		Cases:     deps.cases,
		Metrics:   deps.metrics,
	}, logger.Named("http"), &http.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	if deps.watcher != nil {
		if err := deps.watcher.Start(ctx); err != nil {
			logger.Warn("prompt watcher failed to start", zap.Error(err))
		} else {
			defer deps.watcher.Stop()
			logger.Info("prompt watcher running", zap.String("dir", cfg.Prompts.Dir))
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(
		context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		return err
	}
	return nil
}

// dependencies holds everything the HTTP server is wired with.
type dependencies struct {
	gw        gateway.Gateway
	prompts   *prompt.Store
	watcher   *prompt.Watcher
	cases     *casedata.Source
	converter *convert.Converter
	metrics   *metrics.Metrics
}

// initDependencies builds the gateway, prompt store (with optional file
// watcher), case file, and converter.
func initDependencies(cfg *config.Config, logger *zap.Logger) (*dependencies, error) {
	m := metrics.New()

	gw, err := gateway.New(gateway.Config{
		Provider: cfg.Gateway.Provider,
		BaseURL:  cfg.Gateway.BaseURL,
		APIKey:   cfg.Gateway.APIKey.Value(),
		Model:    cfg.Gateway.Model,
		Timeout:  cfg.Gateway.Timeout.Duration(),
		RateLimit: gateway.RateLimitConfig{
			RequestsPerSecond: cfg.Gateway.RequestsPerSecond,
			Burst:             cfg.Gateway.Burst,
		},
		ScrubOutbound: cfg.Gateway.ScrubOutbound,
	}, logger.Named("gateway"), gateway.WithMetrics(m))
	if err != nil {
		return nil, fmt.Errorf("creating gateway: %w", err)
	}

	prompts, watcher, err := initPrompts(cfg, logger)
	if err != nil {
		return nil, err
	}

	var cases *casedata.Source
	if cfg.Cases.Path != "" {
		cases, err = casedata.Load(cfg.Cases.Path)
		if err != nil {
			return nil, fmt.Errorf("loading case file: %w", err)
		}
		logger.Info("case file loaded",
			zap.String("path", cfg.Cases.Path),
			zap.Int("records", cases.Len()),
		)
	}

	converter := convert.New(gw,
		convert.WithLogger(logger.Named("convert")),
		convert.WithMetrics(m),
		convert.WithTemperature(cfg.Convert.Temperature),
		convert.WithMaxRetries(cfg.Convert.MaxRetries),
	)

	return &dependencies{
		gw:        gw,
		prompts:   prompts,
		watcher:   watcher,
		cases:     cases,
		converter: converter,
		metrics:   m,
	}, nil
}

// initPrompts builds the prompt store from the configured directory, pins
// the conversion system prompt when a file path is configured, and
// prepares the change watcher when enabled.
func initPrompts(cfg *config.Config, logger *zap.Logger) (*prompt.Store, *prompt.Watcher, error) {
	var (
		prompts *prompt.Store
		err     error
	)
	promptLogger := logger.Named("prompt")
	if cfg.Prompts.Dir != "" {
		prompts, err = prompt.NewFromDir(cfg.Prompts.Dir, promptLogger)
		if err != nil {
			return nil, nil, fmt.Errorf("loading prompt directory: %w", err)
		}
	} else {
		prompts = prompt.New(promptLogger)
	}

	if cfg.Convert.SystemPromptPath != "" {
		content, err := os.ReadFile(cfg.Convert.SystemPromptPath)
		if err != nil {
			return nil, nil, fmt.Errorf("reading conversion system prompt: %w", err)
		}
		prompts.SetOverride(prompt.TemplateConvertSystem, string(content))
	}

	var watcher *prompt.Watcher
	if cfg.Prompts.Dir != "" && cfg.Prompts.Watch {
		watcher, err = prompt.NewWatcher(prompts)
		if err != nil {
			return nil, nil, fmt.Errorf("creating prompt watcher: %w", err)
		}
	}

	return prompts, watcher, nil
}
