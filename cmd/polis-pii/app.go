package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/polisai/polis-pii/pkg/config"
	"github.com/polisai/polis-pii/pkg/domain"
	"github.com/polisai/polis-pii/pkg/engine"
	"github.com/polisai/polis-pii/pkg/logging"
	"github.com/polisai/polis-pii/pkg/ner"
	"github.com/polisai/polis-pii/pkg/protect"
	"github.com/polisai/polis-pii/pkg/telemetry"
)

const (
	telemetryShutdownTimeout = 5 * time.Second
	metricsShutdownTimeout   = 5 * time.Second
)

// rootOptions holds the persistent flags.
type rootOptions struct {
	ConfigPath        string
	LogLevel          string
	Pretty            bool
	Seed              int64
	AnnotatorEndpoint string
	MetricsListen     string
	Output            string
}

// app is the wiring shared by every subcommand.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	engine  *engine.Engine
	metrics *telemetry.PromMetrics
	output  string

	shutdownTelemetry func(context.Context) error
	watcher           *config.ReplacementsWatcher
	metricsSrv        *http.Server
}

// buildConfig loads the configuration file and applies flags the user set.
func buildConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = opts.LogLevel
	}
	if flags.Changed("pretty") {
		cfg.Logging.Pretty = opts.Pretty
	}
	if flags.Changed("seed") {
		cfg.Protection.Seed = opts.Seed
	}
	if flags.Changed("annotator-endpoint") {
		cfg.Annotator.Endpoint = opts.AnnotatorEndpoint
	}
	if flags.Changed("metrics-listen") {
		cfg.Metrics.Listen = opts.MetricsListen
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	switch opts.Output {
	case outputJSON, outputYAML:
	default:
		return nil, fmt.Errorf("unsupported output format %q, supported: json, yaml", opts.Output)
	}

	cfg, err := buildConfig(cmd, opts)
	if err != nil {
		return nil, err
	}

	logger := logging.SetupLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
		Output: cmd.ErrOrStderr(),
	})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	shutdown, err := telemetry.SetupProvider(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Environment: cfg.Telemetry.Environment,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry initialization failed: %w", err)
	}

	a := &app{
		cfg:               cfg,
		logger:            logger,
		metrics:           telemetry.NewPromMetrics(),
		output:            opts.Output,
		shutdownTelemetry: shutdown,
	}

	var protectOpts []protect.Option
	if cfg.Protection.Seed != 0 {
		protectOpts = append(protectOpts, protect.WithSeed(cfg.Protection.Seed))
	}
	if path := cfg.Protection.ReplacementsFile; path != "" {
		pools, err := config.LoadReplacements(path)
		if err != nil {
			a.close()
			return nil, err
		}
		protectOpts = append(protectOpts, protect.WithPools(pools))
	}

	var annotator *ner.Adapter
	if cfg.Annotator.Endpoint != "" {
		annotator = ner.NewAdapter(cfg.Annotator.Name, ner.HTTPLoader(ner.HTTPConfig{
			Endpoint:  cfg.Annotator.Endpoint,
			Timeout:   cfg.Annotator.Timeout,
			RateLimit: cfg.Annotator.RateLimit,
			Burst:     cfg.Annotator.Burst,

			BreakerFailures: cfg.Annotator.BreakerFailures,
			BreakerCooldown: cfg.Annotator.BreakerCooldown,
		}), logger)
	}

	a.engine = engine.New(engine.Config{
		Annotator: annotator,
		Protect:   protectOpts,
		Metrics:   a.metrics,
		Logger:    logger,
	})

	logger.Debug("Engine initialized",
		"annotator", cfg.Annotator.Endpoint != "",
		"seeded", cfg.Protection.Seed != 0,
		"replacements_file", cfg.Protection.ReplacementsFile)

	return a, nil
}

// watchReplacements hot-reloads the replacement pools for long-running
// commands.
func (a *app) watchReplacements(ctx context.Context) error {
	path := a.cfg.Protection.ReplacementsFile
	if path == "" {
		return nil
	}

	w, err := config.NewReplacementsWatcher(path,
		func(pools map[domain.Kind][]string) { a.engine.SetPools(pools) },
		a.logger,
		config.WithDebounce(a.cfg.Protection.ReloadDebounce),
		config.WithReloadResult(func(err error) {
			status := "success"
			if err != nil {
				status = "failure"
			}
			a.metrics.RecordPoolReload(status)
		}),
	)
	if err != nil {
		return fmt.Errorf("replacements watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("replacements watcher: %w", err)
	}
	a.watcher = w
	return nil
}

// serveMetrics exposes Prometheus metrics when a listen address is set.
func (a *app) serveMetrics() error {
	if a.cfg.Metrics.Listen == "" {
		return nil
	}

	ln, err := net.Listen("tcp", a.cfg.Metrics.Listen)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	a.metricsSrv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := a.metricsSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics server failed", "error", err)
		}
	}()
	a.logger.Info("Metrics server listening", "address", ln.Addr().String())
	return nil
}

func (a *app) close() {
	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Warn("Replacements watcher stop failed", "error", err)
		}
	}

	if a.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		if err := a.metricsSrv.Shutdown(ctx); err != nil {
			a.logger.Warn("Metrics server shutdown failed", "error", err)
		}
		cancel()
	}

	if a.shutdownTelemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		if err := a.shutdownTelemetry(ctx); err != nil {
			a.logger.Warn("Telemetry shutdown error", "error", err)
		}
		cancel()
	}
}
