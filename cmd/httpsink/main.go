// Package main implements the entry point for the httpsink delivery
// service. It consumes structured records from NATS subjects and delivers
// them in batches to a configured HTTP endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/httpsink/config"
	"github.com/c360/httpsink/metric"
	"github.com/c360/httpsink/natsclient"
	"github.com/c360/httpsink/output/httpsink"
)

const (
	Version = "0.1.0"
	appName = "httpsink"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()

	if cliCfg.showVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}

	// Optional .env for local development; missing file is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(cliCfg.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	if cliCfg.validate {
		slog.Info("Configuration is valid")
		return nil
	}

	slog.Info("Starting httpsink",
		"version", Version,
		"config_path", cliCfg.configPath,
		"target_url", cfg.Output.Sink.URL)

	ctx := context.Background()

	metrics := metric.NewSinkMetrics()
	registry, err := metric.NewRegistry(metrics)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	metricsServer := startMetricsServer(cfg.Metrics.Addr, registry)
	defer shutdownMetricsServer(metricsServer)

	natsClient := natsclient.New(cfg.NATS.ClientConfig(), logger)
	slog.Info("Connecting to NATS", "url", cfg.NATS.URL)
	if err := natsClient.Connect(ctx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer natsClient.Close()

	out, err := httpsink.NewOutput(cfg.Output, natsClient,
		httpsink.WithLogger(logger),
		httpsink.WithMetrics(metrics))
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	if err := out.Initialize(); err != nil {
		return fmt.Errorf("initialize output: %w", err)
	}
	if err := out.Start(ctx); err != nil {
		return fmt.Errorf("start output: %w", err)
	}

	return waitForShutdown(out, cliCfg.shutdownTimeout)
}

// waitForShutdown blocks until SIGINT or SIGTERM, then stops the output.
// Stop forces a final flush of any buffered records; a terminal failure of
// that flush is reported as the process exit error.
func waitForShutdown(out *httpsink.Output, timeout time.Duration) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	slog.Info("Shutdown signal received", "signal", sig.String())

	if err := out.Stop(timeout); err != nil {
		return fmt.Errorf("stop output: %w", err)
	}
	slog.Info("Shutdown complete")
	return nil
}

func startMetricsServer(addr string, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metric.Handler(registry))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("Metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "error", err)
		}
	}()

	return srv
}

func shutdownMetricsServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Warn("Metrics server shutdown failed", "error", err)
	}
}
