package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kestrelpay/kestrel/internal/api"
	"github.com/kestrelpay/kestrel/internal/config"
	"github.com/kestrelpay/kestrel/internal/gateway"
	"github.com/kestrelpay/kestrel/internal/loadgen"
	"github.com/kestrelpay/kestrel/internal/logging"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(); err != nil {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	case "loadtest":
		if err := runLoadTest(); err != nil {
			slog.Error("loadtest error", "error", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("kestrel %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: kestrel <command>

Commands:
  serve     Start the HTTP server
  loadtest  Drive a synthetic payment batch through an in-process gateway
  version   Print version information
`)
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logCloser, err := logging.Setup(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logCloser.Close()

	slog.Info("starting kestrel",
		"version", version,
		"port", cfg.Port,
		"routingStrategy", cfg.RoutingStrategy,
		"logLevel", cfg.LogLevel,
	)

	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to build gateway: %w", err)
	}
	defer gw.Close()

	slog.Info("gateway initialized", "auditDir", cfg.AuditDir)

	api.Version = version
	router := api.NewRouter(api.Dependencies{
		Gateway: gw,
		Loadgen: loadgen.New(gw, cfg.LoadgenConcurrency),
		Config:  cfg,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("initiating graceful shutdown", "timeout", config.ShutdownTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if err := gw.Close(); err != nil {
		slog.Warn("gateway close error", "error", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

func runLoadTest() error {
	fs := flag.NewFlagSet("loadtest", flag.ExitOnError)
	count := fs.Int("count", 100, "Number of payments to submit")
	concurrency := fs.Int("concurrency", 0, "Worker count (default: from config)")
	fs.Parse(os.Args[2:])

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logCloser, err := logging.Setup(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logCloser.Close()

	if *concurrency <= 0 {
		*concurrency = cfg.LoadgenConcurrency
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to build gateway: %w", err)
	}
	defer gw.Close()

	slog.Info("starting load test", "count", *count, "concurrency", *concurrency)

	summary := loadgen.New(gw, *concurrency).Run(context.Background(), *count)

	fmt.Printf("total:    %d\n", summary.Total)
	fmt.Printf("approved: %d\n", summary.Approved)
	fmt.Printf("declined: %d\n", summary.Declined)
	fmt.Printf("errors:   %d\n", summary.Errors)
	fmt.Printf("attempts: %d\n", summary.TotalAttempts)
	fmt.Printf("duration: %.1fms\n", summary.DurationMS)
	return nil
}
