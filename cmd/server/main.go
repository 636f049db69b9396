package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dreamup/answer-agent/internal/config"
	"github.com/dreamup/answer-agent/internal/flow"
	"github.com/dreamup/answer-agent/internal/session"
)

const (
	version = "0.1.0"
)

func main() {
	configFile := flag.String("config", "", "Config file")
	flag.Parse()

	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	loader, err := config.NewConfigLoader(configFile)
	if err != nil {
		return err
	}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	// PORT is honoured for container platforms
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	logs := NewLogBuffer(cfg.Server.LogBufferSize)
	logger, closeLog, err := config.NewLogger(cfg.Log, logs)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := func(ctx context.Context, req StartRequest, onCapture func(flow.Captured)) (Runner, error) {
		sessionCfg := *cfg
		if req.URL != "" {
			sessionCfg.Session.StartURL = req.URL
		}
		if req.MaxIterations != nil {
			sessionCfg.Flow.MaxIterations = *req.MaxIterations
		}
		if err := loader.ValidateSession(&sessionCfg); err != nil {
			return nil, err
		}
		sess, err := session.Start(ctx, &sessionCfg, logger, onCapture)
		if err != nil {
			return nil, err
		}
		return sess, nil
	}

	server := NewServer(ctx, start, logs, logger)

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      server.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("answer agent control server starting",
			"version", version,
			"addr", srv.Addr,
			"store_backend", cfg.Store.Backend)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server")

	// Graceful shutdown: let a running session finish its question and flush
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if server.StopSession() {
		if err := server.Wait(shutdownCtx); err != nil {
			logger.Warn("session did not stop in time, cancelling", "error", err)
			cancel()
		}
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
