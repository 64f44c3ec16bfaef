package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/msaqhib/netflix-household-verify/internal/config"
	"github.com/msaqhib/netflix-household-verify/internal/server"
	"github.com/msaqhib/netflix-household-verify/internal/session"
	"github.com/msaqhib/netflix-household-verify/internal/verify"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.LogLevel)

	if !cfg.Account.HasCredentials() {
		logger.Warn("no default mailbox credentials configured, fetch-verification will be unavailable")
	}

	sessions := session.NewStore(logger)
	svc := verify.NewService(cfg, sessions, logger)
	api := server.New(svc, logger)

	listener, port, err := listen(cfg.Server.Port, cfg.Server.GetPortAttempts(), logger)
	if err != nil {
		logger.Error("failed to start server", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{Handler: api}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		logger.Info("server running", "port", port)
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	// Force exit on second signal.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Warn("forced shutdown")
		os.Exit(1)
	}()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}

	sessions.CloseAll()
	logger.Info("server stopped")
}

// listen binds the configured port, trying successive ports when the
// preferred one is busy.
func listen(port, attempts int, logger *slog.Logger) (net.Listener, int, error) {
	var lastErr error
	for i := range attempts {
		candidate := port + i
		l, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(candidate)))
		if err == nil {
			return l, candidate, nil
		}
		lastErr = err
		logger.Warn("port unavailable, trying next", "port", candidate, "error", err)
	}
	return nil, 0, fmt.Errorf("no free port in %d-%d: %w", port, port+attempts-1, lastErr)
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
