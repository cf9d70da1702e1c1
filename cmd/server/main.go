package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/decisio/internal/application"
	"github.com/JonMunkholm/decisio/internal/config"
	"github.com/JonMunkholm/decisio/internal/logging"
	"github.com/JonMunkholm/decisio/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"backend", cfg.Backend.BaseURL,
		"analyze_max_concurrent", cfg.Analyze.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"run_history", cfg.Database.Enabled(),
	)

	app, err := application.New(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	slog.Info("conversation started", "conversation_id", app.Service.ConversationID())

	server := web.NewServer(app.Service, web.Options{
		BackendURL:        app.Client.BaseURL(),
		MaxUploadSize:     cfg.Upload.MaxFileSize,
		RequestTimeout:    cfg.Server.RequestTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		RateLimitEnabled:  cfg.Rate.Enabled,
		RequestsPerMinute: cfg.Rate.RequestsPerMinute,
		AnalyzeLimit:      cfg.Rate.AnalyzeLimit,
		AllowedOrigins:    cfg.CORS.AllowedOrigins,
		TrustedProxies:    cfg.Server.TrustedProxies,
	})

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for in-flight analyses to complete (with timeout)
		if status := app.Service.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for analyses to complete", "active", status.Active)
			if err := app.Service.WaitForAnalyses(shutdownCtx); err != nil {
				slog.Warn("analyses did not complete in time", "error", err)
			} else {
				slog.Info("all analyses completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		app.Close()
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
