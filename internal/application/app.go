// Package application wires configuration into the backend client, run
// history and core service shared by the server and the CLI.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/decisio/internal/backend"
	"github.com/JonMunkholm/decisio/internal/config"
	"github.com/JonMunkholm/decisio/internal/core"
)

// App holds the long-lived dependencies of one process.
type App struct {
	Config  *config.Config
	Client  *backend.Client
	Service *core.Service

	pool *pgxpool.Pool
}

// New builds an App. When DATABASE_URL is set it connects, pings and
// ensures the run history schema; any failure there is fatal.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	client := backend.NewClient(cfg.Backend.BaseURL,
		backend.WithTimeouts(cfg.Backend.HealthTimeout, cfg.Backend.AnalyzeTimeout),
	)

	app := &App{Config: cfg, Client: client}

	var history core.History = core.NopHistory{}
	if cfg.Database.Enabled() {
		pool, err := openPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}

		pg := core.NewPgHistory(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		app.pool = pool
		history = pg
	}

	app.Service = core.NewService(client, nil, core.ServiceOptions{
		PreviewRows:   cfg.Upload.PreviewRows,
		DefaultRows:   cfg.Analyze.DefaultRows,
		MinRows:       cfg.Analyze.MinRows,
		MaxRows:       cfg.Analyze.MaxRows,
		DefaultPrompt: cfg.Analyze.DefaultPrompt,
		Limiter:       core.NewLimiter(cfg.Analyze.MaxConcurrent, cfg.Analyze.MaxWait),
		History:       history,
	})

	return app, nil
}

// HistoryEnabled reports whether runs are stored in PostgreSQL.
func (a *App) HistoryEnabled() bool {
	return a.pool != nil
}

// Close releases the database pool, if any.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

func openPool(ctx context.Context, db config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(db.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(db.MaxConns)
	poolConfig.MinConns = int32(db.MinConns)
	poolConfig.MaxConnLifetime = db.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(db.URL); err == nil {
		slog.Info("connected to run history database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to run history database")
	}
	return pool, nil
}
