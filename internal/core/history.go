package core

// history.go keeps an optional record of analyze attempts in PostgreSQL.
//
// Recording is best effort: a failed insert is logged and never changes the
// outcome the operator sees. When no database is configured the service uses
// NopHistory and nothing is written anywhere.

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// RunStatus is the outcome of an analyze attempt.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one analyze attempt.
type Run struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Sheet          string    `json:"sheet"`
	RowsSent       int       `json:"rowsSent"`
	Columns        int       `json:"columns"`
	Message        string    `json:"message"`
	Status         RunStatus `json:"status"`
	Error          string    `json:"error,omitempty"`
	ErrorCode      string    `json:"errorCode,omitempty"`
	DurationMs     int64     `json:"durationMs"`
	Origin         string    `json:"origin,omitempty"`
	ClientIP       string    `json:"clientIp,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// History stores and lists analyze attempts.
type History interface {
	RecordRun(ctx context.Context, run Run) error
	RecentRuns(ctx context.Context, limit int) ([]Run, error)
}

// NopHistory discards runs.
type NopHistory struct{}

func (NopHistory) RecordRun(context.Context, Run) error { return nil }

func (NopHistory) RecentRuns(context.Context, int) ([]Run, error) { return nil, nil }

// dbtx is the subset of *pgxpool.Pool used by PgHistory.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PgHistory stores runs in the analysis_runs table.
type PgHistory struct {
	db dbtx
}

// NewPgHistory wraps a pgx pool (or any compatible executor).
func NewPgHistory(db dbtx) *PgHistory {
	return &PgHistory{db: db}
}

const createRunsTable = `
CREATE TABLE IF NOT EXISTS analysis_runs (
	id              UUID PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	sheet           TEXT NOT NULL DEFAULT '',
	rows_sent       INTEGER NOT NULL DEFAULT 0,
	columns         INTEGER NOT NULL DEFAULT 0,
	message         TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL,
	error           TEXT NOT NULL DEFAULT '',
	error_code      TEXT NOT NULL DEFAULT '',
	duration_ms     BIGINT NOT NULL DEFAULT 0,
	origin          TEXT NOT NULL DEFAULT '',
	client_ip       TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const createRunsIndex = `
CREATE INDEX IF NOT EXISTS analysis_runs_created_at_idx ON analysis_runs (created_at DESC)`

const insertRun = `
INSERT INTO analysis_runs
	(id, conversation_id, sheet, rows_sent, columns, message, status, error, error_code, duration_ms, origin, client_ip, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

const selectRecentRuns = `
SELECT id, conversation_id, sheet, rows_sent, columns, message, status, error, error_code, duration_ms, origin, client_ip, created_at
FROM analysis_runs
ORDER BY created_at DESC
LIMIT $1`

// EnsureSchema creates the analysis_runs table if it does not exist.
func (h *PgHistory) EnsureSchema(ctx context.Context) error {
	if _, err := h.db.Exec(ctx, createRunsTable); err != nil {
		return fmt.Errorf("create analysis_runs: %w", err)
	}
	if _, err := h.db.Exec(ctx, createRunsIndex); err != nil {
		return fmt.Errorf("create analysis_runs index: %w", err)
	}
	return nil
}

// RecordRun inserts a run. A missing ID or timestamp is filled in.
func (h *PgHistory) RecordRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	id := ToPgUUID(run.ID)
	if !id.Valid {
		return fmt.Errorf("record run: invalid run id %q", run.ID)
	}

	_, err := h.db.Exec(ctx, insertRun,
		id,
		run.ConversationID,
		run.Sheet,
		run.RowsSent,
		run.Columns,
		run.Message,
		string(run.Status),
		run.Error,
		run.ErrorCode,
		run.DurationMs,
		run.Origin,
		run.ClientIP,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

type runRow struct {
	ID             pgtype.UUID `db:"id"`
	ConversationID string      `db:"conversation_id"`
	Sheet          string      `db:"sheet"`
	RowsSent       int32       `db:"rows_sent"`
	Columns        int32       `db:"columns"`
	Message        string      `db:"message"`
	Status         string      `db:"status"`
	Error          string      `db:"error"`
	ErrorCode      string      `db:"error_code"`
	DurationMs     int64       `db:"duration_ms"`
	Origin         string      `db:"origin"`
	ClientIP       string      `db:"client_ip"`
	CreatedAt      time.Time   `db:"created_at"`
}

// RecentRuns returns up to limit runs, newest first.
func (h *PgHistory) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := h.db.Query(ctx, selectRecentRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	collected, err := pgx.CollectRows(rows, pgx.RowToStructByName[runRow])
	if err != nil {
		return nil, fmt.Errorf("scan runs: %w", err)
	}

	runs := make([]Run, 0, len(collected))
	for _, r := range collected {
		runs = append(runs, Run{
			ID:             PgUUIDToString(r.ID),
			ConversationID: r.ConversationID,
			Sheet:          r.Sheet,
			RowsSent:       int(r.RowsSent),
			Columns:        int(r.Columns),
			Message:        r.Message,
			Status:         RunStatus(r.Status),
			Error:          r.Error,
			ErrorCode:      r.ErrorCode,
			DurationMs:     r.DurationMs,
			Origin:         r.Origin,
			ClientIP:       r.ClientIP,
			CreatedAt:      r.CreatedAt,
		})
	}
	return runs, nil
}

// ToPgUUID converts a string to pgtype.UUID.
// Returns invalid if the string is empty or not a valid UUID.
func ToPgUUID(s string) pgtype.UUID {
	if s == "" {
		return pgtype.UUID{Valid: false}
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

// PgUUIDToString converts a pgtype.UUID to its string representation.
// Returns empty string if the UUID is invalid.
func PgUUIDToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}
