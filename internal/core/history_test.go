package core

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

type execCall struct {
	sql  string
	args []any
}

// fakeDB records Exec calls and serves canned rows to Query.
type fakeDB struct {
	execs   []execCall
	execErr error

	queryArgs []any
	rows      *fakeRows
	queryErr  error
}

func (d *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.execs = append(d.execs, execCall{sql: sql, args: args})
	if d.execErr != nil {
		return pgconn.CommandTag{}, d.execErr
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (d *fakeDB) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	d.queryArgs = args
	if d.queryErr != nil {
		return nil, d.queryErr
	}
	return d.rows, nil
}

// fakeRows implements pgx.Rows over in-memory values.
type fakeRows struct {
	columns []string
	data    [][]any
	pos     int
	closed  bool
}

func (r *fakeRows) Close()                        { r.closed = true }
func (r *fakeRows) Err() error                    { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) RawValues() [][]byte           { return nil }
func (r *fakeRows) Conn() *pgx.Conn               { return nil }

func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	fds := make([]pgconn.FieldDescription, len(r.columns))
	for i, c := range r.columns {
		fds[i] = pgconn.FieldDescription{Name: c}
	}
	return fds
}

func (r *fakeRows) Next() bool {
	if r.closed || r.pos >= len(r.data) {
		r.closed = true
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	if len(dest) != len(row) {
		return errors.New("scan: column count mismatch")
	}
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(row[i]))
	}
	return nil
}

func (r *fakeRows) Values() ([]any, error) {
	return r.data[r.pos-1], nil
}

func TestPgHistory_EnsureSchema(t *testing.T) {
	db := &fakeDB{}
	h := NewPgHistory(db)

	if err := h.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if len(db.execs) != 2 {
		t.Fatalf("Exec calls = %d, want 2", len(db.execs))
	}
	if !strings.Contains(db.execs[0].sql, "CREATE TABLE IF NOT EXISTS analysis_runs") {
		t.Errorf("first statement = %q, want CREATE TABLE", db.execs[0].sql)
	}

	db = &fakeDB{execErr: errors.New("permission denied")}
	if err := NewPgHistory(db).EnsureSchema(context.Background()); err == nil {
		t.Error("EnsureSchema() error = nil, want error")
	}
}

func TestPgHistory_RecordRun(t *testing.T) {
	db := &fakeDB{}
	h := NewPgHistory(db)

	run := Run{
		ConversationID: "conv-1",
		Sheet:          "Data",
		RowsSent:       10,
		Columns:        3,
		Message:        "summarize",
		Status:         RunSucceeded,
		DurationMs:     42,
		Origin:         OriginCLI,
	}
	if err := h.RecordRun(context.Background(), run); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}

	if len(db.execs) != 1 {
		t.Fatalf("Exec calls = %d, want 1", len(db.execs))
	}
	args := db.execs[0].args
	if len(args) != 13 {
		t.Fatalf("args = %d, want 13", len(args))
	}

	id, ok := args[0].(pgtype.UUID)
	if !ok || !id.Valid {
		t.Errorf("id arg = %#v, want valid pgtype.UUID", args[0])
	}
	if args[1] != "conv-1" {
		t.Errorf("conversation_id = %v, want conv-1", args[1])
	}
	if args[6] != "succeeded" {
		t.Errorf("status = %v, want succeeded", args[6])
	}
	if args[10] != OriginCLI {
		t.Errorf("origin = %v, want %q", args[10], OriginCLI)
	}
	if created, ok := args[12].(time.Time); !ok || created.IsZero() {
		t.Errorf("created_at = %#v, want non-zero time", args[12])
	}
}

func TestPgHistory_RecordRun_InvalidID(t *testing.T) {
	db := &fakeDB{}
	err := NewPgHistory(db).RecordRun(context.Background(), Run{ID: "not-a-uuid"})
	if err == nil {
		t.Fatal("RecordRun() error = nil, want error")
	}
	if len(db.execs) != 0 {
		t.Errorf("Exec calls = %d, want 0", len(db.execs))
	}
}

func TestPgHistory_RecentRuns(t *testing.T) {
	id := ToPgUUID("7f8d3c8e-1d2a-4b5c-9e6f-0a1b2c3d4e5f")
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	db := &fakeDB{rows: &fakeRows{
		columns: []string{
			"id", "conversation_id", "sheet", "rows_sent", "columns", "message",
			"status", "error", "error_code", "duration_ms", "origin", "client_ip", "created_at",
		},
		data: [][]any{{
			id, "conv-1", "Data", int32(10), int32(3), "summarize",
			"failed", "boom", "API001", int64(12), OriginConsole, "10.0.0.1", created,
		}},
	}}

	runs, err := NewPgHistory(db).RecentRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("RecentRuns() error = %v", err)
	}
	if len(db.queryArgs) != 1 || db.queryArgs[0] != 20 {
		t.Errorf("query args = %v, want [20]", db.queryArgs)
	}
	if len(runs) != 1 {
		t.Fatalf("len(runs) = %d, want 1", len(runs))
	}

	got := runs[0]
	if got.ID != "7f8d3c8e-1d2a-4b5c-9e6f-0a1b2c3d4e5f" {
		t.Errorf("ID = %q", got.ID)
	}
	if got.Status != RunFailed || got.ErrorCode != "API001" || got.RowsSent != 10 {
		t.Errorf("run = %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
}

func TestPgHistory_RecentRuns_QueryError(t *testing.T) {
	db := &fakeDB{queryErr: errors.New("connection refused")}
	if _, err := NewPgHistory(db).RecentRuns(context.Background(), 5); err == nil {
		t.Error("RecentRuns() error = nil, want error")
	}
}

func TestToPgUUID(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
	}{
		{"valid UUID", "550e8400-e29b-41d4-a716-446655440000", true},
		{"empty string", "", false},
		{"invalid format", "not-a-uuid", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToPgUUID(tt.input)
			if got.Valid != tt.wantValid {
				t.Errorf("ToPgUUID(%q).Valid = %v, want %v", tt.input, got.Valid, tt.wantValid)
			}
			if tt.wantValid && PgUUIDToString(got) != tt.input {
				t.Errorf("round trip = %q, want %q", PgUUIDToString(got), tt.input)
			}
		})
	}

	if got := PgUUIDToString(pgtype.UUID{}); got != "" {
		t.Errorf("PgUUIDToString(invalid) = %q, want empty", got)
	}
}
