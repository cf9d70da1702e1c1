package core

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/JonMunkholm/decisio/internal/backend"
	"github.com/JonMunkholm/decisio/internal/logging"
)

// Operator-facing defaults.
const (
	DefaultPreviewRows = 25
	DefaultRowLimit    = 200
	DefaultMinRows     = 10
	DefaultMaxRows     = 2000
	DefaultPrompt      = "Summarize the provided data and highlight key risks."
)

// HistoryTimeout bounds a single history write or read.
var HistoryTimeout = 5 * time.Second

// BackendAPI is the part of the backend client the service needs.
type BackendAPI interface {
	Health(ctx context.Context) (backend.HealthReport, error)
	Analyze(ctx context.Context, conversationID, message string, payload backend.Payload) (*backend.AnalyzeResponse, error)
}

// ServiceOptions tunes a Service. Zero values take the defaults above.
type ServiceOptions struct {
	PreviewRows   int
	DefaultRows   int
	MinRows       int
	MaxRows       int
	DefaultPrompt string

	Limiter *Limiter
	History History
}

// Service runs the operator actions: preview, analyze, health and
// conversation renewal. It is safe for concurrent use.
type Service struct {
	client  BackendAPI
	session *Session
	limiter *Limiter
	history History

	previewRows   int
	defaultRows   int
	minRows       int
	maxRows       int
	defaultPrompt string
}

// NewService creates a Service. A nil session gets a fresh one.
func NewService(client BackendAPI, session *Session, opts ServiceOptions) *Service {
	if session == nil {
		session = NewSession()
	}

	s := &Service{
		client:        client,
		session:       session,
		limiter:       opts.Limiter,
		history:       opts.History,
		previewRows:   opts.PreviewRows,
		defaultRows:   opts.DefaultRows,
		minRows:       opts.MinRows,
		maxRows:       opts.MaxRows,
		defaultPrompt: opts.DefaultPrompt,
	}

	if s.limiter == nil {
		s.limiter = NewLimiter(DefaultMaxConcurrentAnalyses, DefaultAnalysisWait)
	}
	if s.history == nil {
		s.history = NopHistory{}
	}
	if s.previewRows <= 0 {
		s.previewRows = DefaultPreviewRows
	}
	if s.minRows <= 0 {
		s.minRows = DefaultMinRows
	}
	if s.maxRows <= 0 {
		s.maxRows = DefaultMaxRows
	}
	if s.maxRows < s.minRows {
		s.maxRows = s.minRows
	}
	if s.defaultRows <= 0 {
		s.defaultRows = DefaultRowLimit
	}
	s.defaultRows = min(max(s.defaultRows, s.minRows), s.maxRows)
	if s.defaultPrompt == "" {
		s.defaultPrompt = DefaultPrompt
	}

	return s
}

// Defaults describes the values a form or CLI should start from.
type Defaults struct {
	RowLimit    int    `json:"rowLimit"`
	MinRows     int    `json:"minRows"`
	MaxRows     int    `json:"maxRows"`
	Prompt      string `json:"prompt"`
	PreviewRows int    `json:"previewRows"`
}

// Defaults returns the configured operator defaults.
func (s *Service) Defaults() Defaults {
	return Defaults{
		RowLimit:    s.defaultRows,
		MinRows:     s.minRows,
		MaxRows:     s.maxRows,
		Prompt:      s.defaultPrompt,
		PreviewRows: s.previewRows,
	}
}

// Preview loads the workbook and returns the first preview rows of the
// resolved sheet. A load failure aborts the action.
func (s *Service) Preview(ctx context.Context, src io.ReadSeeker, sheetHint string, opts LoadOptions) (*Preview, error) {
	logger := logging.FromContext(ctx)

	t, err := LoadWorkbook(src, sheetHint, opts)
	if err != nil {
		logger.Warn("workbook load failed", "sheet_hint", sheetHint, "error", err)
		return nil, err
	}

	if t.FellBack() {
		logger.Info("sheet hint not found, using first sheet",
			"requested", t.Requested,
			"sheet", t.Sheet,
		)
	}

	logger.Debug("workbook loaded",
		"sheet", t.Sheet,
		"rows", t.RowCount(),
		"columns", t.ColumnCount(),
	)

	return &Preview{Table: t, Rows: t.Head(s.previewRows)}, nil
}

// AnalyzeInput is one analyze request.
type AnalyzeInput struct {
	Table    *Table
	Message  string
	RowLimit int
}

// AnalyzeResult is a successful analyze call.
type AnalyzeResult struct {
	ConversationID string
	Sheet          string
	RowsSent       int
	Columns        int
	Duration       time.Duration
	Response       *backend.AnalyzeResponse
}

// ValidateRowLimit checks n against the operator range.
func (s *Service) ValidateRowLimit(n int) error {
	if n < s.minRows || n > s.maxRows {
		return &InvalidLimitError{Limit: n, Min: s.minRows, Max: s.maxRows}
	}
	return nil
}

// Analyze encodes the first RowLimit rows of the table and sends them to the
// backend under the live conversation id. The message is sent verbatim.
// Errors are returned unchanged; nothing is retried.
func (s *Service) Analyze(ctx context.Context, in AnalyzeInput) (*AnalyzeResult, error) {
	if in.Table == nil {
		return nil, &LoadError{Err: ErrEmptySource}
	}
	if err := s.ValidateRowLimit(in.RowLimit); err != nil {
		return nil, err
	}

	payload, err := EncodePayload(in.Table, in.RowLimit)
	if err != nil {
		return nil, err
	}

	conversationID := s.session.Current()
	logger := logging.WithFields(ctx,
		"conversation_id", conversationID,
		"sheet", in.Table.Sheet,
		"rows", len(payload.Data),
		"columns", len(payload.Headers),
	)

	if err := s.limiter.Acquire(ctx); err != nil {
		logger.Warn("analyze rejected", "error", err)
		return nil, err
	}
	defer s.limiter.Release()

	start := time.Now()
	resp, err := s.client.Analyze(ctx, conversationID, in.Message, payload)
	elapsed := time.Since(start)

	run := Run{
		ConversationID: conversationID,
		Sheet:          in.Table.Sheet,
		RowsSent:       len(payload.Data),
		Columns:        len(payload.Headers),
		Message:        in.Message,
		DurationMs:     elapsed.Milliseconds(),
		Origin:         OriginFromContext(ctx),
		ClientIP:       ClientIPFromContext(ctx),
	}

	if err != nil {
		run.Status = RunFailed
		run.Error = err.Error()
		run.ErrorCode = MapError(err).Code
		s.record(ctx, run)

		logger.Error("analyze failed", "duration_ms", elapsed.Milliseconds(), "error", err)
		return nil, err
	}

	run.Status = RunSucceeded
	s.record(ctx, run)

	logger.Info("analyze completed",
		"duration_ms", elapsed.Milliseconds(),
		"risks", len(resp.Result.Risks),
		"has_score", resp.Result.HasScore(),
	)

	return &AnalyzeResult{
		ConversationID: conversationID,
		Sheet:          in.Table.Sheet,
		RowsSent:       len(payload.Data),
		Columns:        len(payload.Headers),
		Duration:       elapsed,
		Response:       resp,
	}, nil
}

// record stores a run on a context detached from the request so a
// cancelled request still leaves a trace. Failures are only logged.
func (s *Service) record(ctx context.Context, run Run) {
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), HistoryTimeout)
	defer cancel()

	if err := s.history.RecordRun(hctx, run); err != nil {
		logging.FromContext(ctx).Warn("failed to record run",
			"conversation_id", run.ConversationID,
			"error", err,
		)
	}
}

// Health queries the backend health endpoint.
func (s *Service) Health(ctx context.Context) (backend.HealthReport, error) {
	logger := logging.FromContext(ctx)

	start := time.Now()
	report, err := s.client.Health(ctx)
	if err != nil {
		logger.Warn("backend health check failed",
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return nil, err
	}

	logger.Info("backend health check ok", "duration_ms", time.Since(start).Milliseconds())
	return report, nil
}

// ConversationID returns the live conversation id.
func (s *Service) ConversationID() string {
	return s.session.Current()
}

// NewConversation replaces the conversation id and returns the new one.
func (s *Service) NewConversation(ctx context.Context) string {
	prev := s.session.Current()
	id := s.session.Renew()
	logging.FromContext(ctx).Info("conversation renewed", "previous", prev, "conversation_id", id)
	return id
}

// ContinueConversation adopts an existing conversation id.
func (s *Service) ContinueConversation(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("conversation id is empty")
	}
	s.session.Adopt(id)
	return nil
}

// RecentRuns lists recorded analyze attempts, newest first.
func (s *Service) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	hctx, cancel := context.WithTimeout(ctx, HistoryTimeout)
	defer cancel()
	return s.history.RecentRuns(hctx, limit)
}

// LimiterStatus reports the analyze limiter state.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForAnalyses blocks until in-flight analyze calls finish or ctx ends.
func (s *Service) WaitForAnalyses(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
