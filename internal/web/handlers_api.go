package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/decisio/internal/backend"
	"github.com/JonMunkholm/decisio/internal/core"
)

// Run listing bounds for /api/runs.
const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status  string              `json:"status"`
	Backend string              `json:"backend"`
	Report  backend.HealthReport `json:"report"`
}

// AnalyzeResponse is the body of POST /api/analyze.
type AnalyzeResponse struct {
	ConversationID string          `json:"conversationId"`
	Sheet          string          `json:"sheet"`
	FellBack       bool            `json:"fellBack"`
	Notice         string          `json:"notice,omitempty"`
	RowsSent       int             `json:"rowsSent"`
	Columns        int             `json:"columns"`
	DurationMs     int64           `json:"durationMs"`
	Result         backend.Result  `json:"result"`
	Raw            json.RawMessage `json:"raw"`
}

// ConversationResponse is the body of the /api/conversation endpoints.
type ConversationResponse struct {
	ConversationID string `json:"conversationId"`
	Previous       string `json:"previous,omitempty"`
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Backend        string             `json:"backend"`
	ConversationID string             `json:"conversationId"`
	Defaults       core.Defaults      `json:"defaults"`
	Limiter        core.LimiterStatus `json:"limiter"`
}

func (s *Server) handleAPIHealth(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.Health(r.Context())
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, HealthResponse{Status: "ok", Backend: s.opts.BackendURL, Report: report})
}

func (s *Server) handleAPIPreview(w http.ResponseWriter, r *http.Request) {
	form, err := s.readUpload(w, r)
	defer form.Close()
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	preview, err := s.service.Preview(r.Context(), form.file, form.sheet, core.LoadOptions{StrictSheet: form.strict})
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, preview.Response())
}

func (s *Server) handleAPIAnalyze(w http.ResponseWriter, r *http.Request) {
	form, err := s.readUpload(w, r)
	defer form.Close()
	if err == nil {
		err = form.rowsErr
	}
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	preview, err := s.service.Preview(r.Context(), form.file, form.sheet, core.LoadOptions{StrictSheet: form.strict})
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	ctx := WithRequestMetadata(r.Context(), r, core.OriginAPI)
	res, err := s.service.Analyze(ctx, core.AnalyzeInput{
		Table:    preview.Table,
		Message:  form.message,
		RowLimit: form.rows,
	})
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, r, http.StatusOK, AnalyzeResponse{
		ConversationID: res.ConversationID,
		Sheet:          res.Sheet,
		FellBack:       preview.FellBack(),
		Notice:         preview.Notice(),
		RowsSent:       res.RowsSent,
		Columns:        res.Columns,
		DurationMs:     res.Duration.Milliseconds(),
		Result:         res.Response.Result,
		Raw:            res.Response.Raw,
	})
}

func (s *Server) handleAPIConversation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, ConversationResponse{ConversationID: s.service.ConversationID()})
}

// handleAPISetConversation renews the conversation id, or adopts the one in
// the body when {"conversationId": "..."} is sent.
func (s *Server) handleAPISetConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConversationID string `json:"conversationId"`
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		respondError(w, r, fmt.Errorf("decode conversation request: %w", err), http.StatusBadRequest)
		return
	}

	prev := s.service.ConversationID()
	if req.ConversationID == "" {
		id := s.service.NewConversation(r.Context())
		writeJSON(w, r, http.StatusOK, ConversationResponse{ConversationID: id, Previous: prev})
		return
	}

	if err := s.service.ContinueConversation(req.ConversationID); err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, r, http.StatusOK, ConversationResponse{ConversationID: s.service.ConversationID(), Previous: prev})
}

func (s *Server) handleAPIRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, r, fmt.Errorf("invalid limit %q", raw), http.StatusBadRequest)
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := s.service.RecentRuns(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []core.Run{}
	}
	writeJSON(w, r, http.StatusOK, runs)
}

func (s *Server) handleAPIStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, StatusResponse{
		Backend:        s.opts.BackendURL,
		ConversationID: s.service.ConversationID(),
		Defaults:       s.service.Defaults(),
		Limiter:        s.service.LimiterStatus(),
	})
}
