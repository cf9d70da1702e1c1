package web

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/decisio/internal/core"
	"github.com/JonMunkholm/decisio/internal/logging"
	"github.com/JonMunkholm/decisio/internal/web/templates"
)

// dashboardRuns is how many recorded runs the dashboard lists.
const dashboardRuns = 10

// uploadForm is a parsed console or API upload.
type uploadForm struct {
	file    multipart.File
	sheet   string
	message string
	rows    int
	strict  bool
	rowsErr error
}

func (f *uploadForm) Close() {
	if f.file != nil {
		f.file.Close()
	}
}

// readUpload parses a multipart upload bounded by MaxUploadSize. The form
// values are returned even when the file is missing so the page can echo them.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*uploadForm, error) {
	defaults := s.service.Defaults()
	form := &uploadForm{message: defaults.Prompt, rows: defaults.RowLimit}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadSize)
	if err := r.ParseMultipartForm(s.opts.MaxUploadSize); err != nil {
		return form, fmt.Errorf("parse upload: %w", err)
	}

	form.sheet = r.FormValue("sheet")
	if _, ok := r.MultipartForm.Value["message"]; ok {
		form.message = r.FormValue("message")
	}
	form.strict = parseBool(r.FormValue("strictSheet"))

	if raw := strings.TrimSpace(r.FormValue("rows")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			form.rowsErr = fmt.Errorf("rows %q is not a number: %w", raw,
				&core.InvalidLimitError{Min: defaults.MinRows, Max: defaults.MaxRows})
		} else {
			form.rows = n
		}
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return form, errNoFile
		}
		return form, fmt.Errorf("read upload: %w", err)
	}
	form.file = file
	return form, nil
}

// parseBool accepts strconv booleans and the "on" an HTML checkbox sends.
func parseBool(v string) bool {
	v = strings.TrimSpace(v)
	if v == "on" {
		return true
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// dashboardData builds the base page state shared by every console view.
func (s *Server) dashboardData(r *http.Request) templates.DashboardData {
	defaults := s.service.Defaults()
	d := templates.DashboardData{
		BackendURL:     s.opts.BackendURL,
		ConversationID: s.service.ConversationID(),
		Defaults:       defaults,
		Form:           templates.FormValues{Message: defaults.Prompt, Rows: defaults.RowLimit},
	}

	d.Runs = s.recentRuns(r)
	return d
}

// recentRuns lists runs for the dashboard; a history failure only hides the table.
func (s *Server) recentRuns(r *http.Request) []core.Run {
	runs, err := s.service.RecentRuns(r.Context(), dashboardRuns)
	if err != nil {
		logging.FromContext(r.Context()).Warn("failed to list runs", "error", err)
		return nil
	}
	return runs
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, d templates.DashboardData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.Dashboard(d).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render dashboard", "error", err)
	}
}

// handleDashboard renders the console with the upload form.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, s.dashboardData(r))
}

// handlePreview loads the uploaded workbook and shows the first rows.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	d, form, preview, status := s.loadPreview(w, r)
	if form != nil {
		defer form.Close()
	}
	if preview != nil {
		d.Preview = previewView(preview)
	}
	s.render(w, r, status, d)
}

// handleAnalyze previews the workbook, then sends the first rows to the
// backend and renders the result sections.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	d, form, preview, status := s.loadPreview(w, r)
	if form != nil {
		defer form.Close()
	}
	if preview == nil {
		s.render(w, r, status, d)
		return
	}
	d.Preview = previewView(preview)

	if form.rowsErr != nil {
		d.Error = errorView(r, "Analysis failed", form.rowsErr)
		s.render(w, r, statusFor(form.rowsErr), d)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r, core.OriginConsole)
	res, err := s.service.Analyze(ctx, core.AnalyzeInput{
		Table:    preview.Table,
		Message:  form.message,
		RowLimit: form.rows,
	})
	if err != nil {
		d.Error = errorView(r, "Analysis failed", err)
		d.Runs = s.recentRuns(r)
		s.render(w, r, statusFor(err), d)
		return
	}

	d.Analysis = analysisView(res)
	d.ConversationID = res.ConversationID
	d.Runs = s.recentRuns(r)
	s.render(w, r, http.StatusOK, d)
}

// loadPreview parses the upload and loads the workbook. On failure the
// returned data carries the error view and preview is nil.
func (s *Server) loadPreview(w http.ResponseWriter, r *http.Request) (templates.DashboardData, *uploadForm, *core.Preview, int) {
	d := s.dashboardData(r)

	form, err := s.readUpload(w, r)
	d.Form = templates.FormValues{Sheet: form.sheet, Message: form.message, Rows: form.rows}
	if err != nil {
		d.Error = errorView(r, "Upload failed", err)
		return d, form, nil, statusFor(err)
	}

	preview, err := s.service.Preview(r.Context(), form.file, form.sheet, core.LoadOptions{StrictSheet: form.strict})
	if err != nil {
		d.Error = errorView(r, "Could not read the workbook", err)
		return d, form, nil, statusFor(err)
	}
	return d, form, preview, http.StatusOK
}

// handleNewConversation renews the conversation id and returns to the dashboard.
func (s *Server) handleNewConversation(w http.ResponseWriter, r *http.Request) {
	s.service.NewConversation(r.Context())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleHealthCheck queries the backend and shows the health panel.
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	d := s.dashboardData(r)

	report, err := s.service.Health(r.Context())
	if err != nil {
		d.Health = &templates.HealthView{Error: errorView(r, "Backend health check failed", err)}
		s.render(w, r, statusFor(err), d)
		return
	}

	d.Health = &templates.HealthView{OK: true, JSON: templates.PrettyJSON(report)}
	s.render(w, r, http.StatusOK, d)
}

func previewView(p *core.Preview) *templates.PreviewView {
	rows := make([][]string, len(p.Rows))
	for i, src := range p.Rows {
		row := make([]string, len(src))
		for j, v := range src {
			row[j] = core.FormatCell(v)
		}
		rows[i] = row
	}

	return &templates.PreviewView{
		Sheet:     p.Table.Sheet,
		Notice:    p.Notice(),
		Headers:   p.Table.Headers,
		Rows:      rows,
		TotalRows: p.Table.RowCount(),
	}
}

func analysisView(res *core.AnalyzeResult) *templates.AnalysisView {
	result := res.Response.Result
	return &templates.AnalysisView{
		RawJSON:       templates.PrettyRaw(res.Response.Raw),
		Answer:        result.Answer,
		Risks:         result.Risks,
		Score:         templates.ScoreText(result.Score),
		NextQuestions: result.NextQuestions,
		RowsSent:      res.RowsSent,
		DurationMs:    res.Duration.Milliseconds(),
	}
}
