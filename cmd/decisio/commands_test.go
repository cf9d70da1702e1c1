package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/decisio/internal/application"
	"github.com/JonMunkholm/decisio/internal/backend"
	"github.com/JonMunkholm/decisio/internal/config"
	"github.com/JonMunkholm/decisio/internal/core"
)

func testLoader(baseURL string) appLoader {
	return func(ctx context.Context, _ globalOptions, _ io.Writer) (*application.App, error) {
		return application.New(ctx, &config.Config{
			Backend: config.BackendConfig{BaseURL: baseURL, HealthTimeout: 2 * time.Second, AnalyzeTimeout: 2 * time.Second},
			Analyze: config.AnalyzeConfig{DefaultRows: 200, MinRows: 10, MaxRows: 2000, DefaultPrompt: "default prompt", MaxConcurrent: 1, MaxWait: time.Second},
			Upload:  config.UploadConfig{PreviewRows: 25},
		})
	}
}

func writeWorkbook(t *testing.T) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, row := range [][]any{{"name", "qty"}, {"a", 1}, {"b", 2}, {"c", 3}} {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "data.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	return path
}

func execute(t *testing.T, baseURL string, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	root := newRootCmd(testLoader(baseURL))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestHealthCommand(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer ts.Close()

	out, _, err := execute(t, ts.URL, "health")
	if err != nil {
		t.Fatalf("health error = %v", err)
	}
	if strings.TrimSpace(out) != `{"status":"ok"}` {
		t.Errorf("output = %q", out)
	}
}

func TestPreviewCommand(t *testing.T) {
	path := writeWorkbook(t)

	out, stderr, err := execute(t, "http://unused.test", "preview", path, "--rows", "2", "--sheet", "Other")
	if err != nil {
		t.Fatalf("preview error = %v", err)
	}

	var resp core.PreviewResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(resp.Rows) != 2 || resp.TotalRows != 3 {
		t.Errorf("rows = %d of %d, want 2 of 3", len(resp.Rows), resp.TotalRows)
	}
	if !resp.FellBack || !strings.Contains(stderr, "not found") {
		t.Errorf("fallback not reported: fellBack=%v stderr=%q", resp.FellBack, stderr)
	}
}

func TestPreviewCommand_StrictSheet(t *testing.T) {
	_, _, err := execute(t, "http://unused.test", "preview", writeWorkbook(t), "--sheet", "Other", "--strict-sheet")
	if !errors.Is(err, core.ErrSheetNotFound) {
		t.Errorf("error = %v, want ErrSheetNotFound", err)
	}
}

func TestAnalyzeCommand(t *testing.T) {
	var got backend.AnalyzeRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"result":{"answer":"ok","risks":["r1"]}}`))
	}))
	defer ts.Close()

	out, _, err := execute(t, ts.URL, "analyze", writeWorkbook(t), "--rows", "10", "--conversation", "conv-1")
	if err != nil {
		t.Fatalf("analyze error = %v", err)
	}

	if got.ConversationID != "conv-1" {
		t.Errorf("conversationId = %q, want conv-1", got.ConversationID)
	}
	if got.Message != "default prompt" {
		t.Errorf("message = %q, want default prompt", got.Message)
	}
	if len(got.Data.Data) != 3 {
		t.Errorf("rows sent = %d, want 3", len(got.Data.Data))
	}

	var resp analyzeOutput
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if resp.Result.Answer != "ok" || len(resp.Result.Risks) != 1 || resp.RowsSent != 3 {
		t.Errorf("output = %+v", resp)
	}
}

func TestAnalyzeCommand_Raw(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"answer":"ok"},"extra":1}`))
	}))
	defer ts.Close()

	out, _, err := execute(t, ts.URL, "analyze", writeWorkbook(t), "--raw", "-m", "")
	if err != nil {
		t.Fatalf("analyze error = %v", err)
	}
	if strings.TrimSpace(out) != `{"result":{"answer":"ok"},"extra":1}` {
		t.Errorf("raw output = %q", out)
	}
}

func TestAnalyzeCommand_InvalidRows(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer ts.Close()

	_, _, err := execute(t, ts.URL, "analyze", writeWorkbook(t), "--rows", "5")

	var limitErr *core.InvalidLimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("error = %v, want *InvalidLimitError", err)
	}
	if called {
		t.Error("backend called for an invalid row count")
	}
	if got := core.MapError(err).Code; got != "ROW001" {
		t.Errorf("code = %q, want ROW001", got)
	}
}

func TestAnalyzeCommand_MissingFile(t *testing.T) {
	_, _, err := execute(t, "http://unused.test", "analyze", filepath.Join(t.TempDir(), "nope.xlsx"))
	if got := core.MapError(err).Code; got != "FILE003" {
		t.Errorf("code = %q, want FILE003 (err %v)", got, err)
	}
}

func TestRunsCommand_HistoryDisabled(t *testing.T) {
	out, stderr, err := execute(t, "http://unused.test", "runs")
	if err != nil {
		t.Fatalf("runs error = %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("output = %q, want []", out)
	}
	if !strings.Contains(stderr, "DATABASE_URL") {
		t.Errorf("stderr = %q, want history hint", stderr)
	}
}

func validConfig() *config.Config {
	return &config.Config{
		Backend: config.BackendConfig{BaseURL: "http://localhost:5002", HealthTimeout: 30 * time.Second, AnalyzeTimeout: 120 * time.Second},
		Analyze: config.AnalyzeConfig{DefaultRows: 200, MinRows: 10, MaxRows: 2000, MaxConcurrent: 1, MaxWait: 5 * time.Second},
		Upload:  config.UploadConfig{MaxFileSize: 1, PreviewRows: 25},
		Server:  config.ServerConfig{Port: 8080, ShutdownTimeout: time.Second, RequestTimeout: 140 * time.Second},
		Rate:    config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, AnalyzeLimit: 10},
		Logging: config.LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestApplyOverrides(t *testing.T) {
	tests := []struct {
		name        string
		opts        globalOptions
		wantErr     string
		wantBaseURL string
	}{
		{name: "no flags", opts: globalOptions{}, wantBaseURL: "http://localhost:5002"},
		{name: "backend flag", opts: globalOptions{backendURL: "https://colab.example.com"}, wantBaseURL: "https://colab.example.com"},
		{name: "backend flag without http scheme", opts: globalOptions{backendURL: "ftp://colab.example.com"}, wantErr: "BACKEND_BASE_URL"},
		{name: "backend flag without scheme", opts: globalOptions{backendURL: "localhost:5002"}, wantErr: "BACKEND_BASE_URL"},
		{name: "unknown log level flag", opts: globalOptions{logLevel: "verbose"}, wantErr: "LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			err := applyOverrides(cfg, tt.opts)

			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("applyOverrides() error = %v, want mention of %s", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("applyOverrides() error = %v", err)
			}
			if cfg.Backend.BaseURL != tt.wantBaseURL {
				t.Errorf("Backend.BaseURL = %q, want %q", cfg.Backend.BaseURL, tt.wantBaseURL)
			}
		})
	}
}

func TestReportError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		want       string
		wantDetail bool
	}{
		{
			name: "nil error prints nothing",
			err:  nil,
		},
		{
			name: "mapped error hides detail",
			err:  fmt.Errorf("analyze: %w", core.ErrAnalysisBusy),
			want: "Error: Another analysis is still running (Code: BUSY001). Wait for it to finish and try again\n",
		},
		{
			name:       "unmapped error shows detail",
			err:        errors.New("random internal error xyz"),
			want:       "Error: An unexpected error occurred (Code: ERR000). Please try again or contact support\nDetail: random internal error xyz\n",
			wantDetail: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			reportError(&buf, tt.err)

			if got := buf.String(); got != tt.want {
				t.Errorf("reportError() wrote %q, want %q", got, tt.want)
			}
			if got := strings.Contains(buf.String(), "Detail:"); got != tt.wantDetail {
				t.Errorf("Detail shown = %v, want %v", got, tt.wantDetail)
			}
		})
	}
}
