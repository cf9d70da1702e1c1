package templates

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/decisio/internal/core"
)

// ErrorView is a failed action: the mapped message plus the raw error text.
type ErrorView struct {
	Title   string
	Message string
	Action  string
	Code    string
	Detail  string
}

// HealthView is the outcome of a backend health check.
type HealthView struct {
	OK    bool
	JSON  string
	Error *ErrorView
}

// PreviewView is the first rows of the resolved sheet.
type PreviewView struct {
	Sheet     string
	Notice    string
	Headers   []string
	Rows      [][]string
	TotalRows int
}

// AnalysisView is a completed analyze call.
type AnalysisView struct {
	RawJSON       string
	Answer        string
	Risks         []string
	Score         string
	NextQuestions []string
	RowsSent      int
	DurationMs    int64
}

// FormValues echoes the operator's last inputs back into the form.
type FormValues struct {
	Sheet   string
	Message string
	Rows    int
}

// DashboardData is everything the console page can show.
type DashboardData struct {
	BackendURL     string
	ConversationID string
	Defaults       core.Defaults
	Form           FormValues

	Health   *HealthView
	Preview  *PreviewView
	Analysis *AnalysisView
	Error    *ErrorView
	Runs     []core.Run
}

// Dashboard renders the full console page.
func Dashboard(d DashboardData) templ.Component {
	return Page("Decisio", templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<h1>Decisio: Excel Upload to Analysis Backend</h1>`)

		writeSession(&b, d)
		if d.Health != nil {
			writeHealth(&b, d.Health)
		}
		writeForm(&b, d)

		if d.Error != nil {
			writeError(&b, d.Error)
		}
		if d.Preview != nil {
			writePreview(&b, d.Preview)
		} else if d.Error == nil {
			b.WriteString(alert("info", "Upload an Excel file to begin."))
		}
		if d.Analysis != nil {
			writeAnalysis(&b, d.Analysis)
		}
		if len(d.Runs) > 0 {
			writeRuns(&b, d.Runs)
		}

		_, err := io.WriteString(w, b.String())
		return err
	}))
}

func writeSession(b *strings.Builder, d DashboardData) {
	b.WriteString(`<section class="card"><div class="row">`)
	b.WriteString(`<div>Conversation ID: <code id="conversation-id">` + esc(d.ConversationID) + `</code></div>`)
	b.WriteString(`<form method="post" action="/conversation"><button type="submit">New Conversation ID</button></form>`)
	b.WriteString(`<form method="get" action="/health-check"><button type="submit">Test backend /health</button></form>`)
	b.WriteString(`</div><div class="code">Backend: ` + esc(d.BackendURL) + `</div></section>`)
}

func writeHealth(b *strings.Builder, h *HealthView) {
	b.WriteString(`<section class="card" id="health">`)
	if h.OK {
		b.WriteString(alert("success", "Backend reachable"))
		b.WriteString(`<pre>` + esc(h.JSON) + `</pre>`)
	} else if h.Error != nil {
		writeErrorBody(b, h.Error)
	}
	b.WriteString(`</section>`)
}

func writeForm(b *strings.Builder, d DashboardData) {
	rows := d.Form.Rows
	if rows == 0 {
		rows = d.Defaults.RowLimit
	}

	b.WriteString(`<section class="card"><form method="post" action="/preview" enctype="multipart/form-data">`)
	b.WriteString(`<label for="file">Upload Excel (.xlsx)</label>`)
	b.WriteString(`<input id="file" type="file" name="file" accept=".xlsx,application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" required>`)
	b.WriteString(`<label for="message">What do you want Decisio to do?</label>`)
	b.WriteString(`<input id="message" type="text" name="message" value="` + esc(d.Form.Message) + `">`)
	b.WriteString(`<label for="rows">Rows to send to backend (limit for speed)</label>`)
	b.WriteString(fmt.Sprintf(`<input id="rows" type="number" name="rows" min="%d" max="%d" step="10" value="%d">`,
		d.Defaults.MinRows, d.Defaults.MaxRows, rows))
	b.WriteString(`<label for="sheet">Sheet name (leave blank for first sheet)</label>`)
	b.WriteString(`<input id="sheet" type="text" name="sheet" value="` + esc(d.Form.Sheet) + `">`)
	b.WriteString(`<div class="row" style="margin-top:12px">`)
	b.WriteString(`<button type="submit">Preview</button>`)
	b.WriteString(`<button type="submit" class="primary" formaction="/analyze">Run Decisio</button>`)
	b.WriteString(`</div></form></section>`)
}

func writeError(b *strings.Builder, e *ErrorView) {
	b.WriteString(`<section class="card" id="error">`)
	writeErrorBody(b, e)
	b.WriteString(`</section>`)
}

func writeErrorBody(b *strings.Builder, e *ErrorView) {
	if e.Title != "" {
		b.WriteString(`<h2>` + esc(e.Title) + `</h2>`)
	}
	b.WriteString(errorAlertHTML(e.Message, e.Action, e.Code, e.Detail))
}

func writePreview(b *strings.Builder, p *PreviewView) {
	b.WriteString(`<section class="card" id="preview">`)
	b.WriteString(`<h2>Preview (sheet: ` + esc(p.Sheet) + `)</h2>`)
	if p.Notice != "" {
		b.WriteString(alert("warn", p.Notice))
	}
	b.WriteString(`<div class="scroll"><table><thead><tr>`)
	for _, h := range p.Headers {
		b.WriteString(`<th>` + esc(h) + `</th>`)
	}
	b.WriteString(`</tr></thead><tbody>`)
	for _, row := range p.Rows {
		b.WriteString(`<tr>`)
		for _, cell := range row {
			b.WriteString(`<td>` + esc(cell) + `</td>`)
		}
		b.WriteString(`</tr>`)
	}
	b.WriteString(`</tbody></table></div>`)
	b.WriteString(fmt.Sprintf(`<div class="code">Showing %d of %d rows</div>`, len(p.Rows), p.TotalRows))
	b.WriteString(`</section>`)
}

func writeAnalysis(b *strings.Builder, a *AnalysisView) {
	b.WriteString(`<section class="card" id="analysis">`)
	b.WriteString(alert("success", "Analysis completed"))
	b.WriteString(fmt.Sprintf(`<div class="code">%d rows sent in %d ms</div>`, a.RowsSent, a.DurationMs))

	b.WriteString(`<h2>Raw response</h2><pre>` + esc(a.RawJSON) + `</pre>`)

	b.WriteString(`<h2>Answer</h2><p id="answer">` + esc(a.Answer) + `</p>`)

	b.WriteString(`<h2>Risks</h2>`)
	writeBullets(b, "risks", a.Risks, "No risks returned.")

	b.WriteString(`<h2>Score</h2><p id="score">` + esc(a.Score) + `</p>`)

	b.WriteString(`<h2>Next Questions</h2>`)
	writeBullets(b, "next-questions", a.NextQuestions, "None returned.")

	b.WriteString(`</section>`)
}

func writeBullets(b *strings.Builder, id string, items []string, empty string) {
	if len(items) == 0 {
		b.WriteString(`<p id="` + id + `">` + esc(empty) + `</p>`)
		return
	}
	b.WriteString(`<ul id="` + id + `">`)
	for _, item := range items {
		b.WriteString(`<li>` + esc(item) + `</li>`)
	}
	b.WriteString(`</ul>`)
}

func writeRuns(b *strings.Builder, runs []core.Run) {
	b.WriteString(`<section class="card" id="runs"><h2>Recent runs</h2><div class="scroll"><table>`)
	b.WriteString(`<thead><tr><th>When</th><th>Status</th><th>Sheet</th><th>Rows</th><th>Duration</th><th>Code</th><th>Conversation</th></tr></thead><tbody>`)
	for _, r := range runs {
		b.WriteString(`<tr>`)
		b.WriteString(`<td>` + esc(r.CreatedAt.Format("2006-01-02 15:04:05")) + `</td>`)
		b.WriteString(`<td>` + esc(string(r.Status)) + `</td>`)
		b.WriteString(`<td>` + esc(r.Sheet) + `</td>`)
		b.WriteString(`<td>` + strconv.Itoa(r.RowsSent) + `</td>`)
		b.WriteString(`<td>` + strconv.FormatInt(r.DurationMs, 10) + ` ms</td>`)
		b.WriteString(`<td>` + esc(r.ErrorCode) + `</td>`)
		b.WriteString(`<td><code>` + esc(r.ConversationID) + `</code></td>`)
		b.WriteString(`</tr>`)
	}
	b.WriteString(`</tbody></table></div></section>`)
}

// PrettyJSON indents v for display, falling back to %v.
func PrettyJSON(v any) string {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(out)
}

// PrettyRaw indents a raw JSON body, or returns it unchanged if it is not JSON.
// Key order and number literals are kept as the backend sent them.
func PrettyRaw(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// ScoreText renders a backend score; a missing score renders as "None".
func ScoreText(score any) string {
	switch s := score.(type) {
	case nil:
		return "None"
	case json.Number:
		return s.String()
	case string:
		return s
	default:
		return PrettyJSON(s)
	}
}
