// Package templates renders the operator console.
//
// Views are templ components built with templ.ComponentFunc; every dynamic
// value goes through templ.EscapeString before it reaches the page.
package templates

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

const styles = `
body{font-family:system-ui,sans-serif;margin:0;background:#f7f7f9;color:#1f2330}
main{max-width:1200px;margin:0 auto;padding:24px}
h1{margin:0 0 16px}
h2{margin:24px 0 8px;font-size:1.15rem}
section.card{background:#fff;border:1px solid #e2e4ea;border-radius:8px;padding:16px;margin-bottom:16px}
label{display:block;font-weight:600;margin:8px 0 4px}
input[type=text],input[type=number],textarea{width:100%;box-sizing:border-box;padding:6px}
.row{display:flex;gap:16px;align-items:center;flex-wrap:wrap}
.alert{border-radius:6px;padding:10px 12px;margin:8px 0}
.alert-error{background:#fdecea;border:1px solid #f5c2bd}
.alert-success{background:#e8f6ec;border:1px solid #b9e3c6}
.alert-info{background:#e8f0fd;border:1px solid #bcd0f5}
.alert-warn{background:#fff7e0;border:1px solid #f2dd9b}
.code{font-size:.8rem;color:#555}
pre{background:#f0f1f4;padding:10px;overflow:auto;border-radius:6px}
table{border-collapse:collapse;width:100%;font-size:.85rem}
th,td{border:1px solid #e2e4ea;padding:4px 6px;text-align:left;white-space:nowrap}
th{background:#f0f1f4}
.scroll{overflow:auto;max-height:480px}
button{padding:6px 14px;cursor:pointer}
button.primary{background:#2456d3;color:#fff;border:0;border-radius:4px}
`

// Page wraps body in the console layout.
func Page(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		b.WriteString(`<title>` + esc(title) + `</title><style>` + styles + `</style></head><body><main>`)
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</main></body></html>`)
		return err
	})
}

// ErrorAlert renders a mapped error message with its action and code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, errorAlertHTML(message, action, code, ""))
		return err
	})
}

func errorAlertHTML(message, action, code, detail string) string {
	var b strings.Builder
	b.WriteString(`<div class="alert alert-error" role="alert"><strong>` + esc(message) + `</strong>`)
	if action != "" {
		b.WriteString(`<div>` + esc(action) + `</div>`)
	}
	if code != "" {
		b.WriteString(`<div class="code">Code: ` + esc(code) + `</div>`)
	}
	b.WriteString(`</div>`)
	if detail != "" {
		b.WriteString(`<pre>` + esc(detail) + `</pre>`)
	}
	return b.String()
}

func alert(kind, text string) string {
	return `<div class="alert alert-` + kind + `">` + esc(text) + `</div>`
}

func esc(s string) string {
	return templ.EscapeString(s)
}
