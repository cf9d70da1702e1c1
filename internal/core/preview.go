package core

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Preview is a loaded table plus the rows shown to the operator.
type Preview struct {
	Table *Table
	Rows  [][]any
}

// FellBack reports whether the requested sheet was replaced by the first sheet.
func (p *Preview) FellBack() bool {
	return p != nil && p.Table != nil && p.Table.FellBack()
}

// Notice describes a sheet fallback, or returns "" when there was none.
func (p *Preview) Notice() string {
	if !p.FellBack() {
		return ""
	}
	return fmt.Sprintf("Sheet %q not found; showing %q instead.", p.Table.Requested, p.Table.Sheet)
}

// PreviewResponse is the JSON form of a Preview.
type PreviewResponse struct {
	Sheet        string   `json:"sheet"`
	Requested    string   `json:"requested,omitempty"`
	Sheets       []string `json:"sheets"`
	FellBack     bool     `json:"fellBack"`
	Notice       string   `json:"notice,omitempty"`
	Headers      []string `json:"headers"`
	Rows         [][]any  `json:"rows"`
	TotalRows    int      `json:"totalRows"`
	TotalColumns int      `json:"totalColumns"`
}

// Response converts the preview into a JSON-safe value. Missing cells are null.
func (p *Preview) Response() PreviewResponse {
	t := p.Table
	rows := make([][]any, len(p.Rows))
	for i, src := range p.Rows {
		row := make([]any, len(src))
		for j, v := range src {
			if !IsMissing(v) {
				row[j] = v
			}
		}
		rows[i] = row
	}

	return PreviewResponse{
		Sheet:        t.Sheet,
		Requested:    t.Requested,
		Sheets:       t.Sheets,
		FellBack:     p.FellBack(),
		Notice:       p.Notice(),
		Headers:      t.Headers,
		Rows:         rows,
		TotalRows:    t.RowCount(),
		TotalColumns: t.ColumnCount(),
	}
}

// FormatCell renders a table cell for display. Missing cells render empty.
func FormatCell(v any) string {
	if IsMissing(v) {
		return ""
	}

	switch val := v.(type) {
	case string:
		return val
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatFloat(val, 'f', 1, 64)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.Format("2006-01-02")
	default:
		return fmt.Sprintf("%v", val)
	}
}
