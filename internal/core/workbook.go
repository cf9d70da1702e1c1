package core

// workbook.go turns an uploaded xlsx file into a Table.
//
// Cell typing follows what a tabular engine would produce for the same
// sheet so the backend receives the same shapes it always has:
//   - numeric cells become int64 or float64
//   - numeric cells with a date or time number format become ISO-8601 strings
//   - boolean cells become bool
//   - blank cells and the common NA spellings (#N/A, NULL, NaN, ...) become
//     the missing-data sentinel NaN, which EncodePayload turns into null
//   - everything else stays a string

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// LoadOptions controls sheet resolution.
type LoadOptions struct {
	// StrictSheet makes an unknown non-empty sheet hint an error
	// instead of silently falling back to the first sheet.
	StrictSheet bool
}

// naTokens are cell texts treated as missing data.
var naTokens = map[string]bool{
	"":         true,
	"#N/A":     true,
	"#N/A N/A": true,
	"#NA":      true,
	"-1.#IND":  true,
	"-1.#QNAN": true,
	"-NaN":     true,
	"-nan":     true,
	"1.#IND":   true,
	"1.#QNAN":  true,
	"<NA>":     true,
	"N/A":      true,
	"NA":       true,
	"NULL":     true,
	"NaN":      true,
	"None":     true,
	"n/a":      true,
	"nan":      true,
	"null":     true,
}

// builtinDateFormats are the built-in number format IDs that render dates or times.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true, 21: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true, 32: true, 33: true, 34: true, 35: true, 36: true,
	45: true, 46: true, 47: true,
	50: true, 51: true, 52: true, 53: true, 54: true, 55: true, 56: true, 57: true, 58: true,
}

// LoadWorkbook parses an xlsx workbook and returns the resolved sheet as a Table.
//
// The sheet hint is trimmed; when it names an existing sheet that sheet is
// used, otherwise the first sheet in file order is used (or ErrSheetNotFound
// is returned when opts.StrictSheet is set). Table.Sheet always holds the
// sheet actually read.
func LoadWorkbook(src io.ReadSeeker, sheetHint string, opts LoadOptions) (*Table, error) {
	if src == nil {
		return nil, &LoadError{Err: ErrEmptySource}
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, &LoadError{Err: fmt.Errorf("rewind upload: %w", err)}
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, &LoadError{Err: fmt.Errorf("read upload: %w", err)}
	}
	if len(data) == 0 {
		return nil, &LoadError{Err: ErrEmptySource}
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &LoadError{Err: fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &LoadError{Err: fmt.Errorf("%w: no sheets", ErrInvalidWorkbook)}
	}

	hint := strings.TrimSpace(sheetHint)
	sheet, found := ResolveSheet(sheets, hint)
	if !found && hint != "" && opts.StrictSheet {
		return nil, &LoadError{Sheet: hint, Err: fmt.Errorf("%w (available: %s)", ErrSheetNotFound, strings.Join(sheets, ", "))}
	}

	r := &sheetReader{f: f, sheet: sheet, dateStyles: make(map[int]bool)}
	headers, rows, err := r.read()
	if err != nil {
		return nil, &LoadError{Sheet: sheet, Err: err}
	}

	return &Table{
		Sheet:     sheet,
		Requested: hint,
		Sheets:    sheets,
		Headers:   headers,
		Rows:      rows,
	}, nil
}

// ResolveSheet picks the sheet to read. It returns the hint when it exactly
// matches a sheet name, otherwise the first sheet with found=false.
func ResolveSheet(sheets []string, hint string) (name string, found bool) {
	if len(sheets) == 0 {
		return "", false
	}
	if hint != "" {
		for _, s := range sheets {
			if s == hint {
				return s, true
			}
		}
	}
	return sheets[0], false
}

type sheetReader struct {
	f          *excelize.File
	sheet      string
	date1904   bool
	dateStyles map[int]bool // style index -> renders as date
}

func (r *sheetReader) read() ([]string, [][]any, error) {
	display, err := r.f.GetRows(r.sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("read rows: %w", err)
	}
	raw, err := r.f.GetRows(r.sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, fmt.Errorf("read raw rows: %w", err)
	}
	if len(display) == 0 {
		return nil, nil, ErrNoColumns
	}

	if props, err := r.f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		r.date1904 = *props.Date1904
	}

	width := 0
	for _, row := range display {
		if len(row) > width {
			width = len(row)
		}
	}
	if width == 0 {
		return nil, nil, ErrNoColumns
	}

	headers := makeHeaders(display[0], width)

	rows := make([][]any, 0, len(display)-1)
	for i := 1; i < len(display); i++ {
		var rawRow []string
		if i < len(raw) {
			rawRow = raw[i]
		}
		rows = append(rows, r.typedRow(i+1, display[i], rawRow, width))
	}

	return headers, rows, nil
}

// makeHeaders coerces the first row to unique string labels.
// Blank labels become "Unnamed: <i>", repeats get ".1", ".2" suffixes.
func makeHeaders(first []string, width int) []string {
	headers := make([]string, width)
	seen := make(map[string]int, width)

	for i := 0; i < width; i++ {
		label := ""
		if i < len(first) {
			label = first[i]
		}
		if label == "" {
			label = fmt.Sprintf("Unnamed: %d", i)
		}

		base := label
		for seen[label] > 0 {
			seen[base]++
			label = fmt.Sprintf("%s.%d", base, seen[base]-1)
		}
		seen[label]++
		headers[i] = label
	}

	return headers
}

func (r *sheetReader) typedRow(rowNum int, display, raw []string, width int) []any {
	row := make([]any, width)
	for col := 0; col < width; col++ {
		var disp, rawVal string
		if col < len(display) {
			disp = display[col]
		}
		if col < len(raw) {
			rawVal = raw[col]
		}
		row[col] = r.cellValue(col+1, rowNum, disp, rawVal)
	}
	return row
}

func (r *sheetReader) cellValue(col, row int, display, raw string) any {
	if raw == "" && display == "" {
		return math.NaN()
	}

	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return textValue(display)
	}
	typ, err := r.f.GetCellType(r.sheet, cell)
	if err != nil {
		return textValue(display)
	}

	switch typ {
	case excelize.CellTypeBool:
		switch strings.ToUpper(raw) {
		case "1", "TRUE":
			return true
		case "0", "FALSE":
			return false
		}
		return textValue(display)

	case excelize.CellTypeError:
		return textValue(raw)

	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		n, ok := parseNumber(raw)
		if !ok {
			return textValue(display)
		}
		if r.isDateCell(cell) {
			if f, isFloat := toFloat(n); isFloat {
				if s, ok := r.formatDate(f); ok {
					return s
				}
			}
		}
		return n

	default:
		return textValue(display)
	}
}

// textValue maps NA spellings to the missing sentinel and keeps other text.
func textValue(s string) any {
	if naTokens[s] {
		return math.NaN()
	}
	return s
}

// parseNumber returns int64 for integral text, float64 for decimals.
func parseNumber(s string) (any, bool) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}
	return nil, false
}

func toFloat(n any) (float64, bool) {
	switch v := n.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

func (r *sheetReader) isDateCell(cell string) bool {
	idx, err := r.f.GetCellStyle(r.sheet, cell)
	if err != nil || idx == 0 {
		return false
	}
	if v, ok := r.dateStyles[idx]; ok {
		return v
	}

	isDate := false
	if style, err := r.f.GetStyle(idx); err == nil && style != nil {
		if style.CustomNumFmt != nil {
			isDate = isDateFormat(*style.CustomNumFmt)
		} else {
			isDate = builtinDateFormats[style.NumFmt]
		}
	}
	r.dateStyles[idx] = isDate
	return isDate
}

// isDateFormat reports whether a custom number format renders a date or time.
// Quoted literals, escaped characters and bracketed sections (colors, locales)
// are ignored; elapsed-time sections like [h] count as time.
func isDateFormat(format string) bool {
	// Only the first section (positive numbers) decides.
	if i := strings.Index(format, ";"); i >= 0 {
		format = format[:i]
	}

	var b strings.Builder
	inQuote := false
	for i := 0; i < len(format); i++ {
		c := format[i]
		switch {
		case inQuote:
			if c == '"' {
				inQuote = false
			}
		case c == '"':
			inQuote = true
		case c == '\\' || c == '_' || c == '*':
			i++
		case c == '[':
			end := strings.IndexByte(format[i:], ']')
			if end < 0 {
				i = len(format)
				continue
			}
			section := strings.ToLower(format[i+1 : i+end])
			if strings.Trim(section, "hms") == "" && section != "" {
				b.WriteString(section)
			}
			i += end
		default:
			b.WriteByte(c)
		}
	}

	cleaned := strings.ToLower(b.String())
	return strings.ContainsAny(cleaned, "ymdhs")
}

func (r *sheetReader) formatDate(serial float64) (string, bool) {
	if serial < 0 {
		return "", false
	}
	t, err := excelize.ExcelDateToTime(serial, r.date1904)
	if err != nil {
		return "", false
	}
	switch {
	case serial < 1:
		return t.Format("15:04:05"), true
	case t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0:
		return t.Format("2006-01-02"), true
	default:
		return t.Format("2006-01-02T15:04:05"), true
	}
}
