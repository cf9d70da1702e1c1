package core

// Table is a rectangular sheet: named columns and ordered rows.
// Every row has exactly len(Headers) cells. Cells hold string, int64,
// float64, bool, nil, or the missing-data sentinel NaN.
//
// A Table is immutable once returned by LoadWorkbook.
type Table struct {
	// Sheet is the name of the sheet the table was read from.
	Sheet string
	// Requested is the trimmed sheet hint the caller asked for ("" if none).
	Requested string
	// Sheets lists every sheet in the workbook in file order.
	Sheets []string

	Headers []string
	Rows    [][]any
}

// RowCount returns the number of data rows.
func (t *Table) RowCount() int {
	return len(t.Rows)
}

// ColumnCount returns the number of columns.
func (t *Table) ColumnCount() int {
	return len(t.Headers)
}

// FellBack reports whether a non-empty sheet hint was not found and the
// first sheet was used instead.
func (t *Table) FellBack() bool {
	return t.Requested != "" && t.Requested != t.Sheet
}

// Head returns the first n rows (all rows if n exceeds the row count).
// The returned slice shares cells with the table and must not be modified.
func (t *Table) Head(n int) [][]any {
	if n < 0 {
		n = 0
	}
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	return t.Rows[:n:n]
}
