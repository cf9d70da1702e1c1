package core

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptySource indicates the uploaded file has no bytes.
	ErrEmptySource = errors.New("empty file")

	// ErrInvalidWorkbook indicates the bytes are not a readable xlsx container.
	ErrInvalidWorkbook = errors.New("invalid workbook")

	// ErrNoColumns indicates the chosen sheet has no header columns.
	ErrNoColumns = errors.New("sheet has no columns")

	// ErrSheetNotFound is returned for an unknown sheet hint when strict resolution is on.
	ErrSheetNotFound = errors.New("sheet not found")
)

// LoadError reports a workbook that could not be turned into a Table.
// It is fatal for the action that triggered the load.
type LoadError struct {
	Sheet string // resolved or requested sheet, empty if the workbook never opened
	Err   error
}

func (e *LoadError) Error() string {
	if e.Sheet == "" {
		return fmt.Sprintf("load workbook: %v", e.Err)
	}
	return fmt.Sprintf("load workbook sheet %q: %v", e.Sheet, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// InvalidLimitError reports a row limit outside the accepted range.
type InvalidLimitError struct {
	Limit int
	Min   int
	Max   int // 0 means unbounded
}

func (e *InvalidLimitError) Error() string {
	if e.Max > 0 {
		return fmt.Sprintf("invalid row limit %d: must be between %d and %d", e.Limit, e.Min, e.Max)
	}
	return fmt.Sprintf("invalid row limit %d: must be at least %d", e.Limit, e.Min)
}
