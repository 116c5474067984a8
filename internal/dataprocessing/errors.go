package dataprocessing

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkbookOpen is returned when a workbook cannot be opened or parsed.
	ErrWorkbookOpen = errors.New("workbook cannot be opened")

	// ErrSheetNotFound is returned when the requested sheet does not exist.
	ErrSheetNotFound = errors.New("sheet not found")

	// ErrUnsupportedFormat is returned for files that are not spreadsheets.
	ErrUnsupportedFormat = errors.New("unsupported workbook format")

	// ErrReadOnlyFormat is returned when writing to a format that can only be read.
	ErrReadOnlyFormat = errors.New("workbook format is read-only")

	// ErrSave is returned when the modified workbook cannot be persisted.
	ErrSave = errors.New("workbook save failed")

	// ErrNilTable is returned when a statistics write is attempted without data.
	ErrNilTable = errors.New("table is nil")
)

// WorkbookError records the operation and location of a workbook failure.
type WorkbookError struct {
	Op    string
	Path  string
	Sheet string
	Err   error
}

func (e *WorkbookError) Error() string {
	if e.Sheet != "" {
		return fmt.Sprintf("%s %s [%s]: %v", e.Op, e.Path, e.Sheet, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WorkbookError) Unwrap() error {
	return e.Err
}

func newWorkbookError(op, path, sheet string, err error) error {
	return &WorkbookError{Op: op, Path: path, Sheet: sheet, Err: err}
}

// wrapKind attaches a sentinel to an underlying cause so both match errors.Is.
func wrapKind(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}
