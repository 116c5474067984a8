package services

import (
	"errors"

	"projectdash/internal/dataprocessing"
)

// Dashboard service errors
var (
	// Lookup errors
	ErrProjectNotFound  = errors.New("project not found")
	ErrWorkbookNotFound = errors.New("workbook not found")
	ErrSheetNotFound    = dataprocessing.ErrSheetNotFound
	ErrReportNotFound   = errors.New("report not found")

	// Data errors
	ErrNoNumericColumns = errors.New("no numeric columns")

	// General errors
	ErrInvalidInput = errors.New("invalid input")
)
