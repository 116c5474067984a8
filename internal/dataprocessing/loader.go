package dataprocessing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultDateLayouts are tried in order when coercing text cells in date-named columns.
var DefaultDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01/02/2006 15:04",
	"02-Jan-2006",
	"2-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"15:04:05",
	"15:04",
}

// LoaderOptions configures a SheetLoader.
type LoaderOptions struct {
	// DateLayouts overrides DefaultDateLayouts when non-empty.
	DateLayouts []string

	// Logger receives soft failures. Defaults to slog.Default().
	Logger *slog.Logger
}

// SheetLoader reads sheets from workbooks on disk and returns cleaned, typed tables.
// Every call opens and closes its own workbook handle.
type SheetLoader struct {
	layouts []string
	logger  *slog.Logger
}

// NewSheetLoader creates a loader with the given options.
func NewSheetLoader(opts LoaderOptions) *SheetLoader {
	layouts := opts.DateLayouts
	if len(layouts) == 0 {
		layouts = DefaultDateLayouts
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SheetLoader{
		layouts: layouts,
		logger:  logger.With(slog.String("component", "sheet_loader")),
	}
}

// ListSheetNames returns the sheet names of the workbook at path in workbook order.
// Failures are logged and produce an empty slice.
func (l *SheetLoader) ListSheetNames(ctx context.Context, path string) []string {
	names, err := l.SheetNames(ctx, path)
	if err != nil {
		l.logger.ErrorContext(ctx, "Error reading sheet names",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return []string{}
	}
	return names
}

// SheetNames is ListSheetNames with the error returned instead of logged.
func (l *SheetLoader) SheetNames(ctx context.Context, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := openReader(path)
	if err != nil {
		return nil, newWorkbookError("list sheets", path, "", err)
	}
	defer r.Close()

	names := r.SheetNames()
	out := make([]string, len(names))
	copy(out, names)
	return out, nil
}

// LoadSheet reads one sheet and cleans it:
//
//  1. rows where every cell is null are dropped
//  2. columns where every cell is null are dropped
//  3. columns whose name contains "date" or "time" are converted to date/time, all or nothing
//  4. text columns are converted to numbers, all or nothing, when the conversion changes a cell
//
// A nil table is returned together with the error on any failure. The error is also logged.
func (l *SheetLoader) LoadSheet(ctx context.Context, path, sheet string) (*Table, error) {
	start := time.Now()
	table, err := l.loadSheet(ctx, path, sheet)
	if err != nil {
		l.logger.ErrorContext(ctx, "Error loading sheet",
			slog.String("path", path),
			slog.String("sheet", sheet),
			slog.String("error", err.Error()))
		return nil, err
	}
	l.logger.DebugContext(ctx, "Sheet loaded",
		slog.String("path", path),
		slog.String("sheet", sheet),
		slog.Int("rows", table.RowCount()),
		slog.Int("columns", table.ColumnCount()),
		slog.Duration("duration", time.Since(start)))
	return table, nil
}

func (l *SheetLoader) loadSheet(ctx context.Context, path, sheet string) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := openReader(path)
	if err != nil {
		return nil, newWorkbookError("load sheet", path, sheet, err)
	}
	defer r.Close()

	header, rows, err := r.Grid(sheet)
	if err != nil {
		if errors.Is(err, ErrSheetNotFound) {
			return nil, newWorkbookError("load sheet", path, sheet, ErrSheetNotFound)
		}
		return nil, newWorkbookError("load sheet", path, sheet, wrapKind(ErrWorkbookOpen, err))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table := buildTable(sheet, header, rows)
	l.clean(table)
	return table, nil
}

// buildTable lays the grid out column-wise. The header is widened to the widest
// row and short rows are padded with nulls.
func buildTable(sheet string, header []string, rows [][]Value) *Table {
	width := len(header)
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	names := columnNames(header, width)
	table := &Table{Sheet: sheet, Columns: make([]Column, width)}
	for c := 0; c < width; c++ {
		values := make([]Value, len(rows))
		for r, row := range rows {
			if c < len(row) {
				values[r] = row[c]
			}
		}
		table.Columns[c] = Column{Name: names[c], Values: values}
	}
	return table
}

// columnNames names blank headers "Unnamed: N" and suffixes repeats with ".1", ".2".
func columnNames(header []string, width int) []string {
	names := make([]string, width)
	used := make(map[string]bool, width)
	suffix := make(map[string]int)
	for c := 0; c < width; c++ {
		name := ""
		if c < len(header) {
			name = header[c]
		}
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", c)
		}
		if used[name] {
			base := name
			for used[name] {
				suffix[base]++
				name = fmt.Sprintf("%s.%d", base, suffix[base])
			}
		}
		used[name] = true
		names[c] = name
	}
	return names
}
