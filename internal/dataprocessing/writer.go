package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/xuri/excelize/v2"
)

// StatisticsSheetName is the fixed name of the generated summary sheet.
const StatisticsSheetName = "Statistics"

// Static text rendered into the summary sheet.
const (
	statsTitle         = "Construction Project Statistics"
	statsSelectedLabel = "Selected Columns for Analysis:"
	statsBasicLabel    = "Basic Statistics:"
	statsRecordsLabel  = "Total Records:"
	statsColumnsLabel  = "Total Columns:"
	statsNumericLabel  = "Numeric Column Statistics:"
	statsGraphNote     = "Note: Graphs are generated in the web application based on selected columns."
	statsExportNote    = "Use the PowerPoint export feature to generate presentation slides."
)

var statsHeader = []string{"Column", "Count", "Mean", "Min", "Max", "Sum"}

// StatisticsWriter regenerates the Statistics sheet of a workbook.
type StatisticsWriter struct {
	loader *SheetLoader
	logger *slog.Logger
}

// NewStatisticsWriter creates a writer. The loader is used for the existence check.
func NewStatisticsWriter(loader *SheetLoader, logger *slog.Logger) *StatisticsWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatisticsWriter{
		loader: loader,
		logger: logger.With(slog.String("component", "statistics_writer")),
	}
}

// WriteStatistics replaces the Statistics sheet of the workbook at path and
// reports whether it succeeded. Failures are logged.
func (w *StatisticsWriter) WriteStatistics(ctx context.Context, path string, table *Table, selected []string) bool {
	if err := w.ReplaceStatistics(ctx, path, table, selected); err != nil {
		w.logger.ErrorContext(ctx, "Error creating statistics sheet",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return false
	}
	return true
}

// ReplaceStatistics builds the new Statistics sheet in memory, swaps it for any
// existing one and saves the workbook once. The file on disk is either the old
// workbook or the complete new one.
func (w *StatisticsWriter) ReplaceStatistics(ctx context.Context, path string, table *Table, selected []string) error {
	if table == nil {
		return newWorkbookError("write statistics", path, StatisticsSheetName, ErrNilTable)
	}
	if !IsWritable(path) {
		if IsWorkbookExt(filepath.Ext(path)) {
			return newWorkbookError("write statistics", path, StatisticsSheetName, ErrReadOnlyFormat)
		}
		return newWorkbookError("write statistics", path, StatisticsSheetName, ErrUnsupportedFormat)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	f, err := excelize.OpenFile(path)
	if err != nil {
		return newWorkbookError("write statistics", path, "", wrapKind(ErrWorkbookOpen, err))
	}
	defer f.Close()

	if err := replaceStatisticsSheet(f, table, selected); err != nil {
		return newWorkbookError("write statistics", path, StatisticsSheetName, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := saveAtomic(f, path); err != nil {
		return newWorkbookError("write statistics", path, "", wrapKind(ErrSave, err))
	}

	w.logger.InfoContext(ctx, "Statistics sheet written",
		slog.String("path", path),
		slog.Int("selected_columns", len(selected)),
		slog.Int("rows", table.RowCount()),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// HasStatisticsSheet reports whether the workbook has a Statistics sheet.
// Read errors yield false.
func (w *StatisticsWriter) HasStatisticsSheet(ctx context.Context, path string) bool {
	return slices.Contains(w.loader.ListSheetNames(ctx, path), StatisticsSheetName)
}

// replaceStatisticsSheet renders into a scratch sheet first so a workbook whose
// only sheet is Statistics can still have it removed.
func replaceStatisticsSheet(f *excelize.File, table *Table, selected []string) error {
	scratch := scratchSheetName(f)
	if _, err := f.NewSheet(scratch); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := renderStatistics(f, scratch, table, selected); err != nil {
		return err
	}
	if idx, _ := f.GetSheetIndex(StatisticsSheetName); idx >= 0 {
		if err := f.DeleteSheet(StatisticsSheetName); err != nil {
			return fmt.Errorf("delete sheet: %w", err)
		}
	}
	if err := f.SetSheetName(scratch, StatisticsSheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	return nil
}

func scratchSheetName(f *excelize.File) string {
	name := "Statistics_tmp"
	for i := 1; ; i++ {
		if idx, _ := f.GetSheetIndex(name); idx < 0 {
			return name
		}
		name = fmt.Sprintf("Statistics_tmp%d", i)
	}
}

type statsStyles struct {
	title, bold, italic int
}

func newStatsStyles(f *excelize.File) (statsStyles, error) {
	var s statsStyles
	var err error
	if s.title, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}}); err != nil {
		return s, err
	}
	if s.bold, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return s, err
	}
	if s.italic, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Italic: true}}); err != nil {
		return s, err
	}
	return s, nil
}

// sheetCursor writes cells by column letter and row number and remembers the
// first error.
type sheetCursor struct {
	f     *excelize.File
	sheet string
	err   error
}

func (c *sheetCursor) set(col string, row int, value interface{}) {
	if c.err != nil {
		return
	}
	c.err = c.f.SetCellValue(c.sheet, fmt.Sprintf("%s%d", col, row), value)
}

func (c *sheetCursor) style(from, to string, row, id int) {
	if c.err != nil {
		return
	}
	c.err = c.f.SetCellStyle(c.sheet, fmt.Sprintf("%s%d", from, row), fmt.Sprintf("%s%d", to, row), id)
}

// renderStatistics lays the summary out in column A with values from column B.
func renderStatistics(f *excelize.File, sheet string, table *Table, selected []string) error {
	styles, err := newStatsStyles(f)
	if err != nil {
		return fmt.Errorf("create styles: %w", err)
	}
	c := &sheetCursor{f: f, sheet: sheet}

	c.set("A", 1, statsTitle)
	c.style("A", "A", 1, styles.title)

	row := 3
	c.set("A", row, statsSelectedLabel)
	c.style("A", "A", row, styles.bold)

	row++
	for _, name := range selected {
		c.set("A", row, "• "+name)
		row++
	}

	row += 2
	c.set("A", row, statsBasicLabel)
	c.style("A", "A", row, styles.bold)

	row++
	c.set("A", row, statsRecordsLabel)
	c.set("B", row, table.RowCount())

	row++
	c.set("A", row, statsColumnsLabel)
	c.set("B", row, table.ColumnCount())

	if len(table.NumericColumns()) > 0 {
		row += 2
		c.set("A", row, statsNumericLabel)
		c.style("A", "A", row, styles.bold)

		row++
		for i, h := range statsHeader {
			col, _ := excelize.ColumnNumberToName(i + 1)
			c.set(col, row, h)
		}
		c.style("A", "F", row, styles.bold)

		for _, s := range ComputeColumnStats(table, selected) {
			row++
			c.set("A", row, s.Column)
			c.set("B", row, s.Count)
			c.set("C", row, s.Mean)
			c.set("D", row, s.Min)
			c.set("E", row, s.Max)
			c.set("F", row, s.Sum)
		}
	}

	row += 3
	c.set("A", row, statsGraphNote)
	c.style("A", "A", row, styles.italic)

	row++
	c.set("A", row, statsExportNote)
	c.style("A", "A", row, styles.italic)

	return c.err
}

// saveAtomic serialises the workbook to a temp file beside path and renames it
// over the original.
func saveAtomic(f *excelize.File, path string) (err error) {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err = f.Write(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmpName, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
