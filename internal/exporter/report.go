package exporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"projectdash/internal/charts"
)

// Fixed report text.
const (
	DefaultReportTitle = "Construction Project Report"
	reportSubtitle     = "Construction Project Management Dashboard"
	reportFooter       = "Generated by Construction Project Management Dashboard"
	summaryTitle       = "Report Summary"
	titleSheet         = "Title"
	summarySheet       = "Summary"
)

var summaryBullets = []string{
	"Data sourced from construction project Excel files",
	"Graphs created based on admin-selected columns",
	"Real-time data analysis and visualization",
	"Export capability for project reporting",
}

// ErrNoCharts is returned when a report is requested without charts.
var ErrNoCharts = errors.New("report needs at least one chart")

// ReportWriter renders charts into a report workbook: a title sheet, one sheet
// per chart holding its data and a native chart, and a summary sheet.
type ReportWriter struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// NewReportWriter writes reports into dir.
func NewReportWriter(dir string, logger *slog.Logger) *ReportWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportWriter{
		dir:    dir,
		logger: logger.With(slog.String("component", "report_writer")),
		now:    time.Now,
	}
}

// ReportFileName returns {title}_{YYYYmmdd_HHMMSS}.xlsx with spaces in the
// title replaced by underscores.
func ReportFileName(title string, at time.Time) string {
	if strings.TrimSpace(title) == "" {
		title = DefaultReportTitle
	}
	name := SafeFileName(strings.ReplaceAll(strings.TrimSpace(title), " ", "_"))
	return fmt.Sprintf("%s_%s.xlsx", name, at.Format("20060102_150405"))
}

// Write builds the report and returns the path of the saved workbook.
func (w *ReportWriter) Write(ctx context.Context, title string, items []*charts.Chart) (string, error) {
	if len(items) == 0 {
		return "", ErrNoCharts
	}
	if strings.TrimSpace(title) == "" {
		title = DefaultReportTitle
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	now := w.now()
	f := excelize.NewFile()
	defer f.Close()

	styles, err := newReportStyles(f)
	if err != nil {
		return "", fmt.Errorf("create styles: %w", err)
	}
	if err := writeTitleSheet(f, styles, title, now); err != nil {
		return "", fmt.Errorf("title sheet: %w", err)
	}
	for i, chart := range items {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := writeChartSheet(f, styles, chart, i+1); err != nil {
			return "", fmt.Errorf("chart %d (%s): %w", i+1, chart.Title, err)
		}
	}
	if err := writeSummarySheet(f, styles, len(items)); err != nil {
		return "", fmt.Errorf("summary sheet: %w", err)
	}
	f.SetActiveSheet(0)

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}
	path := filepath.Join(w.dir, ReportFileName(title, now))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}

	w.logger.InfoContext(ctx, "Report generated",
		slog.String("file", filepath.Base(path)),
		slog.Int("charts", len(items)))
	return path, nil
}

type reportStyles struct {
	title, heading, subtitle, header, muted, footer int
}

func newReportStyles(f *excelize.File) (reportStyles, error) {
	var s reportStyles
	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&s.title, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 24, Color: "1F497D"}}},
		{&s.heading, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 16, Color: "1F497D"}}},
		{&s.subtitle, &excelize.Style{Font: &excelize.Font{Size: 14, Color: "44546A"}}},
		{&s.header, &excelize.Style{Font: &excelize.Font{Bold: true}}},
		{&s.muted, &excelize.Style{Font: &excelize.Font{Size: 10, Color: "7F7F7F"}}},
		{&s.footer, &excelize.Style{Font: &excelize.Font{Italic: true, Size: 10, Color: "7F7F7F"}}},
	}
	for _, d := range defs {
		id, err := f.NewStyle(d.style)
		if err != nil {
			return s, err
		}
		*d.dst = id
	}
	return s, nil
}

// cellWriter sets values and styles by coordinates and keeps the first error.
type cellWriter struct {
	f     *excelize.File
	sheet string
	err   error
}

func (c *cellWriter) set(col, row int, value interface{}) {
	if c.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		c.err = err
		return
	}
	c.err = c.f.SetCellValue(c.sheet, cell, value)
}

func (c *cellWriter) style(col, row, id int) {
	if c.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		c.err = err
		return
	}
	c.err = c.f.SetCellStyle(c.sheet, cell, cell, id)
}

func writeTitleSheet(f *excelize.File, s reportStyles, title string, now time.Time) error {
	if err := f.SetSheetName(f.GetSheetName(0), titleSheet); err != nil {
		return err
	}
	c := &cellWriter{f: f, sheet: titleSheet}
	c.set(1, 1, title)
	c.style(1, 1, s.title)
	c.set(1, 3, "Generated on "+now.Format("January 02, 2006"))
	c.style(1, 3, s.subtitle)
	c.set(1, 4, reportSubtitle)
	c.style(1, 4, s.subtitle)
	return c.err
}

func writeSummarySheet(f *excelize.File, s reportStyles, count int) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	c := &cellWriter{f: f, sheet: summarySheet}
	c.set(1, 1, summaryTitle)
	c.style(1, 1, s.heading)

	points := append([]string{fmt.Sprintf("Total visualizations generated: %d", count)}, summaryBullets...)
	for i, p := range points {
		c.set(1, 3+i, "• "+p)
		c.style(1, 3+i, s.subtitle)
	}

	footerRow := 4 + len(points)
	c.set(1, footerRow, reportFooter)
	c.style(1, footerRow, s.footer)
	return c.err
}

// Rows of a chart sheet: title, slide number, then the data table.
const (
	chartTitleRow  = 1
	chartNumberRow = 2
	chartHeaderRow = 4
)

var chartKinds = map[charts.Type]excelize.ChartType{
	charts.TypeBar:       excelize.Col,
	charts.TypeLine:      excelize.Line,
	charts.TypeScatter:   excelize.Scatter,
	charts.TypePie:       excelize.Pie,
	charts.TypeHistogram: excelize.Col,
	charts.TypeBox:       excelize.Col,
	charts.TypeHeatmap:   excelize.Col,
}

func writeChartSheet(f *excelize.File, s reportStyles, chart *charts.Chart, number int) error {
	sheet := fmt.Sprintf("Chart %d", number)
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	title := chart.Title
	if title == "" {
		title = sheet
	}
	c := &cellWriter{f: f, sheet: sheet}
	c.set(1, chartTitleRow, title)
	c.style(1, chartTitleRow, s.heading)
	c.set(1, chartNumberRow, number)
	c.style(1, chartNumberRow, s.muted)

	table := chartTable(chart)
	if len(table.rows) == 0 {
		return fmt.Errorf("chart has no data")
	}
	for j, h := range table.header {
		c.set(j+1, chartHeaderRow, h)
		c.style(j+1, chartHeaderRow, s.header)
	}
	for i, row := range table.rows {
		for j, v := range row {
			if v != nil {
				c.set(j+1, chartHeaderRow+1+i, v)
			}
		}
	}
	if c.err != nil {
		return c.err
	}

	kind, ok := chartKinds[chart.Type]
	if !ok {
		return fmt.Errorf("%w: %q", charts.ErrUnknownType, chart.Type)
	}

	first, last := chartHeaderRow+1, chartHeaderRow+len(table.rows)
	categories := rangeRef(sheet, 1, first, last)
	series := make([]excelize.ChartSeries, 0, len(table.header)-1)
	for j := 2; j <= len(table.header); j++ {
		series = append(series, excelize.ChartSeries{
			Name:       cellRef(sheet, j, chartHeaderRow),
			Categories: categories,
			Values:     rangeRef(sheet, j, first, last),
		})
	}

	anchor, err := excelize.CoordinatesToCellName(len(table.header)+2, chartHeaderRow)
	if err != nil {
		return err
	}
	return f.AddChart(sheet, anchor, &excelize.Chart{
		Type:      kind,
		Series:    series,
		Title:     []excelize.RichTextRun{{Text: title}},
		Dimension: excelize.ChartDimension{Width: 800, Height: 500},
		Legend:    excelize.ChartLegend{Position: "bottom"},
		XAxis:     excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: chart.XLabel}}},
		YAxis:     excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: chart.YLabel}}, MajorGridLines: true},
	})
}

type dataTable struct {
	header []string
	rows   [][]interface{}
}

// chartTable lays a chart out as a category column followed by one value
// column per series. Scatter charts use the x values as the category column
// and heatmaps write one column per grid row.
func chartTable(chart *charts.Chart) dataTable {
	if chart.Grid != nil {
		g := chart.Grid
		t := dataTable{header: append([]string{chart.XLabel}, g.Y...)}
		for j, x := range g.X {
			row := []interface{}{x}
			for i := range g.Y {
				if z := g.Z[i][j]; z != nil {
					row = append(row, *z)
				} else {
					row = append(row, nil)
				}
			}
			t.rows = append(t.rows, row)
		}
		return t
	}

	if len(chart.Series) == 0 {
		return dataTable{}
	}

	label := chart.XLabel
	if label == "" {
		label = "Category"
	}
	t := dataTable{header: []string{label}}
	for _, s := range chart.Series {
		t.header = append(t.header, s.Name)
	}

	lead := chart.Series[0]
	for i := range lead.Values {
		var category interface{}
		switch {
		case chart.Type == charts.TypeScatter && i < len(lead.X):
			category = lead.X[i]
		case i < len(lead.Labels):
			category = lead.Labels[i]
		default:
			category = i + 1
		}
		row := []interface{}{category}
		for _, s := range chart.Series {
			if i < len(s.Values) {
				row = append(row, s.Values[i])
			} else {
				row = append(row, nil)
			}
		}
		t.rows = append(t.rows, row)
	}
	return t
}

func cellRef(sheet string, col, row int) string {
	name, _ := excelize.ColumnNumberToName(col)
	return fmt.Sprintf("'%s'!$%s$%d", sheet, name, row)
}

func rangeRef(sheet string, col, from, to int) string {
	name, _ := excelize.ColumnNumberToName(col)
	return fmt.Sprintf("'%s'!$%s$%d:$%s$%d", sheet, name, from, name, to)
}
