package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"projectdash/internal/charts"
	"projectdash/internal/config"
	"projectdash/internal/dataprocessing"
	"projectdash/internal/exporter"
	"projectdash/internal/files"
	"projectdash/internal/infrastructure"
)

// Websocket event types sent after a workbook or report is written.
const (
	EventStatisticsWritten = "statistics:written"
	EventReportGenerated   = "report:generated"
)

// EventBroadcaster interface for WebSocket communication
type EventBroadcaster interface {
	Broadcast(messageType string, data interface{})
}

// DashboardService answers the dashboard's questions about the projects root:
// which projects and workbooks exist, what a sheet contains, and it writes
// Statistics sheets and report workbooks.
type DashboardService struct {
	cfg         *config.Config
	discovery   *files.Discovery
	loader      *dataprocessing.SheetLoader
	writer      *dataprocessing.StatisticsWriter
	builder     *charts.Builder
	reports     *exporter.ReportWriter
	reportFiles *files.Manager
	hub         EventBroadcaster
	metrics     *infrastructure.BusinessMetrics
	locks       pathLocks
	logger      *slog.Logger
}

// DashboardOption customises a DashboardService.
type DashboardOption func(*DashboardService)

// WithBroadcaster sends write events to hub.
func WithBroadcaster(hub EventBroadcaster) DashboardOption {
	return func(s *DashboardService) { s.hub = hub }
}

// WithMetrics records workbook operations on m.
func WithMetrics(m *infrastructure.BusinessMetrics) DashboardOption {
	return func(s *DashboardService) { s.metrics = m }
}

// NewDashboardService creates the service for the resolved paths. Limits such
// as the preview row cap and histogram bins come from cfg.
func NewDashboardService(cfg *config.Config, paths *config.Paths, logger *slog.Logger, opts ...DashboardOption) *DashboardService {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}

	loader := dataprocessing.NewSheetLoader(dataprocessing.LoaderOptions{Logger: logger})
	s := &DashboardService{
		cfg:         cfg,
		discovery:   files.NewDiscovery(paths.ProjectsRoot, logger),
		loader:      loader,
		writer:      dataprocessing.NewStatisticsWriter(loader, logger),
		builder:     charts.NewBuilder(cfg.Projects.HistogramBins),
		reports:     exporter.NewReportWriter(paths.ReportsDir, logger),
		reportFiles: files.NewManager(paths.ReportsDir, logger),
		logger:      logger.With(slog.String("component", "dashboard_service")),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.logger.Info("DashboardService initialized",
		slog.String("projects_root", paths.ProjectsRoot),
		slog.String("reports_dir", paths.ReportsDir),
		slog.Int("max_preview_rows", cfg.Projects.MaxPreviewRows))
	return s
}

// ProjectsRoot returns the directory the service browses.
func (s *DashboardService) ProjectsRoot() string {
	return s.discovery.Root()
}

// ListProjects returns the project folders below the root, sorted by name.
func (s *DashboardService) ListProjects(ctx context.Context) (projects []files.Project, err error) {
	_, done := s.observe(ctx, "list_projects")
	defer func() { done(err) }()

	return s.discovery.ListProjects()
}

// ListWorkbooks returns the workbooks of one project.
func (s *DashboardService) ListWorkbooks(ctx context.Context, project string) (workbooks []files.WorkbookFile, err error) {
	_, done := s.observe(ctx, "list_workbooks", attribute.String("project", project))
	defer func() { done(err) }()

	dir, err := s.projectDir(project)
	if err != nil {
		return nil, err
	}
	return s.discovery.FindWorkbooks(dir)
}

// WorkbookDetails is the file information shown when a workbook is selected.
type WorkbookDetails struct {
	files.WorkbookFile
	Project       string   `json:"project"`
	Sheets        []string `json:"sheets"`
	HasStatistics bool     `json:"has_statistics"`
	Writable      bool     `json:"writable"`
}

// WorkbookInfo returns size, timestamps and sheets of a workbook.
func (s *DashboardService) WorkbookInfo(ctx context.Context, project, file string) (details *WorkbookDetails, err error) {
	ctx, done := s.observe(ctx, "workbook_info", attribute.String("project", project), attribute.String("workbook", file))
	defer func() { done(err) }()

	path, err := s.workbookPath(project, file)
	if err != nil {
		return nil, err
	}
	info, err := files.FileInfo(path)
	if err != nil {
		return nil, err
	}
	sheets, err := s.loader.SheetNames(ctx, path)
	if err != nil {
		return nil, err
	}

	return &WorkbookDetails{
		WorkbookFile:  info,
		Project:       project,
		Sheets:        sheets,
		HasStatistics: slices.Contains(sheets, dataprocessing.StatisticsSheetName),
		Writable:      dataprocessing.IsWritable(path),
	}, nil
}

// ListSheets returns the sheet names of a workbook in workbook order.
func (s *DashboardService) ListSheets(ctx context.Context, project, file string) (sheets []string, err error) {
	ctx, done := s.observe(ctx, "list_sheets", attribute.String("project", project), attribute.String("workbook", file))
	defer func() { done(err) }()

	path, err := s.workbookPath(project, file)
	if err != nil {
		return nil, err
	}
	return s.loader.SheetNames(ctx, path)
}

// TableColumn names a column of a TablePage and its classification.
type TableColumn struct {
	Name string                    `json:"name"`
	Type dataprocessing.ColumnType `json:"type"`
}

// TablePage is a window of rows of a cleaned sheet.
type TablePage struct {
	Project   string                            `json:"project"`
	Workbook  string                            `json:"workbook"`
	Sheet     string                            `json:"sheet"`
	Columns   []TableColumn                     `json:"columns"`
	Rows      []map[string]dataprocessing.Value `json:"rows"`
	TotalRows int                               `json:"total_rows"`
	Offset    int                               `json:"offset"`
	Limit     int                               `json:"limit"`
}

// LoadTable returns rows [offset, offset+limit) of the cleaned sheet. A limit
// outside 1..MaxPreviewRows is clamped to MaxPreviewRows.
func (s *DashboardService) LoadTable(ctx context.Context, project, file, sheet string, offset, limit int) (page *TablePage, err error) {
	ctx, done := s.observe(ctx, "load_sheet", attribute.String("workbook", file), attribute.String("sheet", sheet))
	defer func() { done(err) }()

	if offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", ErrInvalidInput)
	}
	if maxRows := s.cfg.Projects.MaxPreviewRows; maxRows > 0 && (limit <= 0 || limit > maxRows) {
		limit = maxRows
	}

	table, err := s.loadTable(ctx, project, file, sheet)
	if err != nil {
		return nil, err
	}

	columns := make([]TableColumn, len(table.Columns))
	for i, c := range table.Columns {
		columns[i] = TableColumn{Name: c.Name, Type: c.Type}
	}
	return &TablePage{
		Project:   project,
		Workbook:  file,
		Sheet:     sheet,
		Columns:   columns,
		Rows:      table.Slice(offset, limit).Records(),
		TotalRows: table.RowCount(),
		Offset:    offset,
		Limit:     limit,
	}, nil
}

// ColumnInfo describes every column of a sheet.
func (s *DashboardService) ColumnInfo(ctx context.Context, project, file, sheet string) (info []dataprocessing.ColumnInfo, err error) {
	ctx, done := s.observe(ctx, "column_info", attribute.String("workbook", file), attribute.String("sheet", sheet))
	defer func() { done(err) }()

	table, err := s.loadTable(ctx, project, file, sheet)
	if err != nil {
		return nil, err
	}
	return dataprocessing.DescribeColumns(table), nil
}

// SheetReport is the statistics view of a sheet.
type SheetReport struct {
	Summary     dataprocessing.SheetSummary      `json:"summary"`
	Numeric     []dataprocessing.NumericSummary  `json:"numeric"`
	Correlation dataprocessing.CorrelationMatrix `json:"correlation"`
}

// SheetSummary returns headline counts, numeric summaries and the correlation
// matrix of a sheet.
func (s *DashboardService) SheetSummary(ctx context.Context, project, file, sheet string) (report *SheetReport, err error) {
	ctx, done := s.observe(ctx, "sheet_summary", attribute.String("workbook", file), attribute.String("sheet", sheet))
	defer func() { done(err) }()

	table, err := s.loadTable(ctx, project, file, sheet)
	if err != nil {
		return nil, err
	}
	numeric := dataprocessing.Describe(table, nil)
	if numeric == nil {
		numeric = []dataprocessing.NumericSummary{}
	}
	return &SheetReport{
		Summary:     dataprocessing.Summarize(table),
		Numeric:     numeric,
		Correlation: dataprocessing.Correlation(table, nil),
	}, nil
}

// StatisticsResult reports what was written to the Statistics sheet.
type StatisticsResult struct {
	Project   string                       `json:"project"`
	Workbook  string                       `json:"workbook"`
	Sheet     string                       `json:"sheet"`
	Columns   []string                     `json:"columns"`
	Unmatched []string                     `json:"unmatched_columns,omitempty"`
	Stats     []dataprocessing.ColumnStats `json:"stats"`
	Rows      int                          `json:"rows"`
	WrittenAt time.Time                    `json:"written_at"`
}

// WriteStatistics summarises sheet into the workbook's Statistics sheet,
// replacing any previous one. Selected names are listed as given; names the
// sheet does not have are reported in Unmatched and logged. Writes to the same
// workbook are serialised.
func (s *DashboardService) WriteStatistics(ctx context.Context, project, file, sheet string, columns []string) (result *StatisticsResult, err error) {
	ctx, done := s.observe(ctx, "write_statistics", attribute.String("workbook", file), attribute.String("sheet", sheet))
	defer func() { done(err) }()

	path, err := s.workbookPath(project, file)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(path)
	defer unlock()

	table, err := s.loader.LoadSheet(ctx, path, sheet)
	if err != nil {
		return nil, err
	}
	unmatched := dataprocessing.UnmatchedColumns(table, columns)
	if len(unmatched) > 0 {
		infrastructure.WithWorkbook(s.logger, path, sheet).WarnContext(ctx, "Selected columns not found in sheet",
			slog.Any("columns", unmatched))
	}
	if err := s.writer.ReplaceStatistics(ctx, path, table, columns); err != nil {
		return nil, err
	}

	stats := dataprocessing.ComputeColumnStats(table, columns)
	if stats == nil {
		stats = []dataprocessing.ColumnStats{}
	}
	if columns == nil {
		columns = []string{}
	}
	result = &StatisticsResult{
		Project:   project,
		Workbook:  file,
		Sheet:     sheet,
		Columns:   columns,
		Unmatched: unmatched,
		Stats:     stats,
		Rows:      table.RowCount(),
		WrittenAt: time.Now(),
	}

	infrastructure.RecordStatisticsWritten(ctx, s.metrics, len(columns))
	s.broadcast(EventStatisticsWritten, map[string]interface{}{
		"project":  project,
		"workbook": file,
		"sheet":    sheet,
		"columns":  columns,
	})
	infrastructure.WithWorkbook(s.logger, path, sheet).InfoContext(ctx, "Statistics written",
		slog.Int("columns", len(columns)),
		slog.Int("numeric_columns", len(stats)))
	return result, nil
}

// HasStatistics reports whether the workbook already carries a Statistics sheet.
func (s *DashboardService) HasStatistics(ctx context.Context, project, file string) (has bool, err error) {
	ctx, done := s.observe(ctx, "has_statistics", attribute.String("workbook", file))
	defer func() { done(err) }()

	path, err := s.workbookPath(project, file)
	if err != nil {
		return false, err
	}
	return s.writer.HasStatisticsSheet(ctx, path), nil
}

// BuildChart plots columns of a sheet.
func (s *DashboardService) BuildChart(ctx context.Context, project, file, sheet string, req charts.Request) (chart *charts.Chart, err error) {
	ctx, done := s.observe(ctx, "build_chart", attribute.String("sheet", sheet), attribute.String("chart_type", string(req.Type)))
	defer func() { done(err) }()

	table, err := s.loadTable(ctx, project, file, sheet)
	if err != nil {
		return nil, err
	}
	return s.builder.Build(table, req)
}

// CSVExport is a rendered sheet download.
type CSVExport struct {
	Name string
	Data []byte
}

// ExportCSV renders the cleaned sheet as CSV.
func (s *DashboardService) ExportCSV(ctx context.Context, project, file, sheet string) (export *CSVExport, err error) {
	ctx, done := s.observe(ctx, "export_csv", attribute.String("workbook", file), attribute.String("sheet", sheet))
	defer func() { done(err) }()

	table, err := s.loadTable(ctx, project, file, sheet)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := exporter.WriteTableCSV(&buf, table); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}
	return &CSVExport{
		Name: exporter.CSVFileName(project, file, sheet),
		Data: buf.Bytes(),
	}, nil
}

// ReportRequest selects the charts of a report. Explicit charts come first,
// followed by the suggested sets. With neither, every suggested set is used.
type ReportRequest struct {
	Title       string           `json:"title" validate:"max=200"`
	Columns     []string         `json:"columns" validate:"dive,required"`
	Suggestions []string         `json:"suggestions" validate:"dive,required"`
	Charts      []charts.Request `json:"charts" validate:"dive"`
}

// ReportResult describes a generated report workbook.
type ReportResult struct {
	Name      string    `json:"name"`
	Title     string    `json:"title"`
	Charts    int       `json:"charts"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// ExportReport renders charts of a sheet into a report workbook in the reports
// directory. Reports older than the configured retention are pruned first.
func (s *DashboardService) ExportReport(ctx context.Context, project, file, sheet string, req ReportRequest) (result *ReportResult, err error) {
	ctx, done := s.observe(ctx, "export_report", attribute.String("workbook", file), attribute.String("sheet", sheet))
	defer func() { done(err) }()

	sets := make([]charts.Suggestion, 0, len(req.Suggestions))
	for _, name := range req.Suggestions {
		set, err := charts.ParseSuggestion(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		sets = append(sets, set)
	}

	table, err := s.loadTable(ctx, project, file, sheet)
	if err != nil {
		return nil, err
	}

	items := make([]*charts.Chart, 0, len(req.Charts))
	for i, r := range req.Charts {
		chart, err := s.builder.Build(table, r)
		if err != nil {
			return nil, fmt.Errorf("chart %d: %w", i+1, err)
		}
		items = append(items, chart)
	}
	if len(sets) > 0 || len(items) == 0 {
		suggested, err := s.builder.Suggest(table, req.Columns, sets...)
		switch {
		case errors.Is(err, charts.ErrNoChartsSuggested) && len(items) > 0:
		case errors.Is(err, charts.ErrNoChartsSuggested):
			return nil, fmt.Errorf("%w: %w", ErrNoNumericColumns, err)
		case err != nil:
			return nil, err
		default:
			items = append(items, suggested...)
		}
	}

	if removed, err := s.reportFiles.CleanupOlderThan(s.cfg.Reports.Retention); err != nil {
		s.logger.WarnContext(ctx, "Failed to prune old reports", slog.String("error", err.Error()))
	} else if removed > 0 {
		s.logger.DebugContext(ctx, "Pruned old reports", slog.Int("removed", removed))
	}

	path, err := s.reports.Write(ctx, req.Title, items)
	if err != nil {
		return nil, err
	}
	info, err := files.FileInfo(path)
	if err != nil {
		return nil, err
	}

	title := req.Title
	if title == "" {
		title = exporter.DefaultReportTitle
	}
	result = &ReportResult{
		Name:      info.Name,
		Title:     title,
		Charts:    len(items),
		Size:      info.Size,
		CreatedAt: info.Modified,
	}

	infrastructure.RecordReportGenerated(ctx, s.metrics, len(items))
	s.broadcast(EventReportGenerated, map[string]interface{}{
		"project":  project,
		"workbook": file,
		"sheet":    sheet,
		"report":   result.Name,
		"charts":   result.Charts,
	})
	return result, nil
}

// ListReports returns the generated reports, newest first.
func (s *DashboardService) ListReports(ctx context.Context) (reports []files.WorkbookFile, err error) {
	_, done := s.observe(ctx, "list_reports")
	defer func() { done(err) }()

	return s.reportFiles.ListFiles(".xlsx")
}

// ReportPath resolves a generated report by file name.
func (s *DashboardService) ReportPath(ctx context.Context, name string) (string, error) {
	path, err := s.reportFiles.Path(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrReportNotFound, name)
		}
		return "", err
	}
	return path, nil
}

// ProjectSummary counts the workbooks and sheets of one project.
type ProjectSummary struct {
	Project   string `json:"project"`
	Workbooks int    `json:"workbooks"`
	Sheets    int    `json:"sheets"`
}

// FolderSummary is the overview of the whole projects root.
type FolderSummary struct {
	Projects  int              `json:"projects"`
	Workbooks int              `json:"workbooks"`
	Sheets    int              `json:"sheets"`
	Breakdown []ProjectSummary `json:"breakdown"`
}

// FolderSummary counts projects, workbooks and sheets. Sheet names are read
// concurrently with at most SummaryWorkers workbooks open at once; unreadable
// workbooks count zero sheets.
func (s *DashboardService) FolderSummary(ctx context.Context) (summary *FolderSummary, err error) {
	ctx, done := s.observe(ctx, "folder_summary")
	defer func() { done(err) }()

	projects, err := s.discovery.ListProjects()
	if err != nil {
		return nil, err
	}

	workbooks := make([][]files.WorkbookFile, len(projects))
	counts := make([][]int, len(projects))
	for i, p := range projects {
		wbs, err := s.discovery.FindWorkbooks(p.Path)
		if err != nil {
			return nil, err
		}
		workbooks[i] = wbs
		counts[i] = make([]int, len(wbs))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.cfg.Projects.SummaryWorkers))
	for i := range workbooks {
		for j, wb := range workbooks[i] {
			g.Go(func() error {
				names, err := s.loader.SheetNames(gctx, wb.Path)
				if err != nil {
					if ctxErr := gctx.Err(); ctxErr != nil {
						return ctxErr
					}
					s.logger.DebugContext(gctx, "Skipping unreadable workbook",
						slog.String("workbook", wb.Name),
						slog.String("error", err.Error()))
					return nil
				}
				counts[i][j] = len(names)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary = &FolderSummary{
		Projects:  len(projects),
		Breakdown: make([]ProjectSummary, len(projects)),
	}
	for i, p := range projects {
		ps := ProjectSummary{Project: p.Name, Workbooks: len(workbooks[i])}
		for _, n := range counts[i] {
			ps.Sheets += n
		}
		summary.Breakdown[i] = ps
		summary.Workbooks += ps.Workbooks
		summary.Sheets += ps.Sheets
	}
	return summary, nil
}

// observe starts a span for op and returns the function that ends it and
// records the operation metric.
func (s *DashboardService) observe(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx = infrastructure.EnsureTraceID(ctx)
	ctx, span := infrastructure.StartSpan(ctx, "dashboard."+op, attrs...)
	start := time.Now()
	return ctx, func(err error) {
		if err != nil {
			infrastructure.RecordError(ctx, err)
		}
		infrastructure.RecordWorkbookOperation(ctx, s.metrics, op, time.Since(start), err)
		span.End()
	}
}

func (s *DashboardService) projectDir(project string) (string, error) {
	dir, err := s.discovery.ProjectDir(project)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrProjectNotFound, project)
		}
		return "", err
	}
	return dir, nil
}

func (s *DashboardService) workbookPath(project, file string) (string, error) {
	if _, err := s.projectDir(project); err != nil {
		return "", err
	}
	path, err := s.discovery.WorkbookPath(project, file)
	if err != nil {
		return "", err
	}
	if !files.IsWorkbook(filepath.Base(path)) {
		return "", fmt.Errorf("%w: %s", dataprocessing.ErrUnsupportedFormat, file)
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s/%s", ErrWorkbookNotFound, project, file)
	}
	return path, nil
}

func (s *DashboardService) loadTable(ctx context.Context, project, file, sheet string) (*dataprocessing.Table, error) {
	path, err := s.workbookPath(project, file)
	if err != nil {
		return nil, err
	}
	return s.loader.LoadSheet(ctx, path, sheet)
}

func (s *DashboardService) broadcast(eventType string, data map[string]interface{}) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(eventType, data)
}

// pathLocks hands out one mutex per workbook path.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *pathLocks) lock(path string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[path]
	if !ok {
		m = &sync.Mutex{}
		l.locks[path] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
