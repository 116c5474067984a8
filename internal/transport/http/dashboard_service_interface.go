package http

import (
	"context"

	"projectdash/internal/charts"
	"projectdash/internal/dataprocessing"
	"projectdash/internal/files"
	"projectdash/internal/services"
)

// DashboardServiceInterface defines the interface for workbook operations
type DashboardServiceInterface interface {
	ListProjects(ctx context.Context) ([]files.Project, error)
	FolderSummary(ctx context.Context) (*services.FolderSummary, error)
	ListWorkbooks(ctx context.Context, project string) ([]files.WorkbookFile, error)
	WorkbookInfo(ctx context.Context, project, file string) (*services.WorkbookDetails, error)
	ListSheets(ctx context.Context, project, file string) ([]string, error)
	HasStatistics(ctx context.Context, project, file string) (bool, error)

	LoadTable(ctx context.Context, project, file, sheet string, offset, limit int) (*services.TablePage, error)
	ColumnInfo(ctx context.Context, project, file, sheet string) ([]dataprocessing.ColumnInfo, error)
	SheetSummary(ctx context.Context, project, file, sheet string) (*services.SheetReport, error)
	WriteStatistics(ctx context.Context, project, file, sheet string, columns []string) (*services.StatisticsResult, error)
	BuildChart(ctx context.Context, project, file, sheet string, req charts.Request) (*charts.Chart, error)
	ExportCSV(ctx context.Context, project, file, sheet string) (*services.CSVExport, error)
	ExportReport(ctx context.Context, project, file, sheet string, req services.ReportRequest) (*services.ReportResult, error)

	ListReports(ctx context.Context) ([]files.WorkbookFile, error)
	ReportPath(ctx context.Context, name string) (string, error)
}

var _ DashboardServiceInterface = (*services.DashboardService)(nil)
