package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"projectdash/internal/charts"
	"projectdash/internal/dataprocessing"
	apierrors "projectdash/internal/errors"
	"projectdash/internal/files"
	"projectdash/internal/infrastructure"
	appmw "projectdash/internal/middleware"
	"projectdash/internal/services"
)

// maxQueryRows bounds the limit and offset query parameters.
const maxQueryRows = 1_000_000

// DashboardHandler serves the project, workbook and sheet endpoints with
// RFC 7807 errors.
type DashboardHandler struct {
	service      DashboardServiceInterface
	validation   *appmw.RequestValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(service DashboardServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	return &DashboardHandler{
		service:      service,
		validation:   appmw.NewRequestValidator(logger, errorHandler),
		logger:       logger.With(slog.String("component", "dashboard_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the dashboard routes
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/projects", h.ListProjects)
	r.Get("/projects/summary", h.FolderSummary)

	r.Route("/projects/{project}/workbooks", func(r chi.Router) {
		r.Use(h.ProjectCtx)
		r.Get("/", h.ListWorkbooks)

		r.Route("/{file}", func(r chi.Router) {
			r.Use(h.WorkbookCtx)
			r.Get("/", h.WorkbookInfo)
			r.Get("/statistics", h.HasStatistics)
			r.Get("/sheets", h.ListSheets)

			r.Route("/sheets/{sheet}", func(r chi.Router) {
				r.Use(h.SheetCtx)
				r.Get("/", h.LoadSheet)
				r.Get("/columns", h.ColumnInfo)
				r.Get("/summary", h.SheetSummary)
				r.Get("/csv", h.DownloadCSV)

				r.Group(func(r chi.Router) {
					r.Use(h.validation.JSONBody)
					r.Post("/statistics", h.WriteStatistics)
					r.Post("/charts", h.BuildChart)
					r.Post("/report", h.ExportReport)
				})
			})
		})
	})

	r.Get("/reports", h.ListReports)
	r.Get("/reports/{name}", h.DownloadReport)

	return r
}

// target identifies the project, workbook and sheet a request addresses.
type target struct {
	Project string `json:"project" validate:"required,filename"`
	File    string `json:"file" validate:"omitempty,filename"`
	Sheet   string `json:"sheet" validate:"omitempty,sheetname"`
}

type targetKey struct{}

func targetFrom(ctx context.Context) target {
	t, _ := ctx.Value(targetKey{}).(target)
	return t
}

// urlParam returns the decoded route parameter.
func urlParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

func (h *DashboardHandler) withTarget(w http.ResponseWriter, r *http.Request, next http.Handler, t target) {
	if err := h.validation.Struct(t); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	ctx := context.WithValue(r.Context(), targetKey{}, t)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// ProjectCtx middleware validates the project parameter
func (h *DashboardHandler) ProjectCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.withTarget(w, r, next, target{Project: urlParam(r, "project")})
	})
}

// WorkbookCtx middleware validates the workbook file name
func (h *DashboardHandler) WorkbookCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t := targetFrom(r.Context())
		t.File = urlParam(r, "file")
		if t.File == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("file", "Workbook file name is required"))
			return
		}
		h.withTarget(w, r, next, t)
	})
}

// SheetCtx middleware validates the sheet name
func (h *DashboardHandler) SheetCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t := targetFrom(r.Context())
		t.Sheet = urlParam(r, "sheet")
		if t.Sheet == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("sheet", "Sheet name is required"))
			return
		}
		h.withTarget(w, r, next, t)
	})
}

// fail logs a service error and renders its API form.
func (h *DashboardHandler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	infrastructure.WithError(h.logger, err).ErrorContext(r.Context(), msg,
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("path", r.URL.Path),
	)
	h.errorHandler.HandleError(w, r, toAPIError(err))
}

// toAPIError maps service and core errors onto API errors. Errors it does not
// know pass through and render as 500.
func toAPIError(err error) error {
	detail := err.Error()
	switch {
	case errors.Is(err, services.ErrProjectNotFound):
		return apierrors.ErrProjectNotFound.WithDetails(detail)
	case errors.Is(err, services.ErrWorkbookNotFound):
		return apierrors.ErrWorkbookNotFound.WithDetails(detail)
	case errors.Is(err, dataprocessing.ErrSheetNotFound):
		return apierrors.ErrSheetNotFound.WithDetails(detail)
	case errors.Is(err, services.ErrReportNotFound):
		return apierrors.ErrReportNotFound.WithDetails(detail)
	case errors.Is(err, files.ErrOutsideRoot):
		return apierrors.ErrPathEscapes
	case errors.Is(err, dataprocessing.ErrUnsupportedFormat):
		return apierrors.ErrUnsupportedFormat.WithDetails(detail)
	case errors.Is(err, dataprocessing.ErrReadOnlyFormat):
		return apierrors.ErrReadOnlyWorkbook.WithDetails(detail)
	case errors.Is(err, dataprocessing.ErrWorkbookOpen):
		return apierrors.ErrWorkbookUnreadable.WithDetails(detail)
	case errors.Is(err, dataprocessing.ErrSave):
		return apierrors.ErrWorkbookSave
	case errors.Is(err, services.ErrNoNumericColumns), errors.Is(err, charts.ErrNoChartsSuggested):
		return apierrors.ErrNoNumericColumns.WithDetails(detail)
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, charts.ErrColumnNotFound),
		errors.Is(err, charts.ErrNotNumeric),
		errors.Is(err, charts.ErrNotEnoughColumns),
		errors.Is(err, charts.ErrUnknownType),
		errors.Is(err, charts.ErrInvalidBins),
		errors.Is(err, charts.ErrNoData):
		return apierrors.ErrInvalidParameter.WithDetails(detail)
	case apierrors.IsType(err, apierrors.ErrTypeStorage):
		return apierrors.ErrFileSystem
	}
	return err
}

func success(w http.ResponseWriter, r *http.Request, data interface{}, count int) {
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   data,
		"count":  count,
	})
}

// ListProjects handles GET /api/projects
func (h *DashboardHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.ListProjects(r.Context())
	if err != nil {
		h.fail(w, r, "failed to list projects", err)
		return
	}
	success(w, r, projects, len(projects))
}

// FolderSummary handles GET /api/projects/summary
func (h *DashboardHandler) FolderSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.FolderSummary(r.Context())
	if err != nil {
		h.fail(w, r, "failed to summarize projects", err)
		return
	}
	success(w, r, summary, summary.Projects)
}

// ListWorkbooks handles GET /api/projects/{project}/workbooks
func (h *DashboardHandler) ListWorkbooks(w http.ResponseWriter, r *http.Request) {
	t := targetFrom(r.Context())
	workbooks, err := h.service.ListWorkbooks(r.Context(), t.Project)
	if err != nil {
		h.fail(w, r, "failed to list workbooks", err)
		return
	}
	success(w, r, workbooks, len(workbooks))
}

// WorkbookInfo handles GET /api/projects/{project}/workbooks/{file}
func (h *DashboardHandler) WorkbookInfo(w http.ResponseWriter, r *http.Request) {
	t := targetFrom(r.Context())
	details, err := h.service.WorkbookInfo(r.Context(), t.Project, t.File)
	if err != nil {
		h.fail(w, r, "failed to get workbook info", err)
		return
	}
	success(w, r, details, len(details.Sheets))
}

// HasStatistics handles GET /api/projects/{project}/workbooks/{file}/statistics
func (h *DashboardHandler) HasStatistics(w http.ResponseWriter, r *http.Request) {
	t := targetFrom(r.Context())
	has, err := h.service.HasStatistics(r.Context(), t.Project, t.File)
	if err != nil {
		h.fail(w, r, "failed to check statistics sheet", err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"workbook":       t.File,
			"has_statistics": has,
		},
	})
}

// ListSheets handles GET /api/projects/{project}/workbooks/{file}/sheets
func (h *DashboardHandler) ListSheets(w http.ResponseWriter, r *http.Request) {
	t := targetFrom(r.Context())
	sheets, err := h.service.ListSheets(r.Context(), t.Project, t.File)
	if err != nil {
		h.fail(w, r, "failed to list sheets", err)
		return
	}
	success(w, r, sheets, len(sheets))
}

// LoadSheet handles GET .../sheets/{sheet}?offset=&limit=
func (h *DashboardHandler) LoadSheet(w http.ResponseWriter, r *http.Request) {
	t := targetFrom(r.Context())

	offset, ok := h.validation.QueryInt(w, r, "offset", 0, maxQueryRows, 0)
	if !ok {
		return
	}
	limit, ok := h.validation.QueryInt(w, r, "limit", 0, maxQueryRows, 0)
	if !ok {
		return
	}

	page, err := h.service.LoadTable(r.Context(), t.Project, t.File, t.Sheet, offset, limit)
	if err != nil {
		h.fail(w, r, "failed to load sheet", err)
		return
	}
	success(w, r, page, len(page.Rows))
}

// ColumnInfo handles GET .../sheets/{sheet}/columns
// An optional ?type= restricts the result to one column classification.
func (h *DashboardHandler) ColumnInfo(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.validation.QueryEnum(w, r, "type", columnTypeFilters, "all")
	if !ok {
		return
	}

	t := targetFrom(r.Context())
	info, err := h.service.ColumnInfo(r.Context(), t.Project, t.File, t.Sheet)
	if err != nil {
		h.fail(w, r, "failed to describe columns", err)
		return
	}
	if kind != "all" {
		filtered := make([]dataprocessing.ColumnInfo, 0, len(info))
		for _, c := range info {
			if c.Type.String() == kind {
				filtered = append(filtered, c)
			}
		}
		info = filtered
	}
	success(w, r, info, len(info))
}

var columnTypeFilters = []string{"all", "numeric", "datetime", "text", "empty"}

// SheetSummary handles GET .../sheets/{sheet}/summary
func (h *DashboardHandler) SheetSummary(w http.ResponseWriter, r *http.Request) {
	t := targetFrom(r.Context())
	report, err := h.service.SheetSummary(r.Context(), t.Project, t.File, t.Sheet)
	if err != nil {
		h.fail(w, r, "failed to summarize sheet", err)
		return
	}
	success(w, r, report, len(report.Numeric))
}

// DownloadCSV handles GET .../sheets/{sheet}/csv
func (h *DashboardHandler) DownloadCSV(w http.ResponseWriter, r *http.Request) {
	t := targetFrom(r.Context())
	export, err := h.service.ExportCSV(r.Context(), t.Project, t.File, t.Sheet)
	if err != nil {
		h.fail(w, r, "failed to export csv", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(export.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(export.Data); err != nil {
		h.logger.WarnContext(r.Context(), "failed to write csv response",
			slog.String("error", err.Error()))
	}
}

// StatisticsRequest is the body of POST .../statistics. An empty column list
// selects every numeric column.
type StatisticsRequest struct {
	Columns []string `json:"columns" validate:"max=500,dive,required"`
}

// WriteStatistics handles POST .../sheets/{sheet}/statistics
func (h *DashboardHandler) WriteStatistics(w http.ResponseWriter, r *http.Request) {
	t := targetFrom(r.Context())

	var req StatisticsRequest
	if !h.validation.Decode(w, r, &req) {
		return
	}

	h.logger.InfoContext(r.Context(), "writing statistics sheet",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("workbook", t.File),
		slog.String("sheet", t.Sheet),
		slog.Int("columns", len(req.Columns)),
	)

	result, err := h.service.WriteStatistics(r.Context(), t.Project, t.File, t.Sheet, req.Columns)
	if err != nil {
		h.fail(w, r, "failed to write statistics", err)
		return
	}
	success(w, r, result, len(result.Stats))
}

// BuildChart handles POST .../sheets/{sheet}/charts
func (h *DashboardHandler) BuildChart(w http.ResponseWriter, r *http.Request) {
	t := targetFrom(r.Context())

	var req charts.Request
	if !h.validation.Decode(w, r, &req) {
		return
	}

	chart, err := h.service.BuildChart(r.Context(), t.Project, t.File, t.Sheet, req)
	if err != nil {
		h.fail(w, r, "failed to build chart", err)
		return
	}
	success(w, r, chart, chart.Points())
}

// ExportReport handles POST .../sheets/{sheet}/report
func (h *DashboardHandler) ExportReport(w http.ResponseWriter, r *http.Request) {
	t := targetFrom(r.Context())

	var req services.ReportRequest
	if !h.validation.Decode(w, r, &req) {
		return
	}

	result, err := h.service.ExportReport(r.Context(), t.Project, t.File, t.Sheet, req)
	if err != nil {
		h.fail(w, r, "failed to export report", err)
		return
	}
	render.Status(r, http.StatusCreated)
	success(w, r, result, result.Charts)
}

// ListReports handles GET /api/reports
func (h *DashboardHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.service.ListReports(r.Context())
	if err != nil {
		h.fail(w, r, "failed to list reports", err)
		return
	}
	success(w, r, reports, len(reports))
}

// DownloadReport handles GET /api/reports/{name}
func (h *DashboardHandler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	name := urlParam(r, "name")

	path, err := h.service.ReportPath(r.Context(), name)
	if err != nil {
		h.fail(w, r, "failed to resolve report", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}
