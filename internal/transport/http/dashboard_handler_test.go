package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"projectdash/internal/charts"
	"projectdash/internal/dataprocessing"
	apierrors "projectdash/internal/errors"
	"projectdash/internal/files"
	"projectdash/internal/services"
)

// MockDashboardService is a mock implementation of DashboardServiceInterface
type MockDashboardService struct {
	mock.Mock
}

func (m *MockDashboardService) ListProjects(ctx context.Context) ([]files.Project, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]files.Project), args.Error(1)
}

func (m *MockDashboardService) FolderSummary(ctx context.Context) (*services.FolderSummary, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.FolderSummary), args.Error(1)
}

func (m *MockDashboardService) ListWorkbooks(ctx context.Context, project string) ([]files.WorkbookFile, error) {
	args := m.Called(project)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]files.WorkbookFile), args.Error(1)
}

func (m *MockDashboardService) WorkbookInfo(ctx context.Context, project, file string) (*services.WorkbookDetails, error) {
	args := m.Called(project, file)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.WorkbookDetails), args.Error(1)
}

func (m *MockDashboardService) ListSheets(ctx context.Context, project, file string) ([]string, error) {
	args := m.Called(project, file)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDashboardService) HasStatistics(ctx context.Context, project, file string) (bool, error) {
	args := m.Called(project, file)
	return args.Bool(0), args.Error(1)
}

func (m *MockDashboardService) LoadTable(ctx context.Context, project, file, sheet string, offset, limit int) (*services.TablePage, error) {
	args := m.Called(project, file, sheet, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TablePage), args.Error(1)
}

func (m *MockDashboardService) ColumnInfo(ctx context.Context, project, file, sheet string) ([]dataprocessing.ColumnInfo, error) {
	args := m.Called(project, file, sheet)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dataprocessing.ColumnInfo), args.Error(1)
}

func (m *MockDashboardService) SheetSummary(ctx context.Context, project, file, sheet string) (*services.SheetReport, error) {
	args := m.Called(project, file, sheet)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SheetReport), args.Error(1)
}

func (m *MockDashboardService) WriteStatistics(ctx context.Context, project, file, sheet string, columns []string) (*services.StatisticsResult, error) {
	args := m.Called(project, file, sheet, columns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.StatisticsResult), args.Error(1)
}

func (m *MockDashboardService) BuildChart(ctx context.Context, project, file, sheet string, req charts.Request) (*charts.Chart, error) {
	args := m.Called(project, file, sheet, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*charts.Chart), args.Error(1)
}

func (m *MockDashboardService) ExportCSV(ctx context.Context, project, file, sheet string) (*services.CSVExport, error) {
	args := m.Called(project, file, sheet)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.CSVExport), args.Error(1)
}

func (m *MockDashboardService) ExportReport(ctx context.Context, project, file, sheet string, req services.ReportRequest) (*services.ReportResult, error) {
	args := m.Called(project, file, sheet, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ReportResult), args.Error(1)
}

func (m *MockDashboardService) ListReports(ctx context.Context) ([]files.WorkbookFile, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]files.WorkbookFile), args.Error(1)
}

func (m *MockDashboardService) ReportPath(ctx context.Context, name string) (string, error) {
	args := m.Called(name)
	return args.String(0), args.Error(1)
}

const sheetURL = "/projects/Site%20A/workbooks/budget.xlsx/sheets/Costs"

func newTestHandler(svc *MockDashboardService) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	errorHandler := apierrors.NewErrorHandler(logger, false)
	return NewDashboardHandler(svc, logger, errorHandler).Routes()
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type successBody struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Count  int             `json:"count"`
}

func decodeSuccess(t *testing.T, rec *httptest.ResponseRecorder) successBody {
	t.Helper()
	var body successBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	assert.Equal(t, "success", body.Status)
	return body
}

func TestDashboardHandler_ListProjects(t *testing.T) {
	tests := []struct {
		name           string
		setupMock      func(*MockDashboardService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "successful list",
			setupMock: func(m *MockDashboardService) {
				m.On("ListProjects").Return([]files.Project{{Name: "Site A"}, {Name: "Site B"}}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"count":2,"data":[{"name":"Site A"},{"name":"Site B"}],"status":"success"}`,
		},
		{
			name: "missing root",
			setupMock: func(m *MockDashboardService) {
				m.On("ListProjects").Return(nil, fmt.Errorf("read root: %w", os.ErrNotExist))
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `Resource Not Found`,
		},
		{
			name: "internal error",
			setupMock: func(m *MockDashboardService) {
				m.On("ListProjects").Return(nil, errors.New("disk error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"Internal Server Error"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockDashboardService)
			tt.setupMock(svc)

			rec := serve(newTestHandler(svc), http.MethodGet, "/projects", "")

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}

func TestDashboardHandler_FolderSummary(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("FolderSummary").Return(&services.FolderSummary{
		Projects:  2,
		Workbooks: 3,
		Sheets:    5,
		Breakdown: []services.ProjectSummary{{Project: "Site A", Workbooks: 2, Sheets: 4}, {Project: "Site B", Workbooks: 1, Sheets: 1}},
	}, nil)

	rec := serve(newTestHandler(svc), http.MethodGet, "/projects/summary", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeSuccess(t, rec)
	assert.Equal(t, 2, body.Count)
	assert.Contains(t, string(body.Data), `"sheets":5`)
	svc.AssertExpectations(t)
}

func TestDashboardHandler_ListWorkbooks(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		setupMock      func(*MockDashboardService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "decodes project name",
			target: "/projects/Site%20A/workbooks",
			setupMock: func(m *MockDashboardService) {
				m.On("ListWorkbooks", "Site A").Return([]files.WorkbookFile{{Name: "budget.xlsx", Extension: ".xlsx"}}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"budget.xlsx"`,
		},
		{
			name:   "project not found",
			target: "/projects/Nowhere/workbooks",
			setupMock: func(m *MockDashboardService) {
				m.On("ListWorkbooks", "Nowhere").Return(nil, fmt.Errorf("%w: Nowhere", services.ErrProjectNotFound))
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"PROJECT_NOT_FOUND"`,
		},
		{
			name:           "traversal rejected before service",
			target:         "/projects/..%2Fetc/workbooks",
			setupMock:      func(m *MockDashboardService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"VALIDATION_FAILED"`,
		},
		{
			name:   "escape reported by service",
			target: "/projects/link/workbooks",
			setupMock: func(m *MockDashboardService) {
				m.On("ListWorkbooks", "link").Return(nil, apierrors.NewAppError(apierrors.ErrTypePermission, "outside", files.ErrOutsideRoot))
			},
			expectedStatus: http.StatusForbidden,
			expectedBody:   `"PATH_OUTSIDE_ROOT"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockDashboardService)
			tt.setupMock(svc)

			rec := serve(newTestHandler(svc), http.MethodGet, tt.target, "")

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}

func TestDashboardHandler_WorkbookEndpoints(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("WorkbookInfo", "Site A", "budget.xlsx").Return(&services.WorkbookDetails{
		WorkbookFile:  files.WorkbookFile{Name: "budget.xlsx", Extension: ".xlsx"},
		Project:       "Site A",
		Sheets:        []string{"Costs", "Notes"},
		HasStatistics: true,
		Writable:      true,
	}, nil)
	svc.On("ListSheets", "Site A", "budget.xlsx").Return([]string{"Costs", "Notes"}, nil)
	svc.On("HasStatistics", "Site A", "budget.xlsx").Return(false, nil)
	h := newTestHandler(svc)

	rec := serve(h, http.MethodGet, "/projects/Site%20A/workbooks/budget.xlsx", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeSuccess(t, rec)
	assert.Equal(t, 2, body.Count)
	assert.Contains(t, string(body.Data), `"has_statistics":true`)

	rec = serve(h, http.MethodGet, "/projects/Site%20A/workbooks/budget.xlsx/sheets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["Costs","Notes"]`, string(decodeSuccess(t, rec).Data))

	rec = serve(h, http.MethodGet, "/projects/Site%20A/workbooks/budget.xlsx/statistics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"workbook":"budget.xlsx","has_statistics":false}`, string(decodeSuccess(t, rec).Data))

	svc.AssertExpectations(t)
}

func TestDashboardHandler_LoadSheet(t *testing.T) {
	page := &services.TablePage{
		Project:  "Site A",
		Workbook: "budget.xlsx",
		Sheet:    "Costs",
		Rows: []map[string]dataprocessing.Value{
			{"Cost": dataprocessing.Number(1000)},
		},
		TotalRows: 3,
		Offset:    1,
		Limit:     1,
	}

	tests := []struct {
		name           string
		query          string
		setupMock      func(*MockDashboardService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:  "defaults",
			query: "",
			setupMock: func(m *MockDashboardService) {
				m.On("LoadTable", "Site A", "budget.xlsx", "Costs", 0, 0).Return(page, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"total_rows":3`,
		},
		{
			name:  "paged",
			query: "?offset=1&limit=1",
			setupMock: func(m *MockDashboardService) {
				m.On("LoadTable", "Site A", "budget.xlsx", "Costs", 1, 1).Return(page, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"count":1`,
		},
		{
			name:           "limit not a number",
			query:          "?limit=all",
			setupMock:      func(m *MockDashboardService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `limit must be a valid integer`,
		},
		{
			name:           "negative offset",
			query:          "?offset=-1",
			setupMock:      func(m *MockDashboardService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"VALIDATION_FAILED"`,
		},
		{
			name:  "sheet not found",
			query: "",
			setupMock: func(m *MockDashboardService) {
				m.On("LoadTable", "Site A", "budget.xlsx", "Costs", 0, 0).
					Return(nil, &dataprocessing.WorkbookError{Op: "load", Sheet: "Costs", Err: dataprocessing.ErrSheetNotFound})
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"SHEET_NOT_FOUND"`,
		},
		{
			name:  "corrupt workbook",
			query: "",
			setupMock: func(m *MockDashboardService) {
				m.On("LoadTable", "Site A", "budget.xlsx", "Costs", 0, 0).
					Return(nil, &dataprocessing.WorkbookError{Op: "open", Err: dataprocessing.ErrWorkbookOpen})
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `"WORKBOOK_UNREADABLE"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockDashboardService)
			tt.setupMock(svc)

			rec := serve(newTestHandler(svc), http.MethodGet, sheetURL+tt.query, "")

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}

func TestDashboardHandler_SheetNameValidation(t *testing.T) {
	svc := new(MockDashboardService)

	rec := serve(newTestHandler(svc), http.MethodGet, "/projects/Site%20A/workbooks/budget.xlsx/sheets/Q1%3AQ2/columns", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "valid worksheet name")
	svc.AssertNotCalled(t, "ColumnInfo", mock.Anything, mock.Anything, mock.Anything)
}

func TestDashboardHandler_ColumnsAndSummary(t *testing.T) {
	mean := 1750.25
	svc := new(MockDashboardService)
	svc.On("ColumnInfo", "Site A", "budget.xlsx", "Costs").Return([]dataprocessing.ColumnInfo{
		{Name: "Task", Type: dataprocessing.ColumnText, NonNullCount: 3},
		{Name: "Cost", Type: dataprocessing.ColumnNumeric, NonNullCount: 2, IsNumeric: true, Mean: &mean},
	}, nil)
	svc.On("SheetSummary", "Site A", "budget.xlsx", "Costs").Return(&services.SheetReport{
		Summary: dataprocessing.SheetSummary{Sheet: "Costs", Rows: 3, Columns: 2, NumericColumns: 1},
		Numeric: []dataprocessing.NumericSummary{{Column: "Cost"}},
	}, nil)
	h := newTestHandler(svc)

	rec := serve(h, http.MethodGet, sheetURL+"/columns", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeSuccess(t, rec)
	assert.Equal(t, 2, body.Count)
	assert.Contains(t, string(body.Data), `"mean":1750.25`)

	rec = serve(h, http.MethodGet, sheetURL+"/columns?type=numeric", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeSuccess(t, rec)
	assert.Equal(t, 1, body.Count)
	assert.NotContains(t, string(body.Data), "Task")

	rec = serve(h, http.MethodGet, sheetURL+"/columns?type=currency", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, http.MethodGet, sheetURL+"/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeSuccess(t, rec).Count)

	svc.AssertExpectations(t)
}

func TestDashboardHandler_WriteStatistics(t *testing.T) {
	result := &services.StatisticsResult{
		Project:   "Site A",
		Workbook:  "budget.xlsx",
		Sheet:     "Costs",
		Columns:   []string{"Cost"},
		Stats:     []dataprocessing.ColumnStats{{Column: "Cost", Count: 2, Mean: 1750.25}},
		Rows:      3,
		WrittenAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name           string
		body           string
		contentType    string
		setupMock      func(*MockDashboardService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:        "selected columns",
			body:        `{"columns":["Cost"]}`,
			contentType: "application/json",
			setupMock: func(m *MockDashboardService) {
				m.On("WriteStatistics", "Site A", "budget.xlsx", "Costs", []string{"Cost"}).Return(result, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"count":1`,
		},
		{
			name:        "empty body selects all numeric columns",
			body:        "",
			contentType: "application/json",
			setupMock: func(m *MockDashboardService) {
				m.On("WriteStatistics", "Site A", "budget.xlsx", "Costs", []string(nil)).Return(result, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"mean":1750.25`,
		},
		{
			name:           "blank column name",
			body:           `{"columns":[""]}`,
			contentType:    "application/json",
			setupMock:      func(m *MockDashboardService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"VALIDATION_FAILED"`,
		},
		{
			name:           "malformed json",
			body:           `{"columns":`,
			contentType:    "application/json",
			setupMock:      func(m *MockDashboardService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"INVALID_JSON"`,
		},
		{
			name:           "wrong content type",
			body:           `columns=Cost`,
			contentType:    "application/x-www-form-urlencoded",
			setupMock:      func(m *MockDashboardService) {},
			expectedStatus: http.StatusUnsupportedMediaType,
			expectedBody:   `UNSUPPORTED_MEDIA_TYPE`,
		},
		{
			name:        "unknown column is written",
			body:        `{"columns":["NonexistentColumn"]}`,
			contentType: "application/json",
			setupMock: func(m *MockDashboardService) {
				m.On("WriteStatistics", "Site A", "budget.xlsx", "Costs", []string{"NonexistentColumn"}).
					Return(&services.StatisticsResult{
						Sheet:     "Costs",
						Columns:   []string{"NonexistentColumn"},
						Unmatched: []string{"NonexistentColumn"},
						Stats:     []dataprocessing.ColumnStats{},
					}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"unmatched_columns":["NonexistentColumn"]`,
		},
		{
			name:        "legacy xls",
			body:        `{"columns":["Cost"]}`,
			contentType: "application/json",
			setupMock: func(m *MockDashboardService) {
				m.On("WriteStatistics", "Site A", "budget.xlsx", "Costs", []string{"Cost"}).
					Return(nil, &dataprocessing.WorkbookError{Op: "write statistics", Err: dataprocessing.ErrReadOnlyFormat})
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `"READ_ONLY_WORKBOOK"`,
		},
		{
			name:        "save failed",
			body:        `{"columns":["Cost"]}`,
			contentType: "application/json",
			setupMock: func(m *MockDashboardService) {
				m.On("WriteStatistics", "Site A", "budget.xlsx", "Costs", []string{"Cost"}).
					Return(nil, &dataprocessing.WorkbookError{Op: "save", Err: dataprocessing.ErrSave})
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"WORKBOOK_SAVE_FAILED"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockDashboardService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodPost, sheetURL+"/statistics", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			rec := httptest.NewRecorder()
			newTestHandler(svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}

func TestDashboardHandler_BuildChart(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockDashboardService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "bar chart",
			body: `{"type":"bar","columns":["Task","Crew"]}`,
			setupMock: func(m *MockDashboardService) {
				req := charts.Request{Type: charts.TypeBar, Columns: []string{"Task", "Crew"}}
				m.On("BuildChart", "Site A", "budget.xlsx", "Costs", req).Return(&charts.Chart{
					Type:   charts.TypeBar,
					Title:  "Crew by Task",
					Series: []charts.Series{{Name: "Crew", Labels: []string{"a", "b"}, Values: []float64{4, 6}}},
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"count":2`,
		},
		{
			name:           "unknown chart type",
			body:           `{"type":"radar","columns":["Cost"]}`,
			setupMock:      func(m *MockDashboardService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `type must be one of`,
		},
		{
			name:           "no columns",
			body:           `{"type":"pie","columns":[]}`,
			setupMock:      func(m *MockDashboardService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"VALIDATION_FAILED"`,
		},
		{
			name: "text column",
			body: `{"type":"histogram","columns":["Task"]}`,
			setupMock: func(m *MockDashboardService) {
				req := charts.Request{Type: charts.TypeHistogram, Columns: []string{"Task"}}
				m.On("BuildChart", "Site A", "budget.xlsx", "Costs", req).
					Return(nil, fmt.Errorf("%w: Task", charts.ErrNotNumeric))
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"INVALID_PARAMETER"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockDashboardService)
			tt.setupMock(svc)

			rec := serve(newTestHandler(svc), http.MethodPost, sheetURL+"/charts", tt.body)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}

func TestDashboardHandler_ExportReport(t *testing.T) {
	svc := new(MockDashboardService)
	req := services.ReportRequest{Title: "Weekly", Suggestions: []string{"summary"}}
	svc.On("ExportReport", "Site A", "budget.xlsx", "Costs", req).Return(&services.ReportResult{
		Name:   "Weekly_20240301_120000.xlsx",
		Title:  "Weekly",
		Charts: 1,
	}, nil)

	rec := serve(newTestHandler(svc), http.MethodPost, sheetURL+"/report", `{"title":"Weekly","suggestions":["summary"]}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := decodeSuccess(t, rec)
	assert.Equal(t, 1, body.Count)
	assert.Contains(t, string(body.Data), "Weekly_20240301_120000.xlsx")
	svc.AssertExpectations(t)
}

func TestDashboardHandler_ExportReportNoNumericColumns(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("ExportReport", "Site A", "budget.xlsx", "Costs", services.ReportRequest{}).
		Return(nil, fmt.Errorf("%w: %w", services.ErrNoNumericColumns, charts.ErrNoChartsSuggested))

	rec := serve(newTestHandler(svc), http.MethodPost, sheetURL+"/report", `{}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"NO_NUMERIC_COLUMNS"`)
	svc.AssertExpectations(t)
}

func TestDashboardHandler_DownloadCSV(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("ExportCSV", "Site A", "budget.xlsx", "Costs").Return(&services.CSVExport{
		Name: "Site A_budget.xlsx_Costs.csv",
		Data: []byte("\ufeffTask,Cost\nFoundation,1000\n"),
	}, nil)

	rec := serve(newTestHandler(svc), http.MethodGet, sheetURL+"/csv", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Site A_budget.xlsx_Costs.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), "Foundation,1000")
	svc.AssertExpectations(t)
}

func TestDashboardHandler_Reports(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("xlsx-bytes"), 0644))

	svc := new(MockDashboardService)
	svc.On("ListReports").Return([]files.WorkbookFile{{Name: "report.xlsx", Size: 10}}, nil)
	svc.On("ReportPath", "report.xlsx").Return(path, nil)
	svc.On("ReportPath", "gone.xlsx").Return("", fmt.Errorf("%w: gone.xlsx", services.ErrReportNotFound))
	h := newTestHandler(svc)

	rec := serve(h, http.MethodGet, "/reports", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeSuccess(t, rec).Count)

	rec = serve(h, http.MethodGet, "/reports/report.xlsx", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "xlsx-bytes", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "report.xlsx")

	rec = serve(h, http.MethodGet, "/reports/gone.xlsx", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"REPORT_NOT_FOUND"`)

	svc.AssertExpectations(t)
}

func TestToAPIError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"project", services.ErrProjectNotFound, "PROJECT_NOT_FOUND"},
		{"workbook", services.ErrWorkbookNotFound, "WORKBOOK_NOT_FOUND"},
		{"sheet", services.ErrSheetNotFound, "SHEET_NOT_FOUND"},
		{"report", services.ErrReportNotFound, "REPORT_NOT_FOUND"},
		{"outside root", fmt.Errorf("resolve: %w", files.ErrOutsideRoot), "PATH_OUTSIDE_ROOT"},
		{"unsupported", dataprocessing.ErrUnsupportedFormat, "UNSUPPORTED_FORMAT"},
		{"read only", dataprocessing.ErrReadOnlyFormat, "READ_ONLY_WORKBOOK"},
		{"unreadable", dataprocessing.ErrWorkbookOpen, "WORKBOOK_UNREADABLE"},
		{"save", dataprocessing.ErrSave, "WORKBOOK_SAVE_FAILED"},
		{"no numeric", services.ErrNoNumericColumns, "NO_NUMERIC_COLUMNS"},
		{"invalid input", services.ErrInvalidInput, "INVALID_PARAMETER"},
		{"bins", charts.ErrInvalidBins, "INVALID_PARAMETER"},
		{"storage", fmt.Errorf("list reports: %w", apierrors.NewStorageError("failed to list directory", fs.ErrPermission)), "FILESYSTEM_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var apiErr *apierrors.APIError
			require.ErrorAs(t, toAPIError(tt.err), &apiErr)
			assert.Equal(t, tt.wantCode, apiErr.ErrorCode)
		})
	}

	plain := errors.New("boom")
	assert.Same(t, plain, toAPIError(plain))
}
