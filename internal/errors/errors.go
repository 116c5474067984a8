package errors

import (
	"fmt"
	"net/http"
)

// APIError is an error with a fixed HTTP status and a stable machine-readable
// code. ErrorHandler renders it as RFC 7807 problem details.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// ValidationError represents validation errors
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Predefined error types for common scenarios
var (
	// 400 Bad Request
	ErrInvalidRequest   = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	ErrInvalidParameter = New(http.StatusBadRequest, "INVALID_PARAMETER", "Invalid parameter value")

	// 403 Forbidden
	ErrForbidden   = New(http.StatusForbidden, "FORBIDDEN", "Access denied")
	ErrPathEscapes = New(http.StatusForbidden, "PATH_OUTSIDE_ROOT", "Path resolves outside the projects root")

	// 404 Not Found
	ErrProjectNotFound  = New(http.StatusNotFound, "PROJECT_NOT_FOUND", "Project folder not found")
	ErrWorkbookNotFound = New(http.StatusNotFound, "WORKBOOK_NOT_FOUND", "Workbook not found")
	ErrSheetNotFound    = New(http.StatusNotFound, "SHEET_NOT_FOUND", "Sheet not found")
	ErrReportNotFound   = New(http.StatusNotFound, "REPORT_NOT_FOUND", "Report not found")

	// 415 / 422
	ErrUnsupportedFormat  = New(http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT", "Unsupported workbook format")
	ErrReadOnlyWorkbook   = New(http.StatusUnprocessableEntity, "READ_ONLY_WORKBOOK", "Workbook format cannot be written")
	ErrWorkbookUnreadable = New(http.StatusUnprocessableEntity, "WORKBOOK_UNREADABLE", "Workbook could not be read")
	ErrNoNumericColumns   = New(http.StatusUnprocessableEntity, "NO_NUMERIC_COLUMNS", "Sheet has no numeric columns")

	// 429 Too Many Requests
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")

	// 500 Internal Server Error
	ErrWorkbookSave     = New(http.StatusInternalServerError, "WORKBOOK_SAVE_FAILED", "Workbook could not be saved")
	ErrFileSystem       = New(http.StatusInternalServerError, "FILESYSTEM_ERROR", "File system error")
	ErrWebSocketUpgrade = New(http.StatusInternalServerError, "WEBSOCKET_UPGRADE_FAILED", "WebSocket upgrade failed")

	// 503 Service Unavailable
	ErrServiceUnavailable = New(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Service temporarily unavailable")
)

// WithDetails returns a copy of a predefined error carrying details.
func (e *APIError) WithDetails(details interface{}) *APIError {
	return NewWithDetails(e.StatusCode, e.ErrorCode, e.Message, details)
}

// InvalidRequestWithError creates an invalid request error with details
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format", err.Error())
}

// ErrValidation creates a validation error with field details
func ErrValidation(field, message string) *APIError {
	return NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", ValidationError{
		Field:   field,
		Message: message,
	})
}

// FileSystemError creates a filesystem error
func FileSystemError(operation string, err error) *APIError {
	return NewWithDetails(http.StatusInternalServerError, "FILESYSTEM_ERROR", fmt.Sprintf("File system error during %s", operation), err.Error())
}

// ValidationErrors represents multiple validation errors
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// NewValidationErrors creates validation errors from multiple fields
func NewValidationErrors(errors []ValidationError) *APIError {
	return NewWithDetails(
		http.StatusBadRequest,
		"VALIDATION_FAILED",
		"Request validation failed",
		ValidationErrors{Errors: errors},
	)
}
