package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "projectdash/internal/errors"
)

// DefaultMaxBodySize bounds JSON request bodies. Dashboard requests carry
// column lists and titles, never workbook data.
const DefaultMaxBodySize int64 = 1 << 20

// RequestValidator checks JSON bodies, route targets and query parameters.
// Rejections are written through the ErrorHandler so every 4xx has the same
// shape.
type RequestValidator struct {
	validate     *validator.Validate
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	maxBodySize  int64
}

// NewRequestValidator creates a RequestValidator with the workbook tags registered.
func NewRequestValidator(logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *RequestValidator {
	return &RequestValidator{
		validate:     NewValidator(),
		logger:       logger.With(slog.String("component", "request_validator")),
		errorHandler: errorHandler,
		maxBodySize:  DefaultMaxBodySize,
	}
}

// NewValidator returns a validator that knows the "sheetname" and "filename"
// tags and reports JSON field names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("sheetname", isValidSheetName)
	v.RegisterValidation("filename", isValidFilename)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// JSONBody gates write endpoints: a present body must be declared as JSON,
// fit in maxBodySize and parse. The buffered body is handed on unchanged.
func (v *RequestValidator) JSONBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.ContentLength == 0 {
			next.ServeHTTP(w, r)
			return
		}

		if err := checkContentType(r.Header.Get("Content-Type")); err != nil {
			v.errorHandler.HandleError(w, r, err)
			return
		}

		if r.ContentLength > v.maxBodySize {
			v.errorHandler.HandleError(w, r, v.tooLarge(r.ContentLength))
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, v.maxBodySize+1))
		if err != nil {
			v.logger.ErrorContext(r.Context(), "failed to read request body",
				slog.String("error", err.Error()),
				slog.String("request_id", GetRequestID(r.Context())),
			)
			v.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
			return
		}
		if int64(len(body)) > v.maxBodySize {
			v.errorHandler.HandleError(w, r, v.tooLarge(int64(len(body))))
			return
		}
		if len(body) > 0 && !json.Valid(body) {
			v.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusBadRequest,
				"INVALID_JSON",
				"Request body contains invalid JSON",
			))
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

func (v *RequestValidator) tooLarge(size int64) *apierrors.APIError {
	return apierrors.NewWithDetails(
		http.StatusRequestEntityTooLarge,
		"PAYLOAD_TOO_LARGE",
		"Request body exceeds maximum allowed size",
		map[string]interface{}{
			"max_size": v.maxBodySize,
			"size":     size,
		},
	)
}

func checkContentType(contentType string) *apierrors.APIError {
	if contentType == "" {
		return apierrors.New(http.StatusBadRequest, "MISSING_CONTENT_TYPE", "Content-Type header is required")
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "application/json" {
		return apierrors.NewWithDetails(
			http.StatusUnsupportedMediaType,
			"UNSUPPORTED_MEDIA_TYPE",
			"Unsupported content type",
			map[string]interface{}{
				"content_type": contentType,
				"allowed":      []string{"application/json"},
			},
		)
	}
	return nil
}

// Decode reads an optional JSON body into dst and validates it. It writes the
// error response itself and reports whether the handler should continue.
func (v *RequestValidator) Decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Body != nil && r.ContentLength != 0 {
		if err := render.DecodeJSON(r.Body, dst); err != nil && err != io.EOF {
			v.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
				http.StatusBadRequest,
				"INVALID_REQUEST",
				"Invalid request body",
				map[string]interface{}{"error": err.Error()},
			))
			return false
		}
	}
	if err := v.Struct(dst); err != nil {
		v.errorHandler.HandleError(w, r, err)
		return false
	}
	return true
}

// Struct validates s and converts field failures into a VALIDATION_FAILED error.
func (v *RequestValidator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apierrors.InvalidRequestWithError(err)
	}

	out := make([]apierrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, apierrors.ValidationError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
		})
	}
	return apierrors.NewValidationErrors(out)
}

func fieldMessage(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "sheetname":
		return fmt.Sprintf("%s must be a valid worksheet name", field)
	case "filename":
		return fmt.Sprintf("%s must be a valid filename", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// isValidSheetName accepts Excel worksheet names: 1 to 31 characters, none of
// []:*?/\ and no leading or trailing apostrophe.
func isValidSheetName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if name == "" || utf8.RuneCountInString(name) > 31 {
		return false
	}
	if strings.ContainsAny(name, "[]:*?/\\") {
		return false
	}
	return !strings.HasPrefix(name, "'") && !strings.HasSuffix(name, "'")
}

// isValidFilename accepts a single path element: project folders, workbook
// and report names.
func isValidFilename(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if name == "" || name == "." || len(name) > 255 {
		return false
	}
	return !strings.Contains(name, "..") && !strings.ContainsAny(name, "/\\\x00")
}

// QueryInt reads an integer query parameter within [min, max].
func (v *RequestValidator) QueryInt(w http.ResponseWriter, r *http.Request, param string, min, max, def int) (int, bool) {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		return def, true
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		v.errorHandler.HandleError(w, r, apierrors.ErrValidation(param, fmt.Sprintf("%s must be a valid integer", param)))
		return 0, false
	}
	if n < min || n > max {
		v.errorHandler.HandleError(w, r, apierrors.ErrValidation(param, fmt.Sprintf("%s must be between %d and %d", param, min, max)))
		return 0, false
	}
	return n, true
}

// QueryEnum reads a query parameter restricted to allowed values.
func (v *RequestValidator) QueryEnum(w http.ResponseWriter, r *http.Request, param string, allowed []string, def string) (string, bool) {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		return def, true
	}
	for _, a := range allowed {
		if raw == a {
			return raw, true
		}
	}

	v.errorHandler.HandleError(w, r, apierrors.ErrValidation(param, fmt.Sprintf("%s must be one of: %s", param, strings.Join(allowed, ", "))))
	return "", false
}
