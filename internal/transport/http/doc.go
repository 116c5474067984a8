// Package http holds the chi handlers of the dashboard API. Handlers parse
// and validate the request, call a service and render the result as
// {"status": "success", "data": ..., "count": N}.
//
// Service errors are mapped onto internal/errors API errors and rendered as
// RFC 7807 problem details:
//
//	{
//	    "type": "/errors/workbook/sheet-not-found",
//	    "title": "Not Found",
//	    "status": 404,
//	    "detail": "Sheet not found",
//	    "error_code": "SHEET_NOT_FOUND",
//	    "instance": "/api/projects/Site A/workbooks/budget.xlsx/sheets/Costs"
//	}
//
// Route parameters are validated by the ProjectCtx, WorkbookCtx and SheetCtx
// middleware before a handler runs. Request bodies go through the validation
// middleware and the struct tags of the request types.
package http
