// Package services implements the dashboard's business logic between the HTTP
// handlers and the workbook packages.
//
// DashboardService resolves project and workbook names below the configured
// projects root, loads and summarises sheets, builds charts and writes the
// Statistics sheet and report workbooks. Every operation runs in its own span
// and is counted in the workbook operation metrics. Writes to one workbook are
// serialised; successful writes are announced through an EventBroadcaster.
//
// HealthService backs the health, readiness and version endpoints.
//
// Errors are sentinel values wrapped with context, for example:
//
//	_, err := svc.ListWorkbooks(ctx, "Site Z")
//	errors.Is(err, services.ErrProjectNotFound) // true
package services
