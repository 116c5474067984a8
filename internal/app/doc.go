// Package app wires the dashboard together: configuration, logging,
// telemetry, the dashboard and health services, the WebSocket hub and the
// chi router that exposes them.
//
// Routes:
//
//	/api/...    JSON API (projects, workbooks, sheets, statistics, reports)
//	/ws         live events for connected browsers
//	/metrics    Prometheus scrape endpoint
//	/*          embedded single page frontend
//
// Initialization errors are returned to the caller. Run blocks until SIGINT
// or SIGTERM and then shuts the server, the hub and the telemetry providers
// down in that order.
package app
