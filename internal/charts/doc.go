// Package charts converts columns of a loaded sheet into chart descriptions
// that the browser renders and the report exporter turns into native workbook
// charts.
package charts
