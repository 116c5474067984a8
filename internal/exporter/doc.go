// Package exporter writes loaded sheets and charts to downloadable files.
//
// WriteTableCSV streams a table as UTF-8 CSV with a byte order mark so Excel
// opens it with the right encoding.
//
// ReportWriter saves a report workbook: a title sheet, one sheet per chart
// holding the chart's data next to a native Excel chart, and a summary sheet.
package exporter
