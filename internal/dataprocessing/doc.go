// Package dataprocessing loads spreadsheet sheets into typed tables and writes
// the derived Statistics summary sheet back into workbooks.
//
// # Architecture
//
// The package is organized into three components:
//
// 1. SheetLoader: enumerates sheets and loads one sheet into a cleaned Table
// 2. StatisticsWriter: computes ColumnStats and regenerates the "Statistics" sheet
// 3. Analytics: column information, sheet summaries, quantiles and correlation
//
// # Usage
//
// Loading a sheet:
//
//	loader := dataprocessing.NewSheetLoader(dataprocessing.LoaderOptions{Logger: logger})
//	table, err := loader.LoadSheet(ctx, "Construction/Tower A/budget.xlsx", "Costs")
//	if err != nil {
//	    return err
//	}
//
// Writing the summary sheet:
//
//	writer := dataprocessing.NewStatisticsWriter(loader, logger)
//	ok := writer.WriteStatistics(ctx, path, table, []string{"Cost", "Duration"})
//
// # Cleaning
//
// After reading, rows and columns that are entirely empty are removed. Columns
// whose header mentions a date or time are converted to date/time values when
// every cell parses; text columns are converted to numbers when every cell
// parses. Each column is then classified as Numeric, DateTime, Text or Empty.
//
// # Formats
//
// Office Open XML workbooks (.xlsx, .xlsm) are read and written with excelize.
// Legacy .xls workbooks are read only.
//
// # Persistence
//
// The Statistics sheet is rendered in memory and the workbook is saved once
// through a temporary file renamed over the original, so a failed write leaves
// the original file untouched.
package dataprocessing
