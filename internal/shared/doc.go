// Package shared provides common utilities and test helpers used across the dashboard codebase.
// It serves as a central location for shared functionality that doesn't belong to any
// specific domain or architectural layer.
//
// # Test Utilities
//
// The testutil subpackage provides:
//
//	- A buffered slog handler with assertions on captured records
//	- Workbook fixtures written with excelize into t.TempDir()
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    path := testutil.WriteWorkbook(t, t.TempDir(), "site.xlsx",
//	        testutil.ConstructionSheet("Tasks"))
//	    logger, handler := testutil.NewTestLogger(t)
//	    // ...
//	}
package shared
