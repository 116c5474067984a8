package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// SheetData is one sheet of a fixture workbook. Rows[0] is the header row.
// Nil cells are left unwritten.
type SheetData struct {
	Name string
	Rows [][]any
}

// WriteWorkbook saves an xlsx workbook containing sheets under dir and returns its path.
func WriteWorkbook(t testing.TB, dir, name string, sheets ...SheetData) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName(f.GetSheetName(0), s.Name))
		} else {
			_, err := f.NewSheet(s.Name)
			require.NoError(t, err)
		}
		for r, row := range s.Rows {
			for c, v := range row {
				if v == nil {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				require.NoError(t, err)
				require.NoError(t, f.SetCellValue(s.Name, cell, v))
			}
		}
	}

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, f.SaveAs(path))
	return path
}

// ConstructionSheet returns a small task sheet with text, numeric, date and blank content.
func ConstructionSheet(name string) SheetData {
	return SheetData{
		Name: name,
		Rows: [][]any{
			{"Task", "Cost", "StartDate", "Crew"},
			{"Foundation", 1000, "2024-01-05", 4},
			{"Framing", nil, "2024-02-10", 6},
			{nil, nil, nil, nil},
			{"Roofing", 2500.5, "2024-03-15", 3},
		},
	}
}

// ReadCell returns the formatted value of a cell in a saved workbook.
func ReadCell(t testing.TB, path, sheet, cell string) string {
	t.Helper()

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue(sheet, cell)
	require.NoError(t, err)
	return v
}

// SheetList returns the sheet names of a saved workbook.
func SheetList(t testing.TB, path string) []string {
	t.Helper()

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	return f.GetSheetList()
}
