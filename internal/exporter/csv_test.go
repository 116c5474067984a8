package exporter

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dp "projectdash/internal/dataprocessing"
)

func sampleTable() *dp.Table {
	start := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	inspect := time.Date(2024, 1, 6, 14, 30, 0, 0, time.UTC)
	return &dp.Table{
		Sheet: "Tasks",
		Columns: []dp.Column{
			{Name: "Task", Type: dp.ColumnText, Values: []dp.Value{dp.Text("Foundation"), dp.Text("Framing, east")}},
			{Name: "Cost", Type: dp.ColumnNumeric, Values: []dp.Value{dp.Number(1000), dp.Number(2500.5)}},
			{Name: "StartDate", Type: dp.ColumnDateTime, Values: []dp.Value{dp.DateTime(start), dp.Null()}},
			{Name: "InspectionTime", Type: dp.ColumnDateTime, Values: []dp.Value{dp.Null(), dp.DateTime(inspect)}},
		},
	}
}

func TestWriteTableCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTableCSV(&buf, sampleTable()))

	raw := buf.Bytes()
	require.True(t, bytes.HasPrefix(raw, utf8BOM), "output starts with a UTF-8 BOM")

	records, err := csv.NewReader(bytes.NewReader(raw[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"Task", "Cost", "StartDate", "InspectionTime"},
		{"Foundation", "1000", "2024-01-05", ""},
		{"Framing, east", "2500.5", "", "2024-01-06 14:30:00"},
	}, records)
}

func TestWriteTableCSVEmptyAndNil(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTableCSV(&buf, &dp.Table{Sheet: "Empty"}))
	assert.Equal(t, string(utf8BOM)+"\n", buf.String())

	assert.ErrorIs(t, WriteTableCSV(&buf, nil), dp.ErrNilTable)
}

func TestCSVFileName(t *testing.T) {
	tests := []struct {
		project, file, sheet string
		want                 string
	}{
		{"Tower", "budget.xlsx", "Costs", "Tower_budget.xlsx_Costs.csv"},
		{"Site A", "plan.xls", "Q1/Q2", "Site A_plan.xls_Q1_Q2.csv"},
		{"B:1", "x.xlsx", "a?b", "B_1_x.xlsx_a_b.csv"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CSVFileName(tt.project, tt.file, tt.sheet))
	}
}
