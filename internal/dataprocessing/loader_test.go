package dataprocessing

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projectdash/internal/shared/testutil"
)

func newTestLoader(t *testing.T) (*SheetLoader, *testutil.BufferedSlogHandler) {
	logger, handler := testutil.NewTestLogger(t)
	return NewSheetLoader(LoaderOptions{Logger: logger}), handler
}

func TestListSheetNames(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("preserves workbook order", func(t *testing.T) {
		loader, _ := newTestLoader(t)
		path := testutil.WriteWorkbook(t, dir, "order.xlsx",
			testutil.SheetData{Name: "Zeta", Rows: [][]any{{"a"}}},
			testutil.SheetData{Name: "Alpha", Rows: [][]any{{"a"}}},
			testutil.SheetData{Name: "Mid", Rows: [][]any{{"a"}}},
		)

		assert.Equal(t, []string{"Zeta", "Alpha", "Mid"}, loader.ListSheetNames(ctx, path))
	})

	t.Run("missing file yields empty list and logs", func(t *testing.T) {
		loader, handler := newTestLoader(t)

		names := loader.ListSheetNames(ctx, filepath.Join(dir, "missing.xlsx"))

		assert.NotNil(t, names)
		assert.Empty(t, names)
		testutil.AssertLogContains(t, handler, slog.LevelError, "Error reading sheet names")
	})

	t.Run("non workbook is unsupported", func(t *testing.T) {
		loader, _ := newTestLoader(t)
		path := filepath.Join(dir, "notes.txt")
		require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

		_, err := loader.SheetNames(ctx, path)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
		assert.Empty(t, loader.ListSheetNames(ctx, path))
	})

	t.Run("corrupt workbook fails to open", func(t *testing.T) {
		loader, _ := newTestLoader(t)
		path := filepath.Join(dir, "corrupt.xlsx")
		require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

		_, err := loader.SheetNames(ctx, path)
		assert.ErrorIs(t, err, ErrWorkbookOpen)

		var wbErr *WorkbookError
		require.True(t, errors.As(err, &wbErr))
		assert.Equal(t, path, wbErr.Path)
	})
}

func TestLoadSheet_CleansConstructionSheet(t *testing.T) {
	loader, handler := newTestLoader(t)
	path := testutil.WriteWorkbook(t, t.TempDir(), "site.xlsx", testutil.ConstructionSheet("Tasks"))

	table, err := loader.LoadSheet(context.Background(), path, "Tasks")
	require.NoError(t, err)
	require.NotNil(t, table)

	assert.Equal(t, "Tasks", table.Sheet)
	assert.Equal(t, []string{"Task", "Cost", "StartDate", "Crew"}, table.ColumnNames())
	assert.Equal(t, 3, table.RowCount(), "all-null row is dropped")

	cost, ok := table.Column("Cost")
	require.True(t, ok)
	assert.Equal(t, ColumnNumeric, cost.Type)
	assert.Equal(t, []float64{1000, 2500.5}, cost.Numbers())
	assert.True(t, cost.Values[1].IsNull())

	start, ok := table.Column("StartDate")
	require.True(t, ok)
	assert.Equal(t, ColumnDateTime, start.Type)
	assert.True(t, start.Values[0].Time.Equal(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)))

	task, _ := table.Column("Task")
	assert.Equal(t, ColumnText, task.Type)
	assert.Equal(t, "Roofing", task.Values[2].Str)

	testutil.AssertNoErrors(t, handler)
}

func TestLoadSheet_DropsEmptyRowsAndColumns(t *testing.T) {
	loader, _ := newTestLoader(t)
	path := testutil.WriteWorkbook(t, t.TempDir(), "sparse.xlsx", testutil.SheetData{
		Name: "Sparse",
		Rows: [][]any{
			{"Item", "Blank", "Qty"},
			{"Rebar", nil, 10},
			{nil, nil, nil},
			{nil, nil, nil},
			{"Cement", nil, 20},
			{nil, nil, nil, nil, "stray"},
		},
	})

	table, err := loader.LoadSheet(context.Background(), path, "Sparse")
	require.NoError(t, err)

	assert.Equal(t, []string{"Item", "Qty", "Unnamed: 4"}, table.ColumnNames())
	assert.Equal(t, 3, table.RowCount())

	for r := 0; r < table.RowCount(); r++ {
		allNull := true
		for _, v := range table.Row(r) {
			if !v.IsNull() {
				allNull = false
			}
		}
		assert.False(t, allNull, "row %d is entirely null", r)
	}
	for _, c := range table.Columns {
		assert.Positive(t, c.NonNull(), "column %s is entirely null", c.Name)
	}
}

func TestLoadSheet_DateCoercion(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		values   []any
		wantType ColumnType
	}{
		{
			name:     "all cells parse",
			header:   "Due Date",
			values:   []any{"2024-05-01", "05/20/2024", "Jun 3, 2024"},
			wantType: ColumnDateTime,
		},
		{
			name:     "one bad cell leaves column unchanged",
			header:   "Inspection date",
			values:   []any{"2024-05-01", "pending", "2024-06-01"},
			wantType: ColumnText,
		},
		{
			name:     "time of day",
			header:   "Shift Time",
			values:   []any{"08:30", "17:45:10"},
			wantType: ColumnDateTime,
		},
		{
			name:     "numbers are not dates",
			header:   "Lead Time",
			values:   []any{3, 5},
			wantType: ColumnNumeric,
		},
		{
			name:     "non temporal name is not coerced",
			header:   "Milestone",
			values:   []any{"2024-05-01", "2024-06-01"},
			wantType: ColumnText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader, _ := newTestLoader(t)
			rows := [][]any{{tt.header}}
			for _, v := range tt.values {
				rows = append(rows, []any{v})
			}
			path := testutil.WriteWorkbook(t, t.TempDir(), "dates.xlsx", testutil.SheetData{Name: "S", Rows: rows})

			table, err := loader.LoadSheet(context.Background(), path, "S")
			require.NoError(t, err)
			require.Len(t, table.Columns, 1)
			assert.Equal(t, tt.wantType, table.Columns[0].Type)
		})
	}
}

func TestLoadSheet_NumericCoercion(t *testing.T) {
	loader, _ := newTestLoader(t)
	path := testutil.WriteWorkbook(t, t.TempDir(), "nums.xlsx", testutil.SheetData{
		Name: "S",
		Rows: [][]any{
			{"Qty", "Code", "Mixed", "Flag"},
			{"1", "12", 4, true},
			{" 2.5 ", "A1", "7", false},
			{"-3e2", "14", nil, nil},
		},
	})

	table, err := loader.LoadSheet(context.Background(), path, "S")
	require.NoError(t, err)

	qty, _ := table.Column("Qty")
	assert.Equal(t, ColumnNumeric, qty.Type)
	assert.Equal(t, []float64{1, 2.5, -300}, qty.Numbers())

	code, _ := table.Column("Code")
	assert.Equal(t, ColumnText, code.Type, "one non-numeric cell keeps the whole column as text")
	assert.Equal(t, "12", code.Values[0].Str)

	mixed, _ := table.Column("Mixed")
	assert.Equal(t, ColumnNumeric, mixed.Type)
	assert.Equal(t, []float64{4, 7}, mixed.Numbers())

	flag, _ := table.Column("Flag")
	assert.Equal(t, ColumnText, flag.Type)
	assert.Equal(t, KindBool, flag.Values[0].Kind)
}

func TestLoadSheet_NativeDateCells(t *testing.T) {
	loader, _ := newTestLoader(t)
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	path := testutil.WriteWorkbook(t, t.TempDir(), "native.xlsx", testutil.SheetData{
		Name: "S",
		Rows: [][]any{{"Completed", "Cost"}, {day, 10}, {day.AddDate(0, 0, 7), 20}},
	})

	table, err := loader.LoadSheet(context.Background(), path, "S")
	require.NoError(t, err)

	completed, _ := table.Column("Completed")
	assert.Equal(t, ColumnDateTime, completed.Type)
	assert.True(t, completed.Values[0].Time.Equal(day), "got %v", completed.Values[0].Time)

	cost, _ := table.Column("Cost")
	assert.Equal(t, ColumnNumeric, cost.Type)
}

func TestLoadSheet_HeaderNaming(t *testing.T) {
	loader, _ := newTestLoader(t)
	path := testutil.WriteWorkbook(t, t.TempDir(), "headers.xlsx", testutil.SheetData{
		Name: "S",
		Rows: [][]any{
			{"Cost", nil, "Cost", "Cost"},
			{1, 2, 3, 4},
		},
	})

	table, err := loader.LoadSheet(context.Background(), path, "S")
	require.NoError(t, err)
	assert.Equal(t, []string{"Cost", "Unnamed: 1", "Cost.1", "Cost.2"}, table.ColumnNames())
}

func TestLoadSheet_Failures(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := testutil.WriteWorkbook(t, dir, "site.xlsx", testutil.ConstructionSheet("Tasks"))

	t.Run("missing sheet", func(t *testing.T) {
		loader, handler := newTestLoader(t)
		table, err := loader.LoadSheet(ctx, path, "Nope")
		assert.Nil(t, table)
		assert.ErrorIs(t, err, ErrSheetNotFound)
		testutil.AssertLogAttr(t, handler, "sheet", "Nope")
	})

	t.Run("missing file", func(t *testing.T) {
		loader, _ := newTestLoader(t)
		table, err := loader.LoadSheet(ctx, filepath.Join(dir, "gone.xlsx"), "Tasks")
		assert.Nil(t, table)
		assert.ErrorIs(t, err, ErrWorkbookOpen)
	})

	t.Run("cancelled context", func(t *testing.T) {
		loader, _ := newTestLoader(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		table, err := loader.LoadSheet(cctx, path, "Tasks")
		assert.Nil(t, table)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestLoadSheet_EmptySheet(t *testing.T) {
	loader, _ := newTestLoader(t)
	path := testutil.WriteWorkbook(t, t.TempDir(), "empty.xlsx", testutil.SheetData{Name: "Blank"})

	table, err := loader.LoadSheet(context.Background(), path, "Blank")
	require.NoError(t, err)
	assert.Equal(t, 0, table.RowCount())
	assert.Equal(t, 0, table.ColumnCount())
}

func TestLoadSheet_Idempotent(t *testing.T) {
	loader, _ := newTestLoader(t)
	path := testutil.WriteWorkbook(t, t.TempDir(), "site.xlsx", testutil.ConstructionSheet("Tasks"))

	first, err := loader.LoadSheet(context.Background(), path, "Tasks")
	require.NoError(t, err)
	second, err := loader.LoadSheet(context.Background(), path, "Tasks")
	require.NoError(t, err)

	require.Equal(t, first.ColumnNames(), second.ColumnNames())
	for i := range first.Columns {
		assert.Equal(t, first.Columns[i].Type, second.Columns[i].Type)
		for r := range first.Columns[i].Values {
			assert.True(t, first.Columns[i].Values[r].Equal(second.Columns[i].Values[r]))
		}
	}
}

func TestColumnNames(t *testing.T) {
	assert.Equal(t,
		[]string{"a", "a.1", "a.1.1", "Unnamed: 3", "Unnamed: 4"},
		columnNames([]string{"a", "a", "a.1", ""}, 5))
}

func TestIsDateFormat(t *testing.T) {
	custom := func(s string) *string { return &s }

	assert.True(t, isDateFormat(14, nil))
	assert.True(t, isDateFormat(22, nil))
	assert.False(t, isDateFormat(0, nil))
	assert.False(t, isDateFormat(4, nil))
	assert.True(t, isDateFormat(0, custom("yyyy-mm-dd")))
	assert.True(t, isDateFormat(0, custom("[h]:mm")))
	assert.False(t, isDateFormat(0, custom(`#,##0.00 "days"`)))
	assert.False(t, isDateFormat(0, custom("[Red]0.00")))
}
