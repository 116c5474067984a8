package dataprocessing

import (
	"math"
	"sort"
)

// ColumnInfo describes one column of a loaded sheet.
type ColumnInfo struct {
	Name         string     `json:"name"`
	Type         ColumnType `json:"type"`
	NonNullCount int        `json:"non_null_count"`
	NullCount    int        `json:"null_count"`
	UniqueCount  int        `json:"unique_count"`
	IsNumeric    bool       `json:"is_numeric"`
	Mean         *float64   `json:"mean,omitempty"`
	Min          *float64   `json:"min,omitempty"`
	Max          *float64   `json:"max,omitempty"`
	Std          *float64   `json:"std,omitempty"`
}

// DescribeColumns returns per-column information in table order.
func DescribeColumns(t *Table) []ColumnInfo {
	out := make([]ColumnInfo, 0, t.ColumnCount())
	for i := range t.Columns {
		col := &t.Columns[i]
		nonNull := col.NonNull()
		info := ColumnInfo{
			Name:         col.Name,
			Type:         col.Type,
			NonNullCount: nonNull,
			NullCount:    len(col.Values) - nonNull,
			UniqueCount:  uniqueCount(col.Values),
			IsNumeric:    col.Type == ColumnNumeric,
		}
		if info.IsNumeric {
			if d, ok := describeNumbers(col.Numbers()); ok {
				info.Mean, info.Min, info.Max = &d.Mean, &d.Min, &d.Max
				if d.Count > 1 {
					info.Std = &d.Std
				}
			}
		}
		out = append(out, info)
	}
	return out
}

func uniqueCount(values []Value) int {
	seen := make(map[Value]struct{}, len(values))
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		if v.Kind == KindDateTime {
			v.Time = v.Time.UTC()
		}
		seen[v] = struct{}{}
	}
	return len(seen)
}

// SheetSummary holds the headline counts for a loaded sheet.
type SheetSummary struct {
	Sheet          string `json:"sheet"`
	Rows           int    `json:"rows"`
	Columns        int    `json:"columns"`
	NumericColumns int    `json:"numeric_columns"`
	NonNullCells   int    `json:"non_null_cells"`
	MissingValues  int    `json:"missing_values"`
}

// Summarize counts rows, columns and cells of t.
func Summarize(t *Table) SheetSummary {
	s := SheetSummary{
		Sheet:          t.Sheet,
		Rows:           t.RowCount(),
		Columns:        t.ColumnCount(),
		NumericColumns: len(t.NumericColumns()),
	}
	for i := range t.Columns {
		nn := t.Columns[i].NonNull()
		s.NonNullCells += nn
		s.MissingValues += len(t.Columns[i].Values) - nn
	}
	return s
}

// NumericSummary is the count, moments and five-number summary of a numeric column.
type NumericSummary struct {
	Column string  `json:"column"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
}

// Describe summarises the named numeric columns; an empty list means all of them.
// Columns without values are skipped.
func Describe(t *Table, columns []string) []NumericSummary {
	var out []NumericSummary
	for _, col := range selectNumeric(t, columns) {
		d, ok := describeNumbers(col.Numbers())
		if !ok {
			continue
		}
		d.Column = col.Name
		out = append(out, d)
	}
	return out
}

func selectNumeric(t *Table, columns []string) []*Column {
	if len(columns) == 0 {
		return t.NumericColumns()
	}
	var out []*Column
	for _, name := range columns {
		if c, ok := t.Column(name); ok && c.Type == ColumnNumeric {
			out = append(out, c)
		}
	}
	return out
}

func describeNumbers(nums []float64) (NumericSummary, bool) {
	if len(nums) == 0 {
		return NumericSummary{}, false
	}
	sorted := append([]float64(nil), nums...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	n := float64(len(sorted))
	mean := sum / n

	var std float64
	if len(sorted) > 1 {
		var ss float64
		for _, v := range sorted {
			ss += (v - mean) * (v - mean)
		}
		std = math.Sqrt(ss / (n - 1))
	}

	return NumericSummary{
		Count:  len(sorted),
		Mean:   mean,
		Std:    std,
		Min:    sorted[0],
		Q1:     Quantile(sorted, 0.25),
		Median: Quantile(sorted, 0.5),
		Q3:     Quantile(sorted, 0.75),
		Max:    sorted[len(sorted)-1],
	}, true
}

// Quantile returns the q-th quantile of an ascending slice using linear
// interpolation between closest ranks.
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

// CorrelationMatrix holds pairwise Pearson coefficients. Values[i][j] is NaN-free;
// pairs with fewer than two complete rows or zero variance are reported as 0.
type CorrelationMatrix struct {
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"`
}

// Correlation computes the Pearson correlation of the named numeric columns over
// rows where both values are present.
func Correlation(t *Table, columns []string) CorrelationMatrix {
	cols := selectNumeric(t, columns)
	m := CorrelationMatrix{Columns: make([]string, len(cols)), Values: make([][]float64, len(cols))}
	for i, c := range cols {
		m.Columns[i] = c.Name
		m.Values[i] = make([]float64, len(cols))
	}
	for i := range cols {
		for j := i; j < len(cols); j++ {
			r := pearson(cols[i].Values, cols[j].Values)
			if i == j && r != 0 {
				r = 1
			}
			m.Values[i][j], m.Values[j][i] = r, r
		}
	}
	return m
}

func pearson(a, b []Value) float64 {
	var xs, ys []float64
	for i := range a {
		if a[i].Kind == KindNumber && b[i].Kind == KindNumber {
			xs = append(xs, a[i].Num)
			ys = append(ys, b[i].Num)
		}
	}
	if len(xs) < 2 {
		return 0
	}
	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= float64(len(xs))
	my /= float64(len(ys))

	var cov, vx, vy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0
	}
	return cov / math.Sqrt(vx*vy)
}

// ValueCount is one distinct value and how often it occurs.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ValueCounts counts distinct non-null display values, most frequent first.
// Ties keep first-seen order.
func ValueCounts(col *Column) []ValueCount {
	index := make(map[string]int)
	var out []ValueCount
	for _, v := range col.Values {
		if v.IsNull() {
			continue
		}
		key := v.String()
		if i, ok := index[key]; ok {
			out[i].Count++
			continue
		}
		index[key] = len(out)
		out = append(out, ValueCount{Value: key, Count: 1})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}
