package dataprocessing

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// ColumnStats summarises the non-null values of one numeric column.
// All aggregates are zero when Count is zero.
type ColumnStats struct {
	Column string  `json:"column"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Sum    float64 `json:"sum"`
}

// ComputeColumnStats returns stats for every numeric column of t, in table order.
// A non-empty selection restricts the result to the named columns; names that do
// not match a numeric column are ignored.
func ComputeColumnStats(t *Table, selected []string) []ColumnStats {
	if t == nil {
		return nil
	}
	filter := make(map[string]struct{}, len(selected))
	for _, name := range selected {
		filter[name] = struct{}{}
	}

	var out []ColumnStats
	for _, col := range t.NumericColumns() {
		if len(filter) > 0 {
			if _, ok := filter[col.Name]; !ok {
				continue
			}
		}
		out = append(out, columnStats(col))
	}
	return out
}

// UnmatchedColumns returns the selected names that are not columns of t, in
// selection order. The Statistics sheet still lists them.
func UnmatchedColumns(t *Table, selected []string) []string {
	var out []string
	for _, name := range selected {
		if t == nil {
			out = append(out, name)
			continue
		}
		if _, ok := t.Column(name); !ok {
			out = append(out, name)
		}
	}
	return out
}

func columnStats(col *Column) ColumnStats {
	nums := col.Numbers()
	s := ColumnStats{Column: col.Name, Count: len(nums)}
	if s.Count == 0 {
		return s
	}
	s.Min, s.Max = math.Inf(1), math.Inf(-1)
	for _, v := range nums {
		s.Sum += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Mean = Round2(s.Sum / float64(s.Count))
	return s
}

// exactDigits covers every fractional digit a float64 can carry.
const exactDigits = 1074

// Round2 rounds to two decimal places, half to even, on the exact binary value
// of f. 2.675 is stored just below the tie and rounds to 2.67.
func Round2(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	exact := decimal.NewFromBigRat(new(big.Rat).SetFloat64(f), exactDigits)
	r, _ := exact.RoundBank(2).Float64()
	return r
}
