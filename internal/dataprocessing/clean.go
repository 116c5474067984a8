package dataprocessing

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// clean applies the four cleaning steps in order and then classifies every column.
func (l *SheetLoader) clean(t *Table) {
	dropEmptyRows(t)
	dropEmptyColumns(t)
	for i := range t.Columns {
		t.Columns[i].Type = Classify(t.Columns[i].Values)
	}

	for i := range t.Columns {
		col := &t.Columns[i]
		if !isTemporalName(col.Name) {
			continue
		}
		if converted, ok := coerceDates(col.Values, l.layouts); ok {
			col.Values = converted
			col.Type = Classify(converted)
		}
	}

	for i := range t.Columns {
		col := &t.Columns[i]
		if col.Type != ColumnText {
			continue
		}
		if converted, ok := coerceNumbers(col.Values); ok {
			col.Values = converted
			col.Type = Classify(converted)
		}
	}
}

func dropEmptyRows(t *Table) {
	n := t.RowCount()
	keep := make([]int, 0, n)
	for r := 0; r < n; r++ {
		for _, c := range t.Columns {
			if !c.Values[r].IsNull() {
				keep = append(keep, r)
				break
			}
		}
	}
	if len(keep) == n {
		return
	}
	for i := range t.Columns {
		values := make([]Value, len(keep))
		for j, r := range keep {
			values[j] = t.Columns[i].Values[r]
		}
		t.Columns[i].Values = values
	}
}

func dropEmptyColumns(t *Table) {
	kept := t.Columns[:0]
	for _, c := range t.Columns {
		if c.NonNull() > 0 {
			kept = append(kept, c)
		}
	}
	t.Columns = kept
}

func isTemporalName(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "date") || strings.Contains(lower, "time")
}

// coerceDates converts every non-null cell to a date/time. Cells that are
// already dates pass through. Any number, bool or unparseable text fails the
// whole column.
func coerceDates(values []Value, layouts []string) ([]Value, bool) {
	out := make([]Value, len(values))
	for i, v := range values {
		switch v.Kind {
		case KindNull, KindDateTime:
			out[i] = v
		case KindText:
			t, ok := parseDate(v.Str, layouts)
			if !ok {
				return nil, false
			}
			out[i] = DateTime(t)
		default:
			return nil, false
		}
	}
	return out, true
}

func parseDate(s string, layouts []string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// coerceNumbers converts every non-null cell to a number. The conversion is
// reported only when it succeeds for every cell and alters at least one.
func coerceNumbers(values []Value) ([]Value, bool) {
	out := make([]Value, len(values))
	changed := false
	for i, v := range values {
		switch v.Kind {
		case KindNull, KindNumber:
			out[i] = v
		case KindText:
			f, ok := parseNumber(v.Str)
			if !ok {
				return nil, false
			}
			out[i] = Number(f)
		default:
			return nil, false
		}
		if !out[i].Equal(v) {
			changed = true
		}
	}
	return out, changed
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "xX_") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
