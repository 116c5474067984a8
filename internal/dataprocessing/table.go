package dataprocessing

import (
	"encoding/json"
	"strconv"
	"time"
)

// Kind identifies which field of a Value is populated.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindText
	KindDateTime
	KindBool
)

// String returns the kind name used in API payloads.
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindDateTime:
		return "datetime"
	case KindBool:
		return "bool"
	default:
		return "null"
	}
}

// Value is a single cell value.
type Value struct {
	Kind Kind
	Num  float64
	Str  string
	Time time.Time
	Bool bool
}

// Null returns the null value.
func Null() Value { return Value{} }

// Number wraps a float64.
func Number(f float64) Value { return Value{Kind: KindNumber, Num: f} }

// Text wraps a string.
func Text(s string) Value { return Value{Kind: KindText, Str: s} }

// DateTime wraps a time.
func DateTime(t time.Time) Value { return Value{Kind: KindDateTime, Time: t} }

// Boolean wraps a bool.
func Boolean(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// IsNull reports whether the cell is empty.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Equal compares kind and payload.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNumber:
		return v.Num == o.Num
	case KindText:
		return v.Str == o.Str
	case KindDateTime:
		return v.Time.Equal(o.Time)
	case KindBool:
		return v.Bool == o.Bool
	default:
		return true
	}
}

// String renders the value the way it is shown in tables and CSV exports.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindText:
		return v.Str
	case KindDateTime:
		if v.Time.Hour() == 0 && v.Time.Minute() == 0 && v.Time.Second() == 0 && v.Time.Nanosecond() == 0 {
			return v.Time.Format("2006-01-02")
		}
		return v.Time.Format("2006-01-02 15:04:05")
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return ""
	}
}

// MarshalJSON encodes numbers and bools natively, dates as RFC 3339 and null as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumber:
		return json.Marshal(v.Num)
	case KindText:
		return json.Marshal(v.Str)
	case KindDateTime:
		return json.Marshal(v.Time.Format(time.RFC3339))
	case KindBool:
		return json.Marshal(v.Bool)
	default:
		return []byte("null"), nil
	}
}

// ColumnType is the classification assigned to a column after cleaning.
type ColumnType int

const (
	ColumnEmpty ColumnType = iota
	ColumnNumeric
	ColumnDateTime
	ColumnText
)

// String returns the column type name.
func (t ColumnType) String() string {
	switch t {
	case ColumnNumeric:
		return "numeric"
	case ColumnDateTime:
		return "datetime"
	case ColumnText:
		return "text"
	default:
		return "empty"
	}
}

// MarshalJSON encodes the type as its name.
func (t ColumnType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// Column is a named, typed sequence of cell values.
type Column struct {
	Name   string     `json:"name"`
	Type   ColumnType `json:"type"`
	Values []Value    `json:"-"`
}

// NonNull returns the number of non-null cells.
func (c *Column) NonNull() int {
	n := 0
	for _, v := range c.Values {
		if !v.IsNull() {
			n++
		}
	}
	return n
}

// Numbers returns the non-null numeric payloads in row order.
func (c *Column) Numbers() []float64 {
	out := make([]float64, 0, len(c.Values))
	for _, v := range c.Values {
		if v.Kind == KindNumber {
			out = append(out, v.Num)
		}
	}
	return out
}

// Classify derives the column type from its values.
func Classify(values []Value) ColumnType {
	var numbers, dates, others int
	for _, v := range values {
		switch v.Kind {
		case KindNull:
		case KindNumber:
			numbers++
		case KindDateTime:
			dates++
		default:
			others++
		}
	}
	switch {
	case numbers == 0 && dates == 0 && others == 0:
		return ColumnEmpty
	case others == 0 && dates == 0:
		return ColumnNumeric
	case others == 0 && numbers == 0:
		return ColumnDateTime
	default:
		return ColumnText
	}
}

// Table is a cleaned sheet. All columns have the same length.
type Table struct {
	Sheet   string   `json:"sheet"`
	Columns []Column `json:"columns"`
}

// RowCount returns the number of data rows.
func (t *Table) RowCount() int {
	if t == nil || len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Values)
}

// ColumnCount returns the number of columns.
func (t *Table) ColumnCount() int {
	if t == nil {
		return 0
	}
	return len(t.Columns)
}

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by exact name.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// NumericColumns returns the columns classified as numeric, in table order.
func (t *Table) NumericColumns() []*Column {
	var out []*Column
	for i := range t.Columns {
		if t.Columns[i].Type == ColumnNumeric {
			out = append(out, &t.Columns[i])
		}
	}
	return out
}

// Row returns the values of row i across all columns.
func (t *Table) Row(i int) []Value {
	row := make([]Value, len(t.Columns))
	for j, c := range t.Columns {
		row[j] = c.Values[i]
	}
	return row
}

// Slice returns a copy of the table restricted to rows [offset, offset+limit).
// A non-positive limit means no upper bound.
func (t *Table) Slice(offset, limit int) *Table {
	n := t.RowCount()
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	end := n
	if limit > 0 && offset+limit < n {
		end = offset + limit
	}
	out := &Table{Sheet: t.Sheet, Columns: make([]Column, len(t.Columns))}
	for i, c := range t.Columns {
		out.Columns[i] = Column{Name: c.Name, Type: c.Type, Values: c.Values[offset:end]}
	}
	return out
}

// Records returns the table as row-major maps keyed by column name.
func (t *Table) Records() []map[string]Value {
	out := make([]map[string]Value, t.RowCount())
	for i := range out {
		rec := make(map[string]Value, len(t.Columns))
		for _, c := range t.Columns {
			rec[c.Name] = c.Values[i]
		}
		out[i] = rec
	}
	return out
}
