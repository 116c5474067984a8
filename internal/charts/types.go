package charts

import (
	"errors"
	"fmt"
	"strings"
)

// Type names a chart kind.
type Type string

const (
	TypeBar       Type = "bar"
	TypeLine      Type = "line"
	TypeScatter   Type = "scatter"
	TypePie       Type = "pie"
	TypeHistogram Type = "histogram"
	TypeBox       Type = "box"
	TypeHeatmap   Type = "heatmap"
)

// Types lists every supported chart kind.
var Types = []Type{TypeBar, TypeLine, TypeScatter, TypePie, TypeHistogram, TypeBox, TypeHeatmap}

// ParseType accepts a chart kind case-insensitively.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Types {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// DefaultBins is the histogram bin count when a request does not set one.
const DefaultBins = 20

var (
	ErrUnknownType       = errors.New("unknown chart type")
	ErrColumnNotFound    = errors.New("column not found")
	ErrNotEnoughColumns  = errors.New("not enough columns for chart type")
	ErrNotNumeric        = errors.New("column is not numeric")
	ErrNoData            = errors.New("no plottable rows")
	ErrInvalidBins       = errors.New("histogram bins must be positive")
	ErrNoChartsSuggested = errors.New("no numeric columns to chart")
)

// Request selects the chart type, the columns it plots and optional overrides.
type Request struct {
	Type    Type     `json:"type" validate:"required,oneof=bar line scatter pie histogram box heatmap"`
	Columns []string `json:"columns" validate:"required,min=1,max=3,dive,required"`
	Title   string   `json:"title,omitempty" validate:"max=200"`
	Bins    int      `json:"bins,omitempty" validate:"gte=0,lte=200"`
}

// Series is one trace of a chart. Labels name the points; X carries numeric
// x positions for scatter and histogram charts.
type Series struct {
	Name   string    `json:"name"`
	Labels []string  `json:"labels,omitempty"`
	Values []float64 `json:"values"`
	X      []float64 `json:"x,omitempty"`
}

// Grid is the pivoted mean matrix of a heatmap. Z[i][j] is the cell for Y[i]
// and X[j]; nil marks a combination with no rows.
type Grid struct {
	X []string     `json:"x"`
	Y []string     `json:"y"`
	Z [][]*float64 `json:"z"`
}

// Chart is a renderable chart description.
type Chart struct {
	Type   Type     `json:"type"`
	Title  string   `json:"title"`
	XLabel string   `json:"x_label,omitempty"`
	YLabel string   `json:"y_label,omitempty"`
	Series []Series `json:"series"`
	Grid   *Grid    `json:"grid,omitempty"`
}

// Points returns the number of data points across all series.
func (c *Chart) Points() int {
	n := 0
	for _, s := range c.Series {
		n += len(s.Values)
	}
	return n
}
