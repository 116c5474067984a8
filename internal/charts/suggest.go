package charts

import (
	"errors"
	"fmt"
	"strings"

	"projectdash/internal/dataprocessing"
)

// Suggestion names a group of charts generated without explicit requests.
type Suggestion string

const (
	SuggestDistributions Suggestion = "distribution"
	SuggestRelationships Suggestion = "relationship"
	SuggestSummary       Suggestion = "summary"
)

// maxDistributionCharts caps the histograms in a suggested set.
const maxDistributionCharts = 3

// ParseSuggestion accepts a suggestion name case-insensitively, with or without a plural s.
func ParseSuggestion(s string) (Suggestion, error) {
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s") {
	case string(SuggestDistributions):
		return SuggestDistributions, nil
	case string(SuggestRelationships):
		return SuggestRelationships, nil
	case "summary", "summarie":
		return SuggestSummary, nil
	}
	return "", fmt.Errorf("unknown chart suggestion %q", s)
}

// Suggest builds the standard report charts over the numeric columns among
// columns (all numeric columns when empty). With no sets, every set is built.
//
//   - distribution: a histogram for each of the first three numeric columns
//   - relationship: a scatter of the second numeric column against the first
//   - summary: a box per numeric column
func (b *Builder) Suggest(t *dataprocessing.Table, columns []string, sets ...Suggestion) ([]*Chart, error) {
	if t == nil {
		return nil, ErrNoData
	}
	numeric := numericColumns(t, columns)
	if len(numeric) == 0 {
		return nil, ErrNoChartsSuggested
	}
	if len(sets) == 0 {
		sets = []Suggestion{SuggestDistributions, SuggestRelationships, SuggestSummary}
	}

	var out []*Chart
	for _, set := range sets {
		switch set {
		case SuggestDistributions:
			for _, c := range numeric[:min(len(numeric), maxDistributionCharts)] {
				chart, err := histogram(c, b.bins)
				if errors.Is(err, ErrNoData) {
					continue
				}
				if err != nil {
					return nil, err
				}
				out = append(out, chart)
			}
		case SuggestRelationships:
			if len(numeric) < 2 {
				continue
			}
			chart, err := scatter(numeric[:2])
			if errors.Is(err, ErrNoData) {
				continue
			}
			if err != nil {
				return nil, err
			}
			chart.Title = fmt.Sprintf("Relationship: %s vs %s", numeric[1].Name, numeric[0].Name)
			out = append(out, chart)
		case SuggestSummary:
			chart, err := SummaryBox(numeric, "Summary Statistics - Box Plot")
			if errors.Is(err, ErrNoData) {
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, chart)
		default:
			return nil, fmt.Errorf("unknown chart suggestion %q", set)
		}
	}

	if len(out) == 0 {
		return nil, ErrNoChartsSuggested
	}
	return out, nil
}

func numericColumns(t *dataprocessing.Table, columns []string) []*dataprocessing.Column {
	if len(columns) == 0 {
		return t.NumericColumns()
	}
	var out []*dataprocessing.Column
	for _, name := range columns {
		if c, ok := t.Column(name); ok && c.Type == dataprocessing.ColumnNumeric {
			out = append(out, c)
		}
	}
	return out
}
