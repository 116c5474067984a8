package charts

import (
	"fmt"
	"sort"
	"strconv"

	"projectdash/internal/dataprocessing"
)

var boxLabels = []string{"min", "q1", "median", "q3", "max"}

// Builder turns table columns into chart data. It holds no per-request state
// and is safe for concurrent use.
type Builder struct {
	bins int
}

// NewBuilder returns a builder whose histograms default to bins buckets.
func NewBuilder(bins int) *Builder {
	if bins <= 0 {
		bins = DefaultBins
	}
	return &Builder{bins: bins}
}

// Build plots the requested columns of t. With two or more columns the first
// is the x axis and the second the y axis; heatmaps take a third value column.
func (b *Builder) Build(t *dataprocessing.Table, req Request) (*Chart, error) {
	typ, err := ParseType(string(req.Type))
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNoData
	}
	if len(req.Columns) == 0 {
		return nil, fmt.Errorf("%w: %s needs at least one column", ErrNotEnoughColumns, typ)
	}

	cols := make([]*dataprocessing.Column, 0, len(req.Columns))
	for _, name := range req.Columns {
		c, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
		}
		cols = append(cols, c)
	}

	var chart *Chart
	switch typ {
	case TypeBar, TypeLine:
		chart, err = categorical(typ, cols)
	case TypeScatter:
		chart, err = scatter(cols)
	case TypePie:
		chart, err = pie(cols)
	case TypeHistogram:
		bins := req.Bins
		if bins == 0 {
			bins = b.bins
		}
		chart, err = histogram(cols[0], bins)
	case TypeBox:
		chart, err = box(cols)
	case TypeHeatmap:
		chart, err = heatmap(cols)
	}
	if err != nil {
		return nil, err
	}

	if req.Title != "" {
		chart.Title = req.Title
	}
	return chart, nil
}

func requireNumeric(c *dataprocessing.Column) error {
	if c.Type != dataprocessing.ColumnNumeric {
		return fmt.Errorf("%w: %q is %s", ErrNotNumeric, c.Name, c.Type)
	}
	return nil
}

func requireColumns(typ Type, cols []*dataprocessing.Column, n int) error {
	if len(cols) < n {
		return fmt.Errorf("%w: %s needs %d columns, got %d", ErrNotEnoughColumns, typ, n, len(cols))
	}
	return nil
}

// categorical plots y against x labels, or a single column against row numbers.
func categorical(typ Type, cols []*dataprocessing.Column) (*Chart, error) {
	if len(cols) == 1 {
		y := cols[0]
		if err := requireNumeric(y); err != nil {
			return nil, err
		}
		s := rowSeries(y)
		if len(s.Values) == 0 {
			return nil, ErrNoData
		}
		return &Chart{Type: typ, Title: y.Name, XLabel: "Row", YLabel: y.Name, Series: []Series{s}}, nil
	}

	x, y := cols[0], cols[1]
	if err := requireNumeric(y); err != nil {
		return nil, err
	}

	s := Series{Name: y.Name}
	xNumeric := x.Type == dataprocessing.ColumnNumeric
	for i, yv := range y.Values {
		xv := x.Values[i]
		if yv.Kind != dataprocessing.KindNumber || xv.IsNull() {
			continue
		}
		s.Labels = append(s.Labels, xv.String())
		s.Values = append(s.Values, yv.Num)
		if xNumeric {
			s.X = append(s.X, xv.Num)
		}
	}
	if len(s.Values) == 0 {
		return nil, ErrNoData
	}

	format := "%s by %s"
	if typ == TypeLine {
		format = "%s over %s"
	}
	return &Chart{
		Type:   typ,
		Title:  fmt.Sprintf(format, y.Name, x.Name),
		XLabel: x.Name,
		YLabel: y.Name,
		Series: []Series{s},
	}, nil
}

func rowSeries(c *dataprocessing.Column) Series {
	s := Series{Name: c.Name}
	for i, v := range c.Values {
		if v.Kind != dataprocessing.KindNumber {
			continue
		}
		s.Labels = append(s.Labels, strconv.Itoa(i+1))
		s.Values = append(s.Values, v.Num)
	}
	return s
}

func scatter(cols []*dataprocessing.Column) (*Chart, error) {
	if err := requireColumns(TypeScatter, cols, 2); err != nil {
		return nil, err
	}
	x, y := cols[0], cols[1]
	if err := requireNumeric(x); err != nil {
		return nil, err
	}
	if err := requireNumeric(y); err != nil {
		return nil, err
	}

	s := Series{Name: y.Name}
	for i := range x.Values {
		xv, yv := x.Values[i], y.Values[i]
		if xv.Kind != dataprocessing.KindNumber || yv.Kind != dataprocessing.KindNumber {
			continue
		}
		s.X = append(s.X, xv.Num)
		s.Values = append(s.Values, yv.Num)
	}
	if len(s.Values) == 0 {
		return nil, ErrNoData
	}

	return &Chart{
		Type:   TypeScatter,
		Title:  fmt.Sprintf("%s vs %s", y.Name, x.Name),
		XLabel: x.Name,
		YLabel: y.Name,
		Series: []Series{s},
	}, nil
}

// pie slices a numeric column by row, a non-numeric column by value counts,
// or, with two columns, sums the second column per label of the first.
func pie(cols []*dataprocessing.Column) (*Chart, error) {
	var s Series
	var title string

	if len(cols) == 1 {
		c := cols[0]
		title = "Distribution of " + c.Name
		if c.Type == dataprocessing.ColumnNumeric {
			s = rowSeries(c)
		} else {
			s = Series{Name: c.Name}
			for _, vc := range dataprocessing.ValueCounts(c) {
				s.Labels = append(s.Labels, vc.Value)
				s.Values = append(s.Values, float64(vc.Count))
			}
		}
	} else {
		names, values := cols[0], cols[1]
		if err := requireNumeric(values); err != nil {
			return nil, err
		}
		title = "Distribution of " + values.Name
		s = Series{Name: values.Name}
		index := make(map[string]int)
		for i, v := range values.Values {
			n := names.Values[i]
			if v.Kind != dataprocessing.KindNumber || n.IsNull() {
				continue
			}
			label := n.String()
			if j, ok := index[label]; ok {
				s.Values[j] += v.Num
				continue
			}
			index[label] = len(s.Values)
			s.Labels = append(s.Labels, label)
			s.Values = append(s.Values, v.Num)
		}
	}

	if len(s.Values) == 0 {
		return nil, ErrNoData
	}
	return &Chart{Type: TypePie, Title: title, Series: []Series{s}}, nil
}

// histogram counts values into equal-width bins between min and max. The last
// bin is closed on the right. A constant column yields a single bin.
func histogram(c *dataprocessing.Column, bins int) (*Chart, error) {
	if bins <= 0 {
		return nil, ErrInvalidBins
	}
	if err := requireNumeric(c); err != nil {
		return nil, err
	}
	nums := c.Numbers()
	if len(nums) == 0 {
		return nil, ErrNoData
	}

	lo, hi := nums[0], nums[0]
	for _, v := range nums[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if lo == hi {
		bins = 1
	}
	// Bin arithmetic runs on halved values so the span stays finite near ±MaxFloat64.
	half := hi/2 - lo/2
	edge := func(i int) float64 {
		if i >= bins {
			return hi
		}
		return 2 * (lo/2 + half*(float64(i)/float64(bins)))
	}

	counts := make([]float64, bins)
	for _, v := range nums {
		idx := 0
		if half > 0 {
			idx = int(float64(bins) * ((v/2 - lo/2) / half))
		}
		counts[max(0, min(idx, bins-1))]++
	}

	s := Series{Name: c.Name, Values: counts, X: make([]float64, bins), Labels: make([]string, bins)}
	for i := range counts {
		s.X[i] = edge(i)
		s.Labels[i] = formatEdge(edge(i)) + " - " + formatEdge(edge(i+1))
	}

	return &Chart{
		Type:   TypeHistogram,
		Title:  "Distribution of " + c.Name,
		XLabel: c.Name,
		YLabel: "Frequency",
		Series: []Series{s},
	}, nil
}

func formatEdge(f float64) string {
	return strconv.FormatFloat(f, 'g', 6, 64)
}

// box emits the five-number summary of one column, or of the second column
// grouped by the labels of the first.
func box(cols []*dataprocessing.Column) (*Chart, error) {
	if len(cols) == 1 {
		c := cols[0]
		if err := requireNumeric(c); err != nil {
			return nil, err
		}
		s, ok := fiveNumber(c.Name, c.Numbers())
		if !ok {
			return nil, ErrNoData
		}
		return &Chart{Type: TypeBox, Title: "Distribution of " + c.Name, YLabel: c.Name, Series: []Series{s}}, nil
	}

	x, y := cols[0], cols[1]
	if err := requireNumeric(y); err != nil {
		return nil, err
	}

	var order []string
	groups := make(map[string][]float64)
	for i, yv := range y.Values {
		xv := x.Values[i]
		if yv.Kind != dataprocessing.KindNumber || xv.IsNull() {
			continue
		}
		label := xv.String()
		if _, ok := groups[label]; !ok {
			order = append(order, label)
		}
		groups[label] = append(groups[label], yv.Num)
	}
	if len(order) == 0 {
		return nil, ErrNoData
	}

	chart := &Chart{
		Type:   TypeBox,
		Title:  fmt.Sprintf("%s by %s", y.Name, x.Name),
		XLabel: x.Name,
		YLabel: y.Name,
	}
	for _, label := range order {
		s, _ := fiveNumber(label, groups[label])
		chart.Series = append(chart.Series, s)
	}
	return chart, nil
}

// SummaryBox places one box per numeric column side by side.
func SummaryBox(cols []*dataprocessing.Column, title string) (*Chart, error) {
	chart := &Chart{Type: TypeBox, Title: title}
	for _, c := range cols {
		if c.Type != dataprocessing.ColumnNumeric {
			continue
		}
		if s, ok := fiveNumber(c.Name, c.Numbers()); ok {
			chart.Series = append(chart.Series, s)
		}
	}
	if len(chart.Series) == 0 {
		return nil, ErrNoData
	}
	return chart, nil
}

func fiveNumber(name string, nums []float64) (Series, bool) {
	if len(nums) == 0 {
		return Series{}, false
	}
	sorted := append([]float64(nil), nums...)
	sort.Float64s(sorted)
	return Series{
		Name:   name,
		Labels: boxLabels,
		Values: []float64{
			sorted[0],
			dataprocessing.Quantile(sorted, 0.25),
			dataprocessing.Quantile(sorted, 0.5),
			dataprocessing.Quantile(sorted, 0.75),
			sorted[len(sorted)-1],
		},
	}, true
}

// heatmap pivots the mean of the third column by the distinct values of the
// first (columns) and second (rows), both sorted.
func heatmap(cols []*dataprocessing.Column) (*Chart, error) {
	if err := requireColumns(TypeHeatmap, cols, 3); err != nil {
		return nil, err
	}
	x, y, v := cols[0], cols[1], cols[2]
	if err := requireNumeric(v); err != nil {
		return nil, err
	}

	type cell struct {
		sum   float64
		count int
	}
	xs, ys := newAxis(), newAxis()
	cells := make(map[[2]string]*cell)
	for i, val := range v.Values {
		xv, yv := x.Values[i], y.Values[i]
		if val.Kind != dataprocessing.KindNumber || xv.IsNull() || yv.IsNull() {
			continue
		}
		k := [2]string{ys.add(yv), xs.add(xv)}
		c, ok := cells[k]
		if !ok {
			c = &cell{}
			cells[k] = c
		}
		c.sum += val.Num
		c.count++
	}
	if len(cells) == 0 {
		return nil, ErrNoData
	}

	grid := &Grid{X: xs.labels(), Y: ys.labels(), Z: make([][]*float64, len(ys.values))}
	xKeys, yKeys := xs.keys(), ys.keys()
	for i, yk := range yKeys {
		grid.Z[i] = make([]*float64, len(xKeys))
		for j, xk := range xKeys {
			if c, ok := cells[[2]string{yk, xk}]; ok {
				mean := c.sum / float64(c.count)
				grid.Z[i][j] = &mean
			}
		}
	}

	return &Chart{
		Type:   TypeHeatmap,
		Title:  fmt.Sprintf("Heatmap: %s by %s and %s", v.Name, x.Name, y.Name),
		XLabel: x.Name,
		YLabel: y.Name,
		Series: []Series{},
		Grid:   grid,
	}, nil
}

// axis collects the distinct values of a pivot dimension.
type axis struct {
	values map[string]dataprocessing.Value
	sorted []string
}

func newAxis() *axis {
	return &axis{values: make(map[string]dataprocessing.Value)}
}

func (a *axis) add(v dataprocessing.Value) string {
	k := v.Kind.String() + ":" + v.String()
	if _, ok := a.values[k]; !ok {
		a.values[k] = v
		a.sorted = nil
	}
	return k
}

func (a *axis) keys() []string {
	if a.sorted != nil {
		return a.sorted
	}
	keys := make([]string, 0, len(a.values))
	for k := range a.values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return lessValue(a.values[keys[i]], a.values[keys[j]])
	})
	a.sorted = keys
	return keys
}

func (a *axis) labels() []string {
	keys := a.keys()
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = a.values[k].String()
	}
	return out
}

func lessValue(a, b dataprocessing.Value) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	switch a.Kind {
	case dataprocessing.KindNumber:
		return a.Num < b.Num
	case dataprocessing.KindDateTime:
		return a.Time.Before(b.Time)
	default:
		return a.String() < b.String()
	}
}
