package preview

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultBins is the histogram resolution used when callers pass zero.
const DefaultBins = 64

// Histogram counts the finite entries of m into bins equal-width buckets
// spanning their range. It returns the bucket dividers (bins+1 values) and
// counts.
func Histogram(m mat.Matrix, bins int) (dividers, counts []float64, err error) {
	if bins <= 0 {
		bins = DefaultBins
	}
	rows, cols := m.Dims()
	vals := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := m.At(i, j); !math.IsNaN(v) && !math.IsInf(v, 0) {
				vals = append(vals, v)
			}
		}
	}
	if len(vals) == 0 {
		return nil, nil, ErrNoData
	}
	sort.Float64s(vals)

	lo, hi := vals[0], vals[len(vals)-1]
	if hi == lo {
		hi = lo + 1
	}
	dividers = floats.Span(make([]float64, bins+1), lo, hi)
	// stat.Histogram's last bucket is half-open.
	dividers[bins] = math.Nextafter(dividers[bins], math.Inf(1))

	counts = stat.Histogram(nil, dividers, vals, nil)
	return dividers, counts, nil
}

// RenderHistogram writes an HTML bar chart of the magnitude distribution with
// the stretch bounds in the subtitle.
func RenderHistogram(w io.Writer, mag mat.Matrix, s Stretch, title string, bins int) error {
	dividers, counts, err := Histogram(mag, bins)
	if err != nil {
		return err
	}

	x := make([]string, len(counts))
	y := make([]opts.BarData, len(counts))
	for i, c := range counts {
		x[i] = fmt.Sprintf("%.4g", (dividers[i]+dividers[i+1])/2)
		y[i] = opts.BarData{Value: c}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("median=%.4g std=%.4g stretch=[%.4g, %.4g] n=%d", s.Median, s.StdDev, s.Lower, s.Upper, s.Count),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "magnitude", NameLocation: "middle", NameGap: 30}),
		charts.WithYAxisOpts(opts.YAxis{Name: "pixels"}),
	)
	bar.SetXAxis(x).AddSeries("magnitude", y)

	return bar.Render(w)
}
