// Package preview turns converted rasters into human-inspectable images: a
// magnitude heat map with a robust median ± standard-deviation stretch, and
// an HTML histogram of the magnitude distribution.
package preview

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/uavsar/internal/raster"
)

// Magnitude returns the displayable magnitude of r. Real rasters are copied
// as-is; complex rasters give sqrt(re² + im²) per pixel with NaN carried
// through.
func Magnitude(r *raster.Raster) (*mat.Dense, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if !r.IsComplex() {
		return mat.DenseCopyOf(r.Real), nil
	}

	rows, cols := r.Complex.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := r.Complex.At(i, j)
			re, im := real(v), imag(v)
			out.Set(i, j, math.Sqrt(re*re+im*im))
		}
	}
	return out, nil
}

// Stretch is the contrast window used to display a magnitude image.
type Stretch struct {
	Median float64
	StdDev float64
	Lower  float64
	Upper  float64
	// Valid is false when every pixel is NaN; the other fields are NaN then.
	Valid bool
	// Count is the number of non-NaN pixels the statistics were taken over.
	Count int
}

// ErrNoData is returned by callers that need at least one non-NaN pixel.
var ErrNoData = errors.New("raster has no valid pixels")

// ComputeStretch returns median - stddev and median + stddev over the
// non-NaN entries of m. The standard deviation is the population one.
func ComputeStretch(m mat.Matrix) Stretch {
	vals := nonNaN(m)
	if len(vals) == 0 {
		nan := math.NaN()
		return Stretch{Median: nan, StdDev: nan, Lower: nan, Upper: nan}
	}
	sort.Float64s(vals)

	median := sortedMedian(vals)
	_, std := stat.PopMeanStdDev(vals, nil)
	return Stretch{
		Median: median,
		StdDev: std,
		Lower:  median - std,
		Upper:  median + std,
		Valid:  true,
		Count:  len(vals),
	}
}

// nonNaN collects every non-NaN element of m in row-major order.
func nonNaN(m mat.Matrix) []float64 {
	rows, cols := m.Dims()
	vals := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := m.At(i, j); !math.IsNaN(v) {
				vals = append(vals, v)
			}
		}
	}
	return vals
}

// sortedMedian averages the middle pair for even lengths.
func sortedMedian(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// displayRange is the stretch widened where needed so a colour scale can be
// built from it.
func (s Stretch) displayRange() (lo, hi float64) {
	if !s.Valid || math.IsNaN(s.Lower) || math.IsNaN(s.Upper) || math.IsInf(s.Lower, 0) || math.IsInf(s.Upper, 0) {
		return 0, 1
	}
	lo, hi = s.Lower, s.Upper
	if hi <= lo {
		pad := math.Abs(lo) * 1e-6
		if pad == 0 {
			pad = 0.5
		}
		lo, hi = lo-pad, hi+pad
	}
	return lo, hi
}
