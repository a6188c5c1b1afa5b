// Package raster holds decoded radar rasters in memory. A raster is either
// real-valued (one number per pixel) or complex-valued (a real and an
// imaginary component per pixel); exactly one of Real and Complex is set.
package raster

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrEmpty is returned when a raster would have no pixels.
var ErrEmpty = errors.New("raster has no pixels")

// Raster is a decoded image grid. Row 0 is the first line of the file.
type Raster struct {
	Real    *mat.Dense
	Complex *mat.CDense
	Geo     *GeoTransform
}

// GeoTransform locates the grid on the WGS-84 ellipsoid. Origin is the centre
// of pixel (0, 0); steps are in degrees per pixel (LatStep is usually negative).
type GeoTransform struct {
	OriginLat float64
	OriginLon float64
	LatStep   float64
	LonStep   float64
}

// NewReal wraps row-major values as a real-valued raster. values is not copied.
func NewReal(rows, cols int, values []float64) (*Raster, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmpty, rows, cols)
	}
	if len(values) != rows*cols {
		return nil, fmt.Errorf("have %d values for a %dx%d raster", len(values), rows, cols)
	}
	return &Raster{Real: mat.NewDense(rows, cols, values)}, nil
}

// NewComplex builds a complex-valued raster from separate real and imaginary
// planes, both row-major.
func NewComplex(rows, cols int, re, im []float64) (*Raster, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmpty, rows, cols)
	}
	if len(re) != rows*cols || len(im) != rows*cols {
		return nil, fmt.Errorf("have %d/%d components for a %dx%d raster", len(re), len(im), rows, cols)
	}
	data := make([]complex128, len(re))
	for i := range re {
		data[i] = complex(re[i], im[i])
	}
	return &Raster{Complex: mat.NewCDense(rows, cols, data)}, nil
}

// IsComplex reports whether pixels carry real and imaginary components.
func (r *Raster) IsComplex() bool {
	return r.Complex != nil
}

// Dims returns the raster's rows and columns.
func (r *Raster) Dims() (rows, cols int) {
	switch {
	case r.Real != nil:
		return r.Real.Dims()
	case r.Complex != nil:
		return r.Complex.Dims()
	}
	return 0, 0
}

// Fields names the per-pixel components, mirroring a structured array dtype.
func (r *Raster) Fields() []string {
	if r.IsComplex() {
		return []string{"real", "imaginary"}
	}
	return []string{"real"}
}

// Validate checks that exactly one storage plane is present.
func (r *Raster) Validate() error {
	if r == nil {
		return errors.New("nil raster")
	}
	if (r.Real == nil) == (r.Complex == nil) {
		return errors.New("raster must have exactly one of a real or complex plane")
	}
	return nil
}

// LatLon returns the coordinates of the centre of pixel (row, col). ok is
// false when the raster is not georeferenced.
func (r *Raster) LatLon(row, col int) (lat, lon float64, ok bool) {
	if r.Geo == nil {
		return 0, 0, false
	}
	return r.Geo.OriginLat + float64(row)*r.Geo.LatStep,
		r.Geo.OriginLon + float64(col)*r.Geo.LonStep, true
}
