// Package grd decodes UAVSAR binary products using their annotation files and
// writes them out as georeferenced ENVI rasters.
package grd

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/uavsar/internal/annotation"
	"github.com/banshee-data/uavsar/internal/raster"
)

// ErrUnknownProduct is returned for file names that are not a recognised
// UAVSAR product.
var ErrUnknownProduct = errors.New("unknown UAVSAR product")

// Product describes how to decode one binary file.
type Product struct {
	// Type is the tag reported alongside the converted raster: int, unw,
	// cor, amp1, amp2, hgt, grd, mlc or slc.
	Type string
	// Complex products store interleaved float32 real/imaginary pairs.
	Complex bool
	// Prefixes are the annotation key prefixes that may carry this product's
	// dimensions, most specific first.
	Prefixes []string
	// Georeferenced products carry row/col address and spacing keys.
	Georeferenced bool
}

var insarPrefixes = map[string][]string{
	"int":  {"grd_phs", "grd_mag"},
	"unw":  {"grd_phs", "grd_mag"},
	"cor":  {"grd_mag", "grd_phs"},
	"amp1": {"grd_mag", "grd_phs"},
	"amp2": {"grd_mag", "grd_phs"},
	"hgt":  {"grd_mag", "grd_phs"},
}

// PolSAR cross-products are complex; the diagonal terms are real powers.
var crossProducts = []string{"HHHV", "HHVV", "HVVV"}

func isCrossProduct(base string) bool {
	upper := strings.ToUpper(base)
	for _, c := range crossProducts {
		if strings.Contains(upper, c) {
			return true
		}
	}
	return false
}

// Detect classifies a product from its file name.
func Detect(path string) (Product, error) {
	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))

	switch ext {
	case ".grd":
		inner := strings.TrimPrefix(strings.ToLower(filepath.Ext(strings.TrimSuffix(base, filepath.Ext(base)))), ".")
		if prefixes, ok := insarPrefixes[inner]; ok {
			return Product{Type: inner, Complex: inner == "int", Prefixes: prefixes, Georeferenced: true}, nil
		}
		if isCrossProduct(base) {
			return Product{Type: "grd", Complex: true, Prefixes: []string{"grd_pwr", "grd_phs"}, Georeferenced: true}, nil
		}
		return Product{Type: "grd", Prefixes: []string{"grd_pwr", "grd_mag"}, Georeferenced: true}, nil
	case ".mlc":
		return Product{Type: "mlc", Complex: isCrossProduct(base), Prefixes: []string{"mlc_pwr", "mlc_mag", "mlc_phs"}}, nil
	case ".slc":
		return Product{Type: "slc", Complex: true, Prefixes: []string{"slc_1_1x1_mag", "slc_mag"}}, nil
	}
	return Product{}, fmt.Errorf("%w: %s", ErrUnknownProduct, base)
}

// BytesPerPixel is 8 for complex64 samples and 4 for float32 samples.
func (p Product) BytesPerPixel() int {
	if p.Complex {
		return 8
	}
	return 4
}

// Dims reads the raster size from the annotation, trying each prefix in turn.
func (p Product) Dims(desc annotation.Description) (rows, cols int, prefix string, err error) {
	for _, prefix := range p.Prefixes {
		if _, ok := desc.Get(prefix + ".set_rows"); !ok {
			continue
		}
		rows, err := desc.Int(prefix + ".set_rows")
		if err != nil {
			return 0, 0, "", err
		}
		cols, err := desc.Int(prefix + ".set_cols")
		if err != nil {
			return 0, 0, "", err
		}
		if err := checkDims(rows, cols, bytesPerPixel(p.Complex)); err != nil {
			return 0, 0, "", fmt.Errorf("%s: %w", prefix, err)
		}
		return rows, cols, prefix, nil
	}
	return 0, 0, "", fmt.Errorf("%w: none of %v.set_rows", annotation.ErrMissingKey, p.Prefixes)
}

// Geo reads the geographic grid for prefix. It returns nil when the product
// is not georeferenced or the annotation lacks the address keys.
func (p Product) Geo(desc annotation.Description, prefix string) *raster.GeoTransform {
	if !p.Georeferenced {
		return nil
	}
	var vals [4]float64
	for i, key := range []string{"row_addr", "col_addr", "row_mult", "col_mult"} {
		v, err := desc.Float(prefix + "." + key)
		if err != nil {
			return nil
		}
		vals[i] = v
	}
	return &raster.GeoTransform{
		OriginLat: vals[0],
		OriginLon: vals[1],
		LatStep:   vals[2],
		LonStep:   vals[3],
	}
}

// Stem is the output base name: the file name without its final extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
