package grd

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/banshee-data/uavsar/internal/raster"
)

// NoData is the fill value UAVSAR writes into real-valued ground products.
const NoData = -10000

// ErrSizeMismatch is returned when a binary file's length does not match the
// dimensions its annotation declares.
var ErrSizeMismatch = errors.New("binary size does not match annotation")

// Decode reads a little-endian float32 (or complex64) binary into a raster.
// Real-valued NoData pixels become NaN.
func Decode(path string, rows, cols int, complexValued bool) (*raster.Raster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeBytes(data, rows, cols, complexValued)
}

// bytesPerPixel is the on-disk pixel width: float32 or complex64.
func bytesPerPixel(complexValued bool) int {
	if complexValued {
		return 8
	}
	return 4
}

// checkDims rejects dimensions that are not positive or whose byte size does
// not fit in an int.
func checkDims(rows, cols, bpp int) error {
	if rows <= 0 || cols <= 0 {
		return fmt.Errorf("%w: %dx%d is not a raster", ErrSizeMismatch, rows, cols)
	}
	if rows > math.MaxInt/cols/bpp {
		return fmt.Errorf("%w: %dx%d at %d bytes/pixel overflows", ErrSizeMismatch, rows, cols, bpp)
	}
	return nil
}

// DecodeBytes is Decode on an in-memory buffer.
func DecodeBytes(data []byte, rows, cols int, complexValued bool) (*raster.Raster, error) {
	bpp := bytesPerPixel(complexValued)
	if err := checkDims(rows, cols, bpp); err != nil {
		return nil, err
	}
	if want := rows * cols * bpp; len(data) != want {
		return nil, fmt.Errorf("%w: have %d bytes, %dx%d at %d bytes/pixel needs %d",
			ErrSizeMismatch, len(data), rows, cols, bpp, want)
	}

	n := rows * cols
	if !complexValued {
		values := make([]float64, n)
		for i := 0; i < n; i++ {
			v := float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
			if v == NoData {
				v = math.NaN()
			}
			values[i] = v
		}
		return raster.NewReal(rows, cols, values)
	}

	re := make([]float64, n)
	im := make([]float64, n)
	for i := 0; i < n; i++ {
		re[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*8:])))
		im[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*8+4:])))
	}
	return raster.NewComplex(rows, cols, re, im)
}
