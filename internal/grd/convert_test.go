package grd

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/uavsar/internal/testutil"
)

func TestDecodeBytes_Real(t *testing.T) {
	r, err := DecodeBytes(testutil.Float32LE(1, 2, NoData, 4), 2, 2, false)
	require.NoError(t, err)

	assert.False(t, r.IsComplex())
	assert.Equal(t, 1.0, r.Real.At(0, 0))
	assert.True(t, math.IsNaN(r.Real.At(1, 0)), "no-data becomes NaN")
	assert.Equal(t, 4.0, r.Real.At(1, 1))
}

func TestDecodeBytes_Complex(t *testing.T) {
	r, err := DecodeBytes(testutil.Complex64LE(complex(3, 4), complex(-1, 0)), 1, 2, true)
	require.NoError(t, err)

	assert.True(t, r.IsComplex())
	assert.Equal(t, complex(3, 4), r.Complex.At(0, 0))
	assert.Equal(t, complex(-1, 0), r.Complex.At(0, 1))
}

func TestDecodeBytes_SizeMismatch(t *testing.T) {
	_, err := DecodeBytes(testutil.Float32LE(1, 2, 3), 2, 2, false)
	assert.True(t, errors.Is(err, ErrSizeMismatch))

	// a real file read as complex is also a mismatch
	_, err = DecodeBytes(testutil.Float32LE(1, 2, 3, 4), 2, 2, true)
	assert.True(t, errors.Is(err, ErrSizeMismatch))
}

func TestDecodeBytes_RejectsOverflowingDims(t *testing.T) {
	tests := []struct {
		name       string
		rows, cols int
		complex    bool
	}{
		{"product wraps to zero", 1 << 31, 1 << 31, false},
		{"complex overflow", 1 << 40, 1 << 20, true},
		{"negative rows", -2, 2, false},
		{"zero cols", 2, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeBytes(nil, tt.rows, tt.cols, tt.complex)
			assert.ErrorIs(t, err, ErrSizeMismatch)
		})
	}
}

func TestConverter_HugeAnnotationDimsFailCleanly(t *testing.T) {
	dir := t.TempDir()
	ann := testutil.WriteFile(t, dir, "s_VV.ann", []byte(testutil.AnnotationText("grd_pwr", 1<<31, 1<<31, nil)))
	empty := testutil.WriteFile(t, dir, "s_VVVV.grd", nil)

	_, _, _, err := NewConverter().Convert(context.Background(), empty, dir, ann, true)
	assert.ErrorIs(t, err, ErrSizeMismatch)
}

func TestConverter_ConvertGeoreferenced(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "rasters")
	require.NoError(t, os.MkdirAll(outDir, 0o755))

	ann := testutil.WriteFile(t, dir, "scene_CX_01.ann", []byte(testutil.AnnotationText("grd_pwr", 2, 3,
		&testutil.Geo{Lat: 39.0, Lon: -108.0, LatStep: -0.001, LonStep: 0.001})))
	data := testutil.WriteFile(t, dir, "scene_L090HHHH_CX_01.grd", testutil.Float32LE(1, 2, 3, 4, 5, 6))

	var diag bytes.Buffer
	SetLogWriters(nil, &diag, nil)
	defer SetLogWriters(nil, nil, nil)

	desc, r, typ, err := NewConverter().Convert(context.Background(), data, outDir, ann, true)
	require.NoError(t, err)

	assert.Equal(t, "grd", typ)
	rows, cols := r.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 3, cols)
	require.NotNil(t, r.Geo)
	assert.Equal(t, 39.0, r.Geo.OriginLat)
	_, ok := desc.Get("site description")
	assert.True(t, ok)

	img := filepath.Join(outDir, "scene_L090HHHH_CX_01.img")
	info, err := os.Stat(img)
	require.NoError(t, err)
	assert.Equal(t, int64(24), info.Size())

	hdr, err := os.ReadFile(filepath.Join(outDir, "scene_L090HHHH_CX_01.hdr"))
	require.NoError(t, err)
	assert.Contains(t, string(hdr), "samples = 3")
	assert.Contains(t, string(hdr), "lines = 2")
	assert.Contains(t, string(hdr), "data type = 4")
	assert.Contains(t, string(hdr), "map info = {Geographic Lat/Lon, 1.5, 1.5, -108.0000000000, 39.0000000000")
	assert.Contains(t, diag.String(), "wrote")
}

func TestConverter_ConvertComplexWithoutGeo(t *testing.T) {
	dir := t.TempDir()
	ann := testutil.WriteFile(t, dir, "scene_HH_01.ann", []byte(testutil.AnnotationText("grd_phs", 1, 2, nil)))
	data := testutil.WriteFile(t, dir, "scene_HH_01.int.grd", testutil.Complex64LE(complex(3, 4), complex(0, 1)))

	var ops bytes.Buffer
	SetLogWriters(&ops, nil, nil)
	defer SetLogWriters(nil, nil, nil)

	_, r, typ, err := NewConverter().Convert(context.Background(), data, dir, ann, true)
	require.NoError(t, err)

	assert.Equal(t, "int", typ)
	assert.True(t, r.IsComplex())
	assert.Nil(t, r.Geo)
	assert.Contains(t, ops.String(), "will not be georeferenced")

	hdr, err := os.ReadFile(filepath.Join(dir, "scene_HH_01.int.hdr"))
	require.NoError(t, err)
	assert.Contains(t, string(hdr), "data type = 6")
	assert.NotContains(t, string(hdr), "map info")
}

func TestConverter_KeepsExistingWhenNotOverwriting(t *testing.T) {
	dir := t.TempDir()
	ann := testutil.WriteFile(t, dir, "s_VV.ann", []byte(testutil.AnnotationText("grd_pwr", 1, 1, nil)))
	data := testutil.WriteFile(t, dir, "s_VVVV.grd", testutil.Float32LE(7))
	existing := testutil.WriteFile(t, dir, "s_VVVV.img", []byte("keep me"))

	_, r, _, err := NewConverter().Convert(context.Background(), data, dir, ann, false)
	require.NoError(t, err)
	assert.Equal(t, 7.0, r.Real.At(0, 0))

	got, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(got))
}

func TestConverter_Errors(t *testing.T) {
	dir := t.TempDir()
	ann := testutil.WriteFile(t, dir, "s_VV.ann", []byte(testutil.AnnotationText("grd_pwr", 2, 2, nil)))
	short := testutil.WriteFile(t, dir, "s_VVVV.grd", testutil.Float32LE(1, 2))
	unknown := testutil.WriteFile(t, dir, "s_VV.kml", []byte("<kml/>"))

	c := NewConverter()
	ctx := context.Background()

	_, _, _, err := c.Convert(ctx, short, dir, ann, true)
	assert.True(t, errors.Is(err, ErrSizeMismatch), "got %v", err)

	_, _, _, err = c.Convert(ctx, unknown, dir, ann, true)
	assert.True(t, errors.Is(err, ErrUnknownProduct), "got %v", err)

	_, _, _, err = c.Convert(ctx, short, dir, filepath.Join(dir, "missing.ann"), true)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "annotation"))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, _, _, err = c.Convert(cancelled, short, dir, ann, true)
	assert.ErrorIs(t, err, context.Canceled)
}
