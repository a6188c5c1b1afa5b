package grd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/banshee-data/uavsar/internal/annotation"
	"github.com/banshee-data/uavsar/internal/raster"
)

// Converter turns one binary product plus its annotation into a raster and
// an ENVI file on disk.
type Converter struct{}

// NewConverter returns a Converter.
func NewConverter() *Converter {
	return &Converter{}
}

// Convert decodes dataPath using annotationPath, writes the raster into
// outDir and returns the annotation description, the decoded raster and the
// product type tag. An existing output is kept when overwrite is false.
func (c *Converter) Convert(ctx context.Context, dataPath, outDir, annotationPath string, overwrite bool) (annotation.Description, *raster.Raster, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, "", err
	}
	start := time.Now()

	product, err := Detect(dataPath)
	if err != nil {
		return nil, nil, "", err
	}

	desc, err := annotation.ParseFile(annotationPath)
	if err != nil {
		return nil, nil, "", fmt.Errorf("annotation for %s: %w", filepath.Base(dataPath), err)
	}

	rows, cols, prefix, err := product.Dims(desc)
	if err != nil {
		return nil, nil, "", fmt.Errorf("%s with %s: %w", filepath.Base(dataPath), filepath.Base(annotationPath), err)
	}

	r, err := Decode(dataPath, rows, cols, product.Complex)
	if err != nil {
		return nil, nil, "", fmt.Errorf("decode %s: %w", filepath.Base(dataPath), err)
	}
	r.Geo = product.Geo(desc, prefix)
	if product.Georeferenced && r.Geo == nil {
		opsf("%s: annotation has no %s address keys; raster will not be georeferenced", filepath.Base(dataPath), prefix)
	}
	tracef("decoded %s: type=%s %dx%d complex=%v (%s) in %s",
		filepath.Base(dataPath), product.Type, rows, cols, product.Complex,
		humanize.Bytes(uint64(rows*cols*product.BytesPerPixel())), time.Since(start))

	stem := Stem(dataPath)
	out := filepath.Join(outDir, stem+".img")
	if !overwrite && fileExists(out) {
		diagf("keeping existing %s", out)
		return desc, r, product.Type, nil
	}

	if _, err := WriteENVI(outDir, stem, product.Type, r); err != nil {
		return nil, nil, "", fmt.Errorf("write %s: %w", out, err)
	}
	diagf("wrote %s", out)

	return desc, r, product.Type, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
