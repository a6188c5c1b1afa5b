package grd

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/uavsar/internal/raster"
)

// ENVI data type codes.
const (
	enviFloat32   = 4
	enviComplex64 = 6
)

const wgs84WKT = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// WriteENVI writes r as <dir>/<stem>.img plus a <stem>.hdr header and returns
// the .img path. Georeferenced rasters get a map info line tied at the centre
// of the first pixel.
func WriteENVI(dir, stem, productType string, r *raster.Raster) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	imgPath := filepath.Join(dir, stem+".img")
	hdrPath := filepath.Join(dir, stem+".hdr")

	if err := writeSamples(imgPath, r); err != nil {
		return "", err
	}
	if err := os.WriteFile(hdrPath, []byte(enviHeader(stem, productType, r)), 0o644); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}
	return imgPath, nil
}

func writeSamples(path string, r *raster.Raster) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriterSize(f, 1<<20)

	rows, cols := r.Dims()
	var buf [8]byte
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if r.IsComplex() {
				v := r.Complex.At(i, j)
				binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(float32(real(v))))
				binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(imag(v))))
				_, err = w.Write(buf[:8])
			} else {
				binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(float32(r.Real.At(i, j))))
				_, err = w.Write(buf[:4])
			}
			if err != nil {
				f.Close()
				return err
			}
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func enviHeader(stem, productType string, r *raster.Raster) string {
	rows, cols := r.Dims()
	dataType := enviFloat32
	if r.IsComplex() {
		dataType = enviComplex64
	}

	var b strings.Builder
	b.WriteString("ENVI\n")
	fmt.Fprintf(&b, "description = {UAVSAR %s product %s}\n", productType, stem)
	fmt.Fprintf(&b, "samples = %d\n", cols)
	fmt.Fprintf(&b, "lines = %d\n", rows)
	b.WriteString("bands = 1\n")
	b.WriteString("header offset = 0\n")
	b.WriteString("file type = ENVI Standard\n")
	fmt.Fprintf(&b, "data type = %d\n", dataType)
	b.WriteString("interleave = bsq\n")
	b.WriteString("byte order = 0\n")
	if g := r.Geo; g != nil {
		fmt.Fprintf(&b, "map info = {Geographic Lat/Lon, 1.5, 1.5, %.10f, %.10f, %.12g, %.12g, WGS-84, units=Degrees}\n",
			g.OriginLon, g.OriginLat, math.Abs(g.LonStep), math.Abs(g.LatStep))
		fmt.Fprintf(&b, "coordinate system string = {%s}\n", wgs84WKT)
	}
	fmt.Fprintf(&b, "band names = {%s}\n", productType)
	return b.String()
}
