// Package testutil provides shared test helpers and fixture writers for
// UAVSAR-shaped inputs: annotation files, little-endian binaries and zip
// archives.
package testutil

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// Geo is the optional georeferencing written by AnnotationText.
type Geo struct {
	Lat, Lon, LatStep, LonStep float64
}

// AnnotationText renders a minimal annotation file declaring rows x cols for
// prefix (e.g. "grd_pwr"), with address keys when geo is non-nil.
func AnnotationText(prefix string, rows, cols int, geo *Geo) string {
	var b strings.Builder
	b.WriteString("; test annotation\n")
	b.WriteString("Site Description = Test Site\n")
	fmt.Fprintf(&b, "%s.set_rows (pixels) = %d ; lines\n", prefix, rows)
	fmt.Fprintf(&b, "%s.set_cols (pixels) = %d ; samples\n", prefix, cols)
	if geo != nil {
		fmt.Fprintf(&b, "%s.row_addr (deg) = %.9f\n", prefix, geo.Lat)
		fmt.Fprintf(&b, "%s.col_addr (deg) = %.9f\n", prefix, geo.Lon)
		fmt.Fprintf(&b, "%s.row_mult (deg/pixel) = %.12f\n", prefix, geo.LatStep)
		fmt.Fprintf(&b, "%s.col_mult (deg/pixel) = %.12f\n", prefix, geo.LonStep)
	}
	return b.String()
}

// WriteFile writes data to dir/name and returns the path.
func WriteFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// Float32LE encodes values as little-endian float32.
func Float32LE(values ...float32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// Complex64LE encodes values as interleaved little-endian float32 pairs.
func Complex64LE(values ...complex64) []byte {
	out := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*8:], math.Float32bits(real(v)))
		binary.LittleEndian.PutUint32(out[i*8+4:], math.Float32bits(imag(v)))
	}
	return out
}

// ZipEntry is one member of a fixture archive.
type ZipEntry struct {
	Name string
	Data []byte
}

// ZipBytes builds an in-memory zip archive with members in the given order.
func ZipBytes(t *testing.T, entries ...ZipEntry) []byte {
	t.Helper()
	var buf strings.Builder
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		if err != nil {
			t.Fatalf("zip create %s: %v", e.Name, err)
		}
		if _, err := w.Write(e.Data); err != nil {
			t.Fatalf("zip write %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return []byte(buf.String())
}

// WriteZip writes a fixture archive to dir/name and returns its path.
func WriteZip(t *testing.T, dir, name string, entries ...ZipEntry) string {
	t.Helper()
	return WriteFile(t, dir, name, ZipBytes(t, entries...))
}
