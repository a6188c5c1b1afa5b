// Package archive unpacks downloaded UAVSAR scene archives.
package archive

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zip"

	"github.com/banshee-data/uavsar/internal/security"
)

// ErrEmptyArchive is returned when an archive holds no regular files.
var ErrEmptyArchive = errors.New("archive contains no files")

// Extractor unpacks zip archives.
type Extractor struct {
	// Flatten drops member directories so every file lands directly in the
	// output directory. UAVSAR archives are flat already; this only matters
	// for hand-built archives.
	Flatten bool
}

// NewExtractor returns an Extractor that preserves member paths.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract unpacks archivePath into outDir, which must exist, and returns the
// extracted file paths in archive order. Members that would land outside
// outDir are rejected.
func (e *Extractor) Extract(archivePath, outDir string) ([]string, error) {
	start := time.Now()

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	var (
		paths []string
		total uint64
	)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := f.Name
		if e.Flatten {
			name = filepath.Base(filepath.FromSlash(name))
		}
		target, err := security.SafeJoin(outDir, name)
		if err != nil {
			opsf("rejecting member %q of %s: %v", f.Name, filepath.Base(archivePath), err)
			return paths, fmt.Errorf("member %q: %w", f.Name, err)
		}

		n, err := extractMember(f, target)
		if err != nil {
			return paths, fmt.Errorf("extract %s: %w", f.Name, err)
		}
		tracef("extracted %s (%s)", f.Name, humanize.Bytes(uint64(n)))

		total += uint64(n)
		paths = append(paths, target)
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyArchive, archivePath)
	}
	diagf("unpacked %d files (%s) from %s in %s",
		len(paths), humanize.Bytes(total), filepath.Base(archivePath), time.Since(start).Round(time.Millisecond))
	return paths, nil
}

func extractMember(f *zip.File, target string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}
	rc, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return 0, err
	}
	w := bufio.NewWriterSize(out, 1<<20)
	n, err := io.Copy(w, rc)
	if err == nil {
		err = w.Flush()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}
