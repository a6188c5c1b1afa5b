package scene

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/banshee-data/uavsar/internal/annotation"
	"github.com/banshee-data/uavsar/internal/raster"
)

type fetchCall struct {
	URL, OutDir string
}

type fakeFetcher struct {
	archiveCalls []fetchCall
	imageCalls   []fetchCall
	err          error
}

func (f *fakeFetcher) FetchArchive(_ context.Context, url, outDir string) (string, error) {
	f.archiveCalls = append(f.archiveCalls, fetchCall{url, outDir})
	if f.err != nil {
		return "", f.err
	}
	return filepath.Join(outDir, filepath.Base(url)), nil
}

func (f *fakeFetcher) FetchSingleImage(_ context.Context, url, outDir string) (string, error) {
	f.imageCalls = append(f.imageCalls, fetchCall{url, outDir})
	if f.err != nil {
		return "", f.err
	}
	return filepath.Join(outDir, filepath.Base(url)), nil
}

type extractCall struct {
	ArchivePath, OutDir string
}

type fakeExtractor struct {
	names []string
	calls []extractCall
	err   error
}

// Extract returns names joined onto outDir, in the configured order.
func (e *fakeExtractor) Extract(archivePath, outDir string) ([]string, error) {
	e.calls = append(e.calls, extractCall{archivePath, outDir})
	if e.err != nil {
		return nil, e.err
	}
	out := make([]string, len(e.names))
	for i, n := range e.names {
		out[i] = filepath.Join(outDir, n)
	}
	return out, nil
}

type convertCall struct {
	Data, OutDir, Annotation string
	Overwrite                bool
}

type fakeConverter struct {
	calls []convertCall
	// fail maps a data file base name to the error Convert returns for it.
	fail    map[string]error
	complex bool
}

var errDecode = errors.New("decode failed")

func (c *fakeConverter) Convert(_ context.Context, dataPath, outDir, annotationPath string, overwrite bool) (annotation.Description, *raster.Raster, string, error) {
	c.calls = append(c.calls, convertCall{dataPath, outDir, annotationPath, overwrite})
	if err, ok := c.fail[filepath.Base(dataPath)]; ok {
		return nil, nil, "", err
	}

	desc := annotation.Description{"source": {Value: filepath.Base(dataPath)}}
	var (
		r   *raster.Raster
		err error
	)
	if c.complex {
		r, err = raster.NewComplex(2, 2, []float64{3, 0, 1, 1}, []float64{4, 2, 0, 1})
	} else {
		r, err = raster.NewReal(2, 2, []float64{1, 2, 3, 4})
	}
	if err != nil {
		return nil, nil, "", err
	}
	return desc, r, "grd", nil
}

func (c *fakeConverter) converted() []string {
	out := make([]string, len(c.calls))
	for i, call := range c.calls {
		out[i] = filepath.Base(call.Data)
	}
	return out
}
