package image

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/uavsar/internal/annotation"
	"github.com/banshee-data/uavsar/internal/fsutil"
	"github.com/banshee-data/uavsar/internal/preview"
	"github.com/banshee-data/uavsar/internal/raster"
)

const polsarURL = "https://uavsar.asf.alaska.edu/UA_SanAnd_08525_14138_007_140602_L090_CX_01/SanAnd_08525_14138_007_140602_L090HHHV_CX_01.grd"

type stubFetcher struct {
	urls []string
	fail map[string]error
}

func (f *stubFetcher) FetchArchive(ctx context.Context, url, outDir string) (string, error) {
	return "", errors.New("not an archive fetcher")
}

func (f *stubFetcher) FetchSingleImage(_ context.Context, url, outDir string) (string, error) {
	f.urls = append(f.urls, url)
	if err, ok := f.fail[url]; ok {
		return "", err
	}
	return filepath.Join(outDir, filepath.Base(url)), nil
}

type stubConverter struct {
	data, ann, outDir string
	err               error
}

func (c *stubConverter) Convert(_ context.Context, dataPath, outDir, annotationPath string, _ bool) (annotation.Description, *raster.Raster, string, error) {
	c.data, c.ann, c.outDir = dataPath, annotationPath, outDir
	if c.err != nil {
		return nil, nil, "", c.err
	}
	r, err := raster.NewReal(2, 2, []float64{1, 2, 3, 4})
	return annotation.Description{}, r, "grd", err
}

func TestAnnotationURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{polsarURL, "https://uavsar.asf.alaska.edu/UA_SanAnd_08525_14138_007_140602_L090_CX_01/SanAnd_08525_14138_007_140602_L090_CX_01.ann"},
		{"https://example.com/SanAnd_08525_14138_007_140602_L090HHHH_CX_01.mlc", "https://example.com/SanAnd_08525_14138_007_140602_L090_CX_01.ann"},
		{"https://example.com/lowman_23205_21002-004_21004-003_0007d_s01_L090HH_01.int.grd", "https://example.com/lowman_23205_21002-004_21004-003_0007d_s01_L090HH_01.ann"},
		{"https://example.com/a/b.grd?token=1", "https://example.com/a/b.ann"},
	}
	for _, tt := range tests {
		got, err := AnnotationURL(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := AnnotationURL("https://example.com/x.ann")
	assert.Error(t, err)
	_, err = AnnotationURL("https://example.com/")
	assert.Error(t, err)
}

func TestRunFullPipeline(t *testing.T) {
	f := &stubFetcher{}
	c := &stubConverter{}
	fs := fsutil.NewMemoryFileSystem()

	img, err := New(polsarURL, "/work", WithFetcher(f), WithConverter(c), WithFileSystem(fs), WithLogWriters(nil, nil, nil))
	require.NoError(t, err)
	require.NoError(t, img.RunFullPipeline(context.Background()))

	require.Len(t, f.urls, 2)
	assert.Equal(t, polsarURL, f.urls[0])
	assert.Equal(t, "/work/tmp/SanAnd_08525_14138_007_140602_L090HHHV_CX_01.grd", img.ImagePath)
	assert.Equal(t, "/work/tmp/SanAnd_08525_14138_007_140602_L090_CX_01.ann", img.AnnotationPath)
	assert.Equal(t, "/work/rasters", c.outDir)
	assert.Equal(t, img.AnnotationPath, c.ann)
	assert.Equal(t, "grd", img.Type)
	assert.NotNil(t, img.Array)
}

func TestDownload_WithoutAnnotation(t *testing.T) {
	f := &stubFetcher{}
	img, err := New(polsarURL, "/work", WithFetcher(f), WithFileSystem(fsutil.NewMemoryFileSystem()))
	require.NoError(t, err)

	require.NoError(t, img.Download(context.Background(), "tmp/", false))
	assert.Len(t, f.urls, 1)
	assert.Empty(t, img.AnnotationPath)

	err = img.Convert(context.Background(), "rasters/")
	assert.ErrorIs(t, err, ErrNoAnnotation)
}

func TestDownload_ArchiveRedirects(t *testing.T) {
	var ops bytes.Buffer
	f := &stubFetcher{}
	img, err := New("https://example.com/scene.zip", "/work", WithFetcher(f),
		WithFileSystem(fsutil.NewMemoryFileSystem()), WithLogWriters(&ops, nil, nil))
	require.NoError(t, err)

	require.NoError(t, img.Download(context.Background(), "tmp/", true))
	assert.Empty(t, f.urls)
	assert.Contains(t, ops.String(), "scene pipeline")
}

func TestDownload_AnnotationFailurePropagates(t *testing.T) {
	boom := errors.New("404 Not Found")
	annURL, err := AnnotationURL(polsarURL)
	require.NoError(t, err)
	f := &stubFetcher{fail: map[string]error{annURL: boom}}

	img, err := New(polsarURL, "/work", WithFetcher(f), WithFileSystem(fsutil.NewMemoryFileSystem()))
	require.NoError(t, err)

	err = img.Download(context.Background(), "tmp/", true)
	assert.ErrorIs(t, err, boom)
	assert.NotEmpty(t, img.ImagePath)
}

func TestConvert_Errors(t *testing.T) {
	c := &stubConverter{err: errors.New("size mismatch")}
	img, err := New(polsarURL, "/work", WithConverter(c), WithFileSystem(fsutil.NewMemoryFileSystem()))
	require.NoError(t, err)

	assert.ErrorIs(t, img.Convert(context.Background(), "rasters/"), ErrNoImage)

	img.ImagePath, img.AnnotationPath = "/work/tmp/x_HH.grd", "/work/tmp/x.ann"
	assert.ErrorIs(t, img.Convert(context.Background(), "rasters/"), c.err)
	assert.Nil(t, img.Array)
}

func TestShow(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	img, err := New(polsarURL, "/work", WithFetcher(&stubFetcher{}), WithConverter(&stubConverter{}),
		WithFileSystem(fs), WithPreviewOptions(preview.Options{Width: 300, Height: 200}))
	require.NoError(t, err)

	_, err = img.Show()
	assert.ErrorIs(t, err, ErrNotConverted)

	require.NoError(t, img.RunFullPipeline(context.Background()))
	out, err := img.Show()
	require.NoError(t, err)
	assert.Equal(t, "/work/previews/SanAnd_08525_14138_007_140602_L090HHHV_CX_01.png", out)

	data, err := fs.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}
