// Package image handles a single UAVSAR binary product that is downloaded
// on its own rather than inside a zip scene: fetch the image and its
// annotation, convert it and preview it.
package image

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/banshee-data/uavsar/internal/annotation"
	"github.com/banshee-data/uavsar/internal/config"
	"github.com/banshee-data/uavsar/internal/fsutil"
	"github.com/banshee-data/uavsar/internal/grd"
	"github.com/banshee-data/uavsar/internal/polarization"
	"github.com/banshee-data/uavsar/internal/preview"
	"github.com/banshee-data/uavsar/internal/raster"
	"github.com/banshee-data/uavsar/internal/scene"
	"github.com/banshee-data/uavsar/internal/transport"
)

var (
	// ErrNoImage is returned by Convert before Download has run.
	ErrNoImage = errors.New("no image downloaded; download first or set ImagePath")
	// ErrNoAnnotation is returned by Convert when no annotation is known.
	ErrNoAnnotation = errors.New("no annotation known for this image; download with annotation or set AnnotationPath")
	// ErrNotConverted is returned by Show before Convert has run.
	ErrNotConverted = errors.New("image has not been converted")
)

// Image is the state of one single-image download.
type Image struct {
	URL     string
	WorkDir string
	Debug   bool

	ImagePath      string
	AnnotationPath string

	Description annotation.Description
	Array       *raster.Raster
	Type        string

	fetcher     scene.Fetcher
	converter   scene.Converter
	fs          fsutil.FileSystem
	layout      config.Layout
	overwrite   bool
	previewOpts preview.Options
	logWriters  [3]io.Writer
	ops         *log.Logger
	diag        *log.Logger
	trace       *log.Logger
}

// Option customises an Image.
type Option func(*Image)

// WithFetcher overrides the HTTP transport.
func WithFetcher(f scene.Fetcher) Option {
	return func(i *Image) {
		if f != nil {
			i.fetcher = f
		}
	}
}

// WithConverter overrides the raster converter.
func WithConverter(c scene.Converter) Option {
	return func(i *Image) {
		if c != nil {
			i.converter = c
		}
	}
}

// WithFileSystem overrides the filesystem.
func WithFileSystem(fs fsutil.FileSystem) Option {
	return func(i *Image) {
		if fs != nil {
			i.fs = fs
		}
	}
}

// WithLayout overrides the sub-directory layout.
func WithLayout(l config.Layout) Option {
	return func(i *Image) { i.layout = l }
}

// WithOverwrite controls whether conversion replaces an existing raster.
func WithOverwrite(overwrite bool) Option {
	return func(i *Image) { i.overwrite = overwrite }
}

// WithPreviewOptions sets the figure geometry for Show.
func WithPreviewOptions(o preview.Options) Option {
	return func(i *Image) { i.previewOpts = o }
}

// WithDebug enables the trace stream.
func WithDebug(debug bool) Option {
	return func(i *Image) { i.Debug = debug }
}

// WithLogWriters routes the ops, diag and trace streams; nil disables one.
func WithLogWriters(ops, diag, trace io.Writer) Option {
	return func(i *Image) { i.logWriters = [3]io.Writer{ops, diag, trace} }
}

// New creates an Image for url rooted at workDir.
func New(rawURL, workDir string, opts ...Option) (*Image, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, errors.New("image url is required")
	}
	if strings.TrimSpace(workDir) == "" {
		return nil, errors.New("image work directory is required")
	}
	dir, err := fsutil.ExpandHome(workDir)
	if err != nil {
		return nil, fmt.Errorf("expand work directory: %w", err)
	}

	img := &Image{
		URL:        rawURL,
		WorkDir:    dir,
		fetcher:    transport.NewFetcher(nil),
		converter:  grd.NewConverter(),
		fs:         fsutil.OSFileSystem{},
		layout:     config.DefaultLayout(),
		overwrite:  true,
		logWriters: [3]io.Writer{os.Stderr, nil, nil},
	}
	for _, opt := range opts {
		opt(img)
	}

	img.ops = newLogger(img.logWriters[0])
	img.diag = newLogger(img.logWriters[1])
	if img.Debug {
		img.trace = newLogger(img.logWriters[2])
	}
	return img, nil
}

func newLogger(w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, "[image] ", log.LstdFlags|log.Lmicroseconds)
}

func logf(l *log.Logger, format string, args ...interface{}) {
	if l != nil {
		l.Printf(format, args...)
	}
}

// polsarToken is the band code followed by a four-letter PolSAR
// polarization, e.g. L090HHHV.
var polsarToken = regexp.MustCompile(`([LPK][0-9]{3})(?:HH|HV|VH|VV){2}`)

// AnnotationURL derives the annotation URL for an image URL. The file name
// loses everything from its first dot, PolSAR products drop their four
// letter polarization after the band code (one annotation covers all of
// them), and ".ann" is appended.
//
//	.../SanAnd_08525_14138_007_140602_L090HHHV_CX_01.grd -> .../SanAnd_08525_14138_007_140602_L090_CX_01.ann
//	.../lowman_..._L090HH_01.int.grd                     -> .../lowman_..._L090HH_01.ann
func AnnotationURL(imageURL string) (string, error) {
	u, err := url.Parse(imageURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return "", fmt.Errorf("url %s has no file name", imageURL)
	}
	if polarization.IsAnnotation(base) {
		return "", fmt.Errorf("url %s is already an annotation", imageURL)
	}

	stem, _, _ := strings.Cut(base, ".")
	stem = polsarToken.ReplaceAllString(stem, "$1")

	u.Path = path.Join(path.Dir(u.Path), stem+polarization.AnnotationSuffix)
	u.RawPath = ""
	u.RawQuery = ""
	return u.String(), nil
}

// Download fetches the image into WorkDir/subDir and, when withAnnotation is
// set, its annotation too.
func (i *Image) Download(ctx context.Context, subDir string, withAnnotation bool) error {
	outDir := filepath.Join(i.WorkDir, subDir)
	if err := i.fs.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", outDir, err)
	}

	if scene.IsArchiveURL(i.URL) {
		logf(i.ops, "%s is a zip archive; use the scene pipeline (scene.New) for archives", i.URL)
		return nil
	}

	p, err := i.fetcher.FetchSingleImage(ctx, i.URL, outDir)
	if err != nil {
		return fmt.Errorf("download %s: %w", i.URL, err)
	}
	i.ImagePath = p
	logf(i.diag, "downloaded %s", p)

	if !withAnnotation {
		return nil
	}
	annURL, err := AnnotationURL(i.URL)
	if err != nil {
		return err
	}
	ap, err := i.fetcher.FetchSingleImage(ctx, annURL, outDir)
	if err != nil {
		return fmt.Errorf("download annotation %s: %w", annURL, err)
	}
	i.AnnotationPath = ap
	logf(i.trace, "annotation %s -> %s", annURL, ap)
	return nil
}

// Convert decodes the downloaded image into WorkDir/subDir.
func (i *Image) Convert(ctx context.Context, subDir string) error {
	if i.ImagePath == "" {
		return ErrNoImage
	}
	if i.AnnotationPath == "" {
		return fmt.Errorf("%w: %s", ErrNoAnnotation, filepath.Base(i.ImagePath))
	}

	outDir := filepath.Join(i.WorkDir, subDir)
	if err := i.fs.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", outDir, err)
	}

	desc, arr, typ, err := i.converter.Convert(ctx, i.ImagePath, outDir, i.AnnotationPath, i.overwrite)
	if err != nil {
		return fmt.Errorf("convert %s: %w", filepath.Base(i.ImagePath), err)
	}
	i.Description, i.Array, i.Type = desc, arr, typ
	logf(i.diag, "converted %s as %s", filepath.Base(i.ImagePath), typ)
	return nil
}

// RunFullPipeline downloads the image with its annotation and converts it
// using the layout's download and raster directories.
func (i *Image) RunFullPipeline(ctx context.Context) error {
	if err := i.Download(ctx, i.layout.DownloadDir, true); err != nil {
		return err
	}
	return i.Convert(ctx, i.layout.RasterDir)
}

// Show renders the converted image as a PNG under the preview directory and
// returns the path.
func (i *Image) Show() (string, error) {
	if i.Array == nil {
		return "", ErrNotConverted
	}
	outDir := filepath.Join(i.WorkDir, i.layout.PreviewDir)
	if err := i.fs.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", outDir, err)
	}
	out := filepath.Join(outDir, grd.Stem(i.ImagePath)+".png")

	w, err := i.fs.Create(out)
	if err != nil {
		return "", err
	}
	opt := i.previewOpts
	opt.Title = filepath.Base(i.ImagePath)
	_, err = preview.Render(w, i.Array, opt)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("render %s: %w", out, err)
	}
	return out, nil
}
