// Package scene drives a UAVSAR zip scene from URL to converted rasters:
// download the archive, unpack it, pair every binary product with the
// annotation for its polarization and convert each one.
//
// A Scene keeps the output of each stage so a caller can re-enter mid
// pipeline. Stages recreate their output directories on every call and
// ConvertAll appends, so running it twice duplicates entries.
//
// A Scene is not safe for concurrent use.
package scene

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/banshee-data/uavsar/internal/annotation"
	"github.com/banshee-data/uavsar/internal/archive"
	"github.com/banshee-data/uavsar/internal/config"
	"github.com/banshee-data/uavsar/internal/fsutil"
	"github.com/banshee-data/uavsar/internal/grd"
	"github.com/banshee-data/uavsar/internal/polarization"
	"github.com/banshee-data/uavsar/internal/preview"
	"github.com/banshee-data/uavsar/internal/raster"
	"github.com/banshee-data/uavsar/internal/transport"
)

// Image is one converted binary product.
type Image struct {
	Description    annotation.Description
	Array          *raster.Raster
	Type           string
	DataPath       string
	AnnotationPath string
	Code           polarization.Code
}

// Scene is the state of one zip scene moving through the pipeline.
type Scene struct {
	URL     string
	WorkDir string
	Debug   bool

	// ArchivePath is set by Download.
	ArchivePath string
	// ExtractedPaths is set by Unpack. Empty means not yet unpacked.
	ExtractedPaths []string
	// AnnotationPath, when set, is used for every data file instead of
	// matching by polarization.
	AnnotationPath string
	// Images grows by one entry per converted data file.
	Images []Image

	fetcher   Fetcher
	extractor Extractor
	converter Converter
	fs        fsutil.FileSystem

	logWriters      [3]io.Writer
	log             logStreams
	layout          config.Layout
	overwrite       bool
	continueOnError bool
	previewOpts     preview.Options
	histogramBins   int
}

// Option customises a Scene.
type Option func(*Scene)

// WithFetcher overrides the HTTP transport.
func WithFetcher(f Fetcher) Option {
	return func(s *Scene) {
		if f != nil {
			s.fetcher = f
		}
	}
}

// WithExtractor overrides the archive extractor.
func WithExtractor(e Extractor) Option {
	return func(s *Scene) {
		if e != nil {
			s.extractor = e
		}
	}
}

// WithConverter overrides the raster converter.
func WithConverter(c Converter) Option {
	return func(s *Scene) {
		if c != nil {
			s.converter = c
		}
	}
}

// WithFileSystem overrides the filesystem used for directory creation,
// listing and preview output.
func WithFileSystem(fs fsutil.FileSystem) Option {
	return func(s *Scene) {
		if fs != nil {
			s.fs = fs
		}
	}
}

// WithLogWriters routes the scene's ops, diag and trace streams. A nil writer
// disables that stream. Trace output is only produced in debug mode.
func WithLogWriters(ops, diag, trace io.Writer) Option {
	return func(s *Scene) {
		s.logWriters = [3]io.Writer{ops, diag, trace}
	}
}

// WithDebug enables the trace stream.
func WithDebug(debug bool) Option {
	return func(s *Scene) {
		s.Debug = debug
	}
}

// WithOverwrite controls whether conversion replaces existing rasters.
func WithOverwrite(overwrite bool) Option {
	return func(s *Scene) {
		s.overwrite = overwrite
	}
}

// WithContinueOnError makes ConvertAll convert every matchable file and
// report all failures together instead of stopping at the first one.
func WithContinueOnError(cont bool) Option {
	return func(s *Scene) {
		s.continueOnError = cont
	}
}

// WithLayout overrides the sub-directories RunFullPipeline and Show use.
func WithLayout(l config.Layout) Option {
	return func(s *Scene) {
		s.layout = l
	}
}

// WithPreviewOptions sets the figure geometry for Show. The title is always
// taken from the scene URL.
func WithPreviewOptions(o preview.Options) Option {
	return func(s *Scene) {
		s.previewOpts = o
	}
}

// WithHistogramBins sets the bucket count for ShowHistogram.
func WithHistogramBins(bins int) Option {
	return func(s *Scene) {
		if bins > 0 {
			s.histogramBins = bins
		}
	}
}

// New creates a Scene for url rooted at workDir. A leading "~" in workDir is
// expanded. Nothing touches the filesystem until a stage runs.
func New(rawURL, workDir string, opts ...Option) (*Scene, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, errors.New("scene url is required")
	}
	if strings.TrimSpace(workDir) == "" {
		return nil, errors.New("scene work directory is required")
	}
	dir, err := fsutil.ExpandHome(workDir)
	if err != nil {
		return nil, fmt.Errorf("expand work directory: %w", err)
	}

	s := &Scene{
		URL:            rawURL,
		WorkDir:        dir,
		ExtractedPaths: []string{},
		Images:         []Image{},
		fetcher:        transport.NewFetcher(nil),
		extractor:      archive.NewExtractor(),
		converter:      grd.NewConverter(),
		fs:             fsutil.OSFileSystem{},
		logWriters:     [3]io.Writer{os.Stderr, nil, nil},
		layout:         config.DefaultLayout(),
		overwrite:      true,
		histogramBins:  preview.DefaultBins,
	}
	for _, opt := range opts {
		opt(s)
	}

	trace := s.logWriters[2]
	if !s.Debug {
		trace = nil
	}
	s.log = newLogStreams(s.logWriters[0], s.logWriters[1], trace)
	return s, nil
}

// IsArchiveURL reports whether u names a zip archive, judged by the final
// extension of its path.
func IsArchiveURL(u string) bool {
	p := u
	if parsed, err := url.Parse(u); err == nil && parsed.Path != "" {
		p = parsed.Path
	}
	return strings.EqualFold(path.Ext(p), ".zip")
}

// Name is the last path segment of the scene URL.
func (s *Scene) Name() string {
	if parsed, err := url.Parse(s.URL); err == nil && parsed.Path != "" {
		return path.Base(parsed.Path)
	}
	return path.Base(s.URL)
}

// stageDir creates and returns WorkDir/sub.
func (s *Scene) stageDir(sub string) (string, error) {
	dir := filepath.Join(s.WorkDir, sub)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return dir, nil
}

// Download fetches the scene archive into WorkDir/subDir and records its
// path. A URL that is not an archive is not fetched: a warning points at
// the single-image pipeline and the scene is left as it was. withAnnotation
// exists for parity with the single-image pipeline; archives already carry
// their annotations.
func (s *Scene) Download(ctx context.Context, subDir string, withAnnotation bool) error {
	outDir, err := s.stageDir(subDir)
	if err != nil {
		return err
	}

	if !IsArchiveURL(s.URL) {
		s.log.opsf("%s is not a zip archive; scene handles zip files only, use the single-image pipeline (image.New) instead", s.URL)
		return nil
	}

	p, err := s.fetcher.FetchArchive(ctx, s.URL, outDir)
	if err != nil {
		return fmt.Errorf("download %s: %w", s.URL, err)
	}
	s.ArchivePath = p
	s.log.diagf("downloaded %s to %s", s.Name(), p)
	return nil
}

// Unpack extracts inPath, or the downloaded archive when inPath is empty,
// into WorkDir/subDir and records the extracted files.
func (s *Scene) Unpack(inPath, subDir string) error {
	archivePath := inPath
	if archivePath == "" {
		archivePath = s.ArchivePath
	}
	if archivePath == "" {
		s.log.opsf("no known archive for %s; pass one to Unpack", s.Name())
		return ErrNoArchive
	}

	outDir, err := s.stageDir(subDir)
	if err != nil {
		return err
	}

	paths, err := s.extractor.Extract(archivePath, outDir)
	if err != nil {
		return fmt.Errorf("unpack %s: %w", archivePath, err)
	}
	s.ExtractedPaths = paths
	s.log.diagf("unpacked %d files into %s", len(paths), outDir)
	return nil
}

// ConvertAll converts every data file into WorkDir/subDir.
//
// The file set is the listing of dataDir when given, otherwise the paths
// recorded by Unpack. Each data file is paired with annotationPath when
// given, then with the scene's AnnotationPath, and otherwise with the
// annotation matching its polarization code. By default the batch stops at
// the first file that cannot be paired or converted; files converted before
// it stay in Images. WithContinueOnError carries on and joins the errors.
func (s *Scene) ConvertAll(ctx context.Context, subDir, dataDir, annotationPath string) error {
	files, err := s.workingSet(dataDir)
	if err != nil {
		return err
	}

	outDir, err := s.stageDir(subDir)
	if err != nil {
		return err
	}

	override := annotationPath
	if override == "" {
		override = s.AnnotationPath
	}
	var index polarization.Index
	if override == "" {
		index = polarization.Matcher{Warnf: s.log.opsf}.Index(files)
	}

	_, data := polarization.Partition(files)
	if len(data) == 0 {
		s.log.opsf("no data files among %d files", len(files))
		return nil
	}

	var errs []error
	for _, d := range data {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}

		ann := override
		if ann == "" {
			ann, err = index.Lookup(d)
			if err != nil {
				if !s.continueOnError {
					return err
				}
				s.log.opsf("skipping %s: %v", filepath.Base(d), err)
				errs = append(errs, err)
				continue
			}
		}

		desc, arr, typ, err := s.converter.Convert(ctx, d, outDir, ann, s.overwrite)
		if err != nil {
			err = fmt.Errorf("convert %s: %w", filepath.Base(d), err)
			if !s.continueOnError {
				return err
			}
			s.log.opsf("skipping %v", err)
			errs = append(errs, err)
			continue
		}

		code, _ := polarization.CodeOf(d)
		s.Images = append(s.Images, Image{
			Description:    desc,
			Array:          arr,
			Type:           typ,
			DataPath:       d,
			AnnotationPath: ann,
			Code:           code,
		})
		s.log.tracef("converted %s with %s as %s", filepath.Base(d), filepath.Base(ann), typ)
	}

	s.log.diagf("converted %d of %d data files into %s", len(data)-len(errs), len(data), outDir)
	return errors.Join(errs...)
}

func (s *Scene) workingSet(dataDir string) ([]string, error) {
	if dataDir != "" {
		names, err := s.fs.ReadDir(dataDir)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", dataDir, err)
		}
		files := make([]string, len(names))
		for i, n := range names {
			files[i] = filepath.Join(dataDir, n)
		}
		return files, nil
	}
	if len(s.ExtractedPaths) == 0 {
		return nil, ErrNoBinaries
	}
	return append([]string(nil), s.ExtractedPaths...), nil
}

// RunFullPipeline runs Download, Unpack and ConvertAll with the layout's
// sub-directories.
func (s *Scene) RunFullPipeline(ctx context.Context) error {
	if err := s.Download(ctx, s.layout.DownloadDir, true); err != nil {
		return err
	}
	if err := s.Unpack("", s.layout.UnpackDir); err != nil {
		return err
	}
	return s.ConvertAll(ctx, s.layout.RasterDir, "", "")
}
