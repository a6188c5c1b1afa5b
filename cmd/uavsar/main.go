// Command uavsar downloads a UAVSAR product, converts its binaries to
// georeferenced rasters and optionally previews and catalogues the result.
//
// Zip archive URLs run the scene pipeline (download, unpack, pair each binary
// with its polarization's annotation, convert). Other URLs are treated as a
// single image whose annotation is fetched alongside it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/banshee-data/uavsar/internal/archive"
	"github.com/banshee-data/uavsar/internal/catalog"
	"github.com/banshee-data/uavsar/internal/config"
	"github.com/banshee-data/uavsar/internal/grd"
	"github.com/banshee-data/uavsar/internal/httputil"
	"github.com/banshee-data/uavsar/internal/image"
	"github.com/banshee-data/uavsar/internal/monitoring"
	"github.com/banshee-data/uavsar/internal/preview"
	"github.com/banshee-data/uavsar/internal/scene"
	"github.com/banshee-data/uavsar/internal/timeutil"
	"github.com/banshee-data/uavsar/internal/transport"
	"github.com/banshee-data/uavsar/internal/version"
)

var clock timeutil.Clock = timeutil.RealClock{}

type cliOptions struct {
	URL             string
	WorkDir         string
	ConfigPath      string
	AnnotationPath  string
	Debug           bool
	Verbose         bool
	Overwrite       bool
	ContinueOnError bool
	Preview         int
	Histogram       bool
	CatalogPath     string
	List            bool
	Version         bool

	// set records which flags were given explicitly, so they can override
	// the config file without their defaults doing so.
	set map[string]bool
}

func newFlagSet(opts *cliOptions) *flag.FlagSet {
	fs := flag.NewFlagSet("uavsar", flag.ContinueOnError)
	fs.StringVar(&opts.URL, "url", "", "UAVSAR zip archive or single image URL")
	fs.StringVar(&opts.WorkDir, "workdir", ".", "Working directory for downloads, rasters and previews")
	fs.StringVar(&opts.ConfigPath, "config", "", "Path to a JSON config file")
	fs.StringVar(&opts.AnnotationPath, "annotation", "", "Use this annotation for every binary instead of matching by polarization")
	fs.BoolVar(&opts.Debug, "debug", false, "Enable trace logging")
	fs.BoolVar(&opts.Verbose, "verbose", false, "Enable diagnostic logging")
	fs.BoolVar(&opts.Overwrite, "overwrite", true, "Overwrite existing downloads and rasters")
	fs.BoolVar(&opts.ContinueOnError, "continue-on-error", false, "Keep converting after a binary fails and report all failures")
	fs.IntVar(&opts.Preview, "preview", -1, "Render a PNG preview of converted image N (-1 for none)")
	fs.BoolVar(&opts.Histogram, "histogram", false, "Also write an HTML magnitude histogram for the previewed scene image")
	fs.StringVar(&opts.CatalogPath, "catalog", "", "SQLite catalogue to record results in")
	fs.BoolVar(&opts.List, "list", false, "List catalogued scenes and exit")
	fs.BoolVar(&opts.Version, "version", false, "Print version and exit")
	return fs
}

func parseArgs(args []string) (*cliOptions, error) {
	opts := &cliOptions{set: map[string]bool{}}
	fs := newFlagSet(opts)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })
	return opts, nil
}

// loadConfig reads the config file, if any, and applies explicit flags on
// top of it.
func loadConfig(opts *cliOptions) (*config.Config, error) {
	cfg := config.EmptyConfig()
	if opts.ConfigPath != "" {
		var err error
		if cfg, err = config.LoadConfig(opts.ConfigPath); err != nil {
			return nil, err
		}
	}
	if opts.set["overwrite"] {
		v := opts.Overwrite
		cfg.Overwrite = &v
	}
	if opts.set["continue-on-error"] {
		v := opts.ContinueOnError
		cfg.ContinueOnError = &v
	}
	if opts.set["catalog"] {
		v := opts.CatalogPath
		cfg.CatalogPath = &v
	}
	return cfg, nil
}

func main() {
	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	if opts.Version {
		fmt.Println(version.String())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout, os.Stderr); err != nil {
		log.Fatalf("uavsar: %v", err)
	}
}

func run(ctx context.Context, opts *cliOptions, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	streams := monitoring.NewStreams(stderr, opts.Verbose, opts.Debug)
	monitoring.SetLogger(log.New(stderr, "", log.LstdFlags).Printf)
	transport.SetLogWriters(streams.Ops, streams.Diag, streams.Trace)
	archive.SetLogWriters(streams.Ops, streams.Diag, streams.Trace)
	grd.SetLogWriters(streams.Ops, streams.Diag, streams.Trace)
	catalog.SetLogWriters(streams.Ops, streams.Diag, streams.Trace)

	var store *catalog.Store
	if path := cfg.GetCatalogPath(); path != "" {
		if store, err = catalog.Open(path); err != nil {
			return fmt.Errorf("open catalog: %w", err)
		}
		defer store.Close()
	}

	if opts.List {
		if store == nil {
			return errors.New("-list needs -catalog or catalog_path")
		}
		return listScenes(stdout, store)
	}

	if opts.URL == "" {
		return errors.New("-url is required")
	}

	fetcher := transport.NewFetcher(httputil.NewTimeoutClient(cfg.GetHTTPTimeout()))
	fetcher.UserAgent = cfg.GetUserAgent()
	fetcher.Overwrite = cfg.GetOverwrite()
	previewOpts := preview.Options{MaxCells: cfg.GetPreviewMaxCells()}

	if !scene.IsArchiveURL(opts.URL) {
		return runImage(ctx, opts, cfg, fetcher, previewOpts, streams, store)
	}

	sc, err := scene.New(opts.URL, opts.WorkDir,
		scene.WithFetcher(fetcher),
		scene.WithLogWriters(streams.Ops, streams.Diag, streams.Trace),
		scene.WithDebug(opts.Debug),
		scene.WithLayout(cfg.Layout()),
		scene.WithOverwrite(cfg.GetOverwrite()),
		scene.WithContinueOnError(cfg.GetContinueOnError()),
		scene.WithPreviewOptions(previewOpts),
		scene.WithHistogramBins(cfg.GetHistogramBins()),
	)
	if err != nil {
		return err
	}
	sc.AnnotationPath = opts.AnnotationPath

	start := clock.Now()
	runErr := sc.RunFullPipeline(ctx)
	monitoring.Logf("%s: %d images converted in %s", sc.Name(), len(sc.Images), clock.Since(start).Round(time.Millisecond))

	if store != nil && len(sc.Images) > 0 {
		id, err := store.RecordScene(sc)
		if err != nil {
			return errors.Join(runErr, fmt.Errorf("record scene: %w", err))
		}
		monitoring.Logf("catalogued as %s", id)
	}
	if runErr != nil {
		return runErr
	}

	if opts.Preview >= 0 {
		out, err := sc.Show(opts.Preview)
		if err != nil {
			return err
		}
		monitoring.Logf("preview written to %s", out)
		if opts.Histogram {
			out, err := sc.ShowHistogram(opts.Preview)
			if err != nil {
				return err
			}
			monitoring.Logf("histogram written to %s", out)
		}
	}
	return nil
}

func runImage(ctx context.Context, opts *cliOptions, cfg *config.Config, fetcher *transport.Fetcher, previewOpts preview.Options, streams monitoring.Streams, store *catalog.Store) error {
	img, err := image.New(opts.URL, opts.WorkDir,
		image.WithFetcher(fetcher),
		image.WithLogWriters(streams.Ops, streams.Diag, streams.Trace),
		image.WithDebug(opts.Debug),
		image.WithLayout(cfg.Layout()),
		image.WithOverwrite(cfg.GetOverwrite()),
		image.WithPreviewOptions(previewOpts),
	)
	if err != nil {
		return err
	}

	if opts.AnnotationPath != "" {
		if err := img.Download(ctx, cfg.Layout().DownloadDir, false); err != nil {
			return err
		}
		img.AnnotationPath = opts.AnnotationPath
		err = img.Convert(ctx, cfg.Layout().RasterDir)
	} else {
		err = img.RunFullPipeline(ctx)
	}
	if err != nil {
		return err
	}
	monitoring.Logf("%s converted as %s", img.ImagePath, img.Type)

	if store != nil {
		id, err := store.RecordImage(img)
		if err != nil {
			return fmt.Errorf("record image: %w", err)
		}
		monitoring.Logf("catalogued as %s", id)
	}
	if opts.Preview >= 0 {
		out, err := img.Show()
		if err != nil {
			return err
		}
		monitoring.Logf("preview written to %s", out)
	}
	return nil
}

func listScenes(w io.Writer, store *catalog.Store) error {
	scenes, err := store.ListScenes("")
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(scenes))
	for _, s := range scenes {
		products, err := store.ListProducts(s.SceneID)
		if err != nil {
			return err
		}
		rows = append(rows, []string{
			s.SceneID,
			humanize.Time(time.Unix(0, s.CreatedAtNs)),
			fmt.Sprintf("%d", len(products)),
			s.URL,
		})
	}
	_, err = fmt.Fprintln(w, renderTable([]string{"Scene", "Created", "Products", "URL"}, rows, 2))
	return err
}
