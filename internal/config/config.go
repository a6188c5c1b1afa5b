package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default working-directory layout. These are conventions, not protocol:
// every one can be overridden from the config file or per call.
const (
	DefaultDownloadDir = "tmp/"
	DefaultUnpackDir   = "tmp/bin_imgs/"
	DefaultRasterDir   = "rasters/"
	DefaultPreviewDir  = "previews/"
)

const (
	defaultHTTPTimeout     = 30 * time.Minute
	defaultUserAgent       = "uavsar-scene/1.0"
	defaultPreviewMaxCells = 1_000_000
	defaultHistogramBins   = 64
)

// Config holds the pipeline settings loaded from a JSON file. Fields are
// pointers so a partial file only overrides what it names; the Get* methods
// supply defaults for the rest.
type Config struct {
	// Working-directory layout
	DownloadDir *string `json:"download_dir,omitempty"`
	UnpackDir   *string `json:"unpack_dir,omitempty"`
	RasterDir   *string `json:"raster_dir,omitempty"`
	PreviewDir  *string `json:"preview_dir,omitempty"`

	// Conversion
	Overwrite       *bool `json:"overwrite,omitempty"`
	ContinueOnError *bool `json:"continue_on_error,omitempty"`

	// Transport
	HTTPTimeout *string `json:"http_timeout,omitempty"` // duration string like "30m"
	UserAgent   *string `json:"user_agent,omitempty"`

	// Preview
	PreviewMaxCells *int `json:"preview_max_cells,omitempty"`
	HistogramBins   *int `json:"histogram_bins,omitempty"`

	// Catalogue; empty disables it
	CatalogPath *string `json:"catalog_path,omitempty"`
}

// Layout is the set of sub-directories, relative to a scene's work root,
// that each stage writes into.
type Layout struct {
	DownloadDir string
	UnpackDir   string
	RasterDir   string
	PreviewDir  string
}

// DefaultLayout returns the conventional sub-directory names.
func DefaultLayout() Layout {
	return Layout{
		DownloadDir: DefaultDownloadDir,
		UnpackDir:   DefaultUnpackDir,
		RasterDir:   DefaultRasterDir,
		PreviewDir:  DefaultPreviewDir,
	}
}

// EmptyConfig returns a Config with all fields unset.
func EmptyConfig() *Config {
	return &Config{}
}

// LoadConfig loads a Config from a JSON file. The file must have a .json
// extension and be under 1MB. Omitted fields keep their defaults.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	for name, dir := range map[string]*string{
		"download_dir": c.DownloadDir,
		"unpack_dir":   c.UnpackDir,
		"raster_dir":   c.RasterDir,
		"preview_dir":  c.PreviewDir,
	} {
		if dir == nil {
			continue
		}
		if filepath.IsAbs(*dir) {
			return fmt.Errorf("%s must be relative to the work directory, got %q", name, *dir)
		}
		if clean := filepath.Clean(*dir); clean == ".." || strings.HasPrefix(clean, "../") {
			return fmt.Errorf("%s must not leave the work directory, got %q", name, *dir)
		}
	}

	if c.HTTPTimeout != nil && *c.HTTPTimeout != "" {
		d, err := time.ParseDuration(*c.HTTPTimeout)
		if err != nil {
			return fmt.Errorf("invalid http_timeout '%s': %w", *c.HTTPTimeout, err)
		}
		if d < 0 {
			return fmt.Errorf("http_timeout must be non-negative, got %s", d)
		}
	}

	if c.PreviewMaxCells != nil && *c.PreviewMaxCells < 1 {
		return fmt.Errorf("preview_max_cells must be positive, got %d", *c.PreviewMaxCells)
	}
	if c.HistogramBins != nil && *c.HistogramBins < 1 {
		return fmt.Errorf("histogram_bins must be positive, got %d", *c.HistogramBins)
	}

	return nil
}

// Layout resolves the configured sub-directories over the defaults.
func (c *Config) Layout() Layout {
	l := DefaultLayout()
	if c.DownloadDir != nil && *c.DownloadDir != "" {
		l.DownloadDir = *c.DownloadDir
	}
	if c.UnpackDir != nil && *c.UnpackDir != "" {
		l.UnpackDir = *c.UnpackDir
	}
	if c.RasterDir != nil && *c.RasterDir != "" {
		l.RasterDir = *c.RasterDir
	}
	if c.PreviewDir != nil && *c.PreviewDir != "" {
		l.PreviewDir = *c.PreviewDir
	}
	return l
}

// GetOverwrite returns the overwrite value or the default.
func (c *Config) GetOverwrite() bool {
	if c.Overwrite == nil {
		return true // conversion always rewrites its rasters unless told not to
	}
	return *c.Overwrite
}

// GetContinueOnError returns the continue_on_error value or the default.
func (c *Config) GetContinueOnError() bool {
	if c.ContinueOnError == nil {
		return false
	}
	return *c.ContinueOnError
}

// GetHTTPTimeout parses and returns the HTTPTimeout as a time.Duration.
func (c *Config) GetHTTPTimeout() time.Duration {
	if c.HTTPTimeout == nil || *c.HTTPTimeout == "" {
		return defaultHTTPTimeout
	}
	d, err := time.ParseDuration(*c.HTTPTimeout)
	if err != nil {
		return defaultHTTPTimeout
	}
	return d
}

// GetUserAgent returns the user_agent value or the default.
func (c *Config) GetUserAgent() string {
	if c.UserAgent == nil || *c.UserAgent == "" {
		return defaultUserAgent
	}
	return *c.UserAgent
}

// GetPreviewMaxCells returns the preview_max_cells value or the default.
func (c *Config) GetPreviewMaxCells() int {
	if c.PreviewMaxCells == nil {
		return defaultPreviewMaxCells
	}
	return *c.PreviewMaxCells
}

// GetHistogramBins returns the histogram_bins value or the default.
func (c *Config) GetHistogramBins() int {
	if c.HistogramBins == nil {
		return defaultHistogramBins
	}
	return *c.HistogramBins
}

// GetCatalogPath returns the catalog_path value; empty means no catalogue.
func (c *Config) GetCatalogPath() string {
	if c.CatalogPath == nil {
		return ""
	}
	return *c.CatalogPath
}
