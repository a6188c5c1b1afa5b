package scene

import (
	"context"

	"github.com/banshee-data/uavsar/internal/annotation"
	"github.com/banshee-data/uavsar/internal/raster"
)

// Fetcher downloads remote files. transport.Fetcher is the production
// implementation.
type Fetcher interface {
	FetchArchive(ctx context.Context, url, outDir string) (string, error)
	FetchSingleImage(ctx context.Context, url, outDir string) (string, error)
}

// Extractor unpacks an archive and lists what it wrote. archive.Extractor is
// the production implementation.
type Extractor interface {
	Extract(archivePath, outDir string) ([]string, error)
}

// Converter decodes one binary product with its annotation, writes a
// georeferenced raster into outDir and returns the annotation description,
// the raster and a product type tag. grd.Converter is the production
// implementation.
type Converter interface {
	Convert(ctx context.Context, dataPath, outDir, annotationPath string, overwrite bool) (annotation.Description, *raster.Raster, string, error)
}
