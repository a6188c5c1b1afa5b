package catalog

import (
	"github.com/banshee-data/uavsar/internal/image"
	"github.com/banshee-data/uavsar/internal/polarization"
	"github.com/banshee-data/uavsar/internal/preview"
	"github.com/banshee-data/uavsar/internal/raster"
	"github.com/banshee-data/uavsar/internal/scene"
)

// RecordScene catalogues a processed scene and every converted image it
// holds in one transaction, returning the new scene ID.
func (s *Store) RecordScene(sc *scene.Scene) (string, error) {
	rec := &Scene{
		URL:         sc.URL,
		WorkDir:     sc.WorkDir,
		ArchivePath: sc.ArchivePath,
		FileCount:   len(sc.ExtractedPaths),
	}
	products := make([]*Product, 0, len(sc.Images))
	for _, img := range sc.Images {
		products = append(products, newProduct(img.DataPath, img.AnnotationPath, img.Type, img.Code, img.Array))
	}
	if err := s.insertSceneWithProducts(rec, products); err != nil {
		return "", err
	}
	diagf("catalogued scene %s with %d products", rec.SceneID, len(products))
	return rec.SceneID, nil
}

// RecordImage catalogues a converted single image as a one-product scene.
func (s *Store) RecordImage(img *image.Image) (string, error) {
	rec := &Scene{URL: img.URL, WorkDir: img.WorkDir}
	if img.ImagePath != "" {
		rec.FileCount = 1
	}
	var products []*Product
	if img.Array != nil {
		code, _ := polarization.CodeOf(img.ImagePath)
		products = append(products, newProduct(img.ImagePath, img.AnnotationPath, img.Type, code, img.Array))
	}
	if err := s.insertSceneWithProducts(rec, products); err != nil {
		return "", err
	}
	return rec.SceneID, nil
}

func newProduct(dataPath, annPath, typ string, code polarization.Code, r *raster.Raster) *Product {
	p := &Product{
		DataPath:       dataPath,
		AnnotationPath: annPath,
		Type:           typ,
		Polarization:   string(code),
	}
	if r == nil {
		return p
	}
	p.Rows, p.Cols = r.Dims()
	p.Complex = r.IsComplex()
	if mag, err := preview.Magnitude(r); err == nil {
		st := preview.ComputeStretch(mag)
		if st.Valid {
			p.Median, p.StdDev = &st.Median, &st.StdDev
		}
	}
	return p
}
