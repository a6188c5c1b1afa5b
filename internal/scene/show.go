package scene

import (
	"fmt"
	"path/filepath"

	"github.com/banshee-data/uavsar/internal/grd"
	"github.com/banshee-data/uavsar/internal/preview"
)

func (s *Scene) image(i int) (Image, error) {
	if i < 0 || i >= len(s.Images) {
		s.log.opsf("no converted image %d (have %d)", i, len(s.Images))
		return Image{}, fmt.Errorf("%w: %d (have %d)", ErrImageIndex, i, len(s.Images))
	}
	return s.Images[i], nil
}

// Stretch returns the display bounds Show would use for image i.
func (s *Scene) Stretch(i int) (preview.Stretch, error) {
	img, err := s.image(i)
	if err != nil {
		return preview.Stretch{}, err
	}
	mag, err := preview.Magnitude(img.Array)
	if err != nil {
		return preview.Stretch{}, err
	}
	return preview.ComputeStretch(mag), nil
}

// Show renders the magnitude of image i as a PNG under the preview
// directory and returns the file path. The title is the scene URL's file
// name.
func (s *Scene) Show(i int) (string, error) {
	img, err := s.image(i)
	if err != nil {
		return "", err
	}
	outDir, err := s.stageDir(s.layout.PreviewDir)
	if err != nil {
		return "", err
	}
	out := filepath.Join(outDir, fmt.Sprintf("%s_%d.png", grd.Stem(img.DataPath), i))

	w, err := s.fs.Create(out)
	if err != nil {
		return "", err
	}
	opt := s.previewOpts
	opt.Title = s.Name()
	st, err := preview.Render(w, img.Array, opt)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("render %s: %w", out, err)
	}

	s.log.diagf("preview %s: median=%.4g std=%.4g range=[%.4g, %.4g]", out, st.Median, st.StdDev, st.Lower, st.Upper)
	return out, nil
}

// ShowHistogram writes an HTML histogram of image i's magnitude next to the
// PNG previews and returns its path.
func (s *Scene) ShowHistogram(i int) (string, error) {
	img, err := s.image(i)
	if err != nil {
		return "", err
	}
	mag, err := preview.Magnitude(img.Array)
	if err != nil {
		return "", err
	}
	outDir, err := s.stageDir(s.layout.PreviewDir)
	if err != nil {
		return "", err
	}
	out := filepath.Join(outDir, fmt.Sprintf("%s_%d.html", grd.Stem(img.DataPath), i))

	w, err := s.fs.Create(out)
	if err != nil {
		return "", err
	}
	title := fmt.Sprintf("%s: %s", s.Name(), filepath.Base(img.DataPath))
	err = preview.RenderHistogram(w, mag, preview.ComputeStretch(mag), title, s.histogramBins)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("histogram %s: %w", out, err)
	}
	return out, nil
}
