package preview

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/uavsar/internal/raster"
)

// Default figure geometry.
const (
	DefaultWidth    = 10 * vg.Inch
	DefaultHeight   = 8 * vg.Inch
	DefaultMaxCells = 1_000_000

	colorbarWidth = 1.2 * vg.Inch
	paletteSize   = 255
)

// Options controls Render.
type Options struct {
	Title string
	// MaxCells caps the number of heat map cells; larger rasters are
	// sampled on a regular stride. Zero means DefaultMaxCells.
	MaxCells int
	Width    vg.Length
	Height   vg.Length
}

func (o Options) withDefaults() Options {
	if o.MaxCells <= 0 {
		o.MaxCells = DefaultMaxCells
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	return o
}

// Render draws the magnitude of r as a PNG heat map with a vertical colour
// bar and writes it to w. It returns the stretch that was applied.
func Render(w io.Writer, r *raster.Raster, opt Options) (Stretch, error) {
	mag, err := Magnitude(r)
	if err != nil {
		return Stretch{}, err
	}
	s := ComputeStretch(mag)
	if err := renderMagnitude(w, mag, s, opt.withDefaults()); err != nil {
		return s, err
	}
	return s, nil
}

func renderMagnitude(w io.Writer, mag *mat.Dense, s Stretch, opt Options) error {
	lo, hi := s.displayRange()

	cmap := moreland.SmoothBlueRed()
	cmap.SetMin(lo)
	cmap.SetMax(hi)
	pal := cmap.Palette(paletteSize)
	colors := pal.Colors()

	grid := newStridedGrid(mag, opt.MaxCells)
	hm := plotter.NewHeatMap(grid, pal)
	hm.Min, hm.Max = lo, hi
	hm.Underflow = colors[0]
	hm.Overflow = colors[len(colors)-1]
	hm.NaN = color.Transparent
	hm.Rasterized = grid.rows > 1 && grid.cols > 1

	p := plot.New()
	p.Title.Text = opt.Title
	p.X.Label.Text = "Column"
	p.Y.Label.Text = "Row (flipped)"
	p.Add(hm)

	cb := plot.New()
	cb.Title.Text = "|z|"
	cb.HideX()
	cb.Add(&plotter.ColorBar{ColorMap: cmap, Vertical: true})

	img := vgimg.New(opt.Width, opt.Height)
	dc := draw.New(img)
	p.Draw(draw.Crop(dc, 0, -colorbarWidth, 0, 0))
	cb.Draw(draw.Crop(dc, opt.Width-colorbarWidth, 0, 0, 0))

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// stridedGrid presents a magnitude matrix to plotter.HeatMap, optionally
// decimated, with row 0 of the raster at the top of the image.
type stridedGrid struct {
	m          mat.Matrix
	step       int
	rows, cols int
}

func newStridedGrid(m mat.Matrix, maxCells int) *stridedGrid {
	r, c := m.Dims()
	step := 1
	if maxCells > 0 && r*c > maxCells {
		step = int(math.Ceil(math.Sqrt(float64(r*c) / float64(maxCells))))
	}
	return &stridedGrid{
		m:    m,
		step: step,
		rows: (r + step - 1) / step,
		cols: (c + step - 1) / step,
	}
}

func (g *stridedGrid) Dims() (c, r int) { return g.cols, g.rows }

func (g *stridedGrid) Z(c, r int) float64 {
	return g.m.At((g.rows-1-r)*g.step, c*g.step)
}

func (g *stridedGrid) X(c int) float64 { return float64(c * g.step) }

func (g *stridedGrid) Y(r int) float64 { return float64(r * g.step) }
