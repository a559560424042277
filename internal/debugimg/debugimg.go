// Package debugimg renders the intermediate state of a run for inspection.
package debugimg

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"frame-extractor/internal/edges"
	"frame-extractor/internal/filmedge"
	"frame-extractor/internal/frame"
	"frame-extractor/internal/raster"
	"frame-extractor/internal/sprocket"
	"frame-extractor/pkg/geometry"

	"github.com/lucasb-eyer/go-colorful"
	"gocv.io/x/gocv"
)

// Colour key of the overlay.
var (
	ClusterColor  = color.RGBA{B: 255, A: 255}
	PeakColor     = color.RGBA{R: 255, A: 255}
	EdgeColor     = color.RGBA{G: 255, A: 255}
	FitColor      = color.RGBA{R: 255, G: 255, A: 255}
	FilmEdgeColor = color.RGBA{R: 64, G: 128, B: 255, A: 255}
	FrameColor    = color.RGBA{G: 255, B: 255, A: 255}
	RejectColor   = color.RGBA{R: 255, B: 255, A: 255}
)

// EdgeImage returns the edge map as an 8-bit single channel Mat.
func EdgeImage(e *raster.EdgeMap) (gocv.Mat, error) {
	return gocv.NewMatFromBytes(e.Rows, e.Cols, gocv.MatTypeCV8U, append([]byte(nil), e.Pix...))
}

// GradientImage colours each edge pixel by its gradient direction, the
// bucket mapped onto the hue circle. Non-edge pixels are black.
func GradientImage(e *raster.EdgeMap, g *raster.GradientMap) (gocv.Mat, error) {
	if err := raster.CheckPair(e, g); err != nil {
		return gocv.NewMat(), err
	}
	var palette [raster.Buckets][3]byte
	for b := range palette {
		r, gr, bl := colorful.Hsv(float64(b)*360/raster.Buckets, 1, 1).RGB255()
		palette[b] = [3]byte{bl, gr, r}
	}

	data := make([]byte, 3*e.Rows*e.Cols)
	for i, v := range e.Pix {
		if v == 0 {
			continue
		}
		copy(data[3*i:3*i+3], palette[g.Dir[i]][:])
	}
	return gocv.NewMatFromBytes(e.Rows, e.Cols, gocv.MatTypeCV8UC3, data)
}

// Overlay draws the located geometry over an 8-bit colour copy of src.
// Any of res, the edges and frames may be nil.
func Overlay(src gocv.Mat, res *sprocket.Result, sprocketEdge, far *filmedge.FilmEdge, frames []*frame.Frame) (gocv.Mat, error) {
	gray, err := edges.ToGray(src)
	if err != nil {
		return gray, err
	}
	defer gray.Close()
	dst := gocv.NewMat()
	gocv.CvtColor(gray, &dst, gocv.ColorGrayToBGR)

	for _, e := range []*filmedge.FilmEdge{sprocketEdge, far} {
		if e != nil {
			drawLine(&dst, e.Line, FilmEdgeColor)
		}
	}

	if res != nil {
		for _, ent := range res.Entries {
			setPixel(&dst, ent.Point(), PeakColor)
		}
		for _, c := range res.Clusters {
			for _, p := range c.Contributors() {
				setPixel(&dst, geometry.Point2D{X: float64(p.Col), Y: float64(p.Row)}, EdgeColor)
			}
			gocv.Circle(&dst, toImagePoint(c.Center()), 4, ClusterColor, 2)
		}
		for _, rej := range res.Rejected {
			if rej.Cluster == nil {
				continue
			}
			gocv.Circle(&dst, toImagePoint(rej.Cluster.Center()), 6, RejectColor, 1)
		}
		for _, f := range res.Fits {
			for _, p := range f.Edges {
				setPixel(&dst, geometry.Point2D{X: float64(p.Col), Y: float64(p.Row)}, FitColor)
			}
			gocv.Circle(&dst, toImagePoint(f.Center()), 2, FitColor, -1)
		}
	}

	for _, f := range frames {
		corners := f.Corners()
		// Output corner order is TL, TR, BL, BR
		for _, seg := range [][2]int{{0, 1}, {1, 3}, {3, 2}, {2, 0}} {
			gocv.Line(&dst, toImagePoint(corners[seg[0]]), toImagePoint(corners[seg[1]]), FrameColor, 1)
		}
		gocv.Line(&dst, toImagePoint(f.Reference), toImagePoint(f.Center), FrameColor, 1)
	}
	return dst, nil
}

// Save writes m as <dir>/<base>-<stage>.png.
func Save(dir, base, stage string, m gocv.Mat) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.png", base, stage))
	if !gocv.IMWrite(path, m) {
		return fmt.Errorf("failed to write %s", path)
	}
	return nil
}

func toImagePoint(p geometry.Point2D) image.Point {
	return image.Point{X: int(math.Round(p.X)), Y: int(math.Round(p.Y))}
}

func setPixel(dst *gocv.Mat, p geometry.Point2D, c color.RGBA) {
	x, y := int(math.Round(p.X)), int(math.Round(p.Y))
	if x < 0 || y < 0 || x >= dst.Cols() || y >= dst.Rows() {
		return
	}
	dst.SetUCharAt(y, 3*x, c.B)
	dst.SetUCharAt(y, 3*x+1, c.G)
	dst.SetUCharAt(y, 3*x+2, c.R)
}

// drawLine draws the part of l crossing the image.
func drawLine(dst *gocv.Mat, l geometry.PolarLine, c color.RGBA) {
	e := filmedge.FromLine(l, dst.Rows(), dst.Cols())
	a, b := e.MostTop, e.MostBottom
	if math.Abs(l.Normal().X) < math.Abs(l.Normal().Y) {
		a, b = e.MostLeft, e.MostRight
	}
	gocv.Line(dst, toImagePoint(a), toImagePoint(b), c, 1)
}
