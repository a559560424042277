// Package frame turns located holes into oriented frame rectangles and
// resamples them out of the scan.
package frame

import (
	"errors"
	"fmt"
	"math"

	"frame-extractor/internal/config"
	"frame-extractor/internal/filmedge"
	"frame-extractor/internal/filmspec"
	"frame-extractor/internal/hough"
	"frame-extractor/internal/linefit"
	"frame-extractor/pkg/geometry"
)

// ErrNoHoles is returned by Build when there is nothing to cut.
var ErrNoHoles = errors.New("no holes to build frames from")

// Frame is one projected image's placement in the scan.
type Frame struct {
	Index     int
	Reference geometry.Point2D // Hole centre, or midpoint of a hole pair
	Center    geometry.Point2D
	Fits      []*hough.Fit

	SprocketPiece *filmedge.FilmEdge
	FarPiece      *filmedge.FilmEdge // Nil when the far edge is unknown

	DerivedDPI float64 // -1 when either edge is missing
	Rotation   float64 // Radians
	Scale      float64

	// Unit axes in the scan: Across points from the sprocket edge toward
	// the far edge, Along follows the transport direction.
	Across, Along geometry.Point2D

	Width, Height int // Output size

	OutOfBounds bool
	EdgePrint   string
}

// Build places one frame per hole for single-hole formats, or one per
// consecutive hole pair otherwise. fits must be in transport order. far
// may be nil.
func Build(fits []*hough.Fit, sprocketEdge, far *filmedge.FilmEdge, cfg config.Config) ([]*Frame, error) {
	if sprocketEdge == nil {
		return nil, fmt.Errorf("building frames: no sprocket edge")
	}
	geom, err := cfg.Derive()
	if err != nil {
		return nil, err
	}

	groups := group(fits, geom.Format.HolesPerFrame)
	if len(groups) == 0 {
		return nil, ErrNoHoles
	}

	along := cfg.FilmLayout.Transport()
	across := cfg.FilmLayout.Across(cfg.ReverseImage)

	frames := make([]*Frame, 0, len(groups))
	for i, g := range groups {
		f := &Frame{
			Index:     i,
			Reference: reference(g),
			Fits:      g,
			Across:    across,
			Along:     along,
			Width:     geom.OutputWidth,
			Height:    geom.OutputHeight,
		}
		span := float64(geom.FrameHeightPx)
		f.SprocketPiece = sprocketEdge.PieceOrExtrapolated(f.Reference, span)
		if far != nil {
			f.FarPiece = far.PieceOrExtrapolated(f.Reference, span)
		}

		f.DerivedDPI = derivedDPI(f.Reference, f.SprocketPiece, f.FarPiece, geom.Format)
		f.Rotation = rotation(f, cfg)
		f.Scale = scale(f, cfg)

		offset := geometry.Rotation(f.Rotation).Apply(across).Scale(geom.HoleToFrameCenterPx * f.Scale)
		f.Center = f.Reference.Add(offset)
		frames = append(frames, f)
	}
	return frames, nil
}

// group splits fits into the hole sets each frame is referenced on.
func group(fits []*hough.Fit, perFrame int) [][]*hough.Fit {
	if perFrame <= 1 {
		out := make([][]*hough.Fit, len(fits))
		for i, f := range fits {
			out[i] = []*hough.Fit{f}
		}
		return out
	}
	var out [][]*hough.Fit
	for i := 0; i+1 < len(fits); i++ {
		out = append(out, []*hough.Fit{fits[i], fits[i+1]})
	}
	return out
}

func reference(fits []*hough.Fit) geometry.Point2D {
	pts := make([]geometry.Point2D, len(fits))
	for i, f := range fits {
		pts[i] = f.Center()
	}
	return geometry.Centroid(pts)
}

// derivedDPI measures the film width at ref and compares it to the
// format's nominal width.
func derivedDPI(ref geometry.Point2D, sp, far *filmedge.FilmEdge, format filmspec.Format) float64 {
	if sp == nil || far == nil {
		return -1
	}
	widthPx := sp.Line.Distance(ref) + far.Line.Distance(ref)
	return widthPx * 25.4 / format.FilmWidthMM
}

func rotation(f *Frame, cfg config.Config) float64 {
	if !cfg.CorrectRotation {
		return 0
	}
	if f.SprocketPiece != nil {
		return linefit.Tilt(f.SprocketPiece.Line, f.Along)
	}
	var sum float64
	for _, fit := range f.Fits {
		sum += fit.Rotation
	}
	return sum / float64(len(f.Fits)) * math.Pi / 180
}

func scale(f *Frame, cfg config.Config) float64 {
	if !cfg.Rescale {
		return 1
	}
	if f.DerivedDPI > 0 {
		return f.DerivedDPI / cfg.ResolutionDPI
	}
	var sum float64
	for _, fit := range f.Fits {
		sum += fit.Scale
	}
	return sum / float64(len(f.Fits))
}

// Transform maps output pixel coordinates to scan coordinates.
func (f *Frame) Transform() geometry.AffineTransform {
	m := geometry.Scale(f.Scale, f.Scale).
		Compose(geometry.Rotation(f.Rotation)).
		Compose(geometry.Basis(f.Across, f.Along))
	half := m.Apply(geometry.Point2D{X: float64(f.Width / 2), Y: float64(f.Height / 2)})
	m.TX = f.Center.X - half.X
	m.TY = f.Center.Y - half.Y
	return m
}

// Corners returns the scan positions of the output's corner pixels.
func (f *Frame) Corners() [4]geometry.Point2D {
	t := f.Transform()
	w, h := float64(f.Width-1), float64(f.Height-1)
	return [4]geometry.Point2D{
		t.Apply(geometry.Point2D{}),
		t.Apply(geometry.Point2D{X: w}),
		t.Apply(geometry.Point2D{Y: h}),
		t.Apply(geometry.Point2D{X: w, Y: h}),
	}
}

// CheckBounds reports whether any corner lies outside a rows×cols image.
func (f *Frame) CheckBounds(rows, cols int) bool {
	for _, c := range f.Corners() {
		if c.X < 0 || c.Y < 0 || c.X > float64(cols-1) || c.Y > float64(rows-1) {
			return true
		}
	}
	return false
}
