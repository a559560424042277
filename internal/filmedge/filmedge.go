// Package filmedge finds the two physical edges of the film strip in an
// edge map and fits a line to each.
package filmedge

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"frame-extractor/internal/filmspec"
	"frame-extractor/internal/linefit"
	"frame-extractor/internal/raster"
	"frame-extractor/pkg/geometry"

	"gonum.org/v1/gonum/stat"
)

// ErrNotFound is returned when too few scanlines hit an edge on a side.
var ErrNotFound = errors.New("film edge not found")

const (
	minPoints     = 10
	maxTrimRounds = 20
)

// FilmEdge is a fitted film boundary with the samples that support it.
type FilmEdge struct {
	Line   geometry.PolarLine
	Points []geometry.Point2D // Inliers
	Pruned []geometry.Point2D // Samples trimmed as outliers

	MostLeft, MostRight, MostTop, MostBottom geometry.Point2D

	// Extrapolated marks an edge used beyond the span its points cover.
	Extrapolated bool
}

// Options controls edge search.
type Options struct {
	ToleranceBuckets int     // Gradient must be this close to the edge normal
	TrimPx           float64 // Floor of the outlier trim band
	MinCoverage      float64 // Fraction of scanlines that must hit
}

// Find locates the film edge on one side of the image. Every scanline
// across the film is walked inward from that side and the first edge
// pixel whose gradient is perpendicular to the film contributes a sample.
func Find(edges *raster.EdgeMap, grad *raster.GradientMap, side filmspec.Side, opts Options) (*FilmEdge, error) {
	if err := raster.CheckPair(edges, grad); err != nil {
		return nil, err
	}

	var lines, steps int
	var normals [2]uint8
	switch side {
	case filmspec.SideLeft, filmspec.SideRight:
		lines, steps = edges.Rows, edges.Cols
		normals = [2]uint8{0, 128}
	case filmspec.SideTop, filmspec.SideBottom:
		lines, steps = edges.Cols, edges.Rows
		normals = [2]uint8{64, 192}
	default:
		return nil, fmt.Errorf("unknown side %q", side)
	}

	var samples []geometry.Point2D
	for line := 0; line < lines; line++ {
		for step := 0; step < steps; step++ {
			r, c := pixelOn(side, line, step, edges.Rows, edges.Cols)
			if !edges.IsEdge(r, c) {
				continue
			}
			b := grad.At(r, c)
			if raster.BucketDistance(b, normals[0]) <= opts.ToleranceBuckets ||
				raster.BucketDistance(b, normals[1]) <= opts.ToleranceBuckets {
				samples = append(samples, geometry.Point2D{X: float64(c), Y: float64(r)})
				break
			}
		}
	}

	need := max(minPoints, int(opts.MinCoverage*float64(lines)))
	if len(samples) < need {
		return nil, fmt.Errorf("%w: %s side has %d samples, need %d", ErrNotFound, side, len(samples), need)
	}
	e, err := fitTrimmed(samples, opts.TrimPx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s side: %v", ErrNotFound, side, err)
	}
	return e, nil
}

func pixelOn(side filmspec.Side, line, step, rows, cols int) (r, c int) {
	switch side {
	case filmspec.SideLeft:
		return line, step
	case filmspec.SideRight:
		return line, cols - 1 - step
	case filmspec.SideTop:
		return step, line
	default:
		return rows - 1 - step, line
	}
}

// fitTrimmed fits a total least squares line and repeatedly drops samples
// beyond max(trimPx, 3 × median residual) until none are dropped.
func fitTrimmed(points []geometry.Point2D, trimPx float64) (*FilmEdge, error) {
	pts := append([]geometry.Point2D(nil), points...)
	var pruned []geometry.Point2D
	var line geometry.PolarLine

	for round := 0; round < maxTrimRounds; round++ {
		var err error
		if line, err = linefit.TotalLeastSquares(pts); err != nil {
			return nil, err
		}
		res := make([]float64, len(pts))
		for i, p := range pts {
			res[i] = line.Distance(p)
		}
		sorted := append([]float64(nil), res...)
		sort.Float64s(sorted)
		band := math.Max(trimPx, 3*stat.Quantile(0.5, stat.Empirical, sorted, nil))

		keep := pts[:0:0]
		for i, p := range pts {
			if res[i] <= band {
				keep = append(keep, p)
			} else {
				pruned = append(pruned, p)
			}
		}
		if len(keep) == len(pts) {
			break
		}
		if len(keep) < minPoints {
			return nil, fmt.Errorf("%d samples left after trimming", len(keep))
		}
		pts = keep
	}

	e := &FilmEdge{Line: line, Points: pts, Pruned: pruned}
	e.setExtremes(pts)
	return e, nil
}

func (e *FilmEdge) setExtremes(pts []geometry.Point2D) {
	if len(pts) == 0 {
		return
	}
	e.MostLeft, e.MostRight, e.MostTop, e.MostBottom = pts[0], pts[0], pts[0], pts[0]
	for _, p := range pts[1:] {
		if p.X < e.MostLeft.X {
			e.MostLeft = p
		}
		if p.X > e.MostRight.X {
			e.MostRight = p
		}
		if p.Y < e.MostTop.Y {
			e.MostTop = p
		}
		if p.Y > e.MostBottom.Y {
			e.MostBottom = p
		}
	}
}

// FromLine builds an edge with no samples, its extremes being where the
// line crosses the image. A line that misses the image gets the point
// nearest the image centre for every extreme.
func FromLine(line geometry.PolarLine, rows, cols int) *FilmEdge {
	e := &FilmEdge{Line: line}
	w, h := float64(cols-1), float64(rows-1)
	n := line.Normal()

	var hits []geometry.Point2D
	inside := func(p geometry.Point2D) bool {
		const eps = 1e-9
		return p.X >= -eps && p.X <= w+eps && p.Y >= -eps && p.Y <= h+eps
	}
	if math.Abs(n.X) > 1e-12 {
		for _, y := range []float64{0, h} {
			p := geometry.Point2D{X: (line.R - y*n.Y) / n.X, Y: y}
			if inside(p) {
				hits = append(hits, p)
			}
		}
	}
	if math.Abs(n.Y) > 1e-12 {
		for _, x := range []float64{0, w} {
			p := geometry.Point2D{X: x, Y: (line.R - x*n.X) / n.Y}
			if inside(p) {
				hits = append(hits, p)
			}
		}
	}
	if len(hits) == 0 {
		hits = []geometry.Point2D{line.Closest(geometry.Point2D{X: w / 2, Y: h / 2})}
	}
	e.setExtremes(hits)
	return e
}

// Piece refits the samples whose projection along the edge lies within
// span/2 of ref's. It returns nil when too few samples are that close.
func (e *FilmEdge) Piece(ref geometry.Point2D, span float64) *FilmEdge {
	at := e.Line.Position(ref)
	var local []geometry.Point2D
	for _, p := range e.Points {
		if math.Abs(e.Line.Position(p)-at) <= span/2 {
			local = append(local, p)
		}
	}
	if len(local) < minPoints {
		return nil
	}
	line, err := linefit.TotalLeastSquares(local)
	if err != nil {
		return nil
	}
	piece := &FilmEdge{Line: line, Points: local}
	piece.setExtremes(local)
	return piece
}

// Extrapolate returns the full edge marked for use outside its support.
func (e *FilmEdge) Extrapolate() *FilmEdge {
	c := *e
	c.Extrapolated = true
	return &c
}

// PieceOrExtrapolated returns Piece, falling back to Extrapolate.
func (e *FilmEdge) PieceOrExtrapolated(ref geometry.Point2D, span float64) *FilmEdge {
	if p := e.Piece(ref, span); p != nil {
		return p
	}
	return e.Extrapolate()
}
