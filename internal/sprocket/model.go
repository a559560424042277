package sprocket

import (
	"math"

	"frame-extractor/internal/config"
	"frame-extractor/internal/hough"
	"frame-extractor/internal/raster"
)

// HoleModel is a perforation outline: a rectangle with rounded corners,
// brighter inside than out.
type HoleModel struct {
	HalfRows float64
	HalfCols float64
	Radius   float64
	Step     float64 // Perimeter sample spacing in pixels

	samples []hough.Sample
}

// NewHoleModel sizes the outline for a scan. On vertically transported
// film the hole width runs along the image columns.
func NewHoleModel(g config.Geometry, vertical bool) *HoleModel {
	m := &HoleModel{
		HalfRows: g.HoleHeightPx / 2,
		HalfCols: g.HoleWidthPx / 2,
		Radius:   g.HoleCornerPx,
		Step:     1,
	}
	if !vertical {
		m.HalfRows, m.HalfCols = m.HalfCols, m.HalfRows
	}
	m.Radius = math.Min(m.Radius, math.Min(m.HalfRows, m.HalfCols))
	m.samples = m.buildPerimeter()
	return m
}

// Perimeter implements hough.Model.
func (m *HoleModel) Perimeter() []hough.Sample {
	return m.samples
}

// Distance implements hough.Model.
func (m *HoleModel) Distance(dRow, dCol float64) float64 {
	qx := math.Abs(dCol) - (m.HalfCols - m.Radius)
	qy := math.Abs(dRow) - (m.HalfRows - m.Radius)
	outside := math.Hypot(math.Max(qx, 0), math.Max(qy, 0))
	inside := math.Min(math.Max(qx, qy), 0)
	return outside + inside - m.Radius
}

func (m *HoleModel) buildPerimeter() []hough.Sample {
	var out []hough.Sample
	// Normal (nr, nc) points out of the hole; the gradient points in.
	add := func(dr, dc, nr, nc float64) {
		out = append(out, hough.Sample{DRow: dr, DCol: dc, Bucket: raster.AngleByte(-nc, nr)})
	}

	ir := m.HalfRows - m.Radius
	ic := m.HalfCols - m.Radius

	// Straight sides
	for _, t := range span(-ir, ir, m.Step) {
		add(t, -m.HalfCols, 0, -1)
		add(t, m.HalfCols, 0, 1)
	}
	for _, t := range span(-ic, ic, m.Step) {
		add(-m.HalfRows, t, -1, 0)
		add(m.HalfRows, t, 1, 0)
	}

	// Corners
	if m.Radius > 0 {
		n := max(1, int(math.Ceil(m.Radius*math.Pi/2/m.Step)))
		for _, corner := range [][2]float64{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}} {
			for k := 1; k < n; k++ {
				phi := float64(k) / float64(n) * math.Pi / 2
				nr := corner[0] * math.Sin(phi)
				nc := corner[1] * math.Cos(phi)
				add(corner[0]*ir+m.Radius*nr, corner[1]*ic+m.Radius*nc, nr, nc)
			}
		}
	}
	return out
}

// span returns evenly spaced values from lo to hi inclusive, no further
// apart than step.
func span(lo, hi, step float64) []float64 {
	if hi <= lo {
		return []float64{(lo + hi) / 2}
	}
	n := int(math.Ceil((hi - lo) / step))
	out := make([]float64, n+1)
	for i := range out {
		out[i] = lo + (hi-lo)*float64(i)/float64(n)
	}
	return out
}
