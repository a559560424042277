// Package raster holds the edge and gradient-direction grids produced once
// per scan and read by every later stage.
package raster

import (
	"errors"
	"fmt"
	"math"
)

// EdgeValue marks an edge pixel.
const EdgeValue = 255

// Buckets is the number of quantized gradient directions.
const Buckets = 256

// ErrDimensions is returned when a grid has no pixels or mismatched sizes.
var ErrDimensions = errors.New("invalid raster dimensions")

// Point is an integer pixel position.
type Point struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// EdgeMap is a binary edge image, one byte per pixel.
type EdgeMap struct {
	Rows, Cols int
	Pix        []uint8
}

// NewEdgeMap allocates an empty edge map.
func NewEdgeMap(rows, cols int) *EdgeMap {
	return &EdgeMap{Rows: rows, Cols: cols, Pix: make([]uint8, rows*cols)}
}

// In reports whether (r, c) lies inside the grid.
func (e *EdgeMap) In(r, c int) bool {
	return r >= 0 && r < e.Rows && c >= 0 && c < e.Cols
}

// IsEdge reports whether (r, c) is an edge pixel. Outside pixels are not.
func (e *EdgeMap) IsEdge(r, c int) bool {
	return e.In(r, c) && e.Pix[r*e.Cols+c] != 0
}

// Set marks (r, c) as an edge pixel.
func (e *EdgeMap) Set(r, c int) {
	if e.In(r, c) {
		e.Pix[r*e.Cols+c] = EdgeValue
	}
}

// Points lists edge pixels in row-major order.
func (e *EdgeMap) Points() []Point {
	var pts []Point
	for r := 0; r < e.Rows; r++ {
		row := e.Pix[r*e.Cols : (r+1)*e.Cols]
		for c, v := range row {
			if v != 0 {
				pts = append(pts, Point{Row: r, Col: c})
			}
		}
	}
	return pts
}

// GradientMap holds one direction bucket per pixel.
type GradientMap struct {
	Rows, Cols int
	Dir        []uint8
}

// NewGradientMap allocates a zero gradient map.
func NewGradientMap(rows, cols int) *GradientMap {
	return &GradientMap{Rows: rows, Cols: cols, Dir: make([]uint8, rows*cols)}
}

// At returns the direction bucket at (r, c).
func (g *GradientMap) At(r, c int) uint8 {
	return g.Dir[r*g.Cols+c]
}

// Set stores a direction bucket.
func (g *GradientMap) Set(r, c int, b uint8) {
	if r >= 0 && r < g.Rows && c >= 0 && c < g.Cols {
		g.Dir[r*g.Cols+c] = b
	}
}

// CheckPair verifies that an edge map and gradient map describe the same
// non-empty image.
func CheckPair(e *EdgeMap, g *GradientMap) error {
	if e == nil || g == nil {
		return fmt.Errorf("%w: missing edge or gradient map", ErrDimensions)
	}
	if e.Rows <= 0 || e.Cols <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrDimensions, e.Rows, e.Cols)
	}
	if e.Rows != g.Rows || e.Cols != g.Cols {
		return fmt.Errorf("%w: edges %dx%d, gradient %dx%d", ErrDimensions, e.Rows, e.Cols, g.Rows, g.Cols)
	}
	if len(e.Pix) != e.Rows*e.Cols || len(g.Dir) != g.Rows*g.Cols {
		return fmt.Errorf("%w: buffer size mismatch", ErrDimensions)
	}
	return nil
}

// AngleByte quantizes the direction of (x, y), measured counter-clockwise
// from +x, into 256 buckets. A full turn wraps to 0 and the zero vector
// maps to 0.
func AngleByte(x, y float64) uint8 {
	if x == 0 && y == 0 {
		return 0
	}
	a := math.Atan2(y, x)
	if a < 0 {
		a += 2 * math.Pi
	}
	b := int(0.5 + a*Buckets/(2*math.Pi))
	if b >= Buckets {
		b = 0
	}
	return uint8(b)
}

// BucketDistance is the circular distance between two buckets, 0..128.
func BucketDistance(a, b uint8) int {
	d := int(a) - int(b)
	if d < 0 {
		d = -d
	}
	if d > Buckets/2 {
		d = Buckets - d
	}
	return d
}
