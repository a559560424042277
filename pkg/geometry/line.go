package geometry

import "math"

// PolarLine is the line x·cos(Theta) + y·sin(Theta) = R with R >= 0.
// Theta is the direction of the line normal pointing away from the origin.
type PolarLine struct {
	R     float64 `json:"r"`
	Theta float64 `json:"theta"`
}

// NewPolarLine normalizes (r, theta) so that R is non-negative and Theta
// lies in [0, 2π).
func NewPolarLine(r, theta float64) PolarLine {
	if r < 0 {
		r = -r
		theta += math.Pi
	}
	theta = math.Mod(theta, 2*math.Pi)
	if theta < 0 {
		theta += 2 * math.Pi
	}
	return PolarLine{R: r, Theta: theta}
}

// LineFromFootPoint returns the line whose closest point to the origin is f.
// A foot point at the origin is degenerate and yields the vertical line x=0.
func LineFromFootPoint(f Point2D) PolarLine {
	r := f.Norm()
	if r == 0 {
		return PolarLine{}
	}
	return NewPolarLine(r, math.Atan2(f.Y, f.X))
}

// LineThrough returns the line through p running along dir.
func LineThrough(p, dir Point2D) PolarLine {
	n := Point2D{X: -dir.Y, Y: dir.X}
	l := n.Norm()
	if l == 0 {
		return PolarLine{}
	}
	n = n.Scale(1 / l)
	return NewPolarLine(p.Dot(n), math.Atan2(n.Y, n.X))
}

// Normal returns the unit normal.
func (l PolarLine) Normal() Point2D {
	return Point2D{X: math.Cos(l.Theta), Y: math.Sin(l.Theta)}
}

// Direction returns a unit vector along the line.
func (l PolarLine) Direction() Point2D {
	return Point2D{X: -math.Sin(l.Theta), Y: math.Cos(l.Theta)}
}

// FootPoint returns the point on the line closest to the origin.
func (l PolarLine) FootPoint() Point2D {
	return l.Normal().Scale(l.R)
}

// SignedDistance is positive on the side of the line away from the origin.
func (l PolarLine) SignedDistance(p Point2D) float64 {
	return p.Dot(l.Normal()) - l.R
}

// Distance returns the perpendicular distance from p to the line.
func (l PolarLine) Distance(p Point2D) float64 {
	return math.Abs(l.SignedDistance(p))
}

// Closest returns the point on the line nearest to p.
func (l PolarLine) Closest(p Point2D) Point2D {
	return p.Sub(l.Normal().Scale(l.SignedDistance(p)))
}

// Position returns the coordinate of p's projection along Direction.
func (l PolarLine) Position(p Point2D) float64 {
	return p.Dot(l.Direction())
}
