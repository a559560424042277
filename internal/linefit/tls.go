package linefit

import (
	"fmt"
	"math"

	"frame-extractor/pkg/geometry"

	"gonum.org/v1/gonum/mat"
)

// TotalLeastSquares fits the line minimising perpendicular distances using
// the principal axis of the point scatter.
func TotalLeastSquares(points []geometry.Point2D) (geometry.PolarLine, error) {
	if len(points) < 2 {
		return geometry.PolarLine{}, fmt.Errorf("%w: need 2, got %d", ErrTooFewPoints, len(points))
	}

	c := geometry.Centroid(points)
	var sxx, sxy, syy float64
	for _, p := range points {
		dx, dy := p.X-c.X, p.Y-c.Y
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	if sxx+syy == 0 {
		return geometry.PolarLine{}, fmt.Errorf("%w: all points coincide", ErrTooFewPoints)
	}

	cov := mat.NewSymDense(2, []float64{sxx, sxy, sxy, syy})
	var eig mat.EigenSym
	if ok := eig.Factorize(cov, true); !ok {
		return geometry.PolarLine{}, fmt.Errorf("eigen decomposition failed")
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// Eigenvalues ascend, so column 0 is the normal.
	n := geometry.Point2D{X: vecs.At(0, 0), Y: vecs.At(1, 0)}
	return geometry.NewPolarLine(c.Dot(n), math.Atan2(n.Y, n.X)), nil
}
