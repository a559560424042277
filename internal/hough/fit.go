package hough

import (
	"errors"
	"fmt"
	"math"

	"frame-extractor/internal/linefit"
	"frame-extractor/internal/raster"
	"frame-extractor/pkg/geometry"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// ErrNotConverged is returned when the refinement minimiser hits a cap.
var ErrNotConverged = errors.New("hole fit did not converge")

// Fit is a refined hole candidate.
type Fit struct {
	Row, Col float64
	Scale    float64
	Rotation float64 // Degrees, positive turns +x toward +y
	Rank     int
	Edges    []raster.Point // Contributing edge pixels kept by the fit
	Pruned   []raster.Point // Contributors discarded as outliers
	StdDev   float64        // Of the kept residuals, in pixels
	Cluster  *Cluster
}

// Center returns the fitted centre as (x=col, y=row).
func (f *Fit) Center() geometry.Point2D {
	return geometry.Point2D{X: f.Col, Y: f.Row}
}

// FitOptions bounds BestFit.
type FitOptions struct {
	Quant          float64 // Residual prune bands scale with the cell size
	MaxIterations  int
	MaxEvaluations int
}

// residuals of points against the model placed at x = (row, col, scale%, rotation°).
func residuals(model Model, pts []raster.Point, x []float64, out []float64) []float64 {
	out = out[:0]
	s := x[2] / 100
	theta := x[3] * math.Pi / 180
	cos, sin := math.Cos(theta), math.Sin(theta)
	for _, p := range pts {
		dy := float64(p.Row) - x[0]
		dx := float64(p.Col) - x[1]
		mx := (cos*dx + sin*dy) / s
		my := (-sin*dx + cos*dy) / s
		out = append(out, s*model.Distance(my, mx))
	}
	return out
}

func minimize(model Model, pts []raster.Point, start []float64, opts FitOptions) ([]float64, error) {
	buf := make([]float64, 0, len(pts))
	cost := func(x []float64) float64 {
		if x[2] <= 1 {
			return math.MaxFloat64 / 4
		}
		var sum float64
		for _, r := range residuals(model, pts, x, buf) {
			sum += r * r
		}
		return sum
	}

	settings := &optimize.Settings{
		MajorIterations: opts.MaxIterations,
		FuncEvaluations: opts.MaxEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-8,
			Relative:   1e-10,
			Iterations: 60,
		},
	}
	method := &optimize.NelderMead{SimplexSize: math.Max(1, opts.Quant/2)}
	res, err := optimize.Minimize(optimize.Problem{Func: cost}, start, settings, method)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConverged, err)
	}
	if !linefit.Converged(res.Status) {
		return nil, fmt.Errorf("%w: %s", ErrNotConverged, res.Status)
	}
	return res.X, nil
}

// BestFit refines a cluster against the model: fit all contributors from
// the cluster centroid, drop those further than two cells from the
// outline, refit, then drop those further than max(2, quant/2) pixels.
func BestFit(c *Cluster, model Model, opts FitOptions) (*Fit, error) {
	pts := c.Contributors()
	if len(pts) < 4 {
		return nil, fmt.Errorf("cluster at (%.1f, %.1f) has %d contributors", c.Row, c.Col, len(pts))
	}

	x := []float64{c.Row, c.Col, 100, 0}
	var pruned []raster.Point
	bands := []float64{2 * opts.Quant, math.Max(2, opts.Quant/2)}
	for _, band := range bands {
		var err error
		if x, err = minimize(model, pts, x, opts); err != nil {
			return nil, err
		}
		res := residuals(model, pts, x, nil)
		var keep []raster.Point
		for i, r := range res {
			if math.Abs(r) <= band {
				keep = append(keep, pts[i])
			} else {
				pruned = append(pruned, pts[i])
			}
		}
		pts = keep
		if len(pts) < 4 {
			break
		}
	}
	if len(pts) >= 4 {
		var err error
		if x, err = minimize(model, pts, x, opts); err != nil {
			return nil, err
		}
	}

	fit := &Fit{
		Row:      x[0],
		Col:      x[1],
		Scale:    x[2] / 100,
		Rotation: x[3],
		Edges:    pts,
		Pruned:   pruned,
		Cluster:  c,
	}
	if len(pts) >= 2 {
		fit.StdDev = stat.StdDev(residuals(model, pts, x, nil), nil)
	}
	return fit, nil
}
