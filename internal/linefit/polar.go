// Package linefit fits straight lines to point sets: a derivative-free
// polar fit seeded from a fixed start, the trim loop built on it, and a
// closed-form total least squares fit for dense edge samples.
package linefit

import (
	"errors"
	"fmt"
	"math"

	"frame-extractor/pkg/geometry"

	"gonum.org/v1/gonum/optimize"
)

var (
	// ErrNotConverged is returned when the minimiser hits an iteration,
	// evaluation or runtime cap before converging.
	ErrNotConverged = errors.New("line fit did not converge")

	// ErrTooFewPoints is returned for an empty point set.
	ErrTooFewPoints = errors.New("too few points for a line fit")
)

// Options bounds a polar fit.
type Options struct {
	Start          geometry.Point2D // Initial foot point
	SimplexSize    float64
	MaxIterations  int
	MaxEvaluations int
}

// DefaultOptions seeds the search at (512, 512).
func DefaultOptions() Options {
	return Options{
		Start:          geometry.Point2D{X: 512, Y: 512},
		SimplexSize:    64,
		MaxIterations:  2000,
		MaxEvaluations: 8000,
	}
}

// Result is a converged polar fit.
type Result struct {
	Line          geometry.PolarLine
	Cost          float64 // Sum of squared perpendicular distances
	Worst         int     // Index of the point furthest from Line
	WorstDistance float64
	Evaluations   int
}

// FitPolar minimises the summed squared perpendicular distance of points
// to a line parameterised by its foot point.
func FitPolar(points []geometry.Point2D, opts Options) (Result, error) {
	if len(points) == 0 {
		return Result{}, ErrTooFewPoints
	}

	cost := func(x []float64) float64 {
		line := geometry.LineFromFootPoint(geometry.Point2D{X: x[0], Y: x[1]})
		var sum float64
		for _, p := range points {
			d := line.SignedDistance(p)
			sum += d * d
		}
		return sum
	}

	problem := optimize.Problem{Func: cost}
	settings := &optimize.Settings{
		MajorIterations: opts.MaxIterations,
		FuncEvaluations: opts.MaxEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-10,
			Relative:   1e-12,
			Iterations: 50,
		},
	}
	method := &optimize.NelderMead{SimplexSize: opts.SimplexSize}

	res, err := optimize.Minimize(problem, []float64{opts.Start.X, opts.Start.Y}, settings, method)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrNotConverged, err)
	}
	if !Converged(res.Status) {
		return Result{}, fmt.Errorf("%w: %s after %d evaluations", ErrNotConverged, res.Status, res.Stats.FuncEvaluations)
	}

	line := geometry.LineFromFootPoint(geometry.Point2D{X: res.X[0], Y: res.X[1]})
	out := Result{Line: line, Cost: res.F, Evaluations: res.Stats.FuncEvaluations}
	for i, p := range points {
		if d := line.Distance(p); d > out.WorstDistance || i == 0 {
			out.Worst, out.WorstDistance = i, d
		}
	}
	return out, nil
}

// Converged reports whether a minimiser status is a clean termination.
func Converged(s optimize.Status) bool {
	switch s {
	case optimize.IterationLimit, optimize.FunctionEvaluationLimit,
		optimize.RuntimeLimit, optimize.Failure, optimize.NotTerminated:
		return false
	}
	return true
}

// TrimResult is the outcome of Trim.
type TrimResult struct {
	Result
	Kept       []int // Indices into the input, in input order
	Removed    []int // Indices in removal order
	Iterations int
}

// Trim fits a line, drops the furthest point while it lies more than
// maxDist from the fit, and refits. It runs at most len(points) fits.
func Trim(points []geometry.Point2D, maxDist float64, opts Options) (TrimResult, error) {
	kept := make([]int, len(points))
	for i := range kept {
		kept[i] = i
	}

	var out TrimResult
	for iter := 0; iter < len(points); iter++ {
		subset := make([]geometry.Point2D, len(kept))
		for i, idx := range kept {
			subset[i] = points[idx]
		}
		res, err := FitPolar(subset, opts)
		if err != nil {
			return out, err
		}
		out.Result = res
		out.Iterations = iter + 1
		out.Result.Worst = kept[res.Worst]

		if res.WorstDistance <= maxDist || len(kept) == 1 {
			break
		}
		out.Removed = append(out.Removed, kept[res.Worst])
		kept = append(kept[:res.Worst:res.Worst], kept[res.Worst+1:]...)
	}
	out.Kept = kept
	return out, nil
}

// angleBetween returns the angle from a to b folded into (-π/2, π/2].
func angleBetween(a, b geometry.Point2D) float64 {
	ang := math.Atan2(a.Cross(b), a.Dot(b))
	for ang > math.Pi/2 {
		ang -= math.Pi
	}
	for ang <= -math.Pi/2 {
		ang += math.Pi
	}
	return ang
}

// Tilt returns the signed rotation of line relative to the axis direction,
// ignoring the line's orientation sign.
func Tilt(line geometry.PolarLine, axis geometry.Point2D) float64 {
	return angleBetween(axis, line.Direction())
}
