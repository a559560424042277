package filmedge

import (
	"errors"
	"math"
	"testing"

	"frame-extractor/internal/filmspec"
	"frame-extractor/internal/raster"
	"frame-extractor/pkg/geometry"
)

func opts() Options {
	return Options{ToleranceBuckets: 7, TrimPx: 2, MinCoverage: 0.25}
}

// stripMaps draws a tilted film strip: left edge at x = 10 + 0.01y, right
// edge at x = 150 + 0.01y, and some perpendicular clutter near the left.
func stripMaps(rows, cols int) (*raster.EdgeMap, *raster.GradientMap) {
	e := raster.NewEdgeMap(rows, cols)
	g := raster.NewGradientMap(rows, cols)
	for r := 0; r < rows; r++ {
		l := int(math.Round(10 + 0.01*float64(r)))
		e.Set(r, l)
		g.Set(r, l, 0)
		rt := int(math.Round(150 + 0.01*float64(r)))
		e.Set(r, rt)
		g.Set(r, rt, 128)
	}
	// Horizontal strokes: wrong gradient, must be skipped by the scan.
	for c := 0; c < 9; c++ {
		e.Set(100, c)
		g.Set(100, c, 64)
	}
	// A few stray vertical-gradient pixels outside the film.
	for _, r := range []int{40, 41, 42} {
		e.Set(r, 2)
		g.Set(r, 2, 0)
	}
	return e, g
}

func TestFindBothSides(t *testing.T) {
	e, g := stripMaps(400, 200)

	left, err := Find(e, g, filmspec.SideLeft, opts())
	if err != nil {
		t.Fatalf("left: %v", err)
	}
	right, err := Find(e, g, filmspec.SideRight, opts())
	if err != nil {
		t.Fatalf("right: %v", err)
	}

	for _, y := range []float64{0, 200, 399} {
		if d := left.Line.Distance(geometry.Point2D{X: 10 + 0.01*y, Y: y}); d > 0.6 {
			t.Errorf("left edge off by %.2f at y=%v", d, y)
		}
		if d := right.Line.Distance(geometry.Point2D{X: 150 + 0.01*y, Y: y}); d > 0.6 {
			t.Errorf("right edge off by %.2f at y=%v", d, y)
		}
	}
	if len(left.Pruned) != 3 {
		t.Errorf("left pruned %d samples, want the 3 strays", len(left.Pruned))
	}
	if left.MostTop.Y != 0 || left.MostBottom.Y != 399 {
		t.Errorf("extremes %v %v", left.MostTop, left.MostBottom)
	}
}

func TestFindReportsMissingEdge(t *testing.T) {
	e, g := stripMaps(400, 200)
	_, err := Find(e, g, filmspec.SideTop, opts())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestFromLine(t *testing.T) {
	e := FromLine(geometry.LineFromFootPoint(geometry.Point2D{X: 10}), 1000, 200)
	if e.MostTop.Y != 0 || e.MostBottom.Y != 999 || math.Abs(e.MostLeft.X-10) > 1e-9 {
		t.Errorf("unexpected extremes: %+v", e)
	}

	off := FromLine(geometry.LineFromFootPoint(geometry.Point2D{X: 500}), 1000, 200)
	if off.MostLeft.X != 500 {
		t.Errorf("line outside the image: got %v", off.MostLeft)
	}
}

func TestPieceAndFallback(t *testing.T) {
	e, g := stripMaps(400, 200)
	left, err := Find(e, g, filmspec.SideLeft, opts())
	if err != nil {
		t.Fatal(err)
	}
	p := left.Piece(geometry.Point2D{X: 12, Y: 200}, 60)
	if p == nil {
		t.Fatal("expected a local piece")
	}
	if n := len(p.Points); n < 55 || n > 62 {
		t.Errorf("piece has %d points, want about 60", n)
	}

	synthetic := FromLine(left.Line, 400, 200)
	got := synthetic.PieceOrExtrapolated(geometry.Point2D{X: 12, Y: 200}, 60)
	if !got.Extrapolated || got.Line != left.Line {
		t.Errorf("expected extrapolated full line, got %+v", got)
	}
}

func TestExtrapolateLeavesOriginal(t *testing.T) {
	e := FromLine(geometry.LineThrough(geometry.Point2D{X: 12}, geometry.Point2D{Y: 1}), 400, 200)
	x := e.Extrapolate()
	if !x.Extrapolated {
		t.Error("copy not marked extrapolated")
	}
	if e.Extrapolated {
		t.Error("original edge was modified")
	}
	if x.Line != e.Line || x.MostTop != e.MostTop || x.MostBottom != e.MostBottom {
		t.Errorf("extrapolated edge %+v differs from %+v", x, e)
	}
}
