package hough

import (
	"errors"
	"math"
	"testing"

	"frame-extractor/internal/raster"
)

// rectModel is an axis-aligned rectangle outline, brighter inside.
type rectModel struct {
	hr, hc float64
}

func (m rectModel) Perimeter() []Sample {
	var out []Sample
	add := func(dr, dc, nr, nc float64) {
		out = append(out, Sample{DRow: dr, DCol: dc, Bucket: raster.AngleByte(-nc, nr)})
	}
	for r := -m.hr + 1; r <= m.hr-1; r++ {
		add(r, -m.hc, 0, -1)
		add(r, m.hc, 0, 1)
	}
	for c := -m.hc + 1; c <= m.hc-1; c++ {
		add(-m.hr, c, -1, 0)
		add(m.hr, c, 1, 0)
	}
	return out
}

func (m rectModel) Distance(dr, dc float64) float64 {
	qx := math.Abs(dc) - m.hc
	qy := math.Abs(dr) - m.hr
	outside := math.Hypot(math.Max(qx, 0), math.Max(qy, 0))
	return outside + math.Min(math.Max(qx, qy), 0)
}

// render draws the model outline at each centre into fresh maps.
func render(m Model, rows, cols int, centres [][2]int) (*raster.EdgeMap, *raster.GradientMap) {
	e := raster.NewEdgeMap(rows, cols)
	g := raster.NewGradientMap(rows, cols)
	for _, c := range centres {
		for _, s := range m.Perimeter() {
			r := c[0] + int(math.Round(s.DRow))
			col := c[1] + int(math.Round(s.DCol))
			e.Set(r, col)
			g.Set(r, col, s.Bucket)
		}
	}
	return e, g
}

func fullWindow(rows, cols int) Window {
	return Window{RowEnd: rows, ColEnd: cols}
}

func TestTransformFindsRectangleCentres(t *testing.T) {
	m := rectModel{hr: 20, hc: 15}
	centres := [][2]int{{60, 50}, {200, 50}, {340, 50}}
	e, g := render(m, 400, 120, centres)

	tr := NewTransform(m, 5, 10)
	space, err := tr.Transform(e, g, 60, fullWindow(400, 120))
	if err != nil {
		t.Fatal(err)
	}
	clusters := ClusterEntries(space.Entries(), 0.4*30)
	if len(clusters) != len(centres) {
		t.Fatalf("got %d clusters, want %d", len(clusters), len(centres))
	}
	for i, c := range clusters {
		dr := c.Row - float64(centres[i][0])
		dc := c.Col - float64(centres[i][1])
		if math.Hypot(dr, dc) > 5 {
			t.Errorf("cluster %d at (%.1f, %.1f), want near %v", i, c.Row, c.Col, centres[i])
		}
	}
}

func TestTransformTranslationEquivariant(t *testing.T) {
	m := rectModel{hr: 12, hc: 9}
	tr := NewTransform(m, 4, 10)
	w := Window{RowStart: 10, RowEnd: 150, ColStart: 5, ColEnd: 90}

	e1, g1 := render(m, 260, 200, [][2]int{{50, 40}, {110, 47}})
	s1, err := tr.Transform(e1, g1, 20, w)
	if err != nil {
		t.Fatal(err)
	}

	const dRow, dCol = 37, 61
	e2, g2 := render(m, 260, 200, [][2]int{{50 + dRow, 40 + dCol}, {110 + dRow, 47 + dCol}})
	s2, err := tr.Transform(e2, g2, 20, w.Shift(dRow, dCol))
	if err != nil {
		t.Fatal(err)
	}

	c1 := ClusterEntries(s1.Entries(), 6)
	c2 := ClusterEntries(s2.Entries(), 6)
	if len(c1) == 0 || len(c1) != len(c2) {
		t.Fatalf("cluster counts %d vs %d", len(c1), len(c2))
	}
	for i := range c1 {
		if math.Abs(c2[i].Row-c1[i].Row-dRow) > 1e-9 || math.Abs(c2[i].Col-c1[i].Col-dCol) > 1e-9 {
			t.Errorf("cluster %d moved by (%v, %v), want (%d, %d)",
				i, c2[i].Row-c1[i].Row, c2[i].Col-c1[i].Col, dRow, dCol)
		}
	}
}

func TestTransformParallelMatchesSequential(t *testing.T) {
	m := rectModel{hr: 12, hc: 9}
	tr := NewTransform(m, 3, 10)
	e, g := render(m, 300, 100, [][2]int{{30, 40}, {95, 40}, {160, 45}, {260, 38}})
	w := fullWindow(300, 100)

	seq, err := tr.Transform(e, g, 15, w)
	if err != nil {
		t.Fatal(err)
	}
	for _, workers := range []int{2, 3, 7, 64} {
		par, err := tr.TransformParallel(e, g, 15, w, workers)
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < seq.CellRows; i++ {
			for j := 0; j < seq.CellCols; j++ {
				if seq.Votes(i, j) != par.Votes(i, j) {
					t.Fatalf("workers=%d cell (%d,%d): %d vs %d", workers, i, j, seq.Votes(i, j), par.Votes(i, j))
				}
			}
		}
		se, pe := seq.Entries(), par.Entries()
		if len(se) != len(pe) {
			t.Fatalf("workers=%d: %d vs %d entries", workers, len(se), len(pe))
		}
		for k := range se {
			if len(se[k].Contributors) != len(pe[k].Contributors) {
				t.Fatalf("workers=%d entry %d: contributor count differs", workers, k)
			}
			for n := range se[k].Contributors {
				if se[k].Contributors[n] != pe[k].Contributors[n] {
					t.Fatalf("workers=%d entry %d: contributor order differs", workers, k)
				}
			}
		}
	}
}

func TestThresholdHidesWeakCells(t *testing.T) {
	m := rectModel{hr: 12, hc: 9}
	tr := NewTransform(m, 3, 10)
	e, g := render(m, 100, 100, [][2]int{{50, 50}})
	s, err := tr.Transform(e, g, 1, fullWindow(100, 100))
	if err != nil {
		t.Fatal(err)
	}
	peak := s.MaxVotes()

	s, err = tr.Transform(e, g, peak+1, fullWindow(100, 100))
	if err != nil {
		t.Fatal(err)
	}
	if n := len(s.Entries()); n != 0 {
		t.Errorf("threshold above peak left %d entries", n)
	}
}

func TestClusterStrictDistance(t *testing.T) {
	entries := []Entry{
		{I: 0, J: 0, Row: 0, Col: 0, Votes: 1},
		{I: 0, J: 1, Row: 0, Col: 5, Votes: 1},
		{I: 0, J: 2, Row: 0, Col: 10, Votes: 3},
	}
	if got := len(ClusterEntries(entries, 5)); got != 3 {
		t.Errorf("entries exactly maxDist apart merged: %d clusters", got)
	}
	c := ClusterEntries(entries, 5.0001)
	if len(c) != 1 {
		t.Fatalf("got %d clusters, want 1", len(c))
	}
	if want := (0*1 + 5*1 + 10*3) / 5.0; math.Abs(c[0].Col-want) > 1e-12 {
		t.Errorf("centroid col %v, want vote-weighted %v", c[0].Col, want)
	}
}

func TestReclusterIdempotent(t *testing.T) {
	m := rectModel{hr: 12, hc: 9}
	tr := NewTransform(m, 3, 10)
	e, g := render(m, 300, 100, [][2]int{{30, 40}, {95, 40}, {160, 45}, {260, 38}})
	s, err := tr.Transform(e, g, 10, fullWindow(300, 100))
	if err != nil {
		t.Fatal(err)
	}
	first := ClusterEntries(s.Entries(), 4)
	again := Recluster(first, 4)
	if len(first) != len(again) {
		t.Fatalf("recluster changed count %d -> %d", len(first), len(again))
	}
	for i := range first {
		if first[i].Row != again[i].Row || first[i].Col != again[i].Col || len(first[i].Entries) != len(again[i].Entries) {
			t.Errorf("cluster %d changed", i)
		}
	}
}

func TestBestFitRecoversCentre(t *testing.T) {
	m := rectModel{hr: 20, hc: 15}
	e, g := render(m, 200, 120, [][2]int{{97, 61}})
	tr := NewTransform(m, 5, 10)
	s, err := tr.Transform(e, g, 60, fullWindow(200, 120))
	if err != nil {
		t.Fatal(err)
	}
	clusters := ClusterEntries(s.Entries(), 12)
	if len(clusters) != 1 {
		t.Fatalf("got %d clusters", len(clusters))
	}

	fit, err := BestFit(clusters[0], m, FitOptions{Quant: 5, MaxIterations: 2000, MaxEvaluations: 8000})
	if err != nil {
		t.Fatalf("BestFit: %v", err)
	}
	if math.Abs(fit.Row-97) > 1 || math.Abs(fit.Col-61) > 1 {
		t.Errorf("fit centre (%.2f, %.2f), want (97, 61)", fit.Row, fit.Col)
	}
	if math.Abs(fit.Scale-1) > 0.05 {
		t.Errorf("scale %v, want ~1", fit.Scale)
	}
	if fit.StdDev > 1 {
		t.Errorf("stddev %v too large for an exact outline", fit.StdDev)
	}
}

func TestBestFitIterationCap(t *testing.T) {
	m := rectModel{hr: 20, hc: 15}
	e, g := render(m, 200, 120, [][2]int{{97, 61}})
	tr := NewTransform(m, 5, 10)
	s, _ := tr.Transform(e, g, 60, fullWindow(200, 120))
	clusters := ClusterEntries(s.Entries(), 12)
	if len(clusters) == 0 {
		t.Fatal("no clusters")
	}
	_, err := BestFit(clusters[0], m, FitOptions{Quant: 5, MaxIterations: 2, MaxEvaluations: 8000})
	if err == nil {
		t.Error("expected non-convergence with a 2-iteration cap")
	}
}

func TestBestFitEvaluationCapIsNotConverged(t *testing.T) {
	m := rectModel{hr: 20, hc: 15}
	e, g := render(m, 200, 120, [][2]int{{97, 61}})
	tr := NewTransform(m, 5, 10)
	s, _ := tr.Transform(e, g, 60, fullWindow(200, 120))
	clusters := ClusterEntries(s.Entries(), 12)
	if len(clusters) == 0 {
		t.Fatal("no clusters")
	}
	_, err := BestFit(clusters[0], m, FitOptions{Quant: 5, MaxIterations: 2000, MaxEvaluations: 3})
	if !errors.Is(err, ErrNotConverged) {
		t.Errorf("err = %v, want ErrNotConverged", err)
	}
}
