package geometry

import (
	"math"
	"testing"
)

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNewPolarLineNormalizesNegativeR(t *testing.T) {
	l := NewPolarLine(-5, 0)
	if !near(l.R, 5) || !near(l.Theta, math.Pi) {
		t.Fatalf("got R=%v theta=%v, want 5, π", l.R, l.Theta)
	}
}

func TestLineFromFootPoint(t *testing.T) {
	l := LineFromFootPoint(Point2D{X: 10, Y: 0})

	tests := []struct {
		name string
		p    Point2D
		want float64
	}{
		{"on line", Point2D{X: 10, Y: 250}, 0},
		{"right of line", Point2D{X: 13, Y: -4}, 3},
		{"left of line", Point2D{X: 2, Y: 7}, -8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := l.SignedDistance(tt.p); !near(got, tt.want) {
				t.Errorf("SignedDistance(%v) = %v, want %v", tt.p, got, tt.want)
			}
			if got := l.Distance(tt.p); !near(got, math.Abs(tt.want)) {
				t.Errorf("Distance(%v) = %v, want %v", tt.p, got, math.Abs(tt.want))
			}
		})
	}
}

func TestLineThroughAndClosest(t *testing.T) {
	l := LineThrough(Point2D{X: 0, Y: 5}, Point2D{X: 1, Y: 1})
	p := Point2D{X: 5, Y: 0}
	c := l.Closest(p)
	if l.Distance(c) > 1e-9 {
		t.Fatalf("closest point %v not on line", c)
	}
	if d := c.Sub(p).Dot(l.Direction()); math.Abs(d) > 1e-9 {
		t.Errorf("closest offset not perpendicular: %v", d)
	}
	if !near(p.Distance(c), l.Distance(p)) {
		t.Errorf("distance mismatch: %v vs %v", p.Distance(c), l.Distance(p))
	}
}

func TestAffineInverse(t *testing.T) {
	m := Translation(12, -3).Compose(Rotation(0.3)).Compose(Scale(1.1, 1.1))
	inv, ok := m.Inverse()
	if !ok {
		t.Fatal("expected invertible transform")
	}
	p := Point2D{X: 7, Y: 19}
	q := inv.Apply(m.Apply(p))
	if !near(p.X, q.X) || !near(p.Y, q.Y) {
		t.Errorf("round trip %v -> %v", p, q)
	}
}
