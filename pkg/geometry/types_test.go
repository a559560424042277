package geometry

import "testing"

func TestVectorOps(t *testing.T) {
	tests := []struct {
		name      string
		p, q      Point2D
		dot, crss float64
	}{
		{"axes", Point2D{X: 1}, Point2D{Y: 1}, 0, 1},
		{"reversed axes", Point2D{Y: 1}, Point2D{X: 1}, 0, -1},
		{"parallel", Point2D{X: 3, Y: 4}, Point2D{X: 6, Y: 8}, 50, 0},
		{"general", Point2D{X: 2, Y: -1}, Point2D{X: 5, Y: 3}, 7, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Dot(tt.q); !near(got, tt.dot) {
				t.Errorf("Dot = %v, want %v", got, tt.dot)
			}
			if got := tt.p.Cross(tt.q); !near(got, tt.crss) {
				t.Errorf("Cross = %v, want %v", got, tt.crss)
			}
		})
	}

	if got := (Point2D{X: 3, Y: 4}).Norm(); !near(got, 5) {
		t.Errorf("Norm = %v, want 5", got)
	}
}

func TestBasisMapsUnitAxes(t *testing.T) {
	x := Point2D{X: 0.6, Y: 0.8}
	y := Point2D{X: -0.8, Y: 0.6}
	b := Basis(x, y)
	for _, c := range []struct{ in, want Point2D }{
		{Point2D{X: 1}, x},
		{Point2D{Y: 1}, y},
		{Point2D{X: 2, Y: 1}, x.Scale(2).Add(y)},
	} {
		got := b.Apply(c.in)
		if !near(got.X, c.want.X) || !near(got.Y, c.want.Y) {
			t.Errorf("Basis.Apply(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
