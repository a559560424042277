package filmspec

import (
	"testing"

	"frame-extractor/pkg/geometry"
)

func TestFormatsValidate(t *testing.T) {
	for _, ft := range []FilmType{Super8, Regular8} {
		f, err := Lookup(ft)
		if err != nil {
			t.Fatalf("Lookup(%s): %v", ft, err)
		}
		if err := f.Validate(); err != nil {
			t.Errorf("%s: %v", ft, err)
		}
	}
	if _, err := Lookup("16mm"); err == nil {
		t.Error("expected error for unknown film type")
	}
}

func TestParse(t *testing.T) {
	if ft, err := ParseFilmType("S8"); err != nil || ft != Super8 {
		t.Errorf("ParseFilmType(S8) = %v, %v", ft, err)
	}
	if _, err := ParseLayout("diagonal"); err == nil {
		t.Error("expected error for bad layout")
	}
	if l, err := ParseLayout(" TB "); err != nil || l != TopToBottom {
		t.Errorf("ParseLayout(TB) = %v, %v", l, err)
	}
}

// The across axis must point from the sprocket side toward the far side.
func TestAcrossPointsAwayFromSprockets(t *testing.T) {
	away := map[Side]geometry.Point2D{
		SideLeft:   {X: 1},
		SideRight:  {X: -1},
		SideTop:    {Y: 1},
		SideBottom: {Y: -1},
	}
	for _, l := range []Layout{LeftToRight, RightToLeft, TopToBottom, BottomToTop} {
		for _, rev := range []bool{false, true} {
			got := l.Across(rev)
			want := away[SprocketSide(l, rev)]
			if got != want {
				t.Errorf("%s reverse=%v: across %v, want %v", l, rev, got, want)
			}
		}
	}
}
