package edges

import (
	"errors"
	"image"
	"testing"

	"frame-extractor/internal/config"
	"frame-extractor/internal/raster"

	"gocv.io/x/gocv"
)

// brightBox is a dark 8-bit image with a bright rectangle, like a
// perforation on a scan.
func brightBox(rows, cols int, rect image.Rectangle, bright uint8) gocv.Mat {
	data := make([]byte, rows*cols)
	for r := rect.Min.Y; r < rect.Max.Y; r++ {
		for c := rect.Min.X; c < rect.Max.X; c++ {
			data[r*cols+c] = bright
		}
	}
	m, err := gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV8U, data)
	if err != nil {
		panic(err)
	}
	return m.Clone()
}

func TestExtractRejectsEmpty(t *testing.T) {
	m := gocv.NewMat()
	defer m.Close()
	if _, _, err := Extract(m, config.Default()); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("got %v, want ErrInvalidImage", err)
	}
}

func TestExtractGradientPointsIntoBrightRegion(t *testing.T) {
	src := brightBox(100, 100, image.Rect(30, 20, 70, 80), 220)
	defer src.Close()

	em, gm, err := Extract(src, config.Default())
	if err != nil {
		t.Fatal(err)
	}
	if em.Rows != 100 || em.Cols != 100 || gm.Rows != 100 {
		t.Fatalf("unexpected size %dx%d", em.Rows, em.Cols)
	}

	// Along the left wall the brightness rises toward +x.
	found := false
	for c := 25; c < 36; c++ {
		if em.IsEdge(50, c) {
			found = true
			if d := raster.BucketDistance(gm.At(50, c), 0); d > 4 {
				t.Errorf("left wall bucket %d at col %d", gm.At(50, c), c)
			}
		}
	}
	if !found {
		t.Error("no edge found on the left wall")
	}

	// Along the top wall brightness rises downward, which is -y: bucket 192.
	for r := 15; r < 26; r++ {
		if em.IsEdge(r, 50) {
			if d := raster.BucketDistance(gm.At(r, 50), 192); d > 4 {
				t.Errorf("top wall bucket %d at row %d", gm.At(r, 50), r)
			}
		}
	}
}

func TestToGrayRescales16Bit(t *testing.T) {
	m := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV16U)
	defer m.Close()
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			m.SetShortAt(r, c, 0)
		}
	}
	// 0xffff does not fit int16; write the raw bit pattern.
	m.SetShortAt(1, 1, -1)

	g, err := ToGray(m)
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()
	if Depth(g) != gocv.MatTypeCV8U {
		t.Fatalf("depth %v", Depth(g))
	}
	if v := g.GetUCharAt(1, 1); v != 255 {
		t.Errorf("full scale maps to %d, want 255", v)
	}
	if v := g.GetUCharAt(0, 0); v != 0 {
		t.Errorf("zero maps to %d", v)
	}
}

func TestDirections(t *testing.T) {
	gx := []int16{10, 0, -10, 0}
	gy := []int16{0, -10, 0, 10}
	gm := Directions(gx, gy, 2, 2)
	want := []uint8{0, 64, 128, 192}
	for i, w := range want {
		if gm.Dir[i] != w {
			t.Errorf("pixel %d: bucket %d, want %d", i, gm.Dir[i], w)
		}
	}
}
