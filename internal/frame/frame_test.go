package frame

import (
	"math"
	"testing"

	"frame-extractor/internal/config"
	"frame-extractor/internal/filmedge"
	"frame-extractor/internal/filmspec"
	"frame-extractor/internal/hough"
	"frame-extractor/pkg/geometry"

	"gocv.io/x/gocv"
)

func patternMat(rows, cols int) gocv.Mat {
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC1)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			m.SetUCharAt(r, c, uint8((r*7+c*3)%256))
		}
	}
	return m
}

func uprightFrame(center geometry.Point2D, w, h int) *Frame {
	return &Frame{
		Center: center,
		Scale:  1,
		Across: geometry.Point2D{X: 1},
		Along:  geometry.Point2D{Y: 1},
		Width:  w,
		Height: h,
	}
}

func TestCutAxisAlignedIsACrop(t *testing.T) {
	src := patternMat(80, 100)
	defer src.Close()

	f := uprightFrame(geometry.Point2D{X: 40, Y: 50}, 20, 10)
	dst, err := Cut(src, f)
	if err != nil {
		t.Fatal(err)
	}
	defer dst.Close()

	if dst.Cols() != 20 || dst.Rows() != 10 {
		t.Fatalf("size = %dx%d, want 20x10", dst.Cols(), dst.Rows())
	}
	if f.OutOfBounds {
		t.Error("frame inside the image marked out of bounds")
	}
	for y := 0; y < 10; y++ {
		for x := 0; x < 20; x++ {
			want := src.GetUCharAt(y+45, x+30)
			if got := dst.GetUCharAt(y, x); got != want {
				t.Fatalf("pixel (%d,%d) = %d, want %d", x, y, got, want)
			}
		}
	}
}

func TestCutMarksOutOfBounds(t *testing.T) {
	src := patternMat(80, 100)
	defer src.Close()

	f := uprightFrame(geometry.Point2D{X: 3, Y: 3}, 20, 10)
	dst, err := Cut(src, f)
	if err != nil {
		t.Fatal(err)
	}
	defer dst.Close()

	if !f.OutOfBounds {
		t.Error("frame past the top-left corner not marked out of bounds")
	}
	if dst.Empty() {
		t.Error("out-of-bounds frame should still be cut")
	}
	if md := f.Metadata("f00.jpg"); !md.Dropped || md.Filename != "" {
		t.Errorf("metadata = %+v, want dropped without a filename", md)
	}
}

func TestCutAllKeepsOrder(t *testing.T) {
	src := patternMat(80, 100)
	defer src.Close()

	var frames []*Frame
	for i := 0; i < 5; i++ {
		f := uprightFrame(geometry.Point2D{X: float64(20 + 10*i), Y: 40}, 8, 8)
		f.Index = i
		frames = append(frames, f)
	}
	mats, err := CutAll(src, frames, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i, m := range mats {
		want := src.GetUCharAt(36, 16+10*i)
		if got := m.GetUCharAt(0, 0); got != want {
			t.Errorf("frame %d top-left = %d, want %d", i, got, want)
		}
		m.Close()
	}
}

func TestTransformRotates(t *testing.T) {
	f := uprightFrame(geometry.Point2D{X: 50, Y: 50}, 10, 10)
	f.Rotation = math.Pi / 2
	got := f.Transform().Apply(geometry.Point2D{X: 5, Y: 5})
	if got.Distance(f.Center) > 1e-9 {
		t.Errorf("output centre maps to %v, want %v", got, f.Center)
	}
	// +x in the output follows +y in the scan after a quarter turn.
	step := f.Transform().Apply(geometry.Point2D{X: 6, Y: 5}).Sub(got)
	if math.Abs(step.X) > 1e-9 || math.Abs(step.Y-1) > 1e-9 {
		t.Errorf("x step = %v, want (0, 1)", step)
	}
}

func TestBuildRegular8PairsHoles(t *testing.T) {
	cfg := config.Default()
	cfg.FilmType = filmspec.Regular8
	cfg.ResolutionDPI = 1000
	cfg.FilmLayout = filmspec.TopToBottom

	geom, err := cfg.Derive()
	if err != nil {
		t.Fatal(err)
	}

	const rows, cols = 1000, 400
	edgeX := 10.0
	farX := edgeX + geom.FilmWidthPx
	sp := filmedge.FromLine(geometry.LineThrough(geometry.Point2D{X: edgeX}, geometry.Point2D{Y: 1}), rows, cols)
	far := filmedge.FromLine(geometry.LineThrough(geometry.Point2D{X: farX}, geometry.Point2D{Y: 1}), rows, cols)

	holeX := edgeX + geom.EdgeToCenterPx
	var fits []*hough.Fit
	for _, y := range []float64{100, 250, 400, 550} {
		fits = append(fits, &hough.Fit{Row: y, Col: holeX, Scale: 1})
	}

	frames, err := Build(fits, sp, far, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}

	f := frames[0]
	if want := (geometry.Point2D{X: holeX, Y: 175}); f.Reference.Distance(want) > 1e-9 {
		t.Errorf("reference = %v, want %v", f.Reference, want)
	}
	if math.Abs(f.DerivedDPI-1000) > 1e-6 {
		t.Errorf("derived dpi = %v, want 1000", f.DerivedDPI)
	}
	if math.Abs(f.Rotation) > 1e-9 {
		t.Errorf("rotation = %v, want 0", f.Rotation)
	}
	if math.Abs(f.Scale-1) > 1e-9 {
		t.Errorf("scale = %v, want 1", f.Scale)
	}
	if want := holeX + geom.HoleToFrameCenterPx; math.Abs(f.Center.X-want) > 1e-6 {
		t.Errorf("centre x = %v, want %v", f.Center.X, want)
	}
	if f.Width != geom.OutputWidth || f.Height != geom.OutputHeight {
		t.Errorf("size = %dx%d, want %dx%d", f.Width, f.Height, geom.OutputWidth, geom.OutputHeight)
	}
}

func TestBuildWithoutFarEdge(t *testing.T) {
	cfg := config.Default()
	cfg.ResolutionDPI = 1000

	sp := filmedge.FromLine(geometry.LineThrough(geometry.Point2D{X: 10}, geometry.Point2D{Y: 1}), 1000, 400)
	fits := []*hough.Fit{{Row: 100, Col: 30, Scale: 1.1}, {Row: 270, Col: 30, Scale: 1.1}}

	frames, err := Build(fits, sp, nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	for _, f := range frames {
		if f.DerivedDPI != -1 {
			t.Errorf("derived dpi = %v, want -1", f.DerivedDPI)
		}
		if math.Abs(f.Scale-1.1) > 1e-9 {
			t.Errorf("scale = %v, want mean fit scale 1.1", f.Scale)
		}
	}
}

func TestBuildNoHoles(t *testing.T) {
	sp := filmedge.FromLine(geometry.LineThrough(geometry.Point2D{X: 10}, geometry.Point2D{Y: 1}), 100, 100)
	if _, err := Build(nil, sp, nil, config.Default()); err != ErrNoHoles {
		t.Errorf("err = %v, want ErrNoHoles", err)
	}
}
