package frame

import (
	"fmt"
	"image"
	"image/color"
	"runtime"
	"sync"

	"frame-extractor/pkg/geometry"

	"gocv.io/x/gocv"
)

// Cut resamples f out of src with bilinear interpolation. Frames reaching
// past the scan are still cut, with black fill, and marked OutOfBounds.
func Cut(src gocv.Mat, f *Frame) (gocv.Mat, error) {
	if src.Empty() {
		return gocv.NewMat(), fmt.Errorf("frame %d: empty source image", f.Index)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return gocv.NewMat(), fmt.Errorf("frame %d: invalid size %dx%d", f.Index, f.Width, f.Height)
	}
	f.OutOfBounds = f.CheckBounds(src.Rows(), src.Cols())
	return Warp(src, f.Transform(), f.Width, f.Height)
}

// Warp samples a width×height image whose pixel (x, y) is taken from
// src at dstToSrc(x, y).
func Warp(src gocv.Mat, dstToSrc geometry.AffineTransform, width, height int) (gocv.Mat, error) {
	inv, ok := dstToSrc.Inverse()
	if !ok {
		return gocv.NewMat(), fmt.Errorf("degenerate frame transform")
	}

	transformMat := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	defer transformMat.Close()
	m := inv.ToMatrix()
	for r := 0; r < 2; r++ {
		for c := 0; c < 3; c++ {
			transformMat.SetDoubleAt(r, c, m[r][c])
		}
	}

	dst := gocv.NewMat()
	gocv.WarpAffineWithParams(src, &dst, transformMat, image.Point{X: width, Y: height},
		gocv.InterpolationLinear, gocv.BorderConstant, color.RGBA{})
	return dst, nil
}

// CutAll cuts every frame using up to workers goroutines (0 means one per
// CPU). src is only read. On error every produced Mat is closed.
func CutAll(src gocv.Mat, frames []*Frame, workers int) ([]gocv.Mat, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	out := make([]gocv.Mat, len(frames))
	errs := make([]error, len(frames))

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for i, f := range frames {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, f *Frame) {
			defer wg.Done()
			defer func() { <-sem }()
			out[i], errs[i] = Cut(src, f)
		}(i, f)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			for _, m := range out {
				m.Close()
			}
			return nil, fmt.Errorf("cutting frame %d: %w", i, err)
		}
	}
	return out, nil
}
