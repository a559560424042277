// Package edges turns a decoded scan into the binary edge map and the
// quantized gradient-direction map the locator votes with.
package edges

import (
	"errors"
	"fmt"
	"image"

	"frame-extractor/internal/config"
	"frame-extractor/internal/raster"

	"gocv.io/x/gocv"
)

// ErrInvalidImage is returned for empty or unsupported input.
var ErrInvalidImage = errors.New("invalid image")

// Depth returns the per-channel sample type of m.
func Depth(m gocv.Mat) gocv.MatType {
	return gocv.MatType(int(m.Type()) & 7)
}

// maxValue is the full-scale value used to rescale each integer depth.
func maxValue(depth gocv.MatType) (float64, bool) {
	switch depth {
	case gocv.MatTypeCV8U:
		return 0xff, true
	case gocv.MatTypeCV8S:
		return 0x7f, true
	case gocv.MatTypeCV16U:
		return 0xffff, true
	case gocv.MatTypeCV16S:
		return 0x7fff, true
	}
	return 0, false
}

// To8Bit rescales any supported depth to 8 bits, keeping the channels.
// The caller owns the returned Mat.
func To8Bit(src gocv.Mat) (gocv.Mat, error) {
	if src.Empty() || src.Rows() <= 0 || src.Cols() <= 0 {
		return gocv.NewMat(), fmt.Errorf("%w: empty", ErrInvalidImage)
	}
	denom, ok := maxValue(Depth(src))
	if !ok {
		return gocv.NewMat(), fmt.Errorf("%w: unsupported depth %v", ErrInvalidImage, Depth(src))
	}
	if Depth(src) == gocv.MatTypeCV8U {
		return src.Clone(), nil
	}
	dst := gocv.NewMat()
	channels := src.Channels()
	target := gocv.MatTypeCV8U
	switch channels {
	case 3:
		target = gocv.MatTypeCV8UC3
	case 4:
		target = gocv.MatTypeCV8UC4
	}
	src.ConvertToWithParams(&dst, target, float32(255/denom), 0)
	return dst, nil
}

// ToGray converts a 1, 3 or 4 channel scan of any supported depth to
// 8-bit grayscale. The caller owns the returned Mat.
func ToGray(src gocv.Mat) (gocv.Mat, error) {
	eight, err := To8Bit(src)
	if err != nil {
		return eight, err
	}

	switch eight.Channels() {
	case 1:
		return eight, nil
	case 3:
		defer eight.Close()
		gray := gocv.NewMat()
		gocv.CvtColor(eight, &gray, gocv.ColorBGRToGray)
		return gray, nil
	case 4:
		defer eight.Close()
		gray := gocv.NewMat()
		gocv.CvtColor(eight, &gray, gocv.ColorBGRAToGray)
		return gray, nil
	}
	n := eight.Channels()
	eight.Close()
	return gocv.NewMat(), fmt.Errorf("%w: %d channels", ErrInvalidImage, n)
}

// Extract runs gray conversion, a 3x3 box blur, optional Gaussian
// smoothing, Canny and Sobel, returning the edge and direction maps.
func Extract(src gocv.Mat, cfg config.Config) (*raster.EdgeMap, *raster.GradientMap, error) {
	gray, err := ToGray(src)
	if err != nil {
		return nil, nil, err
	}
	defer gray.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.Blur(gray, &blurred, image.Point{X: 3, Y: 3})

	smooth := blurred
	if cfg.Sigma > 0 {
		gauss := gocv.NewMat()
		defer gauss.Close()
		gocv.GaussianBlur(blurred, &gauss, image.Point{}, cfg.Sigma, cfg.Sigma, gocv.BorderDefault)
		smooth = gauss
	}

	canny := gocv.NewMat()
	defer canny.Close()
	gocv.Canny(smooth, &canny, float32(cfg.LowThresholdPct), float32(cfg.HighThresholdPct))

	dx := gocv.NewMat()
	defer dx.Close()
	dy := gocv.NewMat()
	defer dy.Close()
	gocv.Sobel(smooth, &dx, gocv.MatTypeCV16S, 1, 0, 3, 1, 0, gocv.BorderDefault)
	gocv.Sobel(smooth, &dy, gocv.MatTypeCV16S, 0, 1, 3, 1, 0, gocv.BorderDefault)

	rows, cols := gray.Rows(), gray.Cols()
	em := &raster.EdgeMap{Rows: rows, Cols: cols, Pix: canny.ToBytes()}

	gx, err := dx.DataPtrInt16()
	if err != nil {
		return nil, nil, fmt.Errorf("sobel dx: %w", err)
	}
	gy, err := dy.DataPtrInt16()
	if err != nil {
		return nil, nil, fmt.Errorf("sobel dy: %w", err)
	}
	return em, Directions(gx, gy, rows, cols), nil
}

// Directions quantizes Sobel derivatives into buckets. Rows grow
// downward, so dy is negated to measure angles counter-clockwise.
func Directions(gx, gy []int16, rows, cols int) *raster.GradientMap {
	gm := raster.NewGradientMap(rows, cols)
	for i := range gm.Dir {
		gm.Dir[i] = raster.AngleByte(float64(gx[i]), -float64(gy[i]))
	}
	return gm
}
