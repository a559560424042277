// Package edgeprint reads the manufacturer's edge markings printed in the
// margin between each frame and the far film edge.
package edgeprint

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"
	"sync"

	"frame-extractor/internal/config"
	"frame-extractor/internal/edges"
	"frame-extractor/internal/frame"
	"frame-extractor/internal/logger"
	"frame-extractor/pkg/geometry"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"
)

const component = "edgeprint"

// ErrNoMargin is returned when the frame leaves no strip before the far edge.
var ErrNoMargin = errors.New("no margin beside the frame")

// minMarginPx is the narrowest strip worth reading.
const minMarginPx = 4

// EdgeChars covers stock names, date symbols and footage numbers.
const EdgeChars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ-+"

// Engine wraps one Tesseract client and serializes calls to it.
type Engine struct {
	mu     sync.Mutex
	client *gosseract.Client
	log    *logger.Logger
}

// NewEngine creates a new OCR engine.
func NewEngine(log *logger.Logger) (*Engine, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage("eng"); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}
	// Edge codes aren't dictionary words
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")

	if log == nil {
		log = logger.Nop()
	}
	return &Engine{client: client, log: log}, nil
}

// Close releases OCR resources.
func (e *Engine) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// Strip returns the margin beside f, between the frame's far side and the
// far film edge, as a frame of its own with f's orientation and scale.
func Strip(f *frame.Frame, geom config.Geometry) (*frame.Frame, error) {
	near := geom.HoleToFrameCenterPx + float64(geom.FrameWidthPx)/2
	far := geom.FilmWidthPx - geom.EdgeToCenterPx
	width := int(math.Floor(far - near))
	if width < minMarginPx {
		return nil, fmt.Errorf("%w: %d px", ErrNoMargin, width)
	}

	s := *f
	s.Width = width
	s.Height = geom.FrameHeightPx
	s.OutOfBounds = false
	s.EdgePrint = ""
	offset := geometry.Rotation(f.Rotation).Apply(f.Across).Scale((near + far) / 2 * f.Scale)
	s.Center = f.Reference.Add(offset)
	return &s, nil
}

// Read cuts the margin strip of f out of src and recognizes its text.
func (e *Engine) Read(src gocv.Mat, f *frame.Frame, geom config.Geometry) (string, error) {
	strip, err := Strip(f, geom)
	if err != nil {
		return "", err
	}
	cut, err := frame.Cut(src, strip)
	if err != nil {
		return "", err
	}
	defer cut.Close()
	if strip.OutOfBounds {
		return "", fmt.Errorf("frame %d: margin strip leaves the scan", f.Index)
	}

	// Edge print runs along the film; turn it to read left to right
	turned := gocv.NewMat()
	defer turned.Close()
	gocv.Rotate(cut, &turned, gocv.Rotate90CounterClockwise)

	return e.Recognize(turned)
}

// ReadAll fills EdgePrint on every in-bounds frame. Failures are logged
// and leave the field empty.
func (e *Engine) ReadAll(src gocv.Mat, frames []*frame.Frame, geom config.Geometry) {
	for _, f := range frames {
		if f.OutOfBounds {
			continue
		}
		text, err := e.Read(src, f, geom)
		if err != nil {
			e.log.Debug(component, "edge print not read", logger.Fields{"frame": f.Index, "error": err.Error()})
			continue
		}
		f.EdgePrint = text
	}
}

// Recognize performs OCR on a whole image.
func (e *Engine) Recognize(img gocv.Mat) (string, error) {
	if img.Empty() {
		return "", fmt.Errorf("empty image")
	}
	processed, err := preprocess(img)
	if err != nil {
		return "", err
	}
	defer processed.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, processed)
	if err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		return "", fmt.Errorf("failed to set PSM: %w", err)
	}
	if err := e.client.SetWhitelist(EdgeChars); err != nil {
		return "", fmt.Errorf("failed to set whitelist: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}
	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return Clean(text), nil
}

// Clean collapses whitespace and upper-cases recognized text.
func Clean(text string) string {
	return strings.ToUpper(strings.Join(strings.Fields(text), " "))
}

// preprocess upscales, equalizes and binarizes a strip into dark text on a
// light background.
func preprocess(region gocv.Mat) (gocv.Mat, error) {
	gray, err := edges.ToGray(region)
	if err != nil {
		return gray, err
	}
	defer gray.Close()

	scaled := gocv.NewMat()
	defer scaled.Close()
	if minDim := min(gray.Rows(), gray.Cols()); minDim < 60 {
		scale := 60.0 / float64(minDim)
		gocv.Resize(gray, &scaled, image.Point{}, scale, scale, gocv.InterpolationCubic)
	} else {
		gray.CopyTo(&scaled)
	}

	clahe := gocv.NewCLAHEWithParams(2.0, image.Point{X: 8, Y: 8})
	defer clahe.Close()
	enhanced := gocv.NewMat()
	defer enhanced.Close()
	clahe.Apply(scaled, &enhanced)

	binary := gocv.NewMat()
	gocv.Threshold(enhanced, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	// Edge print is exposed light, so it usually arrives light on dark
	if white := gocv.CountNonZero(binary); white*2 < binary.Rows()*binary.Cols() {
		gocv.BitwiseNot(binary, &binary)
	}
	return binary, nil
}
