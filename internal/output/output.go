// Package output encodes cut frames and records what was written.
//
// Frames for a scan named roll/scan01.tif go to roll/scan01/f00.jpg,
// roll/scan01/f01.jpg and so on, beside a frames.json summary. Frames that
// reach past the scan are listed in the summary but not encoded.
package output

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"frame-extractor/internal/config"
	"frame-extractor/internal/edges"
	"frame-extractor/internal/frame"
	"frame-extractor/internal/logger"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
)

const (
	component   = "output"
	SummaryName = "frames.json"
)

// Summary is the content of frames.json.
type Summary struct {
	Source            string           `json:"source"`
	NumberOfFrames    int              `json:"number_of_frames"`
	AverageResolution float64          `json:"average_resolution"` // -1 when no frame measured it
	Frames            []frame.Metadata `json:"frames"`
}

// Dir is the directory frames of source are written to.
func Dir(source string) string {
	return strings.TrimSuffix(source, filepath.Ext(source))
}

// FrameName returns the file name of frame index.
func FrameName(index int, ext string) string {
	return fmt.Sprintf("f%02d.%s", index, strings.TrimPrefix(ext, "."))
}

// ToImage converts a Mat of any supported depth to an 8-bit image.
func ToImage(m gocv.Mat) (image.Image, error) {
	eight, err := edges.To8Bit(m)
	if err != nil {
		return nil, err
	}
	defer eight.Close()
	return eight.ToImage()
}

// Writer encodes frames with the post-processing a Config asks for.
type Writer struct {
	cfg config.Config
	log *logger.Logger
}

// NewWriter returns a Writer for cfg.
func NewWriter(cfg config.Config, log *logger.Logger) *Writer {
	if log == nil {
		log = logger.Nop()
	}
	return &Writer{cfg: cfg, log: log}
}

// Write encodes images[i] as frames[i] and writes the summary. The two
// slices must have the same length.
func (w *Writer) Write(source string, frames []*frame.Frame, images []gocv.Mat) (*Summary, error) {
	if len(frames) != len(images) {
		return nil, fmt.Errorf("%d frames but %d images", len(frames), len(images))
	}
	dir := Dir(source)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	sum := &Summary{Source: source, AverageResolution: -1}
	var resTotal float64
	var resCount int
	for i, f := range frames {
		name := FrameName(f.Index, w.cfg.OutputType)
		md := f.Metadata(name)
		if f.DerivedDPI > 0 {
			resTotal += f.DerivedDPI
			resCount++
		}
		sum.Frames = append(sum.Frames, md)
		if md.Dropped {
			w.log.Warning(component, "frame reaches past the scan, not written", logger.Fields{"frame": f.Index})
			continue
		}
		if err := w.encode(filepath.Join(dir, name), images[i], source, f.Index); err != nil {
			return nil, fmt.Errorf("writing frame %d: %w", f.Index, err)
		}
		sum.NumberOfFrames++
	}
	if resCount > 0 {
		sum.AverageResolution = resTotal / float64(resCount)
	}

	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, SummaryName), data, 0644); err != nil {
		return nil, err
	}
	w.log.Info(component, "frames written", logger.Fields{
		"dir": dir, "frames": sum.NumberOfFrames, "average_dpi": sum.AverageResolution,
	})
	return sum, nil
}

func (w *Writer) encode(path string, m gocv.Mat, source string, index int) error {
	img, err := ToImage(m)
	if err != nil {
		return err
	}
	if w.cfg.ContrastEnabled() {
		img = LinearContrast(img, w.cfg.ContrastLowerPct, w.cfg.ContrastUpperPct)
	}
	if w.cfg.Watermark.Enabled {
		text := fmt.Sprintf("%s %d", filepath.Base(source), index)
		if img, err = Watermark(img, text, w.cfg.Watermark); err != nil {
			return err
		}
	}
	return imaging.Save(img, path, imaging.JPEGQuality(w.cfg.JPEGQuality))
}
