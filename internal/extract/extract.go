// Package extract runs the whole pipeline for one scan: edges, film edges,
// hole location, frame placement, cutting and output.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"frame-extractor/internal/config"
	"frame-extractor/internal/debugimg"
	"frame-extractor/internal/edgeprint"
	"frame-extractor/internal/edges"
	"frame-extractor/internal/filmedge"
	"frame-extractor/internal/frame"
	"frame-extractor/internal/imageio"
	"frame-extractor/internal/logger"
	"frame-extractor/internal/output"
	"frame-extractor/internal/raster"
	"frame-extractor/internal/sprocket"

	"gocv.io/x/gocv"
)

const component = "extract"

// minEdgeCoverage is the fraction of scanlines that must see a film edge.
const minEdgeCoverage = 0.25

// Result is everything known about one scan after a run.
type Result struct {
	Source       string
	SprocketEdge *filmedge.FilmEdge
	FarEdge      *filmedge.FilmEdge // Nil when not found
	Detection    *sprocket.Result
	Frames       []*frame.Frame
	Summary      *output.Summary // Nil until written
}

// Extractor is built once per configuration and reused across scans.
type Extractor struct {
	cfg      config.Config
	geom     config.Geometry
	detector *sprocket.Detector
	writer   *output.Writer
	ocr      *edgeprint.Engine
	log      *logger.Logger
}

// New validates cfg and prepares every stage. The OCR engine is only
// started when edge print reading is enabled.
func New(cfg config.Config, log *logger.Logger) (*Extractor, error) {
	if log == nil {
		log = logger.Nop()
	}
	det, err := sprocket.NewDetector(cfg, log)
	if err != nil {
		return nil, err
	}
	x := &Extractor{
		cfg:      cfg,
		geom:     det.Geometry(),
		detector: det,
		writer:   output.NewWriter(cfg, log),
		log:      log,
	}
	if cfg.ReadEdgePrint {
		if x.ocr, err = edgeprint.NewEngine(log); err != nil {
			return nil, fmt.Errorf("starting edge print reader: %w", err)
		}
	}
	return x, nil
}

// Close releases the OCR engine, if any.
func (x *Extractor) Close() error {
	if x.ocr != nil {
		return x.ocr.Close()
	}
	return nil
}

// Config returns the configuration the extractor was built with.
func (x *Extractor) Config() config.Config { return x.cfg }

// Locate finds the film edges, holes and frame placements in src without
// cutting anything. On sprocket.ErrGeometryNotFound the partial result
// is returned with no frames.
func (x *Extractor) Locate(src gocv.Mat) (*Result, error) {
	done := x.log.Timed(component, "edge detection")
	em, gm, err := edges.Extract(src, x.cfg)
	done()
	if err != nil {
		return nil, err
	}
	return x.locate(em, gm)
}

func (x *Extractor) locate(em *raster.EdgeMap, gm *raster.GradientMap) (*Result, error) {
	res := &Result{}
	opts := filmedge.Options{
		ToleranceBuckets: x.cfg.DirectionToleranceBuckets(),
		TrimPx:           x.geom.EdgeTrimPx,
		MinCoverage:      minEdgeCoverage,
	}

	side := x.detector.SprocketSide()
	sp, err := filmedge.Find(em, gm, side, opts)
	if err != nil {
		return res, fmt.Errorf("%w: %v", sprocket.ErrGeometryNotFound, err)
	}
	res.SprocketEdge = sp
	if far, err := filmedge.Find(em, gm, side.Opposite(), opts); err != nil {
		x.log.Warning(component, "far film edge not found", logger.Fields{"side": string(side.Opposite())})
	} else {
		res.FarEdge = far
	}

	det, err := x.detector.Locate(em, gm, res.SprocketEdge, res.FarEdge)
	res.Detection = det
	if err != nil {
		return res, err
	}

	frames, err := frame.Build(det.Fits, res.SprocketEdge, res.FarEdge, x.cfg)
	if errors.Is(err, frame.ErrNoHoles) {
		return res, nil
	}
	if err != nil {
		return res, err
	}
	res.Frames = frames
	return res, nil
}

// Run processes one scan file and writes its frames.
func (x *Extractor) Run(source string) (*Result, error) {
	if source == "" {
		return nil, fmt.Errorf("%w: no source image", config.ErrConfiguration)
	}
	if _, err := os.Stat(source); err != nil {
		return nil, fmt.Errorf("%w: source image: %v", config.ErrConfiguration, err)
	}

	src, err := imageio.Load(source)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	x.log.Info(component, "scan loaded", logger.Fields{
		"source": source, "rows": src.Rows(), "cols": src.Cols(), "channels": src.Channels(),
	})

	done := x.log.Timed(component, "edge detection")
	em, gm, err := edges.Extract(src, x.cfg)
	done()
	if err != nil {
		return nil, err
	}
	res, err := x.locate(em, gm)
	res.Source = source
	if x.cfg.WriteDebugImages {
		x.writeDebug(source, src, em, gm, res)
	}
	if err != nil {
		return res, err
	}

	done = x.log.Timed(component, "cutting frames")
	mats, err := frame.CutAll(src, res.Frames, x.cfg.Workers)
	done()
	if err != nil {
		return res, err
	}
	defer func() {
		for _, m := range mats {
			m.Close()
		}
	}()

	if x.ocr != nil {
		x.ocr.ReadAll(src, res.Frames, x.geom)
	}

	if res.Summary, err = x.writer.Write(source, res.Frames, mats); err != nil {
		return res, err
	}
	return res, nil
}

// writeDebug dumps the edge map, gradient directions and overlay. Failures
// are logged only.
func (x *Extractor) writeDebug(source string, src gocv.Mat, em *raster.EdgeMap, gm *raster.GradientMap, res *Result) {
	dir := x.cfg.DebugDir
	if dir == "" {
		dir = output.Dir(source)
	}
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))

	stages := []struct {
		name   string
		render func() (gocv.Mat, error)
	}{
		{"edges", func() (gocv.Mat, error) { return debugimg.EdgeImage(em) }},
		{"gradient", func() (gocv.Mat, error) { return debugimg.GradientImage(em, gm) }},
		{"overlay", func() (gocv.Mat, error) {
			return debugimg.Overlay(src, res.Detection, res.SprocketEdge, res.FarEdge, res.Frames)
		}},
	}
	for _, st := range stages {
		m, err := st.render()
		if err == nil {
			err = debugimg.Save(dir, base, st.name, m)
			m.Close()
		}
		if err != nil {
			x.log.Error(component, err, logger.Fields{"stage": st.name})
		}
	}
}

// Run builds an Extractor for cfg and processes one scan.
func Run(source string, cfg config.Config, log *logger.Logger) (*Result, error) {
	x, err := New(cfg, log)
	if err != nil {
		return nil, err
	}
	defer x.Close()
	return x.Run(source)
}
