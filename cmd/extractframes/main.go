// Command extractframes finds the sprocket holes in film scans and writes
// each frame as its own image.
//
// Usage:
//
//	extractframes [options] scan.tif [more scans or directories...]
//
// Frames of roll/scan01.tif are written to roll/scan01/fNN.jpg with a
// frames.json summary. A scan that fails is reported and skipped.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"frame-extractor/internal/config"
	"frame-extractor/internal/extract"
	"frame-extractor/internal/filmspec"
	"frame-extractor/internal/imageio"
	"frame-extractor/internal/logger"
	"frame-extractor/internal/sprocket"
	"frame-extractor/internal/version"
)

const component = "cli"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("extractframes", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: extractframes [options] image_files_or_dirs...\n")
		fs.PrintDefaults()
	}

	def := config.Default()
	configPath := fs.String("config", "", "JSON configuration file; flags override it")
	dpi := fs.Float64("r", def.ResolutionDPI, "Scan resolution in DPI (TIFF resolution tags are used when omitted)")
	low := fs.Float64("tl", def.LowThresholdPct, "Canny low threshold")
	high := fs.Float64("th", def.HighThresholdPct, "Canny high threshold")
	sigma := fs.Float64("sigma", def.Sigma, "Gaussian pre-smoothing sigma, 0 disables")
	houghThreshold := fs.Int("ht", def.HoughThreshold, "Hough vote threshold")
	clusterFactor := fs.Float64("cf", def.ClusterFactor, "Cluster distance as a fraction of hole width")
	quant := fs.Float64("qf", def.QuantFactor, "Hough accumulator cell size in pixels")
	tolerance := fs.Float64("dt", def.DirectionToleranceDeg, "Gradient direction tolerance in degrees")
	filmType := fs.String("f", string(def.FilmType), "Film type: super8 or 8mm")
	layout := fs.String("l", string(def.FilmLayout), "Film layout: lr, rl, tb or bt")
	reverse := fs.Bool("rev", def.ReverseImage, "Scan shows the film from the emulsion side")
	interframe := fs.Bool("ifg", def.AllowInterframeGeometry, "Validate hole spacing")
	frameWidth := fs.Int("fw", def.FrameWidthPix, "Frame width in pixels, 0 uses the film format")
	frameHeight := fs.Int("fh", def.FrameHeightPix, "Frame height in pixels, 0 uses the film format")
	oversize := fs.Float64("fo", def.FrameOversizeMult, "Frame oversize multiplier")
	rescale := fs.Bool("rescale", def.Rescale, "Rescale frames by the measured film width")
	rotate := fs.Bool("rotate", def.CorrectRotation, "Correct frame rotation from the film edge")
	workers := fs.Int("j", def.Workers, "Worker goroutines, 0 uses every CPU")
	outputType := fs.String("o", def.OutputType, "Output image type: jpg, png, tif or bmp")
	quality := fs.Int("q-jpeg", def.JPEGQuality, "JPEG quality")
	contrastLow := fs.Float64("cl", def.ContrastLowerPct, "Percent of samples clipped to black, with -cu enables contrast stretch")
	contrastHigh := fs.Float64("cu", def.ContrastUpperPct, "Percent of samples clipped to white")
	watermark := fs.Bool("wm", def.Watermark.Enabled, "Stamp the source name and frame number on each frame")
	edgePrint := fs.Bool("ep", def.ReadEdgePrint, "Read edge print text with OCR")
	debug := fs.Bool("debug", def.WriteDebugImages, "Write debug images")
	debugDir := fs.String("debug-dir", def.DebugDir, "Directory for debug images")
	verbose := fs.Bool("v", false, "Verbose logging")
	quiet := fs.Bool("quiet", false, "Only log warnings and errors")
	showVersion := fs.Bool("version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Println(version.String("extractframes"))
		return 0
	}

	log := logger.NewConsole(logger.ParseLevel(*verbose, *quiet))

	cfg := def
	fileKeys := map[string]bool{}
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Error(component, err, logger.Fields{"config": *configPath})
			return 2
		}
		if fileKeys, err = config.FileKeys(*configPath); err != nil {
			log.Error(component, err, logger.Fields{"config": *configPath})
			return 2
		}
	}

	// Explicit flags override the file
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	overlay := map[string]func(){
		"r":         func() { cfg.ResolutionDPI = *dpi },
		"tl":        func() { cfg.LowThresholdPct = *low },
		"th":        func() { cfg.HighThresholdPct = *high },
		"sigma":     func() { cfg.Sigma = *sigma },
		"ht":        func() { cfg.HoughThreshold = *houghThreshold },
		"cf":        func() { cfg.ClusterFactor = *clusterFactor },
		"qf":        func() { cfg.QuantFactor = *quant },
		"dt":        func() { cfg.DirectionToleranceDeg = *tolerance },
		"rev":       func() { cfg.ReverseImage = *reverse },
		"ifg":       func() { cfg.AllowInterframeGeometry = *interframe },
		"fw":        func() { cfg.FrameWidthPix = *frameWidth },
		"fh":        func() { cfg.FrameHeightPix = *frameHeight },
		"fo":        func() { cfg.FrameOversizeMult = *oversize },
		"rescale":   func() { cfg.Rescale = *rescale },
		"rotate":    func() { cfg.CorrectRotation = *rotate },
		"j":         func() { cfg.Workers = *workers },
		"o":         func() { cfg.OutputType = *outputType },
		"q-jpeg":    func() { cfg.JPEGQuality = *quality },
		"cl":        func() { cfg.ContrastLowerPct = *contrastLow },
		"cu":        func() { cfg.ContrastUpperPct = *contrastHigh },
		"wm":        func() { cfg.Watermark.Enabled = *watermark },
		"ep":        func() { cfg.ReadEdgePrint = *edgePrint },
		"debug":     func() { cfg.WriteDebugImages = *debug },
		"debug-dir": func() { cfg.DebugDir = *debugDir },
	}
	for name := range set {
		if apply, ok := overlay[name]; ok {
			apply()
		}
	}
	if err := normalize(&cfg, *filmType, *layout, set); err != nil {
		log.Error(component, err, nil)
		return 2
	}

	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	inputs, err := imageio.Collect(fs.Args())
	if err != nil {
		log.Error(component, err, nil)
		return 2
	}

	b := &batch{cfg: cfg, fixedDPI: resolutionGiven(set, fileKeys), log: log, extractors: map[float64]*extract.Extractor{}}
	defer b.close()

	var failed int
	for i, path := range inputs {
		if !b.process(i+1, len(inputs), path) {
			failed++
		}
	}
	if failed > 0 {
		log.Warning(component, "some scans were skipped", logger.Fields{"failed": failed, "total": len(inputs)})
		return 1
	}
	return 0
}

// normalize parses the enumerated flags so their aliases are accepted.
func normalize(cfg *config.Config, filmType, layout string, set map[string]bool) error {
	if set["f"] {
		ft, err := filmspec.ParseFilmType(filmType)
		if err != nil {
			return fmt.Errorf("%w: %v", config.ErrConfiguration, err)
		}
		cfg.FilmType = ft
	}
	if set["l"] {
		l, err := filmspec.ParseLayout(layout)
		if err != nil {
			return fmt.Errorf("%w: %v", config.ErrConfiguration, err)
		}
		cfg.FilmLayout = l
	}
	return cfg.Validate()
}

// resolutionGiven reports whether the DPI came from a flag or the config
// file. Otherwise TIFF resolution tags take over.
func resolutionGiven(flags, fileKeys map[string]bool) bool {
	return flags["r"] || fileKeys["resolution_dpi"]
}

// batch keeps one extractor per scan resolution.
type batch struct {
	cfg        config.Config
	fixedDPI   bool
	log        *logger.Logger
	extractors map[float64]*extract.Extractor
}

func (b *batch) close() {
	for _, x := range b.extractors {
		x.Close()
	}
}

func (b *batch) extractor(path string) (*extract.Extractor, error) {
	cfg := b.cfg
	if !b.fixedDPI && imageio.IsTIFF(path) {
		if dpi, err := imageio.ResolutionFromTIFF(path); err == nil && dpi > 0 {
			cfg.ResolutionDPI = dpi
		}
	}
	if x, ok := b.extractors[cfg.ResolutionDPI]; ok {
		return x, nil
	}
	x, err := extract.New(cfg, b.log)
	if err != nil {
		return nil, err
	}
	b.extractors[cfg.ResolutionDPI] = x
	return x, nil
}

// process runs one scan, recovering from panics so the batch continues.
func (b *batch) process(n, total int, path string) (ok bool) {
	fields := logger.Fields{"file": path, "n": n, "total": total}
	defer func() {
		if r := recover(); r != nil {
			fields["panic"] = fmt.Sprint(r)
			b.log.Warning(component, "skipping scan", fields)
			ok = false
		}
	}()

	x, err := b.extractor(path)
	if err != nil {
		b.log.Error(component, err, fields)
		return false
	}
	res, err := x.Run(path)
	switch {
	case errors.Is(err, sprocket.ErrGeometryNotFound):
		b.log.Warning(component, "no sprocket holes found, skipping", fields)
		return false
	case err != nil:
		b.log.Error(component, err, fields)
		return false
	}
	fields["frames"] = res.Summary.NumberOfFrames
	fields["dpi"] = x.Config().ResolutionDPI
	b.log.Info(component, "scan done", fields)
	return true
}
