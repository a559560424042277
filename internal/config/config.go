// Package config holds the single configuration value threaded through every
// stage of the locator, and the pixel geometry derived from it.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"frame-extractor/internal/filmspec"
)

// ErrConfiguration is wrapped by every validation failure.
var ErrConfiguration = errors.New("configuration error")

// Watermark controls the optional text stamped on each written frame.
type Watermark struct {
	Enabled bool   `json:"enabled"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Color   string `json:"color"` // Hex, e.g. "#ffffff"
}

// Config is immutable once validated; stages receive it by value.
type Config struct {
	// Scan and edge detection
	ResolutionDPI    float64 `json:"resolution_dpi"`
	LowThresholdPct  float64 `json:"low_threshold_pct"`  // Canny hysteresis low
	HighThresholdPct float64 `json:"high_threshold_pct"` // Canny hysteresis high
	Sigma            float64 `json:"sigma"`              // Gaussian pre-smoothing, 0 disables

	// Hough transform and clustering
	HoughThreshold        int     `json:"hough_threshold"`
	ClusterFactor         float64 `json:"cluster_factor"` // Fraction of hole width
	QuantFactor           float64 `json:"quant_factor"`   // Accumulator cell size in pixels
	DirectionToleranceDeg float64 `json:"direction_tolerance_deg"`

	// Film
	FilmType     filmspec.FilmType `json:"film_type"`
	FilmLayout   filmspec.Layout   `json:"film_layout"`
	ReverseImage bool              `json:"reverse_image"`

	// Sequence validation
	AllowInterframeGeometry bool    `json:"allow_interframe_geometry"`
	InterframeTolerance     float64 `json:"interframe_tolerance"` // Fraction of pitch
	MaxAnchorRetries        int     `json:"max_anchor_retries"`

	// Minimiser caps
	MaxFitIterations  int `json:"max_fit_iterations"`
	MaxFitEvaluations int `json:"max_fit_evaluations"`

	// Frame cutting; zero frame sizes come from the film format
	FrameWidthPix     int     `json:"frame_width_pix"`
	FrameHeightPix    int     `json:"frame_height_pix"`
	FrameOversizeMult float64 `json:"frame_oversize_mult"`
	Rescale           bool    `json:"rescale"`
	CorrectRotation   bool    `json:"correct_rotation"`
	Workers           int     `json:"workers"` // 0 uses GOMAXPROCS

	// Output
	OutputType       string    `json:"output_type"`
	JPEGQuality      int       `json:"jpeg_quality"`
	ContrastLowerPct float64   `json:"contrast_lower_pct"`
	ContrastUpperPct float64   `json:"contrast_upper_pct"`
	Watermark        Watermark `json:"watermark"`
	ReadEdgePrint    bool      `json:"read_edge_print"`
	WriteDebugImages bool      `json:"write_debug_images"`
	DebugDir         string    `json:"debug_dir,omitempty"`
}

// Default returns the settings used when nothing is overridden.
func Default() Config {
	return Config{
		ResolutionDPI:    3200,
		LowThresholdPct:  50,
		HighThresholdPct: 200,

		HoughThreshold:        150,
		ClusterFactor:         0.2,
		QuantFactor:           7,
		DirectionToleranceDeg: 10,

		FilmType:   filmspec.Super8,
		FilmLayout: filmspec.TopToBottom,

		AllowInterframeGeometry: true,
		InterframeTolerance:     0.10,
		MaxAnchorRetries:        10,

		MaxFitIterations:  2000,
		MaxFitEvaluations: 8000,

		FrameOversizeMult: 1.0,
		Rescale:           true,
		CorrectRotation:   true,

		OutputType:       "jpg",
		JPEGQuality:      95,
		Watermark:        Watermark{X: 40, Y: 40, Color: "#ff0000"},
		ContrastUpperPct: 30,
	}
}

// Load reads a JSON file on top of Default. Absent keys keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: parse %s: %v", ErrConfiguration, path, err)
	}
	return cfg, nil
}

// FileKeys returns the top-level keys present in a JSON configuration file.
func FileKeys(path string) (map[string]bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrConfiguration, path, err)
	}
	keys := make(map[string]bool, len(raw))
	for k := range raw {
		keys[k] = true
	}
	return keys, nil
}

// Save writes the configuration as indented JSON.
func (c Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects settings no stage can run with.
func (c Config) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
	}

	if c.ResolutionDPI <= 0 {
		return fail("resolution must be positive, got %v", c.ResolutionDPI)
	}
	if c.LowThresholdPct < 0 || c.HighThresholdPct < c.LowThresholdPct {
		return fail("edge thresholds must satisfy 0 <= low <= high, got %v/%v", c.LowThresholdPct, c.HighThresholdPct)
	}
	if c.Sigma < 0 {
		return fail("sigma must not be negative")
	}
	if c.HoughThreshold <= 0 {
		return fail("hough threshold must be positive, got %d", c.HoughThreshold)
	}
	if c.ClusterFactor <= 0 {
		return fail("cluster factor must be positive, got %v", c.ClusterFactor)
	}
	if c.QuantFactor < 1 {
		return fail("quant factor must be at least 1, got %v", c.QuantFactor)
	}
	if c.DirectionToleranceDeg <= 0 || c.DirectionToleranceDeg > 180 {
		return fail("direction tolerance must be in (0, 180], got %v", c.DirectionToleranceDeg)
	}
	if c.FilmLayout == "" {
		return fail("film layout is not set")
	}
	if !c.FilmLayout.Valid() {
		return fail("unknown film layout %q", c.FilmLayout)
	}
	format, err := filmspec.Lookup(c.FilmType)
	if err != nil {
		return fail("%v", err)
	}
	if err := format.Validate(); err != nil {
		return fail("%v", err)
	}
	if c.InterframeTolerance <= 0 || c.InterframeTolerance >= 0.5 {
		return fail("interframe tolerance must be in (0, 0.5), got %v", c.InterframeTolerance)
	}
	if c.MaxAnchorRetries < 0 {
		return fail("max anchor retries must not be negative")
	}
	if c.MaxFitIterations <= 0 || c.MaxFitEvaluations <= 0 {
		return fail("minimiser caps must be positive")
	}
	if c.FrameWidthPix < 0 || c.FrameHeightPix < 0 {
		return fail("frame size must not be negative")
	}
	if c.FrameOversizeMult <= 0 {
		return fail("frame oversize multiplier must be positive, got %v", c.FrameOversizeMult)
	}
	if c.Workers < 0 {
		return fail("workers must not be negative")
	}
	switch strings.ToLower(c.OutputType) {
	case "jpg", "jpeg", "png", "tif", "tiff", "bmp":
	default:
		return fail("unsupported output type %q", c.OutputType)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fail("jpeg quality must be in [1, 100], got %d", c.JPEGQuality)
	}
	if c.ContrastLowerPct < 0 || c.ContrastUpperPct < 0 || c.ContrastLowerPct+c.ContrastUpperPct >= 100 {
		return fail("contrast clip percentages must be non-negative and sum below 100")
	}
	return nil
}

// ContrastEnabled reports whether frames get a histogram stretch.
func (c Config) ContrastEnabled() bool {
	return c.ContrastLowerPct > 0 || c.ContrastUpperPct > 0
}
