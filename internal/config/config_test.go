package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"frame-extractor/internal/filmspec"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero dpi", func(c *Config) { c.ResolutionDPI = 0 }},
		{"inverted thresholds", func(c *Config) { c.LowThresholdPct = 300 }},
		{"unset layout", func(c *Config) { c.FilmLayout = "" }},
		{"bad layout", func(c *Config) { c.FilmLayout = "xy" }},
		{"bad film", func(c *Config) { c.FilmType = "16mm" }},
		{"zero quant", func(c *Config) { c.QuantFactor = 0 }},
		{"zero oversize", func(c *Config) { c.FrameOversizeMult = 0 }},
		{"bad output", func(c *Config) { c.OutputType = "gif" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			err := c.Validate()
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("Validate() = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestDeriveMonotonicInResolution(t *testing.T) {
	for _, ft := range []filmspec.FilmType{filmspec.Super8, filmspec.Regular8} {
		var prev Geometry
		for i, dpi := range []float64{300, 600, 1200, 2400, 3200, 4800} {
			c := Default()
			c.FilmType = ft
			c.ResolutionDPI = dpi
			g, err := c.Derive()
			if err != nil {
				t.Fatal(err)
			}
			if i > 0 {
				if g.HoleWidthPx <= prev.HoleWidthPx {
					t.Errorf("%s: hole width not increasing at %v dpi", ft, dpi)
				}
				if g.EdgeToCenterPx <= prev.EdgeToCenterPx {
					t.Errorf("%s: edge-to-centre not increasing at %v dpi", ft, dpi)
				}
			}
			prev = g
		}
	}
}

func TestDeriveSuper8At1000DPI(t *testing.T) {
	c := Default()
	c.ResolutionDPI = 1000
	g, err := c.Derive()
	if err != nil {
		t.Fatal(err)
	}
	if g.MinNumPixels != 45 {
		t.Errorf("MinNumPixels = %d, want 45", g.MinNumPixels)
	}
	if g.MaxLineDistance != 1000.0/64 {
		t.Errorf("MaxLineDistance = %v", g.MaxLineDistance)
	}
	if g.SearchClosestPx >= g.PruneClosestPx || g.SearchFurthestPx <= g.PruneFurthestPx {
		t.Errorf("search band must enclose prune band: %+v", g)
	}
	if g.FrameWidthPx != 228 || g.FrameHeightPx != 158 {
		t.Errorf("frame = %dx%d, want 228x158", g.FrameWidthPx, g.FrameHeightPx)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	if err := os.WriteFile(path, []byte(`{"resolution_dpi": 2400, "film_layout": "lr"}`), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.ResolutionDPI != 2400 || c.FilmLayout != filmspec.LeftToRight {
		t.Errorf("overrides not applied: %+v", c)
	}
	if c.HoughThreshold != 150 {
		t.Errorf("default lost: hough threshold %d", c.HoughThreshold)
	}
}

func TestFileKeys(t *testing.T) {
	dir := t.TempDir()
	with := filepath.Join(dir, "with.json")
	without := filepath.Join(dir, "without.json")
	if err := os.WriteFile(with, []byte(`{"resolution_dpi": 2400}`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(without, []byte(`{"film_layout": "lr"}`), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path string
		want bool
	}{
		{with, true},
		{without, false},
	}
	for _, tt := range tests {
		keys, err := FileKeys(tt.path)
		if err != nil {
			t.Fatal(err)
		}
		if got := keys["resolution_dpi"]; got != tt.want {
			t.Errorf("%s: resolution_dpi present = %v, want %v", filepath.Base(tt.path), got, tt.want)
		}
	}
}

func TestDefaultContrast(t *testing.T) {
	c := Default()
	if !c.ContrastEnabled() {
		t.Fatal("contrast stretch disabled by default")
	}
	if c.ContrastLowerPct != 0 || c.ContrastUpperPct != 30 {
		t.Errorf("clip = (%v, %v), want (0, 30)", c.ContrastLowerPct, c.ContrastUpperPct)
	}

	c.ContrastUpperPct = 0
	if c.ContrastEnabled() {
		t.Error("zero clip percentages still enable contrast")
	}
}
