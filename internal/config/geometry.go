package config

import (
	"math"

	"frame-extractor/internal/filmspec"
)

// Geometry is every pixel quantity the pipeline needs, computed once from a
// Config.
type Geometry struct {
	Format filmspec.Format

	HoleWidthPx  float64 // Across the film
	HoleHeightPx float64 // Along the film
	HoleCornerPx float64

	// Sprocket edge to hole centre.
	EdgeToCenterPx float64

	// Band, measured from the sprocket edge, searched for hole centres.
	SearchClosestPx  float64
	SearchFurthestPx float64

	// Band a surviving cluster must lie in.
	PruneClosestPx  float64
	PruneFurthestPx float64

	ClusterDistPx   float64
	MinNumPixels    int
	MaxLineDistance float64 // Trim threshold for the hole line fit
	EdgeTrimPx      float64 // Trim threshold for film edge fits

	PitchPx             float64
	FilmWidthPx         float64
	HoleToFrameCenterPx float64

	FrameWidthPx  int // Nominal frame, before oversizing
	FrameHeightPx int
	OutputWidth   int
	OutputHeight  int
}

// Derive computes the pixel geometry. The config must already be valid.
func (c Config) Derive() (Geometry, error) {
	format, err := filmspec.Lookup(c.FilmType)
	if err != nil {
		return Geometry{}, err
	}
	px := func(mm float64) float64 { return filmspec.ToPixels(mm, c.ResolutionDPI) }

	g := Geometry{
		Format:              format,
		HoleWidthPx:         px(format.HoleWidthMM),
		HoleHeightPx:        px(format.HoleHeightMM),
		HoleCornerPx:        px(format.HoleCornerRadiusMM),
		EdgeToCenterPx:      px(format.EdgeToHoleCenterMM()),
		PitchPx:             px(format.PitchMM),
		FilmWidthPx:         px(format.FilmWidthMM),
		HoleToFrameCenterPx: px(format.HoleToFrameCenterMM),
		MaxLineDistance:     c.ResolutionDPI / 64,
	}

	halfWidth := g.HoleWidthPx / 2
	slack := halfWidth + 2*c.QuantFactor
	g.SearchClosestPx = g.EdgeToCenterPx - slack
	g.SearchFurthestPx = g.EdgeToCenterPx + slack
	g.PruneClosestPx = g.EdgeToCenterPx - halfWidth
	g.PruneFurthestPx = g.EdgeToCenterPx + halfWidth

	g.ClusterDistPx = c.ClusterFactor * g.HoleWidthPx
	g.MinNumPixels = int(math.Max(g.HoleWidthPx, g.HoleHeightPx) + 0.5)
	g.EdgeTrimPx = g.MaxLineDistance

	g.FrameWidthPx = c.FrameWidthPix
	if g.FrameWidthPx == 0 {
		g.FrameWidthPx = int(math.Round(px(format.FrameWidthMM)))
	}
	g.FrameHeightPx = c.FrameHeightPix
	if g.FrameHeightPx == 0 {
		g.FrameHeightPx = int(math.Round(px(format.FrameHeightMM)))
	}
	g.OutputWidth = max(1, int(math.Round(float64(g.FrameWidthPx)*c.FrameOversizeMult)))
	g.OutputHeight = max(1, int(math.Round(float64(g.FrameHeightPx)*c.FrameOversizeMult)))

	return g, nil
}

// DirectionToleranceBuckets converts the angular tolerance to gradient buckets.
func (c Config) DirectionToleranceBuckets() int {
	return int(math.Round(c.DirectionToleranceDeg * 256 / 360))
}
