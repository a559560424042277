package output

import (
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/histogram"
)

// LinearContrast stretches intensities so that lowerPct percent of the
// channel samples clip to black and upperPct percent clip to white.
func LinearContrast(img image.Image, lowerPct, upperPct float64) *image.RGBA {
	lo, hi := clipLevels(img, lowerPct, upperPct)
	if hi <= lo {
		return adjust.Apply(img, func(c color.RGBA) color.RGBA { return c })
	}
	gain := 255 / float64(hi-lo)
	stretch := func(v uint8) uint8 {
		s := (float64(v) - float64(lo)) * gain
		return uint8(math.Max(0, math.Min(255, math.Round(s))))
	}
	return adjust.Apply(img, func(c color.RGBA) color.RGBA {
		return color.RGBA{R: stretch(c.R), G: stretch(c.G), B: stretch(c.B), A: c.A}
	})
}

// clipLevels finds the intensities below and above which the requested
// fractions of R, G and B samples lie.
func clipLevels(img image.Image, lowerPct, upperPct float64) (lo, hi int) {
	h := histogram.NewRGBAHistogram(img)
	var bins [256]int
	var total int
	for i := range bins {
		if i < len(h.R.Bins) {
			bins[i] = h.R.Bins[i] + h.G.Bins[i] + h.B.Bins[i]
		}
		total += bins[i]
	}
	if total == 0 {
		return 0, 255
	}

	lowCount := int(float64(total) * lowerPct / 100)
	highCount := int(float64(total) * upperPct / 100)

	acc := 0
	for lo = 0; lo < 255; lo++ {
		acc += bins[lo]
		if acc > lowCount {
			break
		}
	}
	acc = 0
	for hi = 255; hi > 0; hi-- {
		acc += bins[hi]
		if acc > highCount {
			break
		}
	}
	return lo, hi
}
