package output

import (
	"fmt"
	"image"

	"frame-extractor/internal/config"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Watermark draws text with its baseline starting at (wm.X, wm.Y).
func Watermark(img image.Image, text string, wm config.Watermark) (image.Image, error) {
	c, err := colorful.Hex(wm.Color)
	if err != nil {
		return nil, fmt.Errorf("watermark colour %q: %w", wm.Color, err)
	}
	dst := imaging.Clone(img)
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(wm.X, wm.Y),
	}
	d.DrawString(text)
	return dst, nil
}
