// Package filmspec holds the physical constants of the supported 8mm film
// formats and the four transport layouts a scan can have.
package filmspec

import (
	"fmt"
	"strings"

	"frame-extractor/pkg/geometry"
)

// MMPerInch converts between scanner resolution and film dimensions.
const MMPerInch = 25.4

// FilmType names a film format.
type FilmType string

const (
	Super8   FilmType = "super8"
	Regular8 FilmType = "8mm"
)

// Layout is the direction the film travels through the scan.
type Layout string

const (
	LeftToRight Layout = "lr"
	RightToLeft Layout = "rl"
	TopToBottom Layout = "tb"
	BottomToTop Layout = "bt"
)

// Side of the scan the sprocket holes sit on.
type Side string

const (
	SideLeft   Side = "left"
	SideRight  Side = "right"
	SideTop    Side = "top"
	SideBottom Side = "bottom"
)

// Format describes one film format. Widths are measured across the film,
// heights along it.
type Format struct {
	Type                FilmType `json:"type"`
	HoleWidthMM         float64  `json:"hole_width_mm"`          // Across the film
	HoleHeightMM        float64  `json:"hole_height_mm"`         // Along the film
	HoleCornerRadiusMM  float64  `json:"hole_corner_radius_mm"`  // Perforation corner rounding
	EdgeToHoleMM        float64  `json:"edge_to_hole_mm"`        // Film edge to near hole edge
	PitchMM             float64  `json:"pitch_mm"`               // Hole centre to hole centre
	FrameWidthMM        float64  `json:"frame_width_mm"`         // Projected image, across
	FrameHeightMM       float64  `json:"frame_height_mm"`        // Projected image, along
	FilmWidthMM         float64  `json:"film_width_mm"`          // Edge to edge
	HoleToFrameCenterMM float64  `json:"hole_to_frame_center_mm"` // Across, toward the far edge
	HolesPerFrame       int      `json:"holes_per_frame"`
}

var formats = map[FilmType]Format{
	Super8: {
		Type:                Super8,
		HoleWidthMM:         0.914,
		HoleHeightMM:        1.143,
		HoleCornerRadiusMM:  0.13,
		EdgeToHoleMM:        0.51,
		PitchMM:             4.234,
		FrameWidthMM:        5.79,
		FrameHeightMM:       4.01,
		FilmWidthMM:         7.975,
		HoleToFrameCenterMM: 3.533,
		HolesPerFrame:       1,
	},
	Regular8: {
		Type:                Regular8,
		HoleWidthMM:         1.829,
		HoleHeightMM:        1.270,
		HoleCornerRadiusMM:  0.25,
		EdgeToHoleMM:        0.90,
		PitchMM:             3.81,
		FrameWidthMM:        4.88,
		FrameHeightMM:       3.68,
		FilmWidthMM:         7.975,
		HoleToFrameCenterMM: 3.2855,
		HolesPerFrame:       2,
	},
}

// Lookup returns the constants for a film type.
func Lookup(t FilmType) (Format, error) {
	f, ok := formats[t]
	if !ok {
		return Format{}, fmt.Errorf("unknown film type %q", t)
	}
	return f, nil
}

// EdgeToHoleCenterMM is the distance from the sprocket-side film edge to
// the centre of a hole.
func (f Format) EdgeToHoleCenterMM() float64 {
	return f.EdgeToHoleMM + f.HoleWidthMM/2
}

// Validate checks that every dimension is usable.
func (f Format) Validate() error {
	dims := map[string]float64{
		"hole width":   f.HoleWidthMM,
		"hole height":  f.HoleHeightMM,
		"pitch":        f.PitchMM,
		"frame width":  f.FrameWidthMM,
		"frame height": f.FrameHeightMM,
		"film width":   f.FilmWidthMM,
	}
	for name, v := range dims {
		if v <= 0 {
			return fmt.Errorf("%s %s must be positive, got %v", f.Type, name, v)
		}
	}
	if f.HoleCornerRadiusMM < 0 || 2*f.HoleCornerRadiusMM > min(f.HoleWidthMM, f.HoleHeightMM) {
		return fmt.Errorf("%s corner radius %v does not fit the hole", f.Type, f.HoleCornerRadiusMM)
	}
	if f.HolesPerFrame != 1 && f.HolesPerFrame != 2 {
		return fmt.Errorf("%s holes per frame must be 1 or 2, got %d", f.Type, f.HolesPerFrame)
	}
	return nil
}

// ToPixels converts millimetres to pixels at the given scanner resolution.
func ToPixels(mm, dpi float64) float64 {
	return mm * dpi / MMPerInch
}

// ParseFilmType accepts the command-line spellings of a film type.
func ParseFilmType(s string) (FilmType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "super8", "s8":
		return Super8, nil
	case "8mm", "regular8", "r8":
		return Regular8, nil
	}
	return "", fmt.Errorf("unknown film type %q (want super8 or 8mm)", s)
}

// ParseLayout accepts "lr", "rl", "tb" or "bt".
func ParseLayout(s string) (Layout, error) {
	l := Layout(strings.ToLower(strings.TrimSpace(s)))
	switch l {
	case LeftToRight, RightToLeft, TopToBottom, BottomToTop:
		return l, nil
	}
	return "", fmt.Errorf("unknown film layout %q (want lr, rl, tb or bt)", s)
}

// Valid reports whether the layout is one of the four known values.
func (l Layout) Valid() bool {
	_, err := ParseLayout(string(l))
	return err == nil
}

// IsVertical reports whether the film runs along the image rows.
func (l Layout) IsVertical() bool {
	return l == TopToBottom || l == BottomToTop
}

// Transport returns the unit vector, in image coordinates, along which
// successive frames appear.
func (l Layout) Transport() geometry.Point2D {
	switch l {
	case LeftToRight:
		return geometry.Point2D{X: 1}
	case RightToLeft:
		return geometry.Point2D{X: -1}
	case BottomToTop:
		return geometry.Point2D{Y: -1}
	default:
		return geometry.Point2D{Y: 1}
	}
}

// Across returns the unit vector from the sprocket edge toward the far
// edge. Together with Transport it forms the output frame's x and y axes.
func (l Layout) Across(reverse bool) geometry.Point2D {
	v := l.Transport()
	u := geometry.Point2D{X: v.Y, Y: -v.X}
	if reverse {
		u = u.Scale(-1)
	}
	return u
}

// SprocketSide returns the image side holding the perforations.
func SprocketSide(l Layout, reverse bool) Side {
	var s Side
	switch l {
	case TopToBottom:
		s = SideLeft
	case BottomToTop:
		s = SideRight
	case LeftToRight:
		s = SideBottom
	case RightToLeft:
		s = SideTop
	}
	if reverse {
		s = s.Opposite()
	}
	return s
}

// Opposite returns the facing side.
func (s Side) Opposite() Side {
	switch s {
	case SideLeft:
		return SideRight
	case SideRight:
		return SideLeft
	case SideTop:
		return SideBottom
	case SideBottom:
		return SideTop
	}
	return s
}
