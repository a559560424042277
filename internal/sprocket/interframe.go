package sprocket

import (
	"math"
	"sort"

	"frame-extractor/internal/hough"
	"frame-extractor/pkg/geometry"
)

// Rank scores fits: sorted by ascending residual deviation each gains
// N-position, then sorted by descending edge count each gains N-position
// again. Higher is more trustworthy.
func Rank(fits []*hough.Fit) {
	n := len(fits)
	order := append([]*hough.Fit(nil), fits...)

	sort.SliceStable(order, func(a, b int) bool { return order[a].StdDev < order[b].StdDev })
	for i, f := range order {
		f.Rank = n - i
	}
	sort.SliceStable(order, func(a, b int) bool { return len(order[a].Edges) > len(order[b].Edges) })
	for i, f := range order {
		f.Rank += n - i
	}
}

// SpacingParams describes the expected hole sequence.
type SpacingParams struct {
	Axis       geometry.Point2D // Transport direction
	PitchPx    float64
	Tolerance  float64 // Fraction of pitch a hole may sit off its slot
	Lo, Hi     float64 // Positions along Axis where a hole can be seen
	MaxRetries int     // Anchors discarded before giving up
}

// SpacingResult is the outcome of ValidateSpacing.
type SpacingResult struct {
	Accepted     []*hough.Fit // In transport order
	Discarded    []*hough.Fit
	AnchorsTried int
}

// ValidateSpacing assumes the best-ranked fit is a real hole and walks both
// ways along the transport axis, one pitch at a time, taking the
// best-ranked fit within tolerance of each slot. The sequence is accepted
// when at least half of the slots that fit in the image are filled.
// Otherwise the anchor is discarded and the next best tried. Running out
// of anchors yields an empty, non-error result.
func ValidateSpacing(fits []*hough.Fit, p SpacingParams) SpacingResult {
	Rank(fits)
	candidates := append([]*hough.Fit(nil), fits...)
	sort.SliceStable(candidates, func(a, b int) bool { return candidates[a].Rank > candidates[b].Rank })

	var res SpacingResult
	for attempt := 0; attempt <= p.MaxRetries && len(candidates) > 0; attempt++ {
		res.AnchorsTried++
		anchor := candidates[0]
		accepted, slots := walk(anchor, candidates, p)
		if 2*len(accepted) >= slots {
			res.Accepted = accepted
			res.Discarded = without(fits, accepted)
			SortTransport(res.Accepted, p.Axis)
			return res
		}
		candidates = candidates[1:]
	}
	res.Discarded = append([]*hough.Fit(nil), fits...)
	return res
}

// walk returns the fits matched to slots around anchor and the number of
// slots that lie within [Lo, Hi].
func walk(anchor *hough.Fit, candidates []*hough.Fit, p SpacingParams) ([]*hough.Fit, int) {
	pos := func(f *hough.Fit) float64 { return f.Center().Dot(p.Axis) }
	a := pos(anchor)
	tol := p.Tolerance * p.PitchPx

	slots := int(math.Floor((p.Hi-a)/p.PitchPx)) - int(math.Ceil((p.Lo-a)/p.PitchPx)) + 1
	used := map[*hough.Fit]bool{anchor: true}
	accepted := []*hough.Fit{anchor}

	for _, dir := range []float64{1, -1} {
		prev, gap := a, 0
		for {
			expected := prev + dir*p.PitchPx*float64(gap+1)
			if expected > p.Hi+tol || expected < p.Lo-tol {
				break
			}
			var best *hough.Fit
			for _, f := range candidates {
				if used[f] || math.Abs(pos(f)-expected) > tol {
					continue
				}
				if best == nil || f.Rank > best.Rank {
					best = f
				}
			}
			if best == nil {
				gap++
				continue
			}
			used[best] = true
			accepted = append(accepted, best)
			prev, gap = pos(best), 0
		}
	}
	return accepted, max(slots, 1)
}

func without(all, drop []*hough.Fit) []*hough.Fit {
	skip := make(map[*hough.Fit]bool, len(drop))
	for _, f := range drop {
		skip[f] = true
	}
	var out []*hough.Fit
	for _, f := range all {
		if !skip[f] {
			out = append(out, f)
		}
	}
	return out
}
