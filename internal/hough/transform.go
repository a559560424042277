package hough

import (
	"math"
	"runtime"
	"sync"

	"frame-extractor/internal/raster"
)

type offset struct {
	dr, dc int // In cells
}

// Transform is a voting lookup built once per model and quantization.
// It is read-only after construction and safe for concurrent use.
type Transform struct {
	model     Model
	quant     float64
	tolerance int
	lut       [raster.Buckets][]offset
	reach     int // Largest |offset| in cells
}

// NewTransform precomputes, for each of the 256 gradient directions, the
// deduplicated list of centre offsets whose expected direction lies within
// toleranceDeg.
func NewTransform(model Model, quantFactor, toleranceDeg float64) *Transform {
	t := &Transform{
		model:     model,
		quant:     quantFactor,
		tolerance: int(math.Round(toleranceDeg * raster.Buckets / 360)),
	}

	samples := model.Perimeter()
	for b := 0; b < raster.Buckets; b++ {
		seen := make(map[offset]bool)
		for _, s := range samples {
			if raster.BucketDistance(uint8(b), s.Bucket) > t.tolerance {
				continue
			}
			o := offset{dr: int(math.Round(s.DRow / quantFactor)), dc: int(math.Round(s.DCol / quantFactor))}
			if seen[o] {
				continue
			}
			seen[o] = true
			t.lut[b] = append(t.lut[b], o)
			t.reach = max(t.reach, abs(o.dr), abs(o.dc))
		}
	}
	return t
}

// Model returns the outline the transform votes for.
func (t *Transform) Model() Model { return t.model }

// Quant returns the accumulator cell size in pixels.
func (t *Transform) Quant() float64 { return t.quant }

// Offsets returns the number of template offsets for a gradient bucket.
func (t *Transform) Offsets(bucket uint8) int { return len(t.lut[bucket]) }

// Window bounds the candidate centre positions, half-open in both axes.
type Window struct {
	RowStart, RowEnd int
	ColStart, ColEnd int
}

// Clamp restricts the window to an image.
func (w Window) Clamp(rows, cols int) Window {
	w.RowStart = max(0, w.RowStart)
	w.ColStart = max(0, w.ColStart)
	w.RowEnd = min(rows, w.RowEnd)
	w.ColEnd = min(cols, w.ColEnd)
	return w
}

// Empty reports whether the window contains no pixels.
func (w Window) Empty() bool {
	return w.RowEnd <= w.RowStart || w.ColEnd <= w.ColStart
}

// Shift translates the window.
func (w Window) Shift(dRow, dCol int) Window {
	return Window{
		RowStart: w.RowStart + dRow, RowEnd: w.RowEnd + dRow,
		ColStart: w.ColStart + dCol, ColEnd: w.ColEnd + dCol,
	}
}

// Transform votes sequentially.
func (t *Transform) Transform(edges *raster.EdgeMap, grad *raster.GradientMap, threshold int, w Window) (*Space, error) {
	return t.TransformParallel(edges, grad, threshold, w, 1)
}

// TransformParallel splits the scanned rows into bands, one accumulator per
// band, and merges them by summation. Contributors are merged in band
// order, so the result equals the sequential one. workers <= 0 uses
// GOMAXPROCS.
func (t *Transform) TransformParallel(edges *raster.EdgeMap, grad *raster.GradientMap, threshold int, w Window, workers int) (*Space, error) {
	if err := raster.CheckPair(edges, grad); err != nil {
		return nil, err
	}
	s := newSpace(w, t.quant, threshold)
	if s.CellRows == 0 || s.CellCols == 0 {
		return s, nil
	}

	// Only pixels within reach of the window can vote into it.
	reachPx := int(math.Ceil(float64(t.reach+1) * t.quant))
	rowLo := max(0, w.RowStart-reachPx)
	rowHi := min(edges.Rows, w.RowEnd+reachPx)
	colLo := max(0, w.ColStart-reachPx)
	colHi := min(edges.Cols, w.ColEnd+reachPx)
	if rowHi <= rowLo || colHi <= colLo {
		return s, nil
	}

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	bands := splitBands(rowLo, rowHi, workers)

	// Pass 1: count.
	partial := make([][]int32, len(bands))
	var wg sync.WaitGroup
	for i, b := range bands {
		wg.Add(1)
		go func(idx int, b band) {
			defer wg.Done()
			counts := make([]int32, len(s.votes))
			t.vote(edges, grad, s, b, colLo, colHi, func(cell int, _ raster.Point) {
				counts[cell]++
			})
			partial[idx] = counts
		}(i, b)
	}
	wg.Wait()
	for _, counts := range partial {
		for cell, v := range counts {
			s.votes[cell] += v
		}
	}

	// Pass 2: record contributors of cells that reached the threshold.
	found := make([]map[int][]raster.Point, len(bands))
	for i, b := range bands {
		wg.Add(1)
		go func(idx int, b band) {
			defer wg.Done()
			m := make(map[int][]raster.Point)
			t.vote(edges, grad, s, b, colLo, colHi, func(cell int, p raster.Point) {
				if int(s.votes[cell]) >= threshold {
					m[cell] = append(m[cell], p)
				}
			})
			found[idx] = m
		}(i, b)
	}
	wg.Wait()
	for _, m := range found {
		for cell, pts := range m {
			s.contributors[cell] = append(s.contributors[cell], pts...)
		}
	}

	return s, nil
}

// vote calls fn for every (cell, pixel) vote cast by edge pixels in the band.
func (t *Transform) vote(edges *raster.EdgeMap, grad *raster.GradientMap, s *Space, b band, colLo, colHi int, fn func(cell int, p raster.Point)) {
	w := s.Window
	for r := b.lo; r < b.hi; r++ {
		pi := int(math.Floor(float64(r-w.RowStart) / t.quant))
		base := r * edges.Cols
		for c := colLo; c < colHi; c++ {
			if edges.Pix[base+c] == 0 {
				continue
			}
			pj := int(math.Floor(float64(c-w.ColStart) / t.quant))
			for _, o := range t.lut[grad.Dir[base+c]] {
				i, j := pi-o.dr, pj-o.dc
				if i < 0 || i >= s.CellRows || j < 0 || j >= s.CellCols {
					continue
				}
				fn(i*s.CellCols+j, raster.Point{Row: r, Col: c})
			}
		}
	}
}

type band struct{ lo, hi int }

func splitBands(lo, hi, n int) []band {
	rows := hi - lo
	n = max(1, min(n, rows))
	bands := make([]band, 0, n)
	for i := 0; i < n; i++ {
		bands = append(bands, band{lo: lo + rows*i/n, hi: lo + rows*(i+1)/n})
	}
	return bands
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
