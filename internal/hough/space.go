package hough

import (
	"math"

	"frame-extractor/internal/raster"
	"frame-extractor/pkg/geometry"
)

// Space is a vote accumulator over a Window quantized into square cells.
type Space struct {
	Window    Window
	Quant     float64
	Threshold int
	CellRows  int
	CellCols  int

	votes        []int32
	contributors map[int][]raster.Point
}

func newSpace(w Window, quant float64, threshold int) *Space {
	s := &Space{
		Window:       w,
		Quant:        quant,
		Threshold:    threshold,
		contributors: make(map[int][]raster.Point),
	}
	if !w.Empty() {
		s.CellRows = int(math.Ceil(float64(w.RowEnd-w.RowStart) / quant))
		s.CellCols = int(math.Ceil(float64(w.ColEnd-w.ColStart) / quant))
	}
	s.votes = make([]int32, s.CellRows*s.CellCols)
	return s
}

// Votes returns the count in cell (i, j).
func (s *Space) Votes(i, j int) int {
	if i < 0 || i >= s.CellRows || j < 0 || j >= s.CellCols {
		return 0
	}
	return int(s.votes[i*s.CellCols+j])
}

// MaxVotes returns the highest count in the space.
func (s *Space) MaxVotes() int {
	var m int32
	for _, v := range s.votes {
		m = max(m, v)
	}
	return int(m)
}

// CellCenter returns the image position of a cell's centre.
func (s *Space) CellCenter(i, j int) geometry.Point2D {
	return geometry.Point2D{
		X: float64(s.Window.ColStart) + (float64(j)+0.5)*s.Quant,
		Y: float64(s.Window.RowStart) + (float64(i)+0.5)*s.Quant,
	}
}

// Entry is a cell at or above the threshold.
type Entry struct {
	I, J         int
	Row, Col     float64 // Cell centre in image coordinates
	Votes        int
	Contributors []raster.Point
}

// Point returns the entry position as (x=col, y=row).
func (e Entry) Point() geometry.Point2D {
	return geometry.Point2D{X: e.Col, Y: e.Row}
}

// Entries lists thresholded cells in row-major order.
func (s *Space) Entries() []Entry {
	var out []Entry
	for cell, v := range s.votes {
		if int(v) < s.Threshold {
			continue
		}
		i, j := cell/s.CellCols, cell%s.CellCols
		c := s.CellCenter(i, j)
		out = append(out, Entry{
			I: i, J: j,
			Row: c.Y, Col: c.X,
			Votes:        int(v),
			Contributors: s.contributors[cell],
		})
	}
	return out
}
