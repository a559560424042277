package hough

// Sample is one point of a model outline relative to the model centre,
// with the gradient bucket an edge pixel there should show.
type Sample struct {
	DRow, DCol float64
	Bucket     uint8
}

// Model is a parametric outline.
type Model interface {
	// Perimeter returns the outline samples.
	Perimeter() []Sample
	// Distance is the signed distance from an offset to the outline,
	// negative inside.
	Distance(dRow, dCol float64) float64
}
