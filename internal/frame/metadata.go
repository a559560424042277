package frame

// Metadata is what is recorded about each frame next to the images.
type Metadata struct {
	Index             int     `json:"index"`
	Filename          string  `json:"filename,omitempty"` // Empty when dropped
	DerivedResolution float64 `json:"derived_resolution"`
	Dropped           bool    `json:"dropped"`
	EdgePrint         string  `json:"edge_print,omitempty"`
}

// Metadata returns the record for f written as filename.
func (f *Frame) Metadata(filename string) Metadata {
	md := Metadata{
		Index:             f.Index,
		DerivedResolution: f.DerivedDPI,
		Dropped:           f.OutOfBounds,
		EdgePrint:         f.EdgePrint,
	}
	if !f.OutOfBounds {
		md.Filename = filename
	}
	return md
}
