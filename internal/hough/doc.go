// Package hough implements a generalized Hough transform for a single
// parametric outline.
//
// A Model describes the outline as perimeter samples, each carrying the
// gradient direction an edge pixel at that point is expected to have. A
// Transform turns the samples into a per-direction lookup of quantized
// centre offsets once, then lets every edge pixel vote for the cells its
// direction allows. Cells at or above the threshold become Entries, which
// are merged into Clusters and refined into Fits with a derivative-free
// minimiser.
//
// Cell indices are relative to the search window, so shifting every edge
// pixel and the window by the same amount shifts every result by exactly
// that amount.
package hough
