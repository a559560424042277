// Command sprockettest locates the sprocket holes in one scan and prints
// the fits, the rejected candidates and the frame placements.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"strings"

	"frame-extractor/internal/config"
	"frame-extractor/internal/extract"
	"frame-extractor/internal/filmspec"
	"frame-extractor/internal/imageio"
	"frame-extractor/internal/logger"
)

func main() {
	imagePath := flag.String("image", "", "Path to film scan (TIFF, PNG, or JPEG)")
	dpi := flag.Float64("dpi", 0, "Scan DPI (default: TIFF resolution tag, else 3200)")
	film := flag.String("film", "super8", "Film type: super8 or 8mm")
	layout := flag.String("layout", "tb", "Film layout: lr, rl, tb or bt")
	threshold := flag.Int("ht", config.Default().HoughThreshold, "Hough vote threshold")
	verbose := flag.Bool("v", false, "Log pipeline stages")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: sprockettest -image <path> [-dpi 3200] [-film super8|8mm] [-layout tb]")
		os.Exit(1)
	}

	cfg := config.Default()
	cfg.HoughThreshold = *threshold
	var err error
	if cfg.FilmType, err = filmspec.ParseFilmType(*film); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.FilmLayout, err = filmspec.ParseLayout(*layout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	switch {
	case *dpi > 0:
		cfg.ResolutionDPI = *dpi
	case imageio.IsTIFF(*imagePath):
		if r, err := imageio.ResolutionFromTIFF(*imagePath); err == nil && r > 0 {
			cfg.ResolutionDPI = r
		}
	}

	log := logger.Nop()
	if *verbose {
		log = logger.NewConsole(logger.ParseLevel(true, false))
	}
	x, err := extract.New(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid settings: %v\n", err)
		os.Exit(1)
	}
	defer x.Close()

	src, err := imageio.Load(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load image: %v\n", err)
		os.Exit(1)
	}
	defer src.Close()
	fmt.Printf("Loaded image: %dx%d pixels, %d channels\n", src.Cols(), src.Rows(), src.Channels())
	fmt.Printf("DPI: %.0f  Film: %s  Layout: %s\n", cfg.ResolutionDPI, cfg.FilmType, cfg.FilmLayout)

	geom, _ := cfg.Derive()
	fmt.Printf("\nGeometry:\n")
	fmt.Printf("  Hole: %.1f x %.1f px, corner %.1f px\n", geom.HoleWidthPx, geom.HoleHeightPx, geom.HoleCornerPx)
	fmt.Printf("  Edge to hole centre: %.1f px (search %.1f-%.1f)\n", geom.EdgeToCenterPx, geom.SearchClosestPx, geom.SearchFurthestPx)
	fmt.Printf("  Pitch: %.1f px  Min edge pixels: %d\n", geom.PitchPx, geom.MinNumPixels)

	fmt.Printf("\nLocating holes...\n")
	res, locErr := x.Locate(src)
	if res != nil && res.SprocketEdge != nil {
		fmt.Printf("Sprocket edge: r=%.1f theta=%.4f (%d points)\n",
			res.SprocketEdge.Line.R, res.SprocketEdge.Line.Theta, len(res.SprocketEdge.Points))
	}
	if res != nil && res.FarEdge != nil {
		fmt.Printf("Far edge:      r=%.1f theta=%.4f (%d points)\n",
			res.FarEdge.Line.R, res.FarEdge.Line.Theta, len(res.FarEdge.Points))
	}
	if locErr != nil {
		fmt.Fprintf(os.Stderr, "Detection failed: %v\n", locErr)
	}
	if res == nil || res.Detection == nil {
		os.Exit(1)
	}
	det := res.Detection

	fmt.Printf("\n%d Hough peaks, %d clusters (%d outside the edges, %d off the hole line)\n",
		len(det.Entries), len(det.Clusters), len(det.OutsideEdges), len(det.OffLine))

	fmt.Printf("\nAccepted %d holes:\n", len(det.Fits))
	fmt.Printf("%-4s %10s %10s %8s %8s %8s %8s\n", "#", "Row", "Col", "Scale", "Rot°", "Edges", "StdDev")
	fmt.Println(strings.Repeat("-", 62))
	for i, f := range det.Fits {
		fmt.Printf("%-4d %10.1f %10.1f %8.3f %8.2f %8d %8.2f\n",
			i, f.Row, f.Col, f.Scale, f.Rotation, len(f.Edges), f.StdDev)
	}

	if len(det.Rejected) > 0 {
		fmt.Printf("\nRejected %d candidates:\n", len(det.Rejected))
		for _, r := range det.Rejected {
			c := r.Cluster.Center()
			fmt.Printf("  (%.1f, %.1f): %s\n", c.Y, c.X, r.Reason)
		}
	}

	fmt.Printf("\nFrames: %d\n", len(res.Frames))
	for _, f := range res.Frames {
		oob := ""
		if f.CheckBounds(src.Rows(), src.Cols()) {
			oob = "  out of bounds"
		}
		fmt.Printf("  %02d centre (%.1f, %.1f) rot %.3f° scale %.4f dpi %.0f%s\n",
			f.Index, f.Center.Y, f.Center.X, f.Rotation*180/math.Pi, f.Scale, f.DerivedDPI, oob)
	}
}
