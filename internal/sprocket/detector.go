// Package sprocket locates perforations in an edge map: Hough voting
// against the hole outline, clustering, pruning against the film edges,
// a trimmed line fit through the candidates, per-hole refinement and an
// optional spacing check.
package sprocket

import (
	"errors"
	"fmt"
	"sort"

	"frame-extractor/internal/config"
	"frame-extractor/internal/filmedge"
	"frame-extractor/internal/filmspec"
	"frame-extractor/internal/hough"
	"frame-extractor/internal/linefit"
	"frame-extractor/internal/logger"
	"frame-extractor/internal/raster"
	"frame-extractor/pkg/geometry"
)

const component = "sprocket"

// ErrGeometryNotFound is returned when no hole candidate survives pruning
// or the line fit through the candidates cannot be made.
var ErrGeometryNotFound = errors.New("sprocket geometry not found")

// Scale limits for an accepted hole fit.
const (
	MinFitScale = 0.8
	MaxFitScale = 1.25
)

// Rejection records a candidate dropped after clustering.
type Rejection struct {
	Cluster *hough.Cluster
	Fit     *hough.Fit // Nil when the fit itself failed
	Reason  string
}

// Result holds every intermediate a caller may want to inspect or draw.
type Result struct {
	Window   hough.Window
	Entries  []hough.Entry
	Clusters []*hough.Cluster // Survivors of edge pruning, before the line trim

	OutsideEdges []*hough.Cluster // Pruned against the film edges
	OffLine      []*hough.Cluster // Removed by the line trim
	HoleLine     geometry.PolarLine

	Fits     []*hough.Fit // In transport order
	Rejected []Rejection
}

// Detector is built once per configuration and reused across scans.
type Detector struct {
	cfg       config.Config
	geom      config.Geometry
	model     *HoleModel
	transform *hough.Transform
	side      filmspec.Side
	log       *logger.Logger
}

// NewDetector validates cfg and precomputes the voting lookup.
func NewDetector(cfg config.Config, log *logger.Logger) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	geom, err := cfg.Derive()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}

	model := NewHoleModel(geom, cfg.FilmLayout.IsVertical())
	return &Detector{
		cfg:       cfg,
		geom:      geom,
		model:     model,
		transform: hough.NewTransform(model, cfg.QuantFactor, cfg.DirectionToleranceDeg),
		side:      filmspec.SprocketSide(cfg.FilmLayout, cfg.ReverseImage),
		log:       log,
	}, nil
}

// Geometry returns the derived pixel geometry.
func (d *Detector) Geometry() config.Geometry { return d.geom }

// Model returns the hole outline.
func (d *Detector) Model() *HoleModel { return d.model }

// SprocketSide returns the image side holding the perforations.
func (d *Detector) SprocketSide() filmspec.Side { return d.side }

// Locate finds the holes. far may be nil when the far edge was not found.
// ErrGeometryNotFound is returned with a partial Result for diagnostics.
func (d *Detector) Locate(edges *raster.EdgeMap, grad *raster.GradientMap, sprocketEdge, far *filmedge.FilmEdge) (*Result, error) {
	if err := raster.CheckPair(edges, grad); err != nil {
		return nil, err
	}
	if sprocketEdge == nil {
		return nil, fmt.Errorf("%w: no sprocket edge", ErrGeometryNotFound)
	}

	res := &Result{Window: d.searchWindow(sprocketEdge, edges.Rows, edges.Cols)}
	if res.Window.Empty() {
		return res, fmt.Errorf("%w: search window outside the image", ErrGeometryNotFound)
	}

	// Step 1: vote
	done := d.log.Timed(component, "hough transform")
	space, err := d.transform.TransformParallel(edges, grad, d.cfg.HoughThreshold, res.Window, d.cfg.Workers)
	done()
	if err != nil {
		return nil, err
	}
	res.Entries = space.Entries()
	d.log.Debug(component, "voting complete", logger.Fields{
		"entries": len(res.Entries), "max_votes": space.MaxVotes(),
	})

	// Step 2: cluster and prune against the film edges
	clusters := hough.ClusterEntries(res.Entries, d.geom.ClusterDistPx)
	res.Clusters, res.OutsideEdges = d.pruneOutsideEdges(clusters, sprocketEdge, far)
	if len(res.Clusters) == 0 {
		return res, fmt.Errorf("%w: none of %d clusters lie between the film edges", ErrGeometryNotFound, len(clusters))
	}

	// Step 3: trimmed line through the cluster centres
	kept, err := d.trimToLine(res)
	if err != nil {
		return res, err
	}

	// Step 4: refine each survivor
	fits := d.refine(kept, res)

	// Step 5: sequence check
	if d.cfg.AllowInterframeGeometry && len(fits) > 0 {
		lo, hi := d.transportRange(edges.Rows, edges.Cols)
		v := ValidateSpacing(fits, SpacingParams{
			Axis:       d.cfg.FilmLayout.Transport(),
			PitchPx:    d.geom.PitchPx,
			Tolerance:  d.cfg.InterframeTolerance,
			Lo:         lo,
			Hi:         hi,
			MaxRetries: d.cfg.MaxAnchorRetries,
		})
		for _, f := range v.Discarded {
			res.Rejected = append(res.Rejected, Rejection{Cluster: f.Cluster, Fit: f, Reason: "inconsistent hole spacing"})
		}
		if len(v.Accepted) == 0 {
			d.log.Warning(component, "no consistent hole sequence", logger.Fields{"anchors_tried": v.AnchorsTried})
		}
		fits = v.Accepted
	}

	SortTransport(fits, d.cfg.FilmLayout.Transport())
	res.Fits = fits
	d.log.Info(component, "holes located", logger.Fields{
		"fits": len(fits), "rejected": len(res.Rejected),
	})
	return res, nil
}

// searchWindow bounds hole centres to the band beside the sprocket edge.
func (d *Detector) searchWindow(e *filmedge.FilmEdge, rows, cols int) hough.Window {
	closest, furthest := d.geom.SearchClosestPx, d.geom.SearchFurthestPx
	w := hough.Window{RowEnd: rows, ColEnd: cols}
	switch d.side {
	case filmspec.SideLeft:
		w.ColStart = int(e.MostLeft.X + closest)
		w.ColEnd = int(e.MostRight.X+furthest) + 1
	case filmspec.SideRight:
		w.ColStart = int(e.MostLeft.X - furthest)
		w.ColEnd = int(e.MostRight.X-closest) + 1
	case filmspec.SideTop:
		w.RowStart = int(e.MostTop.Y + closest)
		w.RowEnd = int(e.MostBottom.Y+furthest) + 1
	case filmspec.SideBottom:
		w.RowStart = int(e.MostTop.Y - furthest)
		w.RowEnd = int(e.MostBottom.Y-closest) + 1
	}
	return w.Clamp(rows, cols)
}

// pruneOutsideEdges keeps clusters between the film edges whose distance
// from the sprocket edge is within the nominal hole band.
func (d *Detector) pruneOutsideEdges(clusters []*hough.Cluster, sprocketEdge, far *filmedge.FilmEdge) (kept, removed []*hough.Cluster) {
	across := d.cfg.FilmLayout.Across(d.cfg.ReverseImage)
	for _, c := range clusters {
		p := c.Center()
		onEdge := sprocketEdge.Line.Closest(p)
		distToClose := p.Distance(onEdge)

		var wrongSide bool
		if far != nil {
			wrongSide = far.Line.Distance(p) >= far.Line.Distance(onEdge)
		} else {
			wrongSide = p.Sub(onEdge).Dot(across) <= 0
		}

		if wrongSide || distToClose < d.geom.PruneClosestPx || distToClose > d.geom.PruneFurthestPx {
			removed = append(removed, c)
			continue
		}
		kept = append(kept, c)
	}
	return kept, removed
}

func (d *Detector) fitOptions() linefit.Options {
	o := linefit.DefaultOptions()
	o.MaxIterations = d.cfg.MaxFitIterations
	o.MaxEvaluations = d.cfg.MaxFitEvaluations
	return o
}

// trimToLine drops clusters further than MaxLineDistance from the line
// through the others.
func (d *Detector) trimToLine(res *Result) ([]*hough.Cluster, error) {
	pts := make([]geometry.Point2D, len(res.Clusters))
	for i, c := range res.Clusters {
		pts[i] = c.Center()
	}
	tr, err := linefit.Trim(pts, d.geom.MaxLineDistance, d.fitOptions())
	if err != nil {
		return nil, fmt.Errorf("%w: hole line fit: %v", ErrGeometryNotFound, err)
	}
	res.HoleLine = tr.Line
	for _, idx := range tr.Removed {
		res.OffLine = append(res.OffLine, res.Clusters[idx])
	}
	kept := make([]*hough.Cluster, len(tr.Kept))
	for i, idx := range tr.Kept {
		kept[i] = res.Clusters[idx]
	}
	d.log.Debug(component, "hole line fitted", logger.Fields{
		"kept": len(kept), "removed": len(tr.Removed), "fits": tr.Iterations,
	})
	return kept, nil
}

// refine fits every cluster and moves unusable fits to res.Rejected.
func (d *Detector) refine(clusters []*hough.Cluster, res *Result) []*hough.Fit {
	opts := hough.FitOptions{
		Quant:          d.cfg.QuantFactor,
		MaxIterations:  d.cfg.MaxFitIterations,
		MaxEvaluations: d.cfg.MaxFitEvaluations,
	}
	var fits []*hough.Fit
	for _, c := range clusters {
		fit, err := hough.BestFit(c, d.model, opts)
		switch {
		case err != nil:
			res.Rejected = append(res.Rejected, Rejection{Cluster: c, Reason: err.Error()})
		case len(fit.Edges) < d.geom.MinNumPixels:
			res.Rejected = append(res.Rejected, Rejection{Cluster: c, Fit: fit,
				Reason: fmt.Sprintf("%d edge pixels, need %d", len(fit.Edges), d.geom.MinNumPixels)})
		case fit.Scale < MinFitScale || fit.Scale > MaxFitScale:
			res.Rejected = append(res.Rejected, Rejection{Cluster: c, Fit: fit,
				Reason: fmt.Sprintf("scale %.3f outside [%.2f, %.2f]", fit.Scale, MinFitScale, MaxFitScale)})
		default:
			fits = append(fits, fit)
		}
	}
	return fits
}

// transportRange is the span of positions along the transport axis at
// which a whole hole fits inside the image.
func (d *Detector) transportRange(rows, cols int) (lo, hi float64) {
	v := d.cfg.FilmLayout.Transport()
	corners := []geometry.Point2D{{}, {X: float64(cols - 1)}, {Y: float64(rows - 1)}, {X: float64(cols - 1), Y: float64(rows - 1)}}
	lo, hi = corners[0].Dot(v), corners[0].Dot(v)
	for _, c := range corners[1:] {
		lo = min(lo, c.Dot(v))
		hi = max(hi, c.Dot(v))
	}
	half := d.geom.HoleHeightPx / 2
	return lo + half, hi - half
}

// SortTransport orders fits by their position along the transport axis.
func SortTransport(fits []*hough.Fit, axis geometry.Point2D) {
	sort.SliceStable(fits, func(a, b int) bool {
		return fits[a].Center().Dot(axis) < fits[b].Center().Dot(axis)
	})
}
