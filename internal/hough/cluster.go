package hough

import (
	"sort"

	"frame-extractor/internal/raster"
	"frame-extractor/pkg/geometry"
)

// Cluster is a group of entries linked by single-linkage merging.
type Cluster struct {
	Entries  []Entry
	Row, Col float64 // Vote-weighted centroid
	Votes    int
}

// Center returns the centroid as (x=col, y=row).
func (c *Cluster) Center() geometry.Point2D {
	return geometry.Point2D{X: c.Col, Y: c.Row}
}

// Contributors returns the distinct edge pixels that voted for any member,
// in row-major order.
func (c *Cluster) Contributors() []raster.Point {
	seen := make(map[raster.Point]bool)
	var pts []raster.Point
	for _, e := range c.Entries {
		for _, p := range e.Contributors {
			if !seen[p] {
				seen[p] = true
				pts = append(pts, p)
			}
		}
	}
	sort.Slice(pts, func(a, b int) bool {
		if pts[a].Row != pts[b].Row {
			return pts[a].Row < pts[b].Row
		}
		return pts[a].Col < pts[b].Col
	})
	return pts
}

func newCluster(entries []Entry) *Cluster {
	c := &Cluster{Entries: entries}
	var sr, sc float64
	for _, e := range entries {
		w := float64(e.Votes)
		sr += w * e.Row
		sc += w * e.Col
		c.Votes += e.Votes
	}
	if c.Votes > 0 {
		c.Row = sr / float64(c.Votes)
		c.Col = sc / float64(c.Votes)
	}
	return c
}

// ClusterEntries merges entries closer than maxDist into connected
// components. Two entries exactly maxDist apart are not linked. Clusters
// are returned in order of their first entry, members in input order.
func ClusterEntries(entries []Entry, maxDist float64) []*Cluster {
	uf := newUnionFind(len(entries))
	limit := maxDist * maxDist
	for a := 0; a < len(entries); a++ {
		for b := a + 1; b < len(entries); b++ {
			dr := entries[a].Row - entries[b].Row
			dc := entries[a].Col - entries[b].Col
			if dr*dr+dc*dc < limit {
				uf.union(a, b)
			}
		}
	}

	groups := make(map[int][]Entry)
	var order []int
	for i, e := range entries {
		root := uf.find(i)
		if _, ok := groups[root]; !ok {
			order = append(order, root)
		}
		groups[root] = append(groups[root], e)
	}

	clusters := make([]*Cluster, 0, len(order))
	for _, root := range order {
		clusters = append(clusters, newCluster(groups[root]))
	}
	return clusters
}

// Recluster merges clusters whose closest members are less than maxDist
// apart. Applied to the output of ClusterEntries with the same maxDist it
// returns an equivalent set.
func Recluster(clusters []*Cluster, maxDist float64) []*Cluster {
	uf := newUnionFind(len(clusters))
	for a := 0; a < len(clusters); a++ {
		for b := a + 1; b < len(clusters); b++ {
			if linked(clusters[a], clusters[b], maxDist) {
				uf.union(a, b)
			}
		}
	}

	groups := make(map[int][]*Cluster)
	var order []int
	for i, c := range clusters {
		root := uf.find(i)
		if _, ok := groups[root]; !ok {
			order = append(order, root)
		}
		groups[root] = append(groups[root], c)
	}

	out := make([]*Cluster, 0, len(order))
	for _, root := range order {
		g := groups[root]
		if len(g) == 1 {
			out = append(out, g[0])
			continue
		}
		var entries []Entry
		for _, c := range g {
			entries = append(entries, c.Entries...)
		}
		sort.SliceStable(entries, func(a, b int) bool {
			if entries[a].I != entries[b].I {
				return entries[a].I < entries[b].I
			}
			return entries[a].J < entries[b].J
		})
		out = append(out, newCluster(entries))
	}
	return out
}

func linked(a, b *Cluster, maxDist float64) bool {
	limit := maxDist * maxDist
	for _, ea := range a.Entries {
		for _, eb := range b.Entries {
			dr := ea.Row - eb.Row
			dc := ea.Col - eb.Col
			if dr*dr+dc*dc < limit {
				return true
			}
		}
	}
	return false
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

// union keeps the smaller index as root so group order follows input order.
func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
}
