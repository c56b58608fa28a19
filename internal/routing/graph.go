package routing

import (
	"math"
	"sort"

	"reqflow/internal/geom"
)

// arc is a weighted, oriented edge of the grid graph.
type arc struct {
	to  int
	w   float64
	dir orientation
}

type orientation uint8

const (
	dirNone orientation = iota
	dirH
	dirV
)

// Graph is the sparse visibility graph for one routing call. Node ids index
// into Nodes; Adj[id] lists the arcs leaving that node. A Graph is rebuilt
// for every edge and never shared between frames.
type Graph struct {
	Nodes []geom.Point
	adj   [][]arc
}

// Degree returns how many neighbours node id has.
func (g *Graph) Degree(id int) int { return len(g.adj[id]) }

// EdgeCount returns the number of undirected edges in g.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, a := range g.adj {
		n += len(a)
	}
	return n / 2
}

// GraphInput is everything the builder needs for one edge.
type GraphInput struct {
	StartAnchor geom.Point
	EndAnchor   geom.Point

	// Padded obstacles: grid points strictly inside them are dropped and
	// segments may not cross their interior.
	Padded []geom.Rect

	// Blockers stop segments but keep their grid points. The endpoint
	// nodes' own rects go here so a connector cannot run back through
	// the node it is attached to.
	Blockers []geom.Rect

	// Extra candidate lines, e.g. the padded outline of the endpoint nodes.
	ExtraXs []float64
	ExtraYs []float64

	// Area is the routable region. Grid lines outside it are discarded.
	Area geom.Rect
}

// BuildGraph forms the Cartesian grid of candidate lines, keeps every
// intersection that is not strictly inside a padded obstacle, and joins
// neighbouring intersections on shared rows and columns. It returns the
// node ids of the two anchors.
func BuildGraph(in GraphInput) (g *Graph, start, end int, err error) {
	xs := []float64{in.StartAnchor.X, in.EndAnchor.X, in.Area.Left(), in.Area.Right()}
	ys := []float64{in.StartAnchor.Y, in.EndAnchor.Y, in.Area.Top(), in.Area.Bottom()}
	for _, r := range in.Padded {
		xs = append(xs, r.Left(), r.Right())
		ys = append(ys, r.Top(), r.Bottom())
	}
	xs = append(xs, in.ExtraXs...)
	ys = append(ys, in.ExtraYs...)

	xs = clipSorted(uniqSortF(xs), in.Area.Left(), in.Area.Right())
	ys = clipSorted(uniqSortF(ys), in.Area.Top(), in.Area.Bottom())

	g = &Graph{}
	// grid[j][i] is the node id at (xs[i], ys[j]) or -1 when dropped.
	grid := make([][]int, len(ys))
	for j, y := range ys {
		grid[j] = make([]int, len(xs))
		for i, x := range xs {
			p := geom.Pt(x, y)
			if insideAny(p, in.Padded) {
				grid[j][i] = -1
				continue
			}
			grid[j][i] = len(g.Nodes)
			g.Nodes = append(g.Nodes, p)
		}
	}
	g.adj = make([][]arc, len(g.Nodes))

	blocking := make([]geom.Rect, 0, len(in.Padded)+len(in.Blockers))
	blocking = append(blocking, in.Padded...)
	blocking = append(blocking, in.Blockers...)

	link := func(a, b int, dir orientation) {
		pa, pb := g.Nodes[a], g.Nodes[b]
		if geom.SegmentBlockedAny(pa, pb, blocking) {
			return
		}
		w := geom.Manhattan(pa, pb)
		g.adj[a] = append(g.adj[a], arc{to: b, w: w, dir: dir})
		g.adj[b] = append(g.adj[b], arc{to: a, w: w, dir: dir})
	}

	// Rows: only consecutive intersections are joined, so a dropped point
	// always splits the line.
	for j := range ys {
		for i := 0; i+1 < len(xs); i++ {
			a, b := grid[j][i], grid[j][i+1]
			if a >= 0 && b >= 0 {
				link(a, b, dirH)
			}
		}
	}
	for i := range xs {
		for j := 0; j+1 < len(ys); j++ {
			a, b := grid[j][i], grid[j+1][i]
			if a >= 0 && b >= 0 {
				link(a, b, dirV)
			}
		}
	}

	start = lookup(grid, xs, ys, in.StartAnchor)
	end = lookup(grid, xs, ys, in.EndAnchor)
	if start < 0 || end < 0 {
		return g, -1, -1, ErrGraphBuildFailed
	}
	return g, start, end, nil
}

func insideAny(p geom.Point, rects []geom.Rect) bool {
	for _, r := range rects {
		if r.StrictlyContains(p) {
			return true
		}
	}
	return false
}

func lookup(grid [][]int, xs, ys []float64, p geom.Point) int {
	i := indexOf(xs, p.X)
	j := indexOf(ys, p.Y)
	if i < 0 || j < 0 {
		return -1
	}
	return grid[j][i]
}

func indexOf(sorted []float64, v float64) int {
	k := sort.SearchFloat64s(sorted, v-geom.Eps)
	if k < len(sorted) && math.Abs(sorted[k]-v) < geom.Eps {
		return k
	}
	return -1
}

// uniqSortF sorts vals and drops values within Eps of their predecessor.
func uniqSortF(vals []float64) []float64 {
	sort.Float64s(vals)
	out := vals[:0]
	for _, v := range vals {
		if len(out) > 0 && math.Abs(v-out[len(out)-1]) < geom.Eps {
			continue
		}
		out = append(out, v)
	}
	return out
}

func clipSorted(vals []float64, lo, hi float64) []float64 {
	out := vals[:0]
	for _, v := range vals {
		if v < lo-geom.Eps || v > hi+geom.Eps {
			continue
		}
		out = append(out, v)
	}
	return out
}
