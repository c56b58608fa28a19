package placement

import (
	"errors"
	"math"

	"reqflow/internal/geom"
)

// ErrPlacementExhausted is reported when the ring search reaches its maximum
// radius without finding a free cell. Callers still get a usable point.
var ErrPlacementExhausted = errors.New("placement: no free cell within search radius")

// Resolver finds the nearest grid-aligned, in-bounds position for a node
// that does not overlap any other node.
type Resolver struct {
	GridSize  float64
	NodeSize  geom.Size
	MaxRadius int // in grid steps
}

// NewResolver creates a Resolver.
func NewResolver(gridSize float64, nodeSize geom.Size, maxRadius int) *Resolver {
	return &Resolver{GridSize: gridSize, NodeSize: nodeSize, MaxRadius: maxRadius}
}

// Placement is the outcome of one resolve call.
type Placement struct {
	Point  geom.Point `json:"point"`
	Radius int        `json:"radius"` // ring the point was found on, 0 = as snapped
	Err    error      `json:"-"`      // ErrPlacementExhausted when no free cell was found
}

// ResolvePosition returns the resolved top-left position for the node ownID.
func (r *Resolver) ResolvePosition(desired geom.Point, ownID string, others []geom.Obstacle, bounds geom.Size) geom.Point {
	return r.Resolve(desired, ownID, others, bounds).Point
}

// Resolve snaps and clamps desired, then searches square rings of growing
// radius around it. Rings are scanned row by row, top to bottom, and left to
// right within a row. When every ring up to MaxRadius is taken the clamped
// point is returned with ErrPlacementExhausted.
func (r *Resolver) Resolve(desired geom.Point, ownID string, others []geom.Obstacle, bounds geom.Size) Placement {
	rects := make([]geom.Rect, 0, len(others))
	for _, o := range others {
		if o.ID != "" && o.ID == ownID {
			continue
		}
		rects = append(rects, o.Rect)
	}

	base := r.clamp(r.Snap(desired), bounds)
	if r.free(base, rects) {
		return Placement{Point: base}
	}

	g := r.GridSize
	if g <= 0 {
		g = 1
	}
	for rad := 1; rad <= r.MaxRadius; rad++ {
		for dy := -rad; dy <= rad; dy++ {
			for dx := -rad; dx <= rad; dx++ {
				if max(abs(dx), abs(dy)) != rad {
					continue
				}
				cand := base.Add(float64(dx)*g, float64(dy)*g)
				cand = r.clamp(r.Snap(cand), bounds)
				if r.free(cand, rects) {
					return Placement{Point: cand, Radius: rad}
				}
			}
		}
	}
	return Placement{Point: base, Err: ErrPlacementExhausted}
}

// Snap rounds p to the nearest grid intersection.
func (r *Resolver) Snap(p geom.Point) geom.Point {
	return geom.Pt(snap(p.X, r.GridSize), snap(p.Y, r.GridSize))
}

func (r *Resolver) clamp(p geom.Point, bounds geom.Size) geom.Point {
	p.X = math.Max(0, p.X)
	p.Y = math.Max(0, p.Y)
	if bounds.Valid() {
		p.X = math.Min(p.X, math.Max(0, bounds.W-r.NodeSize.W))
		p.Y = math.Min(p.Y, math.Max(0, bounds.H-r.NodeSize.H))
	}
	return p
}

func (r *Resolver) free(p geom.Point, rects []geom.Rect) bool {
	cand := geom.R(p.X, p.Y, r.NodeSize.W, r.NodeSize.H)
	for _, o := range rects {
		if cand.Overlaps(o) {
			return false
		}
	}
	return true
}

func snap(v, grid float64) float64 {
	if grid <= 0 {
		return v
	}
	return math.Round(v/grid) * grid
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
