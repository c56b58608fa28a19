package routing

import (
	"math"

	"reqflow/internal/geom"
)

// BuildFallbackPath returns a plain orthogonal route from the bottom of src to
// the top of dst without looking at any obstacle. It is used when the grid
// graph cannot produce a route and always terminates.
//
//   - aligned, target below: one vertical segment
//   - target below the exit row: down, across, down
//   - otherwise: down, out to a side column beyond both nodes, up, across, down
//
// The side column sits pad further out than the nodes' extents plus gap, so
// the detour never runs along the padded outline of either node.
func BuildFallbackPath(start, end geom.Point, src, dst geom.Rect, gap, pad float64) geom.Polyline {
	if math.Abs(start.X-end.X) < geom.Eps && end.Y >= start.Y {
		return geom.Polyline{start, end}
	}

	exitY := start.Y + gap
	entryY := end.Y - gap

	if entryY >= exitY {
		midY := (exitY + entryY) / 2
		return collapse([]geom.Point{
			start,
			geom.Pt(start.X, midY),
			geom.Pt(end.X, midY),
			end,
		})
	}

	// Detour on the side the target lies, beyond whichever node reaches
	// further in that direction.
	var sideX float64
	if end.X >= start.X {
		sideX = math.Max(src.Right(), dst.Right()) + gap + pad
	} else {
		sideX = math.Min(src.Left(), dst.Left()) - gap - pad
	}
	return collapse([]geom.Point{
		start,
		geom.Pt(start.X, exitY),
		geom.Pt(sideX, exitY),
		geom.Pt(sideX, entryY),
		geom.Pt(end.X, entryY),
		end,
	})
}
