package routing

import (
	"math"

	"reqflow/internal/geom"
)

// Simplify attaches the true start and end to the routed anchor path and
// collapses every run of collinear points into its two ends. Consecutive
// duplicates are dropped, so the result is a valid polyline whenever start
// and end differ.
func Simplify(start geom.Point, route []geom.Point, end geom.Point) geom.Polyline {
	full := make([]geom.Point, 0, len(route)+2)
	full = append(full, start)
	full = append(full, route...)
	full = append(full, end)
	return collapse(full)
}

func collapse(pts []geom.Point) geom.Polyline {
	out := make(geom.Polyline, 0, len(pts))
	for _, p := range pts {
		if n := len(out); n > 0 && out[n-1].Eq(p) {
			continue
		}
		for len(out) >= 2 && collinear(out[len(out)-2], out[len(out)-1], p) {
			out = out[:len(out)-1]
		}
		out = append(out, p)
	}
	return out
}

func collinear(a, b, c geom.Point) bool {
	sameX := math.Abs(a.X-b.X) < geom.Eps && math.Abs(b.X-c.X) < geom.Eps
	sameY := math.Abs(a.Y-b.Y) < geom.Eps && math.Abs(b.Y-c.Y) < geom.Eps
	return sameX || sameY
}
