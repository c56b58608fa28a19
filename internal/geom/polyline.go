package geom

import "math"

// Polyline is an ordered list of points where every consecutive pair is
// axis-aligned. A valid polyline has at least two points and no two
// consecutive points are equal.
type Polyline []Point

// Valid reports whether pl satisfies the polyline invariants.
func (pl Polyline) Valid() bool {
	if len(pl) < 2 {
		return false
	}
	for i := 1; i < len(pl); i++ {
		a, b := pl[i-1], pl[i]
		if a.Eq(b) {
			return false
		}
		if math.Abs(a.X-b.X) >= Eps && math.Abs(a.Y-b.Y) >= Eps {
			return false
		}
	}
	return true
}

// Length is the total Manhattan length of pl.
func (pl Polyline) Length() float64 {
	total := 0.0
	for i := 1; i < len(pl); i++ {
		total += Manhattan(pl[i-1], pl[i])
	}
	return total
}

// Bounds returns the bounding box of pl. An empty polyline yields a zero Rect.
func (pl Polyline) Bounds() Rect {
	if len(pl) == 0 {
		return Rect{}
	}
	x0, y0 := pl[0].X, pl[0].Y
	x1, y1 := x0, y0
	for _, p := range pl[1:] {
		x0 = math.Min(x0, p.X)
		y0 = math.Min(y0, p.Y)
		x1 = math.Max(x1, p.X)
		y1 = math.Max(y1, p.Y)
	}
	return Rect{x0, y0, x1 - x0, y1 - y0}
}

// Equal reports whether pl and other hold the same points in the same order.
func (pl Polyline) Equal(other Polyline) bool {
	if len(pl) != len(other) {
		return false
	}
	for i := range pl {
		if !pl[i].Eq(other[i]) {
			return false
		}
	}
	return true
}

// Midpoint returns the point halfway along pl by arc length. A single-point
// polyline yields that point.
func (pl Polyline) Midpoint() Point {
	if len(pl) == 0 {
		return Point{}
	}
	half := pl.Length() / 2
	for i := 1; i < len(pl); i++ {
		a, b := pl[i-1], pl[i]
		seg := Manhattan(a, b)
		if seg > 0 && half <= seg {
			t := half / seg
			return Point{a.X + (b.X-a.X)*t, a.Y + (b.Y-a.Y)*t}
		}
		half -= seg
	}
	return pl[len(pl)-1]
}
