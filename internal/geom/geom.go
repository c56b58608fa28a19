package geom

import "math"

// Eps is the tolerance used when comparing world coordinates. It only
// absorbs float rounding: fractional coordinates a fraction of a unit apart
// are distinct lines, or a segment joining them would not be axis-aligned.
const Eps = 1e-6

// Point is a position in world coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{x, y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// Add returns p translated by (dx, dy).
func (p Point) Add(dx, dy float64) Point { return Point{p.X + dx, p.Y + dy} }

// Eq reports whether p and q are the same point within Eps.
func (p Point) Eq(q Point) bool {
	return math.Abs(p.X-q.X) < Eps && math.Abs(p.Y-q.Y) < Eps
}

// Manhattan returns the L1 distance between a and b.
func Manhattan(a, b Point) float64 {
	return math.Abs(a.X-b.X) + math.Abs(a.Y-b.Y)
}

// Size is a width/height pair, used for canvas bounds and node footprints.
type Size struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool { return s.W > 0 && s.H > 0 }

// Rect is an axis-aligned box: top-left corner plus dimensions.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// R is shorthand for Rect{x, y, w, h}.
func R(x, y, w, h float64) Rect { return Rect{X: x, Y: y, W: w, H: h} }

func (r Rect) Left() float64   { return r.X }
func (r Rect) Right() float64  { return r.X + r.W }
func (r Rect) Top() float64    { return r.Y }
func (r Rect) Bottom() float64 { return r.Y + r.H }

// Center returns the middle of r.
func (r Rect) Center() Point { return Point{r.X + r.W/2, r.Y + r.H/2} }

// BottomCenter is where connectors leave a node.
func (r Rect) BottomCenter() Point { return Point{r.X + r.W/2, r.Y + r.H} }

// TopCenter is where connectors enter a node.
func (r Rect) TopCenter() Point { return Point{r.X + r.W/2, r.Y} }

// Inflate grows r by m on every side.
func (r Rect) Inflate(m float64) Rect {
	return Rect{r.X - m, r.Y - m, r.W + 2*m, r.H + 2*m}
}

// Overlaps reports whether r and b share interior area.
// Rects that only touch along an edge do not overlap.
func (r Rect) Overlaps(b Rect) bool {
	return r.X < b.X+b.W && r.X+r.W > b.X &&
		r.Y < b.Y+b.H && r.Y+r.H > b.Y
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// Touches reports whether r and b share at least one point, borders
// included. Unlike Overlaps it holds for zero-width rects.
func (r Rect) Touches(b Rect) bool {
	return r.X <= b.X+b.W && r.X+r.W >= b.X &&
		r.Y <= b.Y+b.H && r.Y+r.H >= b.Y
}

// Contains reports whether p lies inside r or on its border.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.W &&
		p.Y >= r.Y && p.Y <= r.Y+r.H
}

// StrictlyContains reports whether p lies in the open interior of r.
func (r Rect) StrictlyContains(p Point) bool {
	return p.X > r.X && p.X < r.X+r.W &&
		p.Y > r.Y && p.Y < r.Y+r.H
}

// Union returns the smallest rect covering r and b.
func (r Rect) Union(b Rect) Rect {
	x0 := math.Min(r.X, b.X)
	y0 := math.Min(r.Y, b.Y)
	x1 := math.Max(r.Right(), b.Right())
	y1 := math.Max(r.Bottom(), b.Bottom())
	return Rect{x0, y0, x1 - x0, y1 - y0}
}

// Obstacle is a node footprint tagged with the id of the node that owns it.
type Obstacle struct {
	ID   string `json:"id"`
	Rect Rect   `json:"rect"`
}

// Rects strips the ids from obs.
func Rects(obs []Obstacle) []Rect {
	out := make([]Rect, len(obs))
	for i, o := range obs {
		out[i] = o.Rect
	}
	return out
}

// SegmentBlocked reports whether the axis-aligned segment a-b passes through
// the interior of r. Segments running along r's border are not blocked.
// Diagonal segments are never reported as blocked.
func SegmentBlocked(a, b Point, r Rect) bool {
	if math.Abs(a.Y-b.Y) < Eps {
		y := a.Y
		if y <= r.Y || y >= r.Y+r.H {
			return false
		}
		minX := math.Min(a.X, b.X)
		maxX := math.Max(a.X, b.X)
		return minX < r.X+r.W && maxX > r.X
	}
	if math.Abs(a.X-b.X) < Eps {
		x := a.X
		if x <= r.X || x >= r.X+r.W {
			return false
		}
		minY := math.Min(a.Y, b.Y)
		maxY := math.Max(a.Y, b.Y)
		return minY < r.Y+r.H && maxY > r.Y
	}
	return false
}

// SegmentBlockedAny reports whether a-b crosses any of rects.
func SegmentBlockedAny(a, b Point, rects []Rect) bool {
	for _, r := range rects {
		if SegmentBlocked(a, b, r) {
			return true
		}
	}
	return false
}
