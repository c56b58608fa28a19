package viewport

import (
	"math"

	"reqflow/internal/geom"
)

// View maps between screen pixels and world units. Offset is the world point
// shown at the screen's top-left corner. Offsets are never clamped, so the
// user may pan into empty space.
type View struct {
	Scale    float64 `json:"scale"`
	OffsetX  float64 `json:"offsetX"`
	OffsetY  float64 `json:"offsetY"`
	MinScale float64 `json:"-"`
	MaxScale float64 `json:"-"`
}

// New returns an unscaled view at the origin.
func New(minScale, maxScale float64) View {
	return View{Scale: 1, MinScale: minScale, MaxScale: maxScale}
}

// ToWorld converts a screen point to world coordinates.
func (v View) ToWorld(s geom.Point) geom.Point {
	sc := v.scale()
	return geom.Pt(s.X/sc+v.OffsetX, s.Y/sc+v.OffsetY)
}

// ToScreen converts a world point to screen coordinates.
func (v View) ToScreen(w geom.Point) geom.Point {
	sc := v.scale()
	return geom.Pt((w.X-v.OffsetX)*sc, (w.Y-v.OffsetY)*sc)
}

// RectToScreen converts a world rect to screen coordinates.
func (v View) RectToScreen(r geom.Rect) geom.Rect {
	tl := v.ToScreen(geom.Pt(r.X, r.Y))
	sc := v.scale()
	return geom.R(tl.X, tl.Y, r.W*sc, r.H*sc)
}

// ZoomAt sets the scale to the clamped value and moves the offset so the
// world point under anchor stays under it.
func (v View) ZoomAt(anchor geom.Point, scale float64) View {
	before := v.ToWorld(anchor)
	v.Scale = v.clamp(scale)
	v.OffsetX = before.X - anchor.X/v.Scale
	v.OffsetY = before.Y - anchor.Y/v.Scale
	return v
}

// ZoomBy multiplies the scale by factor around anchor.
func (v View) ZoomBy(anchor geom.Point, factor float64) View {
	return v.ZoomAt(anchor, v.scale()*factor)
}

// Pan shifts the offset by a screen-space delta converted to world units.
func (v View) Pan(dx, dy float64) View {
	sc := v.scale()
	v.OffsetX += dx / sc
	v.OffsetY += dy / sc
	return v
}

// VisibleWorldRect is the world area covered by a screen of the given size.
func (v View) VisibleWorldRect(screen geom.Size) geom.Rect {
	sc := v.scale()
	return geom.R(v.OffsetX, v.OffsetY, screen.W/sc, screen.H/sc)
}

// GridLines returns the world x and y coordinates of every background grid
// line that falls inside the visible rect.
func (v View) GridLines(screen geom.Size, spacing float64) (xs, ys []float64) {
	if spacing <= 0 {
		return nil, nil
	}
	r := v.VisibleWorldRect(screen)
	for x := math.Ceil(r.Left()/spacing) * spacing; x <= r.Right(); x += spacing {
		xs = append(xs, x)
	}
	for y := math.Ceil(r.Top()/spacing) * spacing; y <= r.Bottom(); y += spacing {
		ys = append(ys, y)
	}
	return xs, ys
}

// Normalize clamps a view loaded from storage into the configured range.
func (v View) Normalize() View {
	v.Scale = v.clamp(v.Scale)
	return v
}

func (v View) scale() float64 {
	if v.Scale <= 0 {
		return 1
	}
	return v.Scale
}

func (v View) clamp(s float64) float64 {
	if s <= 0 || math.IsNaN(s) {
		s = 1
	}
	if v.MinScale > 0 && s < v.MinScale {
		s = v.MinScale
	}
	if v.MaxScale > 0 && s > v.MaxScale {
		s = v.MaxScale
	}
	return s
}
