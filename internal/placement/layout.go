package placement

import (
	"math"

	"reqflow/internal/geom"
)

// Layout hands out positions for nodes the user never placed by hand: the
// trigger and its requests form one column centred on the canvas, and new
// nodes are appended below the lowest one.
type Layout struct {
	gridSize float64
	nodeSize geom.Size
	gap      float64
}

// NewLayout creates a Layout. gap is the connector gap; consecutive nodes are
// spaced so both connector stubs fit between them.
func NewLayout(gridSize float64, nodeSize geom.Size, gap float64) *Layout {
	return &Layout{gridSize: gridSize, nodeSize: nodeSize, gap: gap}
}

// rowStep is the vertical distance between the tops of two column nodes.
func (l *Layout) rowStep() float64 {
	return snap(l.nodeSize.H+2*l.gap, l.gridSize)
}

func (l *Layout) columnX(bounds geom.Size) float64 {
	if !bounds.Valid() {
		return snap(l.gap, l.gridSize)
	}
	return snap(math.Max(0, (bounds.W-l.nodeSize.W)/2), l.gridSize)
}

// DefaultPosition returns the column slot for the node at index. Index 0 is
// the trigger. The result depends on bounds, so it is re-derived whenever
// the canvas is resized.
func (l *Layout) DefaultPosition(index int, bounds geom.Size) geom.Point {
	y := snap(l.gap, l.gridSize) + float64(index)*l.rowStep()
	return geom.Pt(l.columnX(bounds), y)
}

// DefaultPositions returns the column slots for n nodes.
func (l *Layout) DefaultPositions(n int, bounds geom.Size) []geom.Point {
	out := make([]geom.Point, n)
	for i := range out {
		out[i] = l.DefaultPosition(i, bounds)
	}
	return out
}

// AppendPosition places a new node one row below the lowest existing node,
// aligned with it. With no nodes it returns the first column slot.
func (l *Layout) AppendPosition(existing []geom.Rect, bounds geom.Size) geom.Point {
	if len(existing) == 0 {
		return l.DefaultPosition(0, bounds)
	}
	lowest := existing[0]
	for _, r := range existing[1:] {
		if r.Bottom() > lowest.Bottom() {
			lowest = r
		}
	}
	y := snap(lowest.Bottom()+2*l.gap, l.gridSize)
	return geom.Pt(snap(lowest.X, l.gridSize), y)
}

// Between returns the top-left position that centres a node on mid, used
// when a node is dropped onto a connector's midpoint.
func (l *Layout) Between(mid geom.Point) geom.Point {
	return geom.Pt(
		snap(mid.X-l.nodeSize.W/2, l.gridSize),
		snap(mid.Y-l.nodeSize.H/2, l.gridSize),
	)
}
