package canvas

import (
	"math"

	"reqflow/internal/geom"
	"reqflow/internal/placement"
	"reqflow/internal/routing"
	"reqflow/internal/viewport"
)

// NodeKind distinguishes the trigger from request nodes.
type NodeKind string

const (
	KindTrigger NodeKind = "trigger"
	KindRequest NodeKind = "request"
)

// ArrowSize is the length of a connector arrowhead in world units.
const ArrowSize = 10.0

// NodeSpec is one logical node in execution order.
type NodeSpec struct {
	ID    string
	Label string
	Kind  NodeKind
}

// Node is a node as laid out in a scene.
type Node struct {
	ID      string    `json:"id"`
	Label   string    `json:"label"`
	Kind    NodeKind  `json:"kind"`
	Rect    geom.Rect `json:"rect"`
	Placed  bool      `json:"placed"` // false when the position is a default slot
	Visible bool      `json:"visible"`
}

// Connector is the routed edge between two consecutive nodes.
type Connector struct {
	From     string        `json:"from"`
	To       string        `json:"to"`
	Points   geom.Polyline `json:"points"`
	Arrow    [3]geom.Point `json:"arrow"` // tip, then the two base corners
	Fallback bool          `json:"fallback"`
	Reason   error         `json:"-"`
	Visible  bool          `json:"visible"`
}

// EdgeAnchor is the insert affordance at a connector's midpoint. A hit
// inserts a new node right after From.
type EdgeAnchor struct {
	From   string     `json:"from"`
	To     string     `json:"to"`
	Point  geom.Point `json:"point"`
	Radius float64    `json:"radius"`
}

// Scene is one frame of a workflow canvas.
type Scene struct {
	Bounds     geom.Size     `json:"bounds"`
	View       viewport.View `json:"view"`
	Visible    geom.Rect     `json:"visible"`
	Nodes      []Node        `json:"nodes"`
	Connectors []Connector   `json:"connectors"`
	Anchors    []EdgeAnchor  `json:"anchors"`
}

// Input is everything needed to lay out one frame.
type Input struct {
	Nodes     []NodeSpec // trigger first, then requests in execution order
	Positions map[string]geom.Point
	Bounds    geom.Size
	View      viewport.View
	Screen    geom.Size // zero means the whole canvas is visible
}

// Builder lays out scenes. It holds configuration only.
type Builder struct {
	router       *routing.Router
	layout       *placement.Layout
	resolver     *placement.Resolver
	nodeSize     geom.Size
	anchorRadius float64
}

// NewBuilder creates a Builder. resolver moves default slots off nodes the
// user placed by hand; nil leaves default slots as they are.
func NewBuilder(router *routing.Router, layout *placement.Layout, resolver *placement.Resolver, nodeSize geom.Size, anchorRadius float64) *Builder {
	return &Builder{router: router, layout: layout, resolver: resolver, nodeSize: nodeSize, anchorRadius: anchorRadius}
}

// Arena returns an arena holding a position for every node in in. Nodes
// without a stored position get their default column slot for the current
// bounds, moved to the nearest free cell when that slot overlaps a node
// already laid out. Default slots are not written back.
func (b *Builder) Arena(in Input) *Arena {
	var taken []geom.Obstacle
	for _, n := range in.Nodes {
		if p, ok := in.Positions[n.ID]; ok {
			taken = append(taken, geom.Obstacle{ID: n.ID, Rect: b.rectAt(p)})
		}
	}

	a := NewArena(b.nodeSize)
	for i, n := range in.Nodes {
		p, ok := in.Positions[n.ID]
		if !ok {
			p = b.layout.DefaultPosition(i, in.Bounds)
			if b.resolver != nil && overlapsAny(b.rectAt(p), taken) {
				p = b.resolver.Resolve(p, n.ID, taken, in.Bounds).Point
			}
			taken = append(taken, geom.Obstacle{ID: n.ID, Rect: b.rectAt(p)})
		}
		a.Set(n.ID, p)
	}
	return a
}

func (b *Builder) rectAt(p geom.Point) geom.Rect {
	return geom.R(p.X, p.Y, b.nodeSize.W, b.nodeSize.H)
}

func overlapsAny(r geom.Rect, obs []geom.Obstacle) bool {
	for _, o := range obs {
		if r.Overlaps(o.Rect) {
			return true
		}
	}
	return false
}

// Build lays out every node, routes one connector per consecutive pair and
// records the insert anchors. Each connector treats every node but its two
// endpoints as an obstacle.
func (b *Builder) Build(in Input) *Scene {
	a := b.Arena(in)

	s := &Scene{Bounds: in.Bounds, View: in.View}
	if in.Screen.Valid() {
		s.Visible = in.View.VisibleWorldRect(in.Screen)
	} else if in.Bounds.Valid() {
		s.Visible = geom.R(0, 0, in.Bounds.W, in.Bounds.H)
	}
	visible := func(r geom.Rect) bool {
		if s.Visible.Empty() {
			return true
		}
		return s.Visible.Touches(r)
	}

	for _, n := range in.Nodes {
		r, _ := a.Rect(n.ID)
		_, placed := in.Positions[n.ID]
		s.Nodes = append(s.Nodes, Node{
			ID: n.ID, Label: n.Label, Kind: n.Kind,
			Rect: r, Placed: placed, Visible: visible(r),
		})
	}

	for i := 0; i+1 < len(s.Nodes); i++ {
		from, to := s.Nodes[i], s.Nodes[i+1]
		route := b.router.Route(routing.Request{
			Start:     from.Rect.BottomCenter(),
			End:       to.Rect.TopCenter(),
			Source:    from.Rect,
			Target:    to.Rect,
			Obstacles: geom.Rects(a.ListObstacles(from.ID, to.ID)),
			Bounds:    in.Bounds,
		})
		c := Connector{
			From:     from.ID,
			To:       to.ID,
			Points:   route.Points,
			Arrow:    Arrowhead(route.Points, ArrowSize),
			Fallback: route.Fallback,
			Reason:   route.Reason,
			Visible:  visible(route.Points.Bounds()),
		}
		s.Connectors = append(s.Connectors, c)
		s.Anchors = append(s.Anchors, EdgeAnchor{
			From:   from.ID,
			To:     to.ID,
			Point:  route.Points.Midpoint(),
			Radius: b.anchorRadius,
		})
	}
	return s
}

// Arrowhead returns the triangle at the end of pl pointing along its last
// segment.
func Arrowhead(pl geom.Polyline, size float64) [3]geom.Point {
	var tri [3]geom.Point
	if len(pl) < 2 {
		return tri
	}
	a, tip := pl[len(pl)-2], pl[len(pl)-1]
	dx, dy := tip.X-a.X, tip.Y-a.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return tri
	}
	dx, dy = dx/l, dy/l
	base := geom.Pt(tip.X-dx*size, tip.Y-dy*size)
	half := size / 2
	tri[0] = tip
	tri[1] = geom.Pt(base.X-dy*half, base.Y+dx*half)
	tri[2] = geom.Pt(base.X+dy*half, base.Y-dx*half)
	return tri
}

// FallbackCount returns how many connectors used the fallback route.
func (s *Scene) FallbackCount() int {
	n := 0
	for _, c := range s.Connectors {
		if c.Fallback {
			n++
		}
	}
	return n
}

// Node returns the laid-out node with the given id.
func (s *Scene) Node(id string) (Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// HitTestEdgeAnchor returns the insert anchor within its radius of p, or
// nil. p is in world coordinates.
func (s *Scene) HitTestEdgeAnchor(p geom.Point) *EdgeAnchor {
	for i := range s.Anchors {
		an := &s.Anchors[i]
		if math.Hypot(p.X-an.Point.X, p.Y-an.Point.Y) <= an.Radius {
			return an
		}
	}
	return nil
}

// HitTestNode returns the topmost node containing p. Later nodes are drawn
// on top.
func (s *Scene) HitTestNode(p geom.Point) (string, bool) {
	for i := len(s.Nodes) - 1; i >= 0; i-- {
		if s.Nodes[i].Rect.Contains(p) {
			return s.Nodes[i].ID, true
		}
	}
	return "", false
}
