package routing

import (
	"math"

	"reqflow/internal/geom"
)

// Options configures the router.
type Options struct {
	// Gap is how far a connector runs straight out of the source (down) and
	// into the target (from above) before it may turn.
	Gap float64
	// Padding is the clearance kept around every obstacle.
	Padding float64
	// NodeSize is used to infer the endpoint rects when a request omits them.
	NodeSize geom.Size
}

// DefaultOptions matches the canvas defaults: 240x120 nodes, 56 gap, 16 padding.
func DefaultOptions() Options {
	return Options{
		Gap:      56,
		Padding:  16,
		NodeSize: geom.Size{W: 240, H: 120},
	}
}

// Request describes one connector.
type Request struct {
	Start geom.Point // bottom-center of the source node
	End   geom.Point // top-center of the target node

	// Tight rects of the two endpoint nodes. A zero rect is inferred from
	// Start/End and Options.NodeSize.
	Source geom.Rect
	Target geom.Rect

	// Tight rects of every other node. The endpoints must not be included.
	Obstacles []geom.Rect

	// Canvas size in world units. A zero size means unbounded: the routable
	// area is derived from the content.
	Bounds geom.Size
}

// Route is the result of one routing call.
type Route struct {
	Points      geom.Polyline `json:"points"`
	StartAnchor geom.Point    `json:"startAnchor"`
	EndAnchor   geom.Point    `json:"endAnchor"`
	// Fallback is set when Points came from BuildFallbackPath. Reason then
	// holds ErrGraphBuildFailed or ErrUnreachable.
	Fallback bool  `json:"fallback"`
	Reason   error `json:"-"`
}

// Router computes obstacle-avoiding orthogonal connectors. It holds no
// per-call state and is safe for concurrent use.
type Router struct {
	opts Options
}

// NewRouter creates a Router.
func NewRouter(opts Options) *Router {
	return &Router{opts: opts}
}

// Options returns the router configuration.
func (r *Router) Options() Options { return r.opts }

// ComputePath is the per-edge entry point used by the render pass. It never
// fails: when no obstacle-free route exists the fallback path is returned.
func (r *Router) ComputePath(start, end geom.Point, obstacles []geom.Rect, bounds geom.Size) geom.Polyline {
	return r.Route(Request{Start: start, End: end, Obstacles: obstacles, Bounds: bounds}).Points
}

// Route builds the grid graph for req, runs the shortest-path search and
// simplifies the result, falling back to BuildFallbackPath on failure.
func (r *Router) Route(req Request) Route {
	src, dst := r.endpointRects(req)
	gap := r.opts.Gap
	startAnchor := req.Start.Add(0, gap)
	endAnchor := req.End.Add(0, -gap)

	out := Route{StartAnchor: startAnchor, EndAnchor: endAnchor}

	pts, err := r.solve(req, src, dst, startAnchor, endAnchor)
	if err == nil {
		pl := Simplify(req.Start, pts, req.End)
		if pl.Valid() {
			out.Points = pl
			return out
		}
		err = ErrUnreachable
	}

	out.Points = BuildFallbackPath(req.Start, req.End, src, dst, gap, r.opts.Padding)
	if len(out.Points) < 2 {
		// Start and end coincide; keep the polyline drawable.
		out.Points = geom.Polyline{req.Start, req.End.Add(0, geom.Eps)}
	}
	out.Fallback = true
	out.Reason = err
	return out
}

func (r *Router) solve(req Request, src, dst geom.Rect, startAnchor, endAnchor geom.Point) ([]geom.Point, error) {
	pad := r.opts.Padding
	padded := make([]geom.Rect, len(req.Obstacles))
	for i, o := range req.Obstacles {
		padded[i] = o.Inflate(pad)
	}

	srcPad, dstPad := src.Inflate(pad), dst.Inflate(pad)
	in := GraphInput{
		StartAnchor: startAnchor,
		EndAnchor:   endAnchor,
		Padded:      padded,
		Blockers:    []geom.Rect{src, dst},
		ExtraXs:     []float64{srcPad.Left(), srcPad.Right(), dstPad.Left(), dstPad.Right()},
		ExtraYs:     []float64{srcPad.Top(), srcPad.Bottom(), dstPad.Top(), dstPad.Bottom()},
		Area:        r.area(req, padded, srcPad, dstPad, startAnchor, endAnchor),
	}

	g, from, to, err := BuildGraph(in)
	if err != nil {
		return nil, err
	}
	return ShortestPath(g, from, to)
}

// area is the canvas rect, or the content extents plus a margin when the
// canvas size is unknown.
func (r *Router) area(req Request, padded []geom.Rect, srcPad, dstPad geom.Rect, anchors ...geom.Point) geom.Rect {
	if req.Bounds.Valid() {
		return geom.R(0, 0, req.Bounds.W, req.Bounds.H)
	}
	ext := srcPad.Union(dstPad)
	for _, p := range padded {
		ext = ext.Union(p)
	}
	for _, a := range anchors {
		ext = ext.Union(geom.R(a.X, a.Y, 0, 0))
	}
	m := math.Max(r.opts.Gap, r.opts.Padding)
	return ext.Inflate(m)
}

func (r *Router) endpointRects(req Request) (src, dst geom.Rect) {
	w, h := r.opts.NodeSize.W, r.opts.NodeSize.H
	src, dst = req.Source, req.Target
	if src.W <= 0 || src.H <= 0 {
		src = geom.R(req.Start.X-w/2, req.Start.Y-h, w, h)
	}
	if dst.W <= 0 || dst.H <= 0 {
		dst = geom.R(req.End.X-w/2, req.End.Y, w, h)
	}
	return src, dst
}
