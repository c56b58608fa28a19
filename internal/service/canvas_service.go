package service

import (
	"errors"
	"fmt"
	"io"
	"log"

	"reqflow/internal/canvas"
	"reqflow/internal/config"
	"reqflow/internal/domain"
	"reqflow/internal/geom"
	"reqflow/internal/placement"
	"reqflow/internal/render"
	"reqflow/internal/routing"
	"reqflow/internal/viewport"
)

// ─────────────────────────────────────────────────────────────
// Canvas Service: layout, routing and placement of workflow nodes
// ─────────────────────────────────────────────────────────────

// CanvasService turns stored workflows into canvas scenes and writes node
// positions back through the WorkflowService. It keeps no per-workflow
// state: every call starts from a fresh snapshot of the stored positions.
type CanvasService struct {
	workflows *WorkflowService
	cfg       config.Canvas
	router    *routing.Router
	resolver  *placement.Resolver
	layout    *placement.Layout
	builder   *canvas.Builder
}

// NewCanvasService creates a CanvasService for the given canvas constants.
func NewCanvasService(workflows *WorkflowService, cfg config.Canvas) *CanvasService {
	nodeSize := cfg.NodeSize()
	router := routing.NewRouter(routing.Options{
		Gap:      cfg.Gap,
		Padding:  cfg.Padding,
		NodeSize: nodeSize,
	})
	layout := placement.NewLayout(cfg.GridSize, nodeSize, cfg.Gap)
	resolver := placement.NewResolver(cfg.GridSize, nodeSize, cfg.MaxRadius)
	return &CanvasService{
		workflows: workflows,
		cfg:       cfg,
		router:    router,
		resolver:  resolver,
		layout:    layout,
		builder:   canvas.NewBuilder(router, layout, resolver, nodeSize, cfg.AnchorRadius),
	}
}

// Canvas lays out one frame of a workflow. bounds is the canvas size in
// world units and screen the visible viewport in pixels; either may be zero.
func (s *CanvasService) Canvas(workflowID string, bounds, screen geom.Size) (*canvas.Scene, error) {
	w, err := s.workflows.GetWorkflow(workflowID)
	if err != nil {
		return nil, err
	}
	scene := s.builder.Build(s.input(w, bounds, screen))
	for _, c := range scene.Connectors {
		if c.Fallback {
			log.Printf("canvas: workflow %s: connector %s -> %s fell back: %v", w.ID, c.From, c.To, c.Reason)
		}
	}
	return scene, nil
}

// MoveNode resolves desired against every other node and stores the result.
func (s *CanvasService) MoveNode(workflowID, nodeID string, desired geom.Point, bounds geom.Size) (placement.Placement, error) {
	var p placement.Placement
	_, err := s.workflows.Update(workflowID, func(w *domain.Workflow) error {
		if nodeID != domain.TriggerNodeID && w.RequestIndex(nodeID) < 0 {
			return fmt.Errorf("node %s: %w", nodeID, ErrNotFound)
		}
		p = s.place(w, nodeID, desired, bounds)
		return nil
	})
	return p, err
}

// InsertOnEdge inserts req right after fromNodeID and places it on the
// midpoint of the connector leaving fromNodeID, resolved so it overlaps no
// other node.
func (s *CanvasService) InsertOnEdge(workflowID, fromNodeID string, req domain.WorkflowRequest, bounds geom.Size) (*domain.WorkflowRequest, placement.Placement, error) {
	req = newRequest(req)
	var p placement.Placement
	_, err := s.workflows.Update(workflowID, func(w *domain.Workflow) error {
		scene := s.builder.Build(s.input(w, bounds, geom.Size{}))
		var anchor *canvas.EdgeAnchor
		for i := range scene.Anchors {
			if scene.Anchors[i].From == fromNodeID {
				anchor = &scene.Anchors[i]
				break
			}
		}
		if anchor == nil {
			return fmt.Errorf("no connector leaves %s: %w", fromNodeID, ErrNotFound)
		}

		index := 0
		if fromNodeID != domain.TriggerNodeID {
			index = w.RequestIndex(fromNodeID) + 1
		}
		if err := insertRequest(w, req, index); err != nil {
			return err
		}
		p = s.place(w, req.ID, s.layout.Between(anchor.Point), bounds)
		return nil
	})
	if err != nil {
		return nil, placement.Placement{}, err
	}
	return &req, p, nil
}

// AppendRequest adds req after the last request and places it one row
// below the lowest node.
func (s *CanvasService) AppendRequest(workflowID string, req domain.WorkflowRequest, bounds geom.Size) (*domain.WorkflowRequest, placement.Placement, error) {
	req = newRequest(req)
	var p placement.Placement
	_, err := s.workflows.Update(workflowID, func(w *domain.Workflow) error {
		existing := geom.Rects(s.builder.Arena(s.input(w, bounds, geom.Size{})).ListObstacles())
		desired := s.layout.AppendPosition(existing, bounds)
		if err := insertRequest(w, req, -1); err != nil {
			return err
		}
		p = s.place(w, req.ID, desired, bounds)
		return nil
	})
	if err != nil {
		return nil, placement.Placement{}, err
	}
	return &req, p, nil
}

// ResolvePosition previews where nodeID would land if dropped at desired.
// Nothing is stored.
func (s *CanvasService) ResolvePosition(workflowID, nodeID string, desired geom.Point, bounds geom.Size) (placement.Placement, error) {
	w, err := s.workflows.GetWorkflow(workflowID)
	if err != nil {
		return placement.Placement{}, err
	}
	arena := s.builder.Arena(s.input(w, bounds, geom.Size{}))
	return s.resolver.Resolve(desired, nodeID, arena.ListObstacles(nodeID), bounds), nil
}

// ComputePath routes a single connector between two points.
func (s *CanvasService) ComputePath(start, end geom.Point, obstacles []geom.Rect, bounds geom.Size) geom.Polyline {
	return s.router.ComputePath(start, end, obstacles, bounds)
}

// HitTest reports which insert anchor or node lies under a screen point.
// The anchor wins when both are hit.
func (s *CanvasService) HitTest(workflowID string, bounds, screen geom.Size, at geom.Point) (HitResult, error) {
	scene, err := s.Canvas(workflowID, bounds, screen)
	if err != nil {
		return HitResult{}, err
	}
	world := scene.View.ToWorld(at)
	res := HitResult{World: world}
	if an := scene.HitTestEdgeAnchor(world); an != nil {
		res.Anchor = an
		return res, nil
	}
	if id, ok := scene.HitTestNode(world); ok {
		res.NodeID = id
	}
	return res, nil
}

// HitResult is the outcome of HitTest.
type HitResult struct {
	World  geom.Point         `json:"world"`
	Anchor *canvas.EdgeAnchor `json:"anchor,omitempty"`
	NodeID string             `json:"nodeId,omitempty"`
}

// ExportPNG renders the workflow canvas through its saved viewport.
func (s *CanvasService) ExportPNG(out io.Writer, workflowID string, bounds, screen geom.Size) error {
	scene, err := s.Canvas(workflowID, bounds, screen)
	if err != nil {
		return err
	}
	opts := render.DefaultOptions()
	opts.Screen = screen
	opts.GridSpacing = s.cfg.GridSize
	if err := render.PNG(out, scene, opts); err != nil {
		return fmt.Errorf("export png: %w", err)
	}
	return nil
}

// View converts a stored viewport into a clamped view.
func (s *CanvasService) View(vp domain.Viewport) viewport.View {
	v := viewport.New(s.cfg.MinZoom, s.cfg.MaxZoom)
	v.Scale = vp.Zoom
	v.OffsetX = vp.X
	v.OffsetY = vp.Y
	return v.Normalize()
}

// place resolves nodeID at desired against the other nodes of w and writes
// the result into w.NodePositions.
func (s *CanvasService) place(w *domain.Workflow, nodeID string, desired geom.Point, bounds geom.Size) placement.Placement {
	arena := s.builder.Arena(s.input(w, bounds, geom.Size{}))
	p := s.resolver.Resolve(desired, nodeID, arena.ListObstacles(nodeID), bounds)
	if errors.Is(p.Err, placement.ErrPlacementExhausted) {
		log.Printf("canvas: workflow %s: no free cell for %s near %v, keeping %v", w.ID, nodeID, desired, p.Point)
	}
	if w.NodePositions == nil {
		w.NodePositions = map[string]domain.Point{}
	}
	w.NodePositions[nodeID] = domain.Point{X: p.Point.X, Y: p.Point.Y}
	return p
}

func (s *CanvasService) input(w *domain.Workflow, bounds, screen geom.Size) canvas.Input {
	nodes := make([]canvas.NodeSpec, 0, len(w.Requests)+1)
	nodes = append(nodes, canvas.NodeSpec{
		ID:    domain.TriggerNodeID,
		Label: w.Trigger.Label(),
		Kind:  canvas.KindTrigger,
	})
	for _, r := range w.Requests {
		nodes = append(nodes, canvas.NodeSpec{ID: r.ID, Label: requestLabel(r), Kind: canvas.KindRequest})
	}
	positions := make(map[string]geom.Point, len(w.NodePositions))
	for id, p := range w.NodePositions {
		positions[id] = geom.Pt(p.X, p.Y)
	}
	return canvas.Input{
		Nodes:     nodes,
		Positions: positions,
		Bounds:    bounds,
		View:      s.View(w.Viewport),
		Screen:    screen,
	}
}

func requestLabel(r domain.WorkflowRequest) string {
	if r.Name != "" {
		return r.Name
	}
	if r.URL != "" {
		return r.Method + " " + r.URL
	}
	return r.Method
}
