package service_test

import (
	"bytes"
	"errors"
	"testing"

	"reqflow/internal/domain"
	"reqflow/internal/geom"
	"reqflow/internal/service"
)

// ─────────────────────────────────────────────────────────────
// CanvasService tests
// Default canvas constants: 240x120 nodes, gap 56, grid 20.
// ─────────────────────────────────────────────────────────────

var canvasBounds = geom.Size{W: 1200, H: 800}

func TestCanvasService_DefaultScene(t *testing.T) {
	cs, wf := newCanvasService(t)
	w, _ := wf.CreateWorkflow("")
	wf.AddRequest(w.ID, domain.WorkflowRequest{ID: "r1", Name: "Login"}, -1)
	wf.AddRequest(w.ID, domain.WorkflowRequest{ID: "r2", Method: "GET", URL: "https://api.example.com/me"}, -1)

	scene, err := cs.Canvas(w.ID, canvasBounds, geom.Size{})
	if err != nil {
		t.Fatalf("Canvas: %v", err)
	}
	if len(scene.Nodes) != 3 || len(scene.Connectors) != 2 || len(scene.Anchors) != 2 {
		t.Fatalf("nodes=%d connectors=%d anchors=%d", len(scene.Nodes), len(scene.Connectors), len(scene.Anchors))
	}
	labels := []string{"Manual", "Login", "GET https://api.example.com/me"}
	for i, n := range scene.Nodes {
		if n.Label != labels[i] {
			t.Errorf("node %d label = %q, want %q", i, n.Label, labels[i])
		}
	}
	if scene.Nodes[0].ID != domain.TriggerNodeID {
		t.Errorf("first node = %s, want trigger", scene.Nodes[0].ID)
	}
	if scene.FallbackCount() != 0 {
		t.Errorf("fallbacks = %d", scene.FallbackCount())
	}
	for _, c := range scene.Connectors {
		for i := 1; i < len(c.Points); i++ {
			a, b := c.Points[i-1], c.Points[i]
			if a.X != b.X && a.Y != b.Y {
				t.Errorf("connector %s->%s has diagonal segment %v-%v", c.From, c.To, a, b)
			}
		}
	}

	if _, err := cs.Canvas("missing", canvasBounds, geom.Size{}); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("missing workflow: err = %v, want ErrNotFound", err)
	}
}

func TestCanvasService_MoveNodeResolvesOverlap(t *testing.T) {
	cs, wf := newCanvasService(t)
	w, _ := wf.CreateWorkflow("")
	wf.AddRequest(w.ID, domain.WorkflowRequest{ID: "r1"}, -1)

	// The trigger sits in its default slot at (480,60). Dropping r1 right on
	// top of it pushes r1 out to the first free ring, just below the trigger.
	p, err := cs.MoveNode(w.ID, "r1", geom.Pt(480, 60), canvasBounds)
	if err != nil {
		t.Fatalf("MoveNode: %v", err)
	}
	if p.Point != geom.Pt(360, 180) || p.Radius != 6 {
		t.Errorf("placement = %+v, want (360,180) at radius 6", p)
	}

	got, _ := wf.GetWorkflow(w.ID)
	if pos := got.NodePositions["r1"]; pos != (domain.Point{X: 360, Y: 180}) {
		t.Errorf("stored position = %+v", pos)
	}

	// A free spot is only snapped.
	p, err = cs.MoveNode(w.ID, "r1", geom.Pt(707, 413), canvasBounds)
	if err != nil {
		t.Fatalf("MoveNode: %v", err)
	}
	if p.Point != geom.Pt(700, 420) || p.Radius != 0 {
		t.Errorf("placement = %+v, want (700,420)", p)
	}

	if _, err := cs.MoveNode(w.ID, "ghost", geom.Pt(0, 0), canvasBounds); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("unknown node: err = %v, want ErrNotFound", err)
	}
}

func TestCanvasService_MoveNodeClampsToBounds(t *testing.T) {
	cs, wf := newCanvasService(t)
	w, _ := wf.CreateWorkflow("")

	p, err := cs.MoveNode(w.ID, domain.TriggerNodeID, geom.Pt(5000, -300), canvasBounds)
	if err != nil {
		t.Fatalf("MoveNode: %v", err)
	}
	if p.Point != geom.Pt(960, 0) {
		t.Errorf("placement = %v, want (960,0)", p.Point)
	}
}

func TestCanvasService_InsertOnEdge(t *testing.T) {
	cs, wf := newCanvasService(t)
	w, _ := wf.CreateWorkflow("")
	wf.AddRequest(w.ID, domain.WorkflowRequest{ID: "r1"}, -1)

	// trigger (480,60) -> r1 (480,300): the insert anchor is at (600,240).
	req, p, err := cs.InsertOnEdge(w.ID, domain.TriggerNodeID, domain.WorkflowRequest{Name: "Inserted"}, canvasBounds)
	if err != nil {
		t.Fatalf("InsertOnEdge: %v", err)
	}
	if p.Point != geom.Pt(480, 180) {
		t.Errorf("placement = %+v, want (480,180)", p)
	}

	got, _ := wf.GetWorkflow(w.ID)
	if ids := requestIDs(got); len(ids) != 2 || ids[0] != req.ID || ids[1] != "r1" {
		t.Errorf("requests = %v, want [%s r1]", ids, req.ID)
	}
	if pos := got.NodePositions[req.ID]; pos != (domain.Point{X: 480, Y: 180}) {
		t.Errorf("stored position = %+v", pos)
	}

	// The last node has no outgoing connector.
	if _, _, err := cs.InsertOnEdge(w.ID, "r1", domain.WorkflowRequest{}, canvasBounds); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("insert after last node: err = %v, want ErrNotFound", err)
	}
}

func TestCanvasService_InsertOnEdgeAfterRequest(t *testing.T) {
	cs, wf := newCanvasService(t)
	w, _ := wf.CreateWorkflow("")
	wf.AddRequest(w.ID, domain.WorkflowRequest{ID: "r1"}, -1)
	wf.AddRequest(w.ID, domain.WorkflowRequest{ID: "r2"}, -1)

	req, _, err := cs.InsertOnEdge(w.ID, "r1", domain.WorkflowRequest{ID: "mid"}, canvasBounds)
	if err != nil {
		t.Fatalf("InsertOnEdge: %v", err)
	}
	got, _ := wf.GetWorkflow(w.ID)
	if ids := requestIDs(got); len(ids) != 3 || ids[1] != req.ID {
		t.Errorf("requests = %v, want mid in the middle", ids)
	}
}

func TestCanvasService_AppendRequest(t *testing.T) {
	cs, wf := newCanvasService(t)
	w, _ := wf.CreateWorkflow("")

	req, p, err := cs.AppendRequest(w.ID, domain.WorkflowRequest{Name: "First"}, canvasBounds)
	if err != nil {
		t.Fatalf("AppendRequest: %v", err)
	}
	// Below the trigger: snap(180 + 2*56) = 300.
	if p.Point != geom.Pt(480, 300) {
		t.Errorf("placement = %v, want (480,300)", p.Point)
	}

	_, p2, err := cs.AppendRequest(w.ID, domain.WorkflowRequest{Name: "Second"}, canvasBounds)
	if err != nil {
		t.Fatalf("AppendRequest: %v", err)
	}
	if p2.Point != geom.Pt(480, 540) {
		t.Errorf("placement = %v, want (480,540)", p2.Point)
	}

	got, _ := wf.GetWorkflow(w.ID)
	if len(got.Requests) != 2 || got.Requests[0].ID != req.ID {
		t.Errorf("requests = %v", requestIDs(got))
	}
}

func TestCanvasService_ResolvePositionDoesNotStore(t *testing.T) {
	cs, wf := newCanvasService(t)
	w, _ := wf.CreateWorkflow("")
	wf.AddRequest(w.ID, domain.WorkflowRequest{ID: "r1"}, -1)

	p, err := cs.ResolvePosition(w.ID, "r1", geom.Pt(480, 60), canvasBounds)
	if err != nil {
		t.Fatalf("ResolvePosition: %v", err)
	}
	if p.Point != geom.Pt(360, 180) {
		t.Errorf("placement = %v, want (360,180)", p.Point)
	}
	got, _ := wf.GetWorkflow(w.ID)
	if _, ok := got.NodePositions["r1"]; ok {
		t.Error("ResolvePosition stored a position")
	}
}

func TestCanvasService_HitTest(t *testing.T) {
	cs, wf := newCanvasService(t)
	w, _ := wf.CreateWorkflow("")
	wf.AddRequest(w.ID, domain.WorkflowRequest{ID: "r1"}, -1)
	screen := geom.Size{W: 1200, H: 800}

	tests := []struct {
		name       string
		at         geom.Point
		wantAnchor bool
		wantNode   string
	}{
		{"anchor", geom.Pt(600, 240), true, ""},
		{"near anchor", geom.Pt(606, 246), true, ""},
		{"trigger", geom.Pt(600, 100), false, domain.TriggerNodeID},
		{"request", geom.Pt(500, 400), false, "r1"},
		{"empty", geom.Pt(50, 700), false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := cs.HitTest(w.ID, canvasBounds, screen, tt.at)
			if err != nil {
				t.Fatalf("HitTest: %v", err)
			}
			if (res.Anchor != nil) != tt.wantAnchor {
				t.Errorf("anchor = %+v, want hit %v", res.Anchor, tt.wantAnchor)
			}
			if res.NodeID != tt.wantNode {
				t.Errorf("node = %q, want %q", res.NodeID, tt.wantNode)
			}
		})
	}
}

func TestCanvasService_HitTestUsesSavedViewport(t *testing.T) {
	cs, wf := newCanvasService(t)
	w, _ := wf.CreateWorkflow("")
	wf.AddRequest(w.ID, domain.WorkflowRequest{ID: "r1"}, -1)
	wf.SaveViewport(w.ID, domain.Viewport{X: 400, Y: 100, Zoom: 2})

	// Screen (400,280) is world (600,240) at scale 2 from offset (400,100).
	res, err := cs.HitTest(w.ID, canvasBounds, geom.Size{W: 800, H: 600}, geom.Pt(400, 280))
	if err != nil {
		t.Fatalf("HitTest: %v", err)
	}
	if res.World != geom.Pt(600, 240) {
		t.Errorf("world = %v, want (600,240)", res.World)
	}
	if res.Anchor == nil || res.Anchor.From != domain.TriggerNodeID {
		t.Errorf("anchor = %+v, want the trigger's", res.Anchor)
	}
}

func TestCanvasService_View(t *testing.T) {
	cs, _ := newCanvasService(t)
	tests := []struct {
		zoom, want float64
	}{
		{1, 1},
		{0.1, 0.5},
		{5, 2},
		{0, 1},
	}
	for _, tt := range tests {
		v := cs.View(domain.Viewport{X: 10, Y: 20, Zoom: tt.zoom})
		if v.Scale != tt.want || v.OffsetX != 10 || v.OffsetY != 20 {
			t.Errorf("View(zoom %v) = %+v, want scale %v", tt.zoom, v, tt.want)
		}
	}
}

func TestCanvasService_ComputePath(t *testing.T) {
	cs, _ := newCanvasService(t)
	pl := cs.ComputePath(geom.Pt(220, 220), geom.Pt(220, 300), nil, canvasBounds)
	want := geom.Polyline{geom.Pt(220, 220), geom.Pt(220, 300)}
	if !pl.Equal(want) {
		t.Errorf("path = %v, want %v", pl, want)
	}
}

func TestCanvasService_ExportPNG(t *testing.T) {
	cs, wf := newCanvasService(t)
	w, _ := wf.CreateWorkflow("")
	wf.AddRequest(w.ID, domain.WorkflowRequest{ID: "r1", Name: "Login"}, -1)

	var buf bytes.Buffer
	if err := cs.ExportPNG(&buf, w.ID, canvasBounds, geom.Size{W: 600, H: 400}); err != nil {
		t.Fatalf("ExportPNG: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG\r\n\x1a\n")) {
		t.Error("output is not a PNG")
	}
}
