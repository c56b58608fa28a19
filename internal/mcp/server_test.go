package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"reqflow/internal/config"
	"reqflow/internal/domain"
	"reqflow/internal/service"
	"reqflow/internal/storage"
)

type emitted struct {
	event string
	data  any
}

// chanEmitter forwards every event to a buffered channel so tests can wait on them.
type chanEmitter struct {
	events chan emitted
}

func newChanEmitter() *chanEmitter {
	return &chanEmitter{events: make(chan emitted, 64)}
}

func (e *chanEmitter) Emit(_ context.Context, event string, data any) {
	e.events <- emitted{event: event, data: data}
}

func (e *chanEmitter) waitFor(t *testing.T, event string) emitted {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-e.events:
			if ev.event == event {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", event)
			return emitted{}
		}
	}
}

type fixture struct {
	srv       *Server
	emitter   *chanEmitter
	db        *storage.DB
	workflows *service.WorkflowService
}

func newFixture(t *testing.T, withStore bool) *fixture {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "reqflow.db"))
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	emitter := newChanEmitter()
	workflows := service.NewWorkflowService(storage.NewWorkflowStore(db), &service.MockEmitter{})
	deps := Deps{
		Emitter:   emitter,
		Workflows: workflows,
		Canvas:    service.NewCanvasService(workflows, config.Default().Canvas),
	}
	if withStore {
		deps.Approvals = storage.NewApprovalStore(db)
	}
	srv := New(ctx, deps)
	srv.approval.SetTimeout(2 * time.Second)
	srv.approval.interval = 10 * time.Millisecond
	return &fixture{srv: srv, emitter: emitter, db: db, workflows: workflows}
}

func callTool(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

func (f *fixture) createWorkflow(t *testing.T, requests ...string) *domain.Workflow {
	t.Helper()
	w, err := f.workflows.CreateWorkflow("Orders")
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}
	for i, name := range requests {
		if _, err := f.workflows.AddRequest(w.ID, domain.WorkflowRequest{ID: name, Name: name}, i); err != nil {
			t.Fatalf("AddRequest: %v", err)
		}
	}
	w, _ = f.workflows.GetWorkflow(w.ID)
	return w
}

// ─────────────────────────────────────────────────────────────
// Workflow tools
// ─────────────────────────────────────────────────────────────

func TestHandleCreateAndList(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	res, err := f.srv.handleCreateWorkflow(ctx, callTool(map[string]any{"name": "Billing"}))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	var w domain.Workflow
	if err := json.Unmarshal([]byte(resultText(t, res)), &w); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w.Name != "Billing" || w.Trigger.Type != domain.TriggerManual {
		t.Errorf("workflow = %+v", w)
	}
	f.emitter.waitFor(t, "mcp:workflow-changed")

	res, err = f.srv.handleListWorkflows(ctx, callTool(nil))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var list []domain.WorkflowSummary
	if err := json.Unmarshal([]byte(resultText(t, res)), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].ID != w.ID {
		t.Errorf("list = %+v", list)
	}
}

func TestHandleAddRequest(t *testing.T) {
	tests := []struct {
		name      string
		args      map[string]any
		wantOrder []string
	}{
		{"append", map[string]any{"name": "new"}, []string{"a", "b", "new"}},
		{"at index", map[string]any{"name": "new", "index": float64(0)}, []string{"new", "a", "b"}},
		{"json request", map[string]any{"request": `{"id":"new","name":"new","method":"post"}`, "index": float64(1)}, []string{"a", "new", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)
			w := f.createWorkflow(t, "a", "b")
			tt.args["workflowId"] = w.ID

			if _, err := f.srv.handleAddRequest(context.Background(), callTool(tt.args)); err != nil {
				t.Fatalf("add: %v", err)
			}
			got, _ := f.workflows.GetWorkflow(w.ID)
			var names []string
			for _, r := range got.Requests {
				names = append(names, r.Name)
			}
			if strings.Join(names, ",") != strings.Join(tt.wantOrder, ",") {
				t.Errorf("order = %v, want %v", names, tt.wantOrder)
			}
		})
	}
}

func TestHandleAddRequest_MissingWorkflow(t *testing.T) {
	f := newFixture(t, false)
	if _, err := f.srv.handleAddRequest(context.Background(), callTool(map[string]any{"name": "x"})); err == nil {
		t.Fatal("expected error without workflowId")
	}
}

func TestHandleRemoveRequest_Approved(t *testing.T) {
	f := newFixture(t, false)
	w := f.createWorkflow(t, "a", "b")

	done := make(chan *mcp.CallToolResult, 1)
	go func() {
		res, _ := f.srv.handleRemoveRequest(context.Background(), callTool(map[string]any{
			"workflowId": w.ID, "requestId": "a",
		}))
		done <- res
	}()

	ev := f.emitter.waitFor(t, "mcp:approval-required")
	action, ok := ev.data.(PendingAction)
	if !ok {
		t.Fatalf("event data is %T", ev.data)
	}
	if action.Tool != "remove_request" || !strings.Contains(action.Metadata, `"requestId":"a"`) {
		t.Errorf("action = %+v", action)
	}
	f.srv.Approve(action.ID)

	if got := resultText(t, <-done); !strings.Contains(got, "removed") {
		t.Fatalf("result = %q", got)
	}
	got, _ := f.workflows.GetWorkflow(w.ID)
	if len(got.Requests) != 1 || got.Requests[0].ID != "b" {
		t.Errorf("requests = %+v", got.Requests)
	}
}

func TestHandleDeleteWorkflow_Rejected(t *testing.T) {
	f := newFixture(t, false)
	w := f.createWorkflow(t)

	done := make(chan *mcp.CallToolResult, 1)
	go func() {
		res, _ := f.srv.handleDeleteWorkflow(context.Background(), callTool(map[string]any{"workflowId": w.ID}))
		done <- res
	}()

	ev := f.emitter.waitFor(t, "mcp:approval-required")
	f.srv.Reject(ev.data.(PendingAction).ID)

	if got := resultText(t, <-done); got != "Action rejected by user" {
		t.Fatalf("result = %q", got)
	}
	if _, err := f.workflows.GetWorkflow(w.ID); err != nil {
		t.Errorf("workflow should survive a rejection: %v", err)
	}
}

func TestHandleDeleteWorkflow_ApprovedViaStore(t *testing.T) {
	f := newFixture(t, true)
	w := f.createWorkflow(t)
	approvals := storage.NewApprovalStore(f.db)

	done := make(chan *mcp.CallToolResult, 1)
	go func() {
		res, _ := f.srv.handleDeleteWorkflow(context.Background(), callTool(map[string]any{"workflowId": w.ID}))
		done <- res
	}()

	// The desktop app answers through the shared table.
	deadline := time.Now().Add(2 * time.Second)
	for {
		pending, err := approvals.ListPendingApprovals()
		if err != nil {
			t.Fatalf("ListPendingApprovals: %v", err)
		}
		if len(pending) == 1 {
			if pending[0].Tool != "delete_workflow" {
				t.Errorf("tool = %q", pending[0].Tool)
			}
			if err := approvals.ResolveApproval(pending[0].ID, true); err != nil {
				t.Fatalf("ResolveApproval: %v", err)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("approval never reached the store")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := resultText(t, <-done); !strings.Contains(got, "deleted") {
		t.Fatalf("result = %q", got)
	}
	if _, err := f.workflows.GetWorkflow(w.ID); err == nil {
		t.Error("workflow should be deleted")
	}
	pending, _ := approvals.ListPendingApprovals()
	if len(pending) != 0 {
		t.Errorf("approval row left behind: %+v", pending)
	}
}

func TestHandleSetTrigger(t *testing.T) {
	f := newFixture(t, false)
	w := f.createWorkflow(t)

	res, err := f.srv.handleSetTrigger(context.Background(), callTool(map[string]any{
		"workflowId": w.ID, "type": "schedule", "schedule": "*/5 * * * *",
	}))
	if err != nil {
		t.Fatalf("set trigger: %v", err)
	}
	if got := resultText(t, res); !strings.Contains(got, "Schedule */5 * * * *") {
		t.Errorf("result = %q", got)
	}

	if _, err := f.srv.handleSetTrigger(context.Background(), callTool(map[string]any{
		"workflowId": w.ID, "type": "schedule", "schedule": "not cron",
	})); err == nil {
		t.Error("expected invalid cron to fail")
	}
}

// ─────────────────────────────────────────────────────────────
// Canvas tools
// ─────────────────────────────────────────────────────────────

func TestHandleGetCanvas(t *testing.T) {
	f := newFixture(t, false)
	w := f.createWorkflow(t, "a", "b")

	res, err := f.srv.handleGetCanvas(context.Background(), callTool(map[string]any{
		"workflowId": w.ID, "width": float64(1200), "height": float64(800),
	}))
	if err != nil {
		t.Fatalf("get canvas: %v", err)
	}
	var scene struct {
		Nodes      []struct{ ID string }
		Connectors []struct {
			From, To string
			Fallback bool
		}
		Anchors []struct{ From, To string }
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &scene); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(scene.Nodes) != 3 || len(scene.Connectors) != 2 || len(scene.Anchors) != 2 {
		t.Fatalf("scene = %+v", scene)
	}
	for _, c := range scene.Connectors {
		if c.Fallback {
			t.Errorf("connector %s -> %s fell back", c.From, c.To)
		}
	}
}

func TestHandleMoveNode(t *testing.T) {
	f := newFixture(t, false)
	w := f.createWorkflow(t, "a")

	res, err := f.srv.handleMoveNode(context.Background(), callTool(map[string]any{
		"workflowId": w.ID, "nodeId": "a", "x": float64(707), "y": float64(413),
		"width": float64(1200), "height": float64(800),
	}))
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if got := resultText(t, res); got != "Node a moved to (700, 420)" {
		t.Errorf("result = %q", got)
	}
	got, _ := f.workflows.GetWorkflow(w.ID)
	if p := got.NodePositions["a"]; p.X != 700 || p.Y != 420 {
		t.Errorf("stored = %+v", p)
	}

	if _, err := f.srv.handleMoveNode(context.Background(), callTool(map[string]any{
		"workflowId": w.ID, "nodeId": "a",
	})); err == nil {
		t.Error("expected error without coordinates")
	}
}

func TestHandleInsertOnEdge(t *testing.T) {
	f := newFixture(t, false)
	w := f.createWorkflow(t, "a", "b")

	_, err := f.srv.handleInsertOnEdge(context.Background(), callTool(map[string]any{
		"workflowId": w.ID, "fromNodeId": "a", "name": "mid",
		"width": float64(1200), "height": float64(800),
	}))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, _ := f.workflows.GetWorkflow(w.ID)
	if len(got.Requests) != 3 || got.Requests[1].Name != "mid" {
		t.Errorf("requests = %+v", got.Requests)
	}

	if _, err := f.srv.handleInsertOnEdge(context.Background(), callTool(map[string]any{
		"workflowId": w.ID, "fromNodeId": "nope",
	})); err == nil {
		t.Error("expected error for unknown connector")
	}
}

func TestHandleComputePath(t *testing.T) {
	f := newFixture(t, false)
	tests := []struct {
		name    string
		args    map[string]any
		wantErr bool
		wantLen int
	}{
		{
			name:    "straight",
			args:    map[string]any{"startX": float64(220), "startY": float64(220), "endX": float64(220), "endY": float64(300), "width": float64(1200), "height": float64(800)},
			wantLen: 2,
		},
		{
			name:    "bad obstacles",
			args:    map[string]any{"startX": float64(0), "startY": float64(0), "endX": float64(0), "endY": float64(100), "obstacles": "{"},
			wantErr: true,
		},
		{
			name:    "missing end",
			args:    map[string]any{"startX": float64(0), "startY": float64(0)},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.srv.handleComputePath(context.Background(), callTool(tt.args))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("compute: %v", err)
			}
			var pts []map[string]float64
			if err := json.Unmarshal([]byte(resultText(t, res)), &pts); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(pts) != tt.wantLen {
				t.Errorf("points = %v", pts)
			}
		})
	}
}

func TestHandleResolvePosition_DoesNotStore(t *testing.T) {
	f := newFixture(t, false)
	w := f.createWorkflow(t, "a")

	res, err := f.srv.handleResolvePosition(context.Background(), callTool(map[string]any{
		"workflowId": w.ID, "nodeId": "a", "x": float64(707), "y": float64(413),
		"width": float64(1200), "height": float64(800),
	}))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	var out struct {
		Point struct{ X, Y float64 }
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Point.X != 700 || out.Point.Y != 420 {
		t.Errorf("point = %+v", out.Point)
	}
	got, _ := f.workflows.GetWorkflow(w.ID)
	if _, ok := got.NodePositions["a"]; ok {
		t.Error("preview must not store a position")
	}
}

// ─────────────────────────────────────────────────────────────
// Resources
// ─────────────────────────────────────────────────────────────

func TestWorkflowIDFromURI(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"reqflow://workflow/abc-123/canvas", "abc-123"},
		{"reqflow://workflow/abc/def/canvas", ""},
		{"reqflow://workflow/abc-123", ""},
		{"reqflow://workflows", ""},
	}
	for _, tt := range tests {
		if got := workflowIDFromURI(tt.uri); got != tt.want {
			t.Errorf("workflowIDFromURI(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}

func TestHandleCanvasResource(t *testing.T) {
	f := newFixture(t, false)
	w := f.createWorkflow(t, "a")

	var req mcp.ReadResourceRequest
	req.Params.URI = "reqflow://workflow/" + w.ID + "/canvas"
	contents, err := f.srv.handleCanvasResource(context.Background(), req)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := contents[0].(mcp.TextResourceContents).Text
	if !strings.Contains(text, `"connectors"`) {
		t.Errorf("resource = %s", text)
	}
}
