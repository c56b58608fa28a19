package service_test

import (
	"errors"
	"reflect"
	"testing"

	"reqflow/internal/domain"
	"reqflow/internal/service"
)

// ─────────────────────────────────────────────────────────────
// WorkflowService tests (SQLite in a temp dir)
// ─────────────────────────────────────────────────────────────

func requestIDs(w *domain.Workflow) []string {
	ids := make([]string, len(w.Requests))
	for i, r := range w.Requests {
		ids[i] = r.ID
	}
	return ids
}

func TestWorkflowService_CreateDefaults(t *testing.T) {
	svc, emitter := newWorkflowService(t)

	w1, err := svc.CreateWorkflow("")
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}
	w2, err := svc.CreateWorkflow("   ")
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}
	w3, err := svc.CreateWorkflow("  Billing sync ")
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	if w1.Name != "Workflow 1" || w2.Name != "Workflow 2" || w3.Name != "Billing sync" {
		t.Errorf("names = %q, %q, %q", w1.Name, w2.Name, w3.Name)
	}
	if w1.Trigger.Type != domain.TriggerManual || !w1.Trigger.Enabled {
		t.Errorf("trigger = %+v, want enabled manual", w1.Trigger)
	}
	if w1.Viewport.Zoom != 1 {
		t.Errorf("zoom = %v, want 1", w1.Viewport.Zoom)
	}

	list, err := svc.ListWorkflows()
	if err != nil {
		t.Fatalf("ListWorkflows: %v", err)
	}
	if len(list) != 3 {
		t.Errorf("listed %d workflows, want 3", len(list))
	}
	if got := len(emitter.Named(service.EventWorkflowUpdated)); got != 3 {
		t.Errorf("workflow:updated emitted %d times, want 3", got)
	}
}

func TestWorkflowService_Rename(t *testing.T) {
	svc, _ := newWorkflowService(t)
	w, _ := svc.CreateWorkflow("Orders")

	got, err := svc.RenameWorkflow(w.ID, "  Orders v2  ")
	if err != nil {
		t.Fatalf("RenameWorkflow: %v", err)
	}
	if got.Name != "Orders v2" {
		t.Errorf("name = %q, want %q", got.Name, "Orders v2")
	}

	got, err = svc.RenameWorkflow(w.ID, "   ")
	if err != nil {
		t.Fatalf("RenameWorkflow blank: %v", err)
	}
	if got.Name != "Orders v2" {
		t.Errorf("blank rename changed name to %q", got.Name)
	}
}

func TestWorkflowService_DeleteAndNotFound(t *testing.T) {
	svc, emitter := newWorkflowService(t)
	w, _ := svc.CreateWorkflow("")

	if err := svc.DeleteWorkflow(w.ID); err != nil {
		t.Fatalf("DeleteWorkflow: %v", err)
	}
	if len(emitter.Named(service.EventWorkflowDeleted)) != 1 {
		t.Error("expected one workflow:deleted event")
	}
	if _, err := svc.GetWorkflow(w.ID); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("GetWorkflow after delete: err = %v, want ErrNotFound", err)
	}
	if _, err := svc.RenameWorkflow(w.ID, "x"); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("RenameWorkflow after delete: err = %v, want ErrNotFound", err)
	}
}

func TestWorkflowService_AddRequest(t *testing.T) {
	svc, _ := newWorkflowService(t)
	w, _ := svc.CreateWorkflow("")

	tests := []struct {
		id    string
		index int
		want  []string
	}{
		{"a", -1, []string{"a"}},
		{"b", -1, []string{"a", "b"}},
		{"c", 0, []string{"c", "a", "b"}},
		{"d", 2, []string{"c", "a", "d", "b"}},
		{"e", 99, []string{"c", "a", "d", "b", "e"}},
	}
	for _, tt := range tests {
		req, err := svc.AddRequest(w.ID, domain.WorkflowRequest{
			ID:          tt.id,
			Method:      "post",
			InputValues: map[string]string{"stale": "value"},
		}, tt.index)
		if err != nil {
			t.Fatalf("AddRequest(%s): %v", tt.id, err)
		}
		if req.Method != "POST" {
			t.Errorf("method = %q, want POST", req.Method)
		}
		if len(req.InputValues) != 0 {
			t.Errorf("input values not reset: %v", req.InputValues)
		}
		got, _ := svc.GetWorkflow(w.ID)
		if ids := requestIDs(got); !reflect.DeepEqual(ids, tt.want) {
			t.Errorf("after adding %s: order = %v, want %v", tt.id, ids, tt.want)
		}
	}

	if _, err := svc.AddRequest(w.ID, domain.WorkflowRequest{ID: "a"}, -1); err == nil {
		t.Error("expected duplicate id to be rejected")
	}

	req, err := svc.AddRequest(w.ID, domain.WorkflowRequest{Name: "Generated"}, -1)
	if err != nil {
		t.Fatalf("AddRequest: %v", err)
	}
	if req.ID == "" || req.Method != "GET" {
		t.Errorf("generated request = %+v", req)
	}
	if req.Headers == nil || req.OutputFields == nil || req.APIMappings == nil {
		t.Error("expected nil slices to be normalized")
	}
}

func TestWorkflowService_RemoveRequestPurgesPosition(t *testing.T) {
	svc, _ := newWorkflowService(t)
	w, _ := svc.CreateWorkflow("")
	svc.AddRequest(w.ID, domain.WorkflowRequest{ID: "r1"}, -1)
	svc.AddRequest(w.ID, domain.WorkflowRequest{ID: "r2"}, -1)

	_, err := svc.Update(w.ID, func(w *domain.Workflow) error {
		w.NodePositions["r1"] = domain.Point{X: 100, Y: 300}
		w.NodePositions["r2"] = domain.Point{X: 100, Y: 540}
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := svc.RemoveRequest(w.ID, "r1")
	if err != nil {
		t.Fatalf("RemoveRequest: %v", err)
	}
	if ids := requestIDs(got); !reflect.DeepEqual(ids, []string{"r2"}) {
		t.Errorf("requests = %v, want [r2]", ids)
	}

	stored, _ := svc.GetWorkflow(w.ID)
	if _, ok := stored.NodePositions["r1"]; ok {
		t.Error("position of removed request still stored")
	}
	if _, ok := stored.NodePositions["r2"]; !ok {
		t.Error("position of remaining request lost")
	}

	if _, err := svc.RemoveRequest(w.ID, "r1"); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("second remove: err = %v, want ErrNotFound", err)
	}
}

func TestWorkflowService_ReorderRequests(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		want     []string
		wantErr  bool
	}{
		{"forward", 0, 2, []string{"b", "c", "a", "d"}, false},
		{"backward", 3, 1, []string{"a", "d", "b", "c"}, false},
		{"same", 1, 1, []string{"a", "b", "c", "d"}, false},
		{"old out of range", 4, 0, nil, true},
		{"new out of range", 0, -1, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newWorkflowService(t)
			w, _ := svc.CreateWorkflow("")
			for _, id := range []string{"a", "b", "c", "d"} {
				svc.AddRequest(w.ID, domain.WorkflowRequest{ID: id}, -1)
			}

			got, err := svc.ReorderRequests(w.ID, tt.from, tt.to)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				stored, _ := svc.GetWorkflow(w.ID)
				if ids := requestIDs(stored); !reflect.DeepEqual(ids, []string{"a", "b", "c", "d"}) {
					t.Errorf("failed reorder changed order to %v", ids)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReorderRequests: %v", err)
			}
			if ids := requestIDs(got); !reflect.DeepEqual(ids, tt.want) {
				t.Errorf("order = %v, want %v", ids, tt.want)
			}
		})
	}
}

func TestWorkflowService_UpdateInputValue(t *testing.T) {
	svc, _ := newWorkflowService(t)
	w, _ := svc.CreateWorkflow("")
	svc.AddRequest(w.ID, domain.WorkflowRequest{ID: "r1"}, -1)

	if _, err := svc.UpdateInputValue(w.ID, "r1", "userId", "42"); err != nil {
		t.Fatalf("UpdateInputValue: %v", err)
	}
	if _, err := svc.UpdateInputValue(w.ID, "r1", "token", "abc"); err != nil {
		t.Fatalf("UpdateInputValue: %v", err)
	}
	got, _ := svc.GetWorkflow(w.ID)
	want := map[string]string{"userId": "42", "token": "abc"}
	if !reflect.DeepEqual(got.Requests[0].InputValues, want) {
		t.Errorf("input values = %v, want %v", got.Requests[0].InputValues, want)
	}

	if _, err := svc.UpdateInputValue(w.ID, "missing", "a", "b"); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestWorkflowService_UpdateRequest(t *testing.T) {
	svc, _ := newWorkflowService(t)
	w, _ := svc.CreateWorkflow("")
	svc.AddRequest(w.ID, domain.WorkflowRequest{ID: "r1", Name: "Old"}, -1)

	got, err := svc.UpdateRequest(w.ID, domain.WorkflowRequest{ID: "r1", Name: "New", Method: "delete", URL: "https://api.example.com/x"})
	if err != nil {
		t.Fatalf("UpdateRequest: %v", err)
	}
	r := got.Requests[0]
	if r.Name != "New" || r.Method != "DELETE" || r.URL != "https://api.example.com/x" {
		t.Errorf("request = %+v", r)
	}
	if _, err := svc.UpdateRequest(w.ID, domain.WorkflowRequest{ID: "nope"}); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestExtractOutputFields(t *testing.T) {
	tests := []struct {
		name  string
		body  any
		paths []string
	}{
		{"scalar root", "hello", nil},
		{"array root", []any{map[string]any{"id": 1.0}}, nil},
		{"flat", map[string]any{"id": 1.0, "name": "a"}, []string{"id", "name"}},
		{
			"nested",
			map[string]any{
				"data": map[string]any{
					"token": "t",
					"user":  map[string]any{"id": 7.0, "active": true},
				},
				"ok": true,
			},
			[]string{"data.token", "data.user.active", "data.user.id", "ok"},
		},
		{"arrays are leaves", map[string]any{"items": []any{1.0, 2.0}, "total": 2.0}, []string{"items", "total"}},
		{
			"nested arrays are leaves",
			map[string]any{
				"id":    1.0,
				"items": []any{1.0, 2.0},
				"user":  map[string]any{"tags": []any{"a"}, "name": "x"},
			},
			[]string{"id", "items", "user.name", "user.tags"},
		},
		{"empty object adds nothing", map[string]any{"meta": map[string]any{}}, nil},
		{"null leaf kept", map[string]any{"next": nil}, []string{"next"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var paths []string
			for _, f := range service.ExtractOutputFields(tt.body) {
				paths = append(paths, f.Path)
			}
			if !reflect.DeepEqual(paths, tt.paths) {
				t.Errorf("paths = %v, want %v", paths, tt.paths)
			}
		})
	}
}

func TestWorkflowService_AddOutputFieldsFromResponse(t *testing.T) {
	svc, _ := newWorkflowService(t)
	w, _ := svc.CreateWorkflow("")
	svc.AddRequest(w.ID, domain.WorkflowRequest{
		ID:           "r1",
		OutputFields: []domain.OutputField{{Name: "token", Path: "data.token"}},
	}, -1)

	added, err := svc.AddOutputFieldsFromResponse(w.ID, "r1", []byte(`{"data":{"token":"x","expires":3600},"tags":["a"]}`))
	if err != nil {
		t.Fatalf("AddOutputFieldsFromResponse: %v", err)
	}
	var paths []string
	for _, f := range added {
		paths = append(paths, f.Path)
	}
	if want := []string{"data.expires", "tags"}; !reflect.DeepEqual(paths, want) {
		t.Errorf("added paths = %v, want %v", paths, want)
	}

	// Running it again adds nothing.
	added, err = svc.AddOutputFieldsFromResponse(w.ID, "r1", []byte(`{"data":{"token":"y","expires":1}}`))
	if err != nil {
		t.Fatalf("AddOutputFieldsFromResponse: %v", err)
	}
	if len(added) != 0 {
		t.Errorf("second call added %+v", added)
	}

	got, _ := svc.GetWorkflow(w.ID)
	if n := len(got.Requests[0].OutputFields); n != 3 {
		t.Errorf("output fields = %d, want 3", n)
	}

	if _, err := svc.AddOutputFieldsFromResponse(w.ID, "r1", []byte(`{not json`)); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidateTrigger(t *testing.T) {
	tests := []struct {
		name    string
		trigger domain.Trigger
		wantErr bool
	}{
		{"manual", domain.Trigger{Type: domain.TriggerManual}, false},
		{"schedule", domain.Trigger{Type: domain.TriggerSchedule, Schedule: "*/5 * * * *"}, false},
		{"schedule descriptor", domain.Trigger{Type: domain.TriggerSchedule, Schedule: "@hourly"}, false},
		{"bad schedule", domain.Trigger{Type: domain.TriggerSchedule, Schedule: "every five"}, true},
		{"empty schedule", domain.Trigger{Type: domain.TriggerSchedule}, true},
		{"file watch", domain.Trigger{Type: domain.TriggerFileWatch, Path: "/tmp/in.csv"}, false},
		{"file watch without path", domain.Trigger{Type: domain.TriggerFileWatch, Path: " "}, true},
		{"unknown", domain.Trigger{Type: "webhook"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.ValidateTrigger(tt.trigger)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWorkflowService_SetTriggerAndViewport(t *testing.T) {
	svc, _ := newWorkflowService(t)
	w, _ := svc.CreateWorkflow("")

	trig := domain.Trigger{Type: domain.TriggerSchedule, Schedule: "0 9 * * 1-5", Enabled: true}
	if _, err := svc.SetTrigger(w.ID, trig); err != nil {
		t.Fatalf("SetTrigger: %v", err)
	}
	if _, err := svc.SetTrigger(w.ID, domain.Trigger{Type: domain.TriggerSchedule, Schedule: "bad"}); err == nil {
		t.Error("expected invalid schedule to be rejected")
	}

	vp := domain.Viewport{X: -120, Y: 40, Zoom: 1.5}
	if _, err := svc.SaveViewport(w.ID, vp); err != nil {
		t.Fatalf("SaveViewport: %v", err)
	}
	if _, err := svc.SaveViewport(w.ID, domain.Viewport{Zoom: 0}); err == nil {
		t.Error("expected zero zoom to be rejected")
	}

	got, _ := svc.GetWorkflow(w.ID)
	if got.Trigger != trig {
		t.Errorf("trigger = %+v, want %+v", got.Trigger, trig)
	}
	if got.Viewport != vp {
		t.Errorf("viewport = %+v, want %+v", got.Viewport, vp)
	}
}
