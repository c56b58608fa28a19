package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"reqflow/internal/domain"
)

// ErrNotFound is returned when a workflow or request does not exist.
var ErrNotFound = domain.ErrNotFound

// ─────────────────────────────────────────────────────────────
// Workflow Service: workflows, their requests and stored state
// ─────────────────────────────────────────────────────────────

// WorkflowService manages workflows. Every mutation is a load, modify,
// save cycle under one lock, followed by a workflow:updated event.
type WorkflowService struct {
	store   domain.WorkflowStore
	emitter EventEmitter
	mu      sync.Mutex
}

// NewWorkflowService creates a WorkflowService.
func NewWorkflowService(store domain.WorkflowStore, emitter EventEmitter) *WorkflowService {
	return &WorkflowService{store: store, emitter: emitter}
}

// CreateWorkflow adds a workflow with a manual trigger and no requests.
// An empty name becomes "Workflow N".
func (s *WorkflowService) CreateWorkflow(name string) (*domain.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		n, err := s.store.CountWorkflows()
		if err != nil {
			return nil, fmt.Errorf("create workflow: %w", err)
		}
		name = fmt.Sprintf("Workflow %d", n+1)
	}
	now := time.Now()
	w := &domain.Workflow{
		ID:            uuid.New().String(),
		Name:          name,
		Trigger:       domain.Trigger{Type: domain.TriggerManual, Enabled: true},
		Requests:      []domain.WorkflowRequest{},
		NodePositions: map[string]domain.Point{},
		Viewport:      domain.Viewport{Zoom: 1},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateWorkflow(w); err != nil {
		return nil, fmt.Errorf("create workflow: %w", err)
	}
	s.emitter.Emit(context.Background(), EventWorkflowUpdated, w.ID)
	return w, nil
}

// GetWorkflow returns a workflow by ID.
func (s *WorkflowService) GetWorkflow(id string) (*domain.Workflow, error) {
	return s.store.GetWorkflow(id)
}

// ListWorkflows returns every workflow summary in creation order.
func (s *WorkflowService) ListWorkflows() ([]domain.WorkflowSummary, error) {
	return s.store.ListWorkflows()
}

// DeleteWorkflow removes a workflow and its node positions.
func (s *WorkflowService) DeleteWorkflow(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.DeleteWorkflow(id); err != nil {
		return err
	}
	s.emitter.Emit(context.Background(), EventWorkflowDeleted, id)
	return nil
}

// Update loads workflow id, applies fn and saves the result. fn runs
// under the service lock; returning an error leaves the store untouched.
func (s *WorkflowService) Update(id string, fn func(w *domain.Workflow) error) (*domain.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.store.GetWorkflow(id)
	if err != nil {
		return nil, err
	}
	if err := fn(w); err != nil {
		return nil, err
	}
	w.UpdatedAt = time.Now()
	if err := s.store.SaveWorkflow(w); err != nil {
		return nil, fmt.Errorf("save workflow: %w", err)
	}
	s.emitter.Emit(context.Background(), EventWorkflowUpdated, w.ID)
	return w, nil
}

// RenameWorkflow sets a trimmed name. A blank name is ignored.
func (s *WorkflowService) RenameWorkflow(id, name string) (*domain.Workflow, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return s.store.GetWorkflow(id)
	}
	return s.Update(id, func(w *domain.Workflow) error {
		w.Name = name
		return nil
	})
}

// SetTrigger replaces the workflow trigger after validating it.
func (s *WorkflowService) SetTrigger(id string, t domain.Trigger) (*domain.Workflow, error) {
	if err := ValidateTrigger(t); err != nil {
		return nil, err
	}
	return s.Update(id, func(w *domain.Workflow) error {
		w.Trigger = t
		return nil
	})
}

// ValidateTrigger checks that a trigger can be scheduled.
func ValidateTrigger(t domain.Trigger) error {
	switch t.Type {
	case domain.TriggerManual:
		return nil
	case domain.TriggerSchedule:
		if _, err := cron.ParseStandard(t.Schedule); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", t.Schedule, err)
		}
		return nil
	case domain.TriggerFileWatch:
		if strings.TrimSpace(t.Path) == "" {
			return fmt.Errorf("file watch trigger needs a path")
		}
		return nil
	default:
		return fmt.Errorf("unknown trigger type %q", t.Type)
	}
}

// AddRequest inserts req at index, or appends it when index is negative or
// past the end. A missing ID is generated and input values start empty.
func (s *WorkflowService) AddRequest(id string, req domain.WorkflowRequest, index int) (*domain.WorkflowRequest, error) {
	req = newRequest(req)
	_, err := s.Update(id, func(w *domain.Workflow) error {
		return insertRequest(w, req, index)
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// newRequest prepares a request for insertion.
func newRequest(req domain.WorkflowRequest) domain.WorkflowRequest {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	normalizeRequest(&req)
	req.InputValues = map[string]string{}
	return req
}

func insertRequest(w *domain.Workflow, req domain.WorkflowRequest, index int) error {
	if req.ID == domain.TriggerNodeID || w.RequestIndex(req.ID) >= 0 {
		return fmt.Errorf("request %s already exists", req.ID)
	}
	if index < 0 || index > len(w.Requests) {
		index = len(w.Requests)
	}
	w.Requests = append(w.Requests, domain.WorkflowRequest{})
	copy(w.Requests[index+1:], w.Requests[index:])
	w.Requests[index] = req
	return nil
}

// UpdateRequest replaces the request with the same ID.
func (s *WorkflowService) UpdateRequest(id string, req domain.WorkflowRequest) (*domain.Workflow, error) {
	normalizeRequest(&req)
	return s.Update(id, func(w *domain.Workflow) error {
		i := w.RequestIndex(req.ID)
		if i < 0 {
			return fmt.Errorf("request %s: %w", req.ID, ErrNotFound)
		}
		w.Requests[i] = req
		return nil
	})
}

// RemoveRequest deletes a request and purges its stored position.
func (s *WorkflowService) RemoveRequest(id, requestID string) (*domain.Workflow, error) {
	return s.Update(id, func(w *domain.Workflow) error {
		i := w.RequestIndex(requestID)
		if i < 0 {
			return fmt.Errorf("request %s: %w", requestID, ErrNotFound)
		}
		w.Requests = append(w.Requests[:i], w.Requests[i+1:]...)
		delete(w.NodePositions, requestID)
		return nil
	})
}

// ReorderRequests moves the request at oldIndex to newIndex.
func (s *WorkflowService) ReorderRequests(id string, oldIndex, newIndex int) (*domain.Workflow, error) {
	return s.Update(id, func(w *domain.Workflow) error {
		n := len(w.Requests)
		if oldIndex < 0 || oldIndex >= n || newIndex < 0 || newIndex >= n {
			return fmt.Errorf("reorder %d -> %d: index out of range [0,%d)", oldIndex, newIndex, n)
		}
		moved := w.Requests[oldIndex]
		rest := append(w.Requests[:oldIndex:oldIndex], w.Requests[oldIndex+1:]...)
		out := make([]domain.WorkflowRequest, 0, n)
		out = append(out, rest[:newIndex]...)
		out = append(out, moved)
		out = append(out, rest[newIndex:]...)
		w.Requests = out
		return nil
	})
}

// UpdateInputValue sets one input value of a request.
func (s *WorkflowService) UpdateInputValue(id, requestID, field, value string) (*domain.Workflow, error) {
	return s.Update(id, func(w *domain.Workflow) error {
		i := w.RequestIndex(requestID)
		if i < 0 {
			return fmt.Errorf("request %s: %w", requestID, ErrNotFound)
		}
		if w.Requests[i].InputValues == nil {
			w.Requests[i].InputValues = map[string]string{}
		}
		w.Requests[i].InputValues[field] = value
		return nil
	})
}

// AddOutputFieldsFromResponse records every scalar leaf of a JSON object
// response as an output field of the request. Nested objects contribute
// dotted paths; arrays are skipped. Paths already recorded are not added
// again. It returns the fields that were added.
func (s *WorkflowService) AddOutputFieldsFromResponse(id, requestID string, response []byte) ([]domain.OutputField, error) {
	var body any
	if err := json.Unmarshal(response, &body); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	var added []domain.OutputField
	_, err := s.Update(id, func(w *domain.Workflow) error {
		i := w.RequestIndex(requestID)
		if i < 0 {
			return fmt.Errorf("request %s: %w", requestID, ErrNotFound)
		}
		req := &w.Requests[i]
		seen := make(map[string]bool, len(req.OutputFields))
		for _, f := range req.OutputFields {
			seen[f.Path] = true
		}
		for _, f := range ExtractOutputFields(body) {
			if seen[f.Path] {
				continue
			}
			seen[f.Path] = true
			req.OutputFields = append(req.OutputFields, f)
			added = append(added, f)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// ExtractOutputFields flattens a decoded JSON object into output fields, in
// key order. Nested objects are walked; every other value, arrays included,
// becomes a field.
func ExtractOutputFields(v any) []domain.OutputField {
	var out []domain.OutputField
	var walk func(obj map[string]any, prefix string)
	walk = func(obj map[string]any, prefix string) {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			path := k
			if prefix != "" {
				path = prefix + "." + k
			}
			switch child := obj[k].(type) {
			case map[string]any:
				walk(child, path)
			default:
				out = append(out, domain.OutputField{
					Name:        k,
					Path:        path,
					Description: "extracted from response: " + path,
				})
			}
		}
	}
	if obj, ok := v.(map[string]any); ok {
		walk(obj, "")
	}
	return out
}

// SaveViewport persists the canvas pan and zoom of a workflow.
func (s *WorkflowService) SaveViewport(id string, vp domain.Viewport) (*domain.Workflow, error) {
	if vp.Zoom <= 0 {
		return nil, fmt.Errorf("viewport zoom must be positive, got %v", vp.Zoom)
	}
	return s.Update(id, func(w *domain.Workflow) error {
		w.Viewport = vp
		return nil
	})
}

func normalizeRequest(r *domain.WorkflowRequest) {
	if r.Method == "" {
		r.Method = "GET"
	}
	r.Method = strings.ToUpper(r.Method)
	if r.Headers == nil {
		r.Headers = []domain.HTTPParam{}
	}
	if r.Params == nil {
		r.Params = []domain.HTTPParam{}
	}
	if r.InputFields == nil {
		r.InputFields = []domain.ParamField{}
	}
	if r.OutputFields == nil {
		r.OutputFields = []domain.OutputField{}
	}
	if r.InputValues == nil {
		r.InputValues = map[string]string{}
	}
	if r.APIMappings == nil {
		r.APIMappings = []domain.APIMapping{}
	}
}
