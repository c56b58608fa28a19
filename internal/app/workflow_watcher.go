package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"reqflow/internal/domain"
	"reqflow/internal/service"
	"reqflow/internal/storage"
)

// workflowSource is the part of WorkflowService the watcher reads.
type workflowSource interface {
	GetWorkflow(id string) (*domain.Workflow, error)
	ListWorkflows() ([]domain.WorkflowSummary, error)
}

// approvalSource lists actions the standalone MCP process is waiting on.
type approvalSource interface {
	ListPendingApprovals() ([]storage.Approval, error)
}

// workflowWatcher polls the stores for changes made by another process
// (the standalone MCP server) and emits events so the frontend refreshes.
type workflowWatcher struct {
	ctx       context.Context
	workflows workflowSource
	approvals approvalSource
	emitter   service.EventEmitter
	interval  time.Duration

	mu         sync.Mutex
	workflowID string
	lastOpen   string // open workflow updated_at fingerprint
	lastList   string // workflow list fingerprint (count + max updated_at)
	stopCh     chan struct{}
	// approval ids already sent, so each one is announced once
	emittedApprovals map[string]bool
}

func newWorkflowWatcher(ctx context.Context, workflows workflowSource, approvals approvalSource, emitter service.EventEmitter) *workflowWatcher {
	return &workflowWatcher{
		ctx:              ctx,
		workflows:        workflows,
		approvals:        approvals,
		emitter:          emitter,
		interval:         2 * time.Second,
		emittedApprovals: map[string]bool{},
	}
}

// SetWorkflow changes the watched workflow. Called when the user opens one.
func (w *workflowWatcher) SetWorkflow(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.workflowID = id
	w.lastOpen = ""
}

// Start begins the polling loop. Should be called once on app startup.
func (w *workflowWatcher) Start() {
	w.stopCh = make(chan struct{})
	go w.pollLoop(w.stopCh)
}

// Stop terminates the polling loop.
func (w *workflowWatcher) Stop() {
	if w.stopCh != nil {
		close(w.stopCh)
		w.stopCh = nil
	}
}

func (w *workflowWatcher) pollLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.check()
		case <-stop:
			return
		case <-w.ctx.Done():
			return
		}
	}
}

func (w *workflowWatcher) check() {
	w.mu.Lock()
	workflowID := w.workflowID
	w.mu.Unlock()

	// ── Open workflow updated_at ───────────────────────
	var openFingerprint string
	if workflowID != "" {
		if wf, err := w.workflows.GetWorkflow(workflowID); err == nil {
			openFingerprint = wf.UpdatedAt.UTC().Format(time.RFC3339Nano)
		}
	}

	// ── Workflow list (sidebar) ────────────────────────
	var listFingerprint string
	if list, err := w.workflows.ListWorkflows(); err == nil {
		var latest time.Time
		for _, s := range list {
			if s.UpdatedAt.After(latest) {
				latest = s.UpdatedAt
			}
		}
		listFingerprint = fmt.Sprintf("%d:%d", len(list), latest.UnixMilli())
	}

	w.mu.Lock()
	openChanged := w.lastOpen != "" && openFingerprint != "" && w.lastOpen != openFingerprint
	listChanged := w.lastList != "" && listFingerprint != "" && w.lastList != listFingerprint
	if openFingerprint != "" {
		w.lastOpen = openFingerprint
	}
	if listFingerprint != "" {
		w.lastList = listFingerprint
	}
	w.mu.Unlock()

	// ── Emit events ────────────────────────────────────
	if openChanged {
		w.emitter.Emit(w.ctx, "mcp:workflow-changed", map[string]string{"workflowId": workflowID})
	}
	if listChanged {
		w.emitter.Emit(w.ctx, "mcp:workflows-changed", nil)
	}

	w.checkApprovals()
}

// checkApprovals announces new pending approvals and forgets resolved ones.
func (w *workflowWatcher) checkApprovals() {
	if w.approvals == nil {
		return
	}
	pending, err := w.approvals.ListPendingApprovals()
	if err != nil {
		return
	}

	live := make(map[string]bool, len(pending))
	var fresh []storage.Approval
	w.mu.Lock()
	for _, a := range pending {
		live[a.ID] = true
		if !w.emittedApprovals[a.ID] {
			w.emittedApprovals[a.ID] = true
			fresh = append(fresh, a)
		}
	}
	for id := range w.emittedApprovals {
		if !live[id] {
			delete(w.emittedApprovals, id)
		}
	}
	w.mu.Unlock()

	for _, a := range fresh {
		w.emitter.Emit(w.ctx, "mcp:approval-required", map[string]string{
			"id":          a.ID,
			"tool":        a.Tool,
			"description": a.Description,
			"createdAt":   a.CreatedAt.UTC().Format(time.RFC3339),
			"metadata":    a.Metadata,
		})
	}
}
