package app

import (
	"reqflow/internal/domain"
	"reqflow/internal/service"
)

// ============================================================
// Workflows
// ============================================================

func (a *App) ListWorkflows() ([]domain.WorkflowSummary, error) {
	return a.workflows.ListWorkflows()
}

func (a *App) CreateWorkflow(name string) (*domain.Workflow, error) {
	return a.workflows.CreateWorkflow(name)
}

// OpenWorkflow loads a workflow and makes it the watched, remembered one.
func (a *App) OpenWorkflow(id string) (*domain.Workflow, error) {
	w, err := a.workflows.GetWorkflow(id)
	if err != nil {
		return nil, err
	}
	a.watcher.SetWorkflow(id)
	a.settings.SetLastWorkflow(id)
	return w, nil
}

func (a *App) RenameWorkflow(id, name string) (*domain.Workflow, error) {
	return a.workflows.RenameWorkflow(id, name)
}

func (a *App) DeleteWorkflow(id string) error {
	if err := a.workflows.DeleteWorkflow(id); err != nil {
		return err
	}
	return a.triggers.Restart(a.ctx)
}

// SetTrigger replaces the trigger node and reschedules watchers.
func (a *App) SetTrigger(id string, t domain.Trigger) (*domain.Workflow, error) {
	w, err := a.workflows.SetTrigger(id, t)
	if err != nil {
		return nil, err
	}
	if err := a.triggers.Restart(a.ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// RunWorkflow fires a workflow manually.
func (a *App) RunWorkflow(id string) error {
	return a.triggers.Fire(a.ctx, id, service.SourceManual)
}

// ── Requests ───────────────────────────────────────────────

func (a *App) AddRequest(workflowID string, req domain.WorkflowRequest, index int) (*domain.WorkflowRequest, error) {
	return a.workflows.AddRequest(workflowID, req, index)
}

func (a *App) UpdateRequest(workflowID string, req domain.WorkflowRequest) (*domain.Workflow, error) {
	return a.workflows.UpdateRequest(workflowID, req)
}

func (a *App) RemoveRequest(workflowID, requestID string) (*domain.Workflow, error) {
	return a.workflows.RemoveRequest(workflowID, requestID)
}

func (a *App) ReorderRequests(workflowID string, oldIndex, newIndex int) (*domain.Workflow, error) {
	return a.workflows.ReorderRequests(workflowID, oldIndex, newIndex)
}

func (a *App) UpdateInputValue(workflowID, requestID, field, value string) (*domain.Workflow, error) {
	return a.workflows.UpdateInputValue(workflowID, requestID, field, value)
}

// AddOutputFieldsFromResponse records the JSON leaves of a response body as
// output fields of the request.
func (a *App) AddOutputFieldsFromResponse(workflowID, requestID, body string) ([]domain.OutputField, error) {
	return a.workflows.AddOutputFieldsFromResponse(workflowID, requestID, []byte(body))
}
