package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"reqflow/internal/domain"
	"reqflow/internal/service"
)

func (s *Server) registerWorkflowTools() {
	// ── list_workflows ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_workflows",
		mcp.WithDescription("List all workflows with their request counts"),
	), s.handleListWorkflows)

	// ── create_workflow ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_workflow",
		mcp.WithDescription("Create a workflow with a manual trigger. Name defaults to \"Workflow N\"."),
		mcp.WithString("name", mcp.Description("Workflow name")),
	), s.handleCreateWorkflow)

	// ── add_request ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("add_request",
		mcp.WithDescription("Add an HTTP request node. Without index it is appended below the last node; with index it is inserted at that position in execution order."),
		mcp.WithString("workflowId", mcp.Description("Workflow ID"), mcp.Required()),
		mcp.WithString("name", mcp.Description("Request name shown on the node")),
		mcp.WithString("method", mcp.Description("HTTP method (default GET)")),
		mcp.WithString("url", mcp.Description("Request URL")),
		mcp.WithString("body", mcp.Description("Request body")),
		mcp.WithString("request", mcp.Description("Full request as JSON; overrides the other fields")),
		mcp.WithNumber("index", mcp.Description("Position in execution order (0 = right after the trigger)")),
		mcp.WithNumber("width", mcp.Description("Canvas width in world units (optional)")),
		mcp.WithNumber("height", mcp.Description("Canvas height in world units (optional)")),
	), s.handleAddRequest)

	// ── remove_request ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("remove_request",
		mcp.WithDescription("🛑 DESTRUCTIVE: Remove a request node and its stored position. Requires user approval."),
		mcp.WithString("workflowId", mcp.Description("Workflow ID"), mcp.Required()),
		mcp.WithString("requestId", mcp.Description("Request ID"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRemoveRequest)

	// ── delete_workflow ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("delete_workflow",
		mcp.WithDescription("🛑 DESTRUCTIVE: Delete a workflow. Requires user approval."),
		mcp.WithString("workflowId", mcp.Description("Workflow ID"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteWorkflow)

	// ── set_trigger ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_trigger",
		mcp.WithDescription("Set the trigger node: manual, schedule (cron expression) or file_watch (path)"),
		mcp.WithString("workflowId", mcp.Description("Workflow ID"), mcp.Required()),
		mcp.WithString("type", mcp.Description("manual, schedule or file_watch"), mcp.Required()),
		mcp.WithString("schedule", mcp.Description("Cron expression for schedule triggers")),
		mcp.WithString("path", mcp.Description("Watched path for file_watch triggers")),
	), s.handleSetTrigger)

	if s.triggers != nil {
		// ── fire_workflow ──────────────────────────────
		s.mcp.AddTool(mcp.NewTool("fire_workflow",
			mcp.WithDescription("Run a workflow now, as if its trigger had fired"),
			mcp.WithString("workflowId", mcp.Description("Workflow ID"), mcp.Required()),
		), s.handleFireWorkflow)
	}
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleListWorkflows(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.workflows.ListWorkflows()
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	if list == nil {
		list = []domain.WorkflowSummary{}
	}
	return jsonResult(list)
}

func (s *Server) handleCreateWorkflow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	w, err := s.workflows.CreateWorkflow(req.GetString("name", ""))
	if err != nil {
		return nil, fmt.Errorf("create workflow: %w", err)
	}
	s.emitWorkflowChanged(ctx, w.ID)
	return jsonResult(w)
}

func (s *Server) handleAddRequest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	workflowID, err := requireString(args, "workflowId")
	if err != nil {
		return nil, err
	}
	r, err := requestFromArgs(args)
	if err != nil {
		return nil, err
	}

	var added *domain.WorkflowRequest
	if idx, ok := args["index"].(float64); ok {
		added, err = s.workflows.AddRequest(workflowID, r, int(idx))
	} else {
		added, _, err = s.canvas.AppendRequest(workflowID, r, canvasBounds(args))
	}
	if err != nil {
		return nil, fmt.Errorf("add request: %w", err)
	}
	s.emitWorkflowChanged(ctx, workflowID)
	return jsonResult(added)
}

func (s *Server) handleRemoveRequest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	workflowID, err := requireString(args, "workflowId")
	if err != nil {
		return nil, err
	}
	requestID, err := requireString(args, "requestId")
	if err != nil {
		return nil, err
	}
	w, err := s.workflows.GetWorkflow(workflowID)
	if err != nil {
		return nil, err
	}
	i := w.RequestIndex(requestID)
	if i < 0 {
		return nil, fmt.Errorf("request %s: %w", requestID, service.ErrNotFound)
	}

	meta := fmt.Sprintf(`{"workflowId":%q,"requestId":%q}`, workflowID, requestID)
	approved, err := s.approval.Request("remove_request",
		fmt.Sprintf("Remove request %q from workflow %q", displayName(w.Requests[i]), w.Name), meta)
	if err != nil || !approved {
		return textResult("Action rejected by user"), nil
	}

	if _, err := s.workflows.RemoveRequest(workflowID, requestID); err != nil {
		return nil, fmt.Errorf("remove request: %w", err)
	}
	s.emitWorkflowChanged(ctx, workflowID)
	return textResult(fmt.Sprintf("Request %s removed", requestID)), nil
}

func (s *Server) handleDeleteWorkflow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := requireString(req.GetArguments(), "workflowId")
	if err != nil {
		return nil, err
	}
	w, err := s.workflows.GetWorkflow(workflowID)
	if err != nil {
		return nil, err
	}

	meta := fmt.Sprintf(`{"workflowId":%q}`, workflowID)
	approved, err := s.approval.Request("delete_workflow",
		fmt.Sprintf("Delete workflow %q with %d request(s)", w.Name, len(w.Requests)), meta)
	if err != nil || !approved {
		return textResult("Action rejected by user"), nil
	}

	if err := s.workflows.DeleteWorkflow(workflowID); err != nil {
		return nil, fmt.Errorf("delete workflow: %w", err)
	}
	s.emitWorkflowChanged(ctx, workflowID)
	return textResult(fmt.Sprintf("Workflow %s deleted", workflowID)), nil
}

func (s *Server) handleSetTrigger(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	workflowID, err := requireString(args, "workflowId")
	if err != nil {
		return nil, err
	}
	t := domain.Trigger{
		Type:     domain.TriggerType(getString(args, "type")),
		Schedule: getString(args, "schedule"),
		Path:     getString(args, "path"),
		Enabled:  true,
	}
	w, err := s.workflows.SetTrigger(workflowID, t)
	if err != nil {
		return nil, fmt.Errorf("set trigger: %w", err)
	}
	if s.triggers != nil {
		if err := s.triggers.Restart(ctx); err != nil {
			return nil, err
		}
	}
	s.emitWorkflowChanged(ctx, workflowID)
	return textResult(fmt.Sprintf("Trigger of %s set to %s", w.Name, w.Trigger.Label())), nil
}

func (s *Server) handleFireWorkflow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := requireString(req.GetArguments(), "workflowId")
	if err != nil {
		return nil, err
	}
	if err := s.triggers.Fire(ctx, workflowID, service.SourceManual); err != nil {
		return nil, fmt.Errorf("fire workflow: %w", err)
	}
	return textResult(fmt.Sprintf("Workflow %s ran", workflowID)), nil
}

// requestFromArgs builds a request from either the "request" JSON argument
// or the individual fields.
func requestFromArgs(args map[string]any) (domain.WorkflowRequest, error) {
	var r domain.WorkflowRequest
	if raw := getString(args, "request"); raw != "" {
		if err := parseJSON(raw, &r); err != nil {
			return r, fmt.Errorf("invalid request JSON: %w", err)
		}
		return r, nil
	}
	r.Name = getString(args, "name")
	r.Method = getString(args, "method")
	r.URL = getString(args, "url")
	r.Body = getString(args, "body")
	return r, nil
}

func displayName(r domain.WorkflowRequest) string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}
