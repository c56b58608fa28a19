package mcpserver

import (
	"context"
	"log"

	"github.com/mark3labs/mcp-go/server"

	"reqflow/internal/service"
)

// Server is the MCP server for reqflow. It exposes the workflow canvas as
// tools, resources and prompts so AI agents can build and lay out workflows.
type Server struct {
	mcp      *server.MCPServer
	emitter  EventEmitter
	approval *ApprovalQueue

	// Services (injected from app layer)
	workflows *service.WorkflowService
	canvas    *service.CanvasService
	triggers  *service.TriggerService
}

// Deps holds all dependencies passed from the App layer to the MCP server.
type Deps struct {
	Emitter   EventEmitter
	Workflows *service.WorkflowService
	Canvas    *service.CanvasService
	Triggers  *service.TriggerService // optional; fire_workflow is not registered without it
	Approvals ApprovalStore           // when set, approvals go through the shared table (standalone mode)
}

// New creates and configures a new MCP server with all tools and resources.
func New(ctx context.Context, deps Deps) *Server {
	approval := NewApprovalQueue(ctx, deps.Emitter)
	if deps.Approvals != nil {
		approval.SetStore(deps.Approvals)
	}
	s := &Server{
		emitter:   deps.Emitter,
		approval:  approval,
		workflows: deps.Workflows,
		canvas:    deps.Canvas,
		triggers:  deps.Triggers,
	}

	s.mcp = server.NewMCPServer(
		"reqflow-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerWorkflowTools()
	s.registerCanvasTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	log.Println("[MCP] Starting stdio server...")
	return server.ServeStdio(s.mcp)
}

// Approve forwards a user approval to the approval queue.
func (s *Server) Approve(actionID string) {
	s.approval.Approve(actionID)
}

// Reject forwards a user rejection to the approval queue.
func (s *Server) Reject(actionID string) {
	s.approval.Reject(actionID)
}

// emitWorkflowChanged notifies the frontend that an agent edited a workflow.
func (s *Server) emitWorkflowChanged(ctx context.Context, workflowID string) {
	s.emitter.Emit(ctx, "mcp:workflow-changed", map[string]string{"workflowId": workflowID})
}
