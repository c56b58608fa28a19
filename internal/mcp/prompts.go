package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("build_workflow",
		mcp.WithPromptDescription("Guide through building a request workflow on the canvas"),
		mcp.WithArgument("goal",
			mcp.ArgumentDescription("What the workflow should accomplish"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("baseUrl",
			mcp.ArgumentDescription("Base URL of the API the requests call"),
		),
	), s.handleBuildWorkflowPrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("tidy_canvas",
		mcp.WithPromptDescription("Rearrange the nodes of a workflow so connectors route cleanly"),
		mcp.WithArgument("workflowId",
			mcp.ArgumentDescription("Workflow to tidy"),
			mcp.RequiredArgument(),
		),
	), s.handleTidyCanvasPrompt)
}

func (s *Server) handleBuildWorkflowPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	goal := req.Params.Arguments["goal"]
	baseURL := req.Params.Arguments["baseUrl"]
	if baseURL == "" {
		baseURL = "(ask the user)"
	}
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Build a workflow for: %s", goal),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Build a request workflow that will: %s (Base URL: %s). Follow these steps:

1. Use create_workflow with a short descriptive name
2. Pick the trigger with set_trigger: manual, schedule (cron expression) or file_watch (path)
3. Add one request per API call with add_request, in execution order
4. To put a step between two existing ones, use insert_on_edge with the node the connector leaves
5. Call get_canvas and check that no connector reports a fallback route

Nodes are placed automatically below the previous one; only use move_node when the user asks for a specific layout.`, goal, baseURL),
				},
			},
		},
	}, nil
}

func (s *Server) handleTidyCanvasPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	workflowID := req.Params.Arguments["workflowId"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Tidy the canvas of workflow %s", workflowID),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Tidy the canvas of workflow %s. Follow these steps:

1. Read reqflow://workflow/%s/canvas to get node rects and connector polylines
2. Look for connectors with many bends or a fallback route
3. Use resolve_position to preview a better spot for the offending nodes
4. Apply the best spots with move_node, one node at a time
5. Read the canvas again and confirm every connector routes cleanly

Keep execution order top to bottom where possible.`, workflowID, workflowID),
				},
			},
		},
	}, nil
}
