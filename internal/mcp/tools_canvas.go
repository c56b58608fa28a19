package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"reqflow/internal/geom"
)

func (s *Server) registerCanvasTools() {
	// ── get_canvas ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_canvas",
		mcp.WithDescription("Lay out a workflow canvas: node rects, routed connectors, insert anchors and visibility"),
		mcp.WithString("workflowId", mcp.Description("Workflow ID"), mcp.Required()),
		mcp.WithNumber("width", mcp.Description("Canvas width in world units (optional, default unbounded)")),
		mcp.WithNumber("height", mcp.Description("Canvas height in world units (optional)")),
		mcp.WithNumber("screenWidth", mcp.Description("Visible viewport width in pixels (optional)")),
		mcp.WithNumber("screenHeight", mcp.Description("Visible viewport height in pixels (optional)")),
	), s.handleGetCanvas)

	// ── move_node ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("move_node",
		mcp.WithDescription("Move a node. The position is snapped to the grid, kept on the canvas and nudged to the nearest spot that overlaps no other node."),
		mcp.WithString("workflowId", mcp.Description("Workflow ID"), mcp.Required()),
		mcp.WithString("nodeId", mcp.Description("Node ID (\"trigger\" or a request ID)"), mcp.Required()),
		mcp.WithNumber("x", mcp.Description("Desired top-left X"), mcp.Required()),
		mcp.WithNumber("y", mcp.Description("Desired top-left Y"), mcp.Required()),
		mcp.WithNumber("width", mcp.Description("Canvas width in world units (optional)")),
		mcp.WithNumber("height", mcp.Description("Canvas height in world units (optional)")),
	), s.handleMoveNode)

	// ── insert_on_edge ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("insert_on_edge",
		mcp.WithDescription("Insert a request on the connector leaving fromNodeId. It runs right after that node and is placed at the connector's midpoint."),
		mcp.WithString("workflowId", mcp.Description("Workflow ID"), mcp.Required()),
		mcp.WithString("fromNodeId", mcp.Description("Node the connector leaves (\"trigger\" or a request ID)"), mcp.Required()),
		mcp.WithString("name", mcp.Description("Request name")),
		mcp.WithString("method", mcp.Description("HTTP method (default GET)")),
		mcp.WithString("url", mcp.Description("Request URL")),
		mcp.WithString("body", mcp.Description("Request body")),
		mcp.WithString("request", mcp.Description("Full request as JSON; overrides the other fields")),
		mcp.WithNumber("width", mcp.Description("Canvas width in world units (optional)")),
		mcp.WithNumber("height", mcp.Description("Canvas height in world units (optional)")),
	), s.handleInsertOnEdge)

	// ── compute_path ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("compute_path",
		mcp.WithDescription("Route one orthogonal connector from a node's bottom-center to another node's top-center around obstacle rects"),
		mcp.WithNumber("startX", mcp.Description("Start X (source bottom-center)"), mcp.Required()),
		mcp.WithNumber("startY", mcp.Description("Start Y"), mcp.Required()),
		mcp.WithNumber("endX", mcp.Description("End X (target top-center)"), mcp.Required()),
		mcp.WithNumber("endY", mcp.Description("End Y"), mcp.Required()),
		mcp.WithString("obstacles", mcp.Description(`Obstacle rects as JSON: [{"x":0,"y":0,"w":240,"h":120}]`)),
		mcp.WithNumber("width", mcp.Description("Canvas width (optional)")),
		mcp.WithNumber("height", mcp.Description("Canvas height (optional)")),
	), s.handleComputePath)

	// ── resolve_position ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("resolve_position",
		mcp.WithDescription("Preview where a node would land if dropped at (x, y). Nothing is stored."),
		mcp.WithString("workflowId", mcp.Description("Workflow ID"), mcp.Required()),
		mcp.WithString("nodeId", mcp.Description("Node ID"), mcp.Required()),
		mcp.WithNumber("x", mcp.Description("Desired top-left X"), mcp.Required()),
		mcp.WithNumber("y", mcp.Description("Desired top-left Y"), mcp.Required()),
		mcp.WithNumber("width", mcp.Description("Canvas width (optional)")),
		mcp.WithNumber("height", mcp.Description("Canvas height (optional)")),
	), s.handleResolvePosition)
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleGetCanvas(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	workflowID, err := requireString(args, "workflowId")
	if err != nil {
		return nil, err
	}
	scene, err := s.canvas.Canvas(workflowID, canvasBounds(args), screenSize(args))
	if err != nil {
		return nil, fmt.Errorf("get canvas: %w", err)
	}
	return jsonResult(scene)
}

func (s *Server) handleMoveNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	workflowID, err := requireString(args, "workflowId")
	if err != nil {
		return nil, err
	}
	nodeID, err := requireString(args, "nodeId")
	if err != nil {
		return nil, err
	}
	desired, err := requirePoint(args, "x", "y")
	if err != nil {
		return nil, err
	}
	p, err := s.canvas.MoveNode(workflowID, nodeID, desired, canvasBounds(args))
	if err != nil {
		return nil, fmt.Errorf("move node: %w", err)
	}
	s.emitWorkflowChanged(ctx, workflowID)
	return textResult(fmt.Sprintf("Node %s moved to (%.0f, %.0f)", nodeID, p.Point.X, p.Point.Y)), nil
}

func (s *Server) handleInsertOnEdge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	workflowID, err := requireString(args, "workflowId")
	if err != nil {
		return nil, err
	}
	fromID, err := requireString(args, "fromNodeId")
	if err != nil {
		return nil, err
	}
	r, err := requestFromArgs(args)
	if err != nil {
		return nil, err
	}
	added, p, err := s.canvas.InsertOnEdge(workflowID, fromID, r, canvasBounds(args))
	if err != nil {
		return nil, fmt.Errorf("insert on edge: %w", err)
	}
	s.emitWorkflowChanged(ctx, workflowID)
	return jsonResult(map[string]any{
		"request":  added,
		"position": p.Point,
	})
}

func (s *Server) handleComputePath(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	start, err := requirePoint(args, "startX", "startY")
	if err != nil {
		return nil, err
	}
	end, err := requirePoint(args, "endX", "endY")
	if err != nil {
		return nil, err
	}
	var obstacles []geom.Rect
	if raw := getString(args, "obstacles"); raw != "" {
		if err := parseJSON(raw, &obstacles); err != nil {
			return nil, fmt.Errorf("invalid obstacles JSON: %w", err)
		}
	}
	pl := s.canvas.ComputePath(start, end, obstacles, canvasBounds(args))
	return jsonResult(pl)
}

func (s *Server) handleResolvePosition(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	workflowID, err := requireString(args, "workflowId")
	if err != nil {
		return nil, err
	}
	nodeID, err := requireString(args, "nodeId")
	if err != nil {
		return nil, err
	}
	desired, err := requirePoint(args, "x", "y")
	if err != nil {
		return nil, err
	}
	p, err := s.canvas.ResolvePosition(workflowID, nodeID, desired, canvasBounds(args))
	if err != nil {
		return nil, fmt.Errorf("resolve position: %w", err)
	}
	out := map[string]any{"point": p.Point, "radius": p.Radius}
	if p.Err != nil {
		out["warning"] = p.Err.Error()
	}
	return jsonResult(out)
}
