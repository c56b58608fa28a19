package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"reqflow/internal/domain"
	"reqflow/internal/geom"
)

const (
	workflowsURI      = "reqflow://workflows"
	workflowURIPrefix = "reqflow://workflow/"
	canvasURISuffix   = "/canvas"
)

func (s *Server) registerResources() {
	// ── reqflow://workflows ────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		workflowsURI,
		"All Workflows",
		mcp.WithMIMEType("application/json"),
	), s.handleWorkflowsResource)

	// ── reqflow://workflow/{workflowId}/canvas ─────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			workflowURIPrefix+"{workflowId}"+canvasURISuffix,
			"Workflow Canvas Layout",
		),
		s.handleCanvasResource,
	)
}

func (s *Server) handleWorkflowsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	list, err := s.workflows.ListWorkflows()
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []domain.WorkflowSummary{}
	}

	data, _ := json.MarshalIndent(list, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      workflowsURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleCanvasResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	workflowID := workflowIDFromURI(uri)
	if workflowID == "" {
		return nil, fmt.Errorf("could not extract workflowId from URI: %s", uri)
	}

	scene, err := s.canvas.Canvas(workflowID, geom.Size{}, geom.Size{})
	if err != nil {
		return nil, err
	}

	data, _ := json.MarshalIndent(scene, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// workflowIDFromURI extracts the id from "reqflow://workflow/{id}/canvas".
func workflowIDFromURI(uri string) string {
	rest, ok := strings.CutPrefix(uri, workflowURIPrefix)
	if !ok {
		return ""
	}
	id, ok := strings.CutSuffix(rest, canvasURISuffix)
	if !ok || strings.Contains(id, "/") {
		return ""
	}
	return id
}
