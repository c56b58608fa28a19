package app

import (
	"fmt"
	"os"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"reqflow/internal/canvas"
	"reqflow/internal/domain"
	"reqflow/internal/geom"
	"reqflow/internal/placement"
	"reqflow/internal/service"
)

// ── Canvas ─────────────────────────────────────────────────
// Bounds are the canvas size in world units; screen is the webview size
// in pixels. Both come from the frontend on every call since the window
// can be resized at any time.

// GetCanvas lays out the workflow: node rects, routed connectors, insert anchors.
func (a *App) GetCanvas(workflowID string, bounds, screen geom.Size) (*canvas.Scene, error) {
	return a.canvas.Canvas(workflowID, bounds, screen)
}

// MoveNode resolves and stores a dropped node's position.
func (a *App) MoveNode(workflowID, nodeID string, x, y float64, bounds geom.Size) (geom.Point, error) {
	p, err := a.canvas.MoveNode(workflowID, nodeID, geom.Pt(x, y), bounds)
	if err != nil {
		return geom.Point{}, err
	}
	return p.Point, nil
}

// PreviewNodePosition returns where a dragged node would land, without storing it.
func (a *App) PreviewNodePosition(workflowID, nodeID string, x, y float64, bounds geom.Size) (placement.Placement, error) {
	return a.canvas.ResolvePosition(workflowID, nodeID, geom.Pt(x, y), bounds)
}

// InsertRequestOnEdge adds a request right after fromNodeID, placed at the
// midpoint of the connector it was dropped on.
func (a *App) InsertRequestOnEdge(workflowID, fromNodeID string, req domain.WorkflowRequest, bounds geom.Size) (*domain.WorkflowRequest, error) {
	added, _, err := a.canvas.InsertOnEdge(workflowID, fromNodeID, req, bounds)
	return added, err
}

// AppendRequest adds a request below the last node.
func (a *App) AppendRequest(workflowID string, req domain.WorkflowRequest, bounds geom.Size) (*domain.WorkflowRequest, error) {
	added, _, err := a.canvas.AppendRequest(workflowID, req, bounds)
	return added, err
}

// HitTest reports the anchor or node under a screen point.
func (a *App) HitTest(workflowID string, bounds, screen geom.Size, x, y float64) (service.HitResult, error) {
	return a.canvas.HitTest(workflowID, bounds, screen, geom.Pt(x, y))
}

// SaveViewport stores the pan and zoom of a workflow canvas.
func (a *App) SaveViewport(workflowID string, vp domain.Viewport) error {
	v := a.canvas.View(vp)
	_, err := a.workflows.SaveViewport(workflowID, domain.Viewport{X: v.OffsetX, Y: v.OffsetY, Zoom: v.Scale})
	return err
}

// ExportCanvasPNG asks for a file name and writes a snapshot of the canvas.
func (a *App) ExportCanvasPNG(workflowID string, bounds, screen geom.Size) (string, error) {
	w, err := a.workflows.GetWorkflow(workflowID)
	if err != nil {
		return "", err
	}
	path, err := wailsRuntime.SaveFileDialog(a.ctx, wailsRuntime.SaveDialogOptions{
		Title:           "Export canvas",
		DefaultFilename: w.Name + ".png",
		Filters: []wailsRuntime.FileFilter{
			{DisplayName: "PNG image (*.png)", Pattern: "*.png"},
		},
	})
	if err != nil || path == "" {
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := a.canvas.ExportPNG(f, workflowID, bounds, screen); err != nil {
		return "", err
	}
	return path, nil
}
