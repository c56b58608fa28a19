package mcpserver

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"reqflow/internal/geom"
)

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

// parseJSON parses a JSON string into the target type.
func parseJSON(data string, target any) error {
	return json.Unmarshal([]byte(data), target)
}

func boolPtr(v bool) *bool { return &v }

func getString(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func getFloat(args map[string]any, key string, fallback float64) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return fallback
}

func requireString(args map[string]any, key string) (string, error) {
	v := getString(args, key)
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

func requirePoint(args map[string]any, xKey, yKey string) (geom.Point, error) {
	x, okX := args[xKey].(float64)
	y, okY := args[yKey].(float64)
	if !okX || !okY {
		return geom.Point{}, fmt.Errorf("%s and %s are required", xKey, yKey)
	}
	return geom.Pt(x, y), nil
}

// canvasBounds reads the optional canvas size. Zero means unbounded.
func canvasBounds(args map[string]any) geom.Size {
	return geom.Size{W: getFloat(args, "width", 0), H: getFloat(args, "height", 0)}
}

func screenSize(args map[string]any) geom.Size {
	return geom.Size{W: getFloat(args, "screenWidth", 0), H: getFloat(args, "screenHeight", 0)}
}
