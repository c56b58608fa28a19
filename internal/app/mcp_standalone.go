package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"reqflow/internal/config"
	mcpserver "reqflow/internal/mcp"
	"reqflow/internal/secret"
	"reqflow/internal/service"
	"reqflow/internal/storage"
)

// noopEmitter is a no-op EventEmitter used in MCP-only mode (no Wails frontend).
type noopEmitter struct{}

func (noopEmitter) Emit(_ context.Context, _ string, _ any) {}

// ServeMCP runs the app as a standalone MCP server on stdin/stdout with no GUI.
// Destructive tools wait for the desktop app to answer through the approvals
// table of the local database.
func ServeMCP() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	st, err := openStores(ctx, cfg, secret.Default())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer st.Close()

	emitter := noopEmitter{}
	workflows := service.NewWorkflowService(st.workflows, emitter)

	mcpSrv := mcpserver.New(ctx, mcpserver.Deps{
		Emitter:   emitter,
		Workflows: workflows,
		Canvas:    service.NewCanvasService(workflows, cfg.Canvas),
		Approvals: storage.NewApprovalStore(st.local),
	})

	log.Println("[MCP] Starting standalone stdio server...")
	if err := mcpSrv.ServeStdio(); err != nil {
		log.Fatalf("MCP server error: %v", err)
	}
}
