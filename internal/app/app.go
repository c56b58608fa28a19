package app

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"reqflow/internal/config"
	"reqflow/internal/domain"
	"reqflow/internal/secret"
	"reqflow/internal/service"
	"reqflow/internal/storage"
)

// App is the main Wails application struct.
// All exported methods are available as Wails bindings.
type App struct {
	ctx context.Context
	cfg *config.Config

	stores    *stores
	approvals *storage.ApprovalStore
	secrets   secret.SecretStore

	workflows *service.WorkflowService
	canvas    *service.CanvasService
	triggers  *service.TriggerService
	settings  *service.SettingsService

	watcher *workflowWatcher
}

// New creates a new App.
func New() *App {
	return &App{}
}

// wailsEmitter forwards service events to the frontend.
type wailsEmitter struct{}

func (wailsEmitter) Emit(ctx context.Context, event string, data any) {
	wailsRuntime.EventsEmit(ctx, event, data)
}

// Startup is called when the app starts.
func (a *App) Startup(ctx context.Context) {
	a.ctx = ctx

	if runtime.GOOS == "darwin" {
		// Key repeat instead of the accent popup while holding arrow keys on the canvas.
		exec.Command("defaults", "write", "com.wails.reqflow", "ApplePressAndHoldEnabled", "-bool", "false").Run()
	}

	cfg, err := config.Load()
	if err != nil {
		wailsRuntime.LogFatalf(ctx, "Failed to load config: %v", err)
		return
	}
	a.cfg = cfg
	a.secrets = secret.Default()

	st, err := openStores(ctx, cfg, a.secrets)
	if err != nil {
		wailsRuntime.LogFatalf(ctx, "Failed to open database: %v", err)
		return
	}
	a.stores = st
	a.approvals = storage.NewApprovalStore(st.local)

	emitter := wailsEmitter{}
	a.workflows = service.NewWorkflowService(st.workflows, emitter)
	a.canvas = service.NewCanvasService(a.workflows, cfg.Canvas)
	a.settings = service.NewSettingsService(storage.NewSettingsStore(st.local))
	a.triggers = service.NewTriggerService(a.workflows, frontendRunner(ctx), emitter)
	if err := a.triggers.Restart(ctx); err != nil {
		wailsRuntime.LogErrorf(ctx, "Failed to start triggers: %v", err)
	}

	size := a.settings.LoadWindowSize()
	wailsRuntime.WindowSetSize(ctx, size.Width, size.Height)

	a.watcher = newWorkflowWatcher(ctx, a.workflows, a.approvals, emitter)
	a.watcher.SetWorkflow(a.settings.LastWorkflow())
	a.watcher.Start()
}

// BeforeClose remembers the window size. Returning false lets the window close.
func (a *App) BeforeClose(ctx context.Context) bool {
	if a.settings != nil {
		w, h := wailsRuntime.WindowGetSize(ctx)
		if err := a.settings.SaveWindowSize(w, h); err != nil {
			wailsRuntime.LogErrorf(ctx, "Failed to save window size: %v", err)
		}
	}
	return false
}

// Shutdown is called when the app is closing.
func (a *App) Shutdown(ctx context.Context) {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.triggers != nil {
		a.triggers.Stop()
		a.triggers.WaitRunning(ctx)
	}
	if a.stores != nil {
		a.stores.Close()
	}
}

// frontendRunner hands a fired workflow to the webview, which owns request
// execution and templating.
func frontendRunner(ctx context.Context) service.Runner {
	return service.RunnerFunc(func(_ context.Context, w *domain.Workflow) error {
		wailsRuntime.EventsEmit(ctx, "workflow:run", w)
		return nil
	})
}

// ============================================================
// Settings
// ============================================================

// GetWindowSize returns the window size to restore.
func (a *App) GetWindowSize() service.WindowSize {
	return a.settings.LoadWindowSize()
}

// SaveWindowSize stores the current window size.
func (a *App) SaveWindowSize() error {
	w, h := wailsRuntime.WindowGetSize(a.ctx)
	return a.settings.SaveWindowSize(w, h)
}

// GetLastWorkflow returns the workflow that was open when the app closed.
func (a *App) GetLastWorkflow() string {
	return a.settings.LastWorkflow()
}

// SaveStorePassword keeps the workflow store password in the system keychain.
func (a *App) SaveStorePassword(password string) error {
	st := a.cfg.Store
	return a.secrets.Set(secret.StoreKey(string(st.Driver), st.Host, st.User), []byte(password))
}

// ============================================================
// MCP approvals (answered for the standalone MCP process)
// ============================================================

// ListPendingMCPActions returns destructive agent actions awaiting an answer.
func (a *App) ListPendingMCPActions() ([]storage.Approval, error) {
	return a.approvals.ListPendingApprovals()
}

// ApproveMCPAction lets a pending destructive action proceed.
func (a *App) ApproveMCPAction(id string) error {
	if err := a.approvals.ResolveApproval(id, true); err != nil {
		return fmt.Errorf("approve %s: %w", id, err)
	}
	return nil
}

// RejectMCPAction cancels a pending destructive action.
func (a *App) RejectMCPAction(id string) error {
	if err := a.approvals.ResolveApproval(id, false); err != nil {
		return fmt.Errorf("reject %s: %w", id, err)
	}
	return nil
}
