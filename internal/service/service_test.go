package service_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"reqflow/internal/config"
	"reqflow/internal/service"
	"reqflow/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Shared fixtures
// ─────────────────────────────────────────────────────────────

func newTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "reqflow.db"))
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newWorkflowService(t *testing.T) (*service.WorkflowService, *service.MockEmitter) {
	t.Helper()
	emitter := &service.MockEmitter{}
	return service.NewWorkflowService(storage.NewWorkflowStore(newTestDB(t)), emitter), emitter
}

func newCanvasService(t *testing.T) (*service.CanvasService, *service.WorkflowService) {
	t.Helper()
	wf, _ := newWorkflowService(t)
	return service.NewCanvasService(wf, config.Default().Canvas), wf
}

// ─────────────────────────────────────────────────────────────
// Running guard tests
// ─────────────────────────────────────────────────────────────

func TestRunningGuard_TryLock(t *testing.T) {
	var g service.ExportedRunningGuard

	if !g.TryLock("wf-1") {
		t.Fatal("expected first TryLock to succeed")
	}
	if g.TryLock("wf-1") {
		t.Fatal("expected second TryLock for same workflow to fail")
	}
	if !g.TryLock("wf-2") {
		t.Fatal("expected TryLock for different workflow to succeed")
	}
	if !g.Running("wf-1") {
		t.Error("wf-1 should be running")
	}
	g.Unlock("wf-1")
	g.Unlock("wf-2")

	if g.Running("wf-1") {
		t.Error("wf-1 should not be running after unlock")
	}
	if !g.TryLock("wf-1") {
		t.Fatal("expected TryLock to succeed after unlock")
	}
	g.Unlock("wf-1")
}

func TestRunningGuard_WaitAll(t *testing.T) {
	var g service.ExportedRunningGuard

	if !g.TryLock("wf-a") {
		t.Fatal("expected lock to succeed")
	}

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		g.WaitAll(ctx)
		close(done)
	}()

	go func() {
		time.Sleep(20 * time.Millisecond)
		g.Unlock("wf-a")
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("WaitAll timed out")
	}
}

// ─────────────────────────────────────────────────────────────
// MockEmitter tests
// ─────────────────────────────────────────────────────────────

func TestMockEmitter_RecordsEvents(t *testing.T) {
	m := &service.MockEmitter{}
	ctx := context.Background()

	m.Emit(ctx, "test:event", map[string]string{"foo": "bar"})
	m.Emit(ctx, "test:event2", nil)
	m.Emit(ctx, "test:event", "again")

	if m.Count() != 3 {
		t.Fatalf("expected 3 events, got %d", m.Count())
	}
	if got := m.Named("test:event"); len(got) != 2 || got[1].Data != "again" {
		t.Errorf("Named(test:event) = %+v", got)
	}
	if m.Events[len(m.Events)-1].Event != "test:event" {
		t.Errorf("expected last event 'test:event', got %q", m.Events[len(m.Events)-1].Event)
	}
}

func TestMockEmitter_ConcurrentEmit(t *testing.T) {
	m := &service.MockEmitter{}
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			for j := 0; j < 50; j++ {
				m.Emit(context.Background(), "tick", j)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	if m.Count() != 400 {
		t.Errorf("expected 400 events, got %d", m.Count())
	}
}
