package service

import (
	"context"
	"sync"
)

// ExportedRunningGuard is an exported alias so _test packages can test the guard.
type ExportedRunningGuard = runningGuard

// ─────────────────────────────────────────────────────────────
// runningGuard: one run per workflow at a time
// ─────────────────────────────────────────────────────────────

// runningGuard ensures a workflow is never handed to the runner twice at
// once, whichever trigger fired it.
type runningGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
	wg      sync.WaitGroup
}

// TryLock marks workflowID as running. It returns false when a run is
// already in flight.
func (g *runningGuard) TryLock(workflowID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running == nil {
		g.running = make(map[string]struct{})
	}
	if _, ok := g.running[workflowID]; ok {
		return false
	}
	g.running[workflowID] = struct{}{}
	g.wg.Add(1)
	return true
}

// Unlock ends the run started by a successful TryLock.
func (g *runningGuard) Unlock(workflowID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, workflowID)
	g.wg.Done()
}

// Running reports whether workflowID is currently running.
func (g *runningGuard) Running(workflowID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.running[workflowID]
	return ok
}

// WaitAll blocks until every run completes or ctx is cancelled.
func (g *runningGuard) WaitAll(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
