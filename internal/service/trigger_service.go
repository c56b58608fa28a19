package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"reqflow/internal/domain"
)

// ErrAlreadyRunning is returned by Fire when the workflow is mid-run.
var ErrAlreadyRunning = errors.New("workflow is already running")

// Trigger sources reported in workflow:triggered events.
const (
	SourceManual   = "manual"
	SourceSchedule = "schedule"
	SourceFile     = "file_watch"
)

const (
	fileDebounce = 500 * time.Millisecond
	runTimeout   = 5 * time.Minute
)

// Runner executes a workflow once it has been triggered.
type Runner interface {
	Run(ctx context.Context, w *domain.Workflow) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, w *domain.Workflow) error

func (f RunnerFunc) Run(ctx context.Context, w *domain.Workflow) error { return f(ctx, w) }

// TriggeredEvent is the payload of workflow:triggered.
type TriggeredEvent struct {
	WorkflowID string `json:"workflowId"`
	Source     string `json:"source"`
	Error      string `json:"error,omitempty"`
}

// ─────────────────────────────────────────────────────────────
// Trigger Service: cron schedules and file watches
// ─────────────────────────────────────────────────────────────

// TriggerService fires workflows from their trigger node: cron schedules,
// watched files, or a manual call to Fire.
type TriggerService struct {
	workflows *WorkflowService
	runner    Runner
	emitter   EventEmitter
	running   runningGuard

	mu          sync.Mutex
	watchCancel context.CancelFunc
	watcher     *fsnotify.Watcher
	cronSched   *cron.Cron
}

// NewTriggerService creates a TriggerService. Nothing is scheduled until
// Restart is called.
func NewTriggerService(workflows *WorkflowService, runner Runner, emitter EventEmitter) *TriggerService {
	return &TriggerService{workflows: workflows, runner: runner, emitter: emitter}
}

// Fire runs workflow id now. source names what fired it.
func (s *TriggerService) Fire(ctx context.Context, id, source string) error {
	if !s.running.TryLock(id) {
		return fmt.Errorf("workflow %s: %w", id, ErrAlreadyRunning)
	}
	defer s.running.Unlock(id)

	w, err := s.workflows.GetWorkflow(id)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()
	runErr := s.runner.Run(runCtx, w)

	ev := TriggeredEvent{WorkflowID: id, Source: source}
	if runErr != nil {
		ev.Error = runErr.Error()
	}
	s.emitter.Emit(ctx, EventWorkflowTriggered, ev)
	return runErr
}

// Running reports whether workflow id is mid-run.
func (s *TriggerService) Running(id string) bool {
	return s.running.Running(id)
}

// ── Watchers (cron + file_watch) ──────────────────────────

type watchEntry struct {
	workflowID string
	path       string
}

// Restart tears down every schedule and watcher and rebuilds them from the
// enabled triggers of all stored workflows.
func (s *TriggerService) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopWatchers()

	summaries, err := s.workflows.ListWorkflows()
	if err != nil {
		return fmt.Errorf("trigger: list workflows: %w", err)
	}

	var schedules, files []watchEntry
	for _, sum := range summaries {
		w, err := s.workflows.GetWorkflow(sum.ID)
		if err != nil {
			log.Printf("[TRIGGER] load workflow %s: %v", sum.ID, err)
			continue
		}
		t := w.Trigger
		if !t.Enabled {
			continue
		}
		switch t.Type {
		case domain.TriggerSchedule:
			if t.Schedule != "" {
				schedules = append(schedules, watchEntry{workflowID: w.ID, path: t.Schedule})
			}
		case domain.TriggerFileWatch:
			if t.Path != "" {
				files = append(files, watchEntry{workflowID: w.ID, path: t.Path})
			}
		}
	}

	s.startCron(ctx, schedules)
	return s.startFileWatch(ctx, files)
}

func (s *TriggerService) startCron(ctx context.Context, entries []watchEntry) {
	if len(entries) == 0 {
		return
	}
	c := cron.New()
	scheduled := 0
	for _, e := range entries {
		wid := e.workflowID
		_, err := c.AddFunc(e.path, func() {
			log.Printf("[TRIGGER] cron: running workflow %s", wid)
			if err := s.Fire(ctx, wid, SourceSchedule); err != nil {
				log.Printf("[TRIGGER] cron: workflow %s failed: %v", wid, err)
			}
		})
		if err != nil {
			log.Printf("[TRIGGER] cron: invalid expression %q for workflow %s: %v", e.path, wid, err)
			continue
		}
		scheduled++
	}
	c.Start()
	s.cronSched = c
	log.Printf("[TRIGGER] cron: scheduled %d workflow(s)", scheduled)
}

func (s *TriggerService) startFileWatch(ctx context.Context, entries []watchEntry) error {
	if len(entries) == 0 {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("trigger: create watcher: %w", err)
	}
	s.watcher = watcher

	// A watched file matches events on itself; a watched directory matches
	// events on anything directly inside it.
	fileTargets := make(map[string][]string)
	dirTargets := make(map[string][]string)
	watched := make(map[string]bool)
	for _, e := range entries {
		abs, err := filepath.Abs(e.path)
		if err != nil {
			log.Printf("[TRIGGER] watch: bad path %q: %v", e.path, err)
			continue
		}
		dir := filepath.Dir(abs)
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			dir = abs
			dirTargets[abs] = append(dirTargets[abs], e.workflowID)
		} else {
			fileTargets[abs] = append(fileTargets[abs], e.workflowID)
		}
		if !watched[dir] {
			if err := watcher.Add(dir); err != nil {
				log.Printf("[TRIGGER] watch: failed to watch dir %q: %v", dir, err)
				continue
			}
			watched[dir] = true
		}
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	s.watchCancel = cancel

	go func() {
		timers := make(map[string]*time.Timer)
		defer func() {
			for _, t := range timers {
				t.Stop()
			}
		}()
		for {
			select {
			case <-watchCtx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				abs, _ := filepath.Abs(event.Name)
				ids := append(append([]string(nil), fileTargets[abs]...), dirTargets[filepath.Dir(abs)]...)
				for _, id := range ids {
					if t, exists := timers[id]; exists {
						t.Stop()
					}
					wid, changed := id, abs
					timers[id] = time.AfterFunc(fileDebounce, func() {
						log.Printf("[TRIGGER] watch: %q changed, running workflow %s", changed, wid)
						if err := s.Fire(ctx, wid, SourceFile); err != nil {
							log.Printf("[TRIGGER] watch: workflow %s failed: %v", wid, err)
						}
					})
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[TRIGGER] watch: error: %v", err)
			}
		}
	}()

	log.Printf("[TRIGGER] watch: watching %d path(s)", len(fileTargets)+len(dirTargets))
	return nil
}

// WaitRunning blocks until all running workflows finish or ctx is
// cancelled. Used for graceful shutdown.
func (s *TriggerService) WaitRunning(ctx context.Context) {
	s.running.WaitAll(ctx)
}

// Stop tears down all watchers and schedules.
func (s *TriggerService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopWatchers()
}

func (s *TriggerService) stopWatchers() {
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
}
