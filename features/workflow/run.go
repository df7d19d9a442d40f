// Package workflow exposes drafting runs over the API: starting a run,
// inspecting its result and streaming its stage events.
package workflow

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"qaai/apps/backend/internal/middleware"
	wf "qaai/apps/backend/internal/workflow"
)

type Run struct {
	ID        string          `json:"id"`
	Query     string          `json:"query"`
	ProjectID string          `json:"project_id,omitempty"`
	Status    string          `json:"status"` // running, completed, failed
	Error     string          `json:"error,omitempty"`
	Output    json.RawMessage `json:"output,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Output is the persisted result of a completed run.
type Output struct {
	Draft     string      `json:"draft"`
	Citations interface{} `json:"citations"`
	Export    string      `json:"export"`
}

type Repository interface {
	Save(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context) ([]Run, error)
	UpdateResult(ctx context.Context, id, status, errMsg string, output json.RawMessage) error
	Count(ctx context.Context) (int, error)
}

type Service struct {
	repo     Repository
	pipeline *wf.Pipeline

	mu        sync.RWMutex
	listeners map[string][]chan wf.Event
	active    map[string]struct{}
}

func NewService(repo Repository, pipeline *wf.Pipeline) *Service {
	return &Service{
		repo:      repo,
		pipeline:  pipeline,
		listeners: make(map[string][]chan wf.Event),
		active:    make(map[string]struct{}),
	}
}

// Start registers the run and executes the pipeline in the background.
// Events fan out to any subscribed streams; the final state lands in
// the repository either way.
func (s *Service) Start(ctx context.Context, query, projectID string) (*Run, error) {
	run := &Run{
		Query:     query,
		ProjectID: projectID,
		Status:    "running",
	}
	if err := s.repo.Save(ctx, run); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.active[run.ID] = struct{}{}
	s.mu.Unlock()

	// Detached context: the run outlives the HTTP request that
	// started it, but keeps its correlation id.
	bgCtx := context.WithoutCancel(ctx)
	go s.execute(bgCtx, run)

	return run, nil
}

func (s *Service) execute(ctx context.Context, run *Run) {
	defer s.closeListeners(run.ID)

	state := &wf.State{RunID: run.ID, Query: run.Query, ProjectID: run.ProjectID}
	err := s.pipeline.Execute(ctx, state, func(e wf.Event) {
		s.broadcast(run.ID, e)
	})

	if err != nil {
		slog.ErrorContext(ctx, "workflow run failed", "run_id", run.ID, "error", err, "correlation_id", middleware.GetCorrelationID(ctx))
		if dbErr := s.repo.UpdateResult(ctx, run.ID, "failed", err.Error(), nil); dbErr != nil {
			slog.ErrorContext(ctx, "failed to persist run failure", "run_id", run.ID, "error", dbErr)
		}
		return
	}

	output, err := json.Marshal(Output{
		Draft:     state.Draft,
		Citations: state.Citations,
		Export:    state.Export,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal run output", "run_id", run.ID, "error", err)
		_ = s.repo.UpdateResult(ctx, run.ID, "failed", "output serialization failed", nil)
		return
	}

	if err := s.repo.UpdateResult(ctx, run.ID, "completed", "", output); err != nil {
		slog.ErrorContext(ctx, "failed to persist run result", "run_id", run.ID, "error", err)
	}
}

func (s *Service) Get(ctx context.Context, id string) (*Run, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Run, error) {
	return s.repo.List(ctx)
}

// Subscribe returns a channel of the run's remaining events; it closes
// when the run finishes. A run that is not executing here (already
// finished, or owned by another process) yields a closed channel
// immediately, so the caller falls through to the persisted result
// instead of waiting on events that will never come.
func (s *Service) Subscribe(runID string) chan wf.Event {
	ch := make(chan wf.Event, 64)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[runID]; !ok {
		close(ch)
		return ch
	}
	s.listeners[runID] = append(s.listeners[runID], ch)
	return ch
}

func (s *Service) Unsubscribe(runID string, ch chan wf.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chans := s.listeners[runID]
	for i, c := range chans {
		if c == ch {
			s.listeners[runID] = append(chans[:i], chans[i+1:]...)
			return
		}
	}
}

func (s *Service) broadcast(runID string, e wf.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.listeners[runID] {
		select {
		case ch <- e:
		default:
			slog.Warn("event listener full, dropping event", "run_id", runID, "stage", e.Stage)
		}
	}
}

func (s *Service) closeListeners(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.listeners[runID] {
		close(ch)
	}
	delete(s.listeners, runID)
	delete(s.active, runID)
}
