// Package workflow runs the drafting pipeline as a fixed, ordered list
// of stages. Every stage emits a started and a completed (or failed)
// event, so callers can stream progress without a graph engine.
package workflow

import (
	"context"
	"fmt"
	"time"

	"qaai/apps/backend/internal/citations"
	"qaai/apps/backend/internal/retrieval"
)

type Phase string

const (
	PhaseStarted   Phase = "started"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
)

type Event struct {
	RunID     string         `json:"run_id"`
	Stage     string         `json:"stage"`
	Phase     Phase          `json:"phase"`
	Timestamp time.Time      `json:"timestamp"`
	Error     string         `json:"error,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// State carries the run's accumulated output through the stages. Each
// stage reads what earlier stages wrote and adds its own fields.
type State struct {
	RunID     string
	Query     string
	ProjectID string

	Plan         string
	Results      []retrieval.Result
	EmptyContext bool
	Draft        string
	Citations    []citations.Citation
	Export       string
}

type Stage struct {
	Name string
	Run  func(ctx context.Context, state *State) error
}

// EmitFunc receives pipeline events. It must not block; slow sinks
// should buffer.
type EmitFunc func(Event)

type Pipeline struct {
	stages []Stage
}

func NewPipeline(stages []Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

func (p *Pipeline) StageNames() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name
	}
	return names
}

// Execute runs the stages in order, stopping at the first failure.
// The failed stage's event carries the error; later stages never run.
func (p *Pipeline) Execute(ctx context.Context, state *State, emit EmitFunc) error {
	if emit == nil {
		emit = func(Event) {}
	}

	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return err
		}

		emit(Event{RunID: state.RunID, Stage: stage.Name, Phase: PhaseStarted, Timestamp: time.Now().UTC()})

		if err := stage.Run(ctx, state); err != nil {
			emit(Event{
				RunID:     state.RunID,
				Stage:     stage.Name,
				Phase:     PhaseFailed,
				Timestamp: time.Now().UTC(),
				Error:     err.Error(),
			})
			return fmt.Errorf("stage %s: %w", stage.Name, err)
		}

		emit(Event{
			RunID:     state.RunID,
			Stage:     stage.Name,
			Phase:     PhaseCompleted,
			Timestamp: time.Now().UTC(),
			Meta:      stageMeta(stage.Name, state),
		})
	}
	return nil
}

func stageMeta(stage string, state *State) map[string]any {
	switch stage {
	case StageRetrieve:
		return map[string]any{"results": len(state.Results), "empty_context": state.EmptyContext}
	case StageVerifyCitations:
		verified := 0
		for _, c := range state.Citations {
			if c.Verified {
				verified++
			}
		}
		return map[string]any{"citations": len(state.Citations), "verified": verified}
	default:
		return nil
	}
}
