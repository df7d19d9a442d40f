package workflow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"qaai/apps/backend/internal/citations"
	"qaai/apps/backend/internal/corpus"
	"qaai/apps/backend/internal/legal"
	"qaai/apps/backend/internal/retrieval"
	"qaai/apps/backend/internal/workflow"
)

type MockRetriever struct{ mock.Mock }

func (m *MockRetriever) Search(ctx context.Context, query string, opts *retrieval.Options) ([]retrieval.Result, error) {
	args := m.Called(ctx, query, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]retrieval.Result), args.Error(1)
}

type MockDrafter struct{ mock.Mock }

func (m *MockDrafter) Draft(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func difcResult(id string, text string) retrieval.Result {
	return retrieval.Result{
		Chunk: corpus.Chunk{
			ID:             id,
			DocumentID:     "doc-1",
			Text:           text,
			SectionRef:     "Article 19",
			Jurisdiction:   legal.JurisdictionDIFC,
			InstrumentType: legal.InstrumentLaw,
		},
		RawScore:     0.9,
		BoostedScore: 0.9,
	}
}

func runPipeline(t *testing.T, retriever workflow.Retriever, drafter workflow.Drafter, state *workflow.State) ([]workflow.Event, error) {
	t.Helper()
	stages := workflow.DefaultStages(retriever, drafter, citations.NewVerifier(0.25))
	pipeline := workflow.NewPipeline(stages)

	var events []workflow.Event
	err := pipeline.Execute(context.Background(), state, func(e workflow.Event) {
		events = append(events, e)
	})
	return events, err
}

func TestPipeline_FullRun(t *testing.T) {
	retriever := new(MockRetriever)
	drafter := new(MockDrafter)

	retriever.On("Search", mock.Anything, "annual leave", mock.Anything).
		Return([]retrieval.Result{difcResult("c1", "An employee is entitled to paid annual leave of 20 working days.")}, nil)
	drafter.On("Draft", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return assert.Contains(t, prompt, "annual leave") && assert.Contains(t, prompt, "Article 19")
	})).Return("Under Article 19, an employee is entitled to paid annual leave.", nil)

	state := &workflow.State{RunID: "run-1", Query: "annual leave"}
	events, err := runPipeline(t, retriever, drafter, state)
	assert.NoError(t, err)

	assert.NotEmpty(t, state.Draft)
	assert.Len(t, state.Citations, 1)
	assert.True(t, state.Citations[0].Verified)
	assert.Contains(t, state.Export, "## Citations")

	// Two events per stage, in declared order
	names := workflow.NewPipeline(workflow.DefaultStages(retriever, drafter, citations.NewVerifier(0))).StageNames()
	assert.Len(t, events, 2*len(names))
	for i, name := range names {
		assert.Equal(t, name, events[2*i].Stage)
		assert.Equal(t, workflow.PhaseStarted, events[2*i].Phase)
		assert.Equal(t, name, events[2*i+1].Stage)
		assert.Equal(t, workflow.PhaseCompleted, events[2*i+1].Phase)
	}
}

func TestPipeline_EmptyQueryFailsPreflight(t *testing.T) {
	retriever := new(MockRetriever)
	drafter := new(MockDrafter)

	state := &workflow.State{RunID: "run-1", Query: "   "}
	events, err := runPipeline(t, retriever, drafter, state)
	assert.ErrorIs(t, err, workflow.ErrEmptyQuery)

	assert.Len(t, events, 2)
	assert.Equal(t, workflow.PhaseFailed, events[1].Phase)
	assert.Equal(t, workflow.StagePreflight, events[1].Stage)
	retriever.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
}

func TestPipeline_EmptyCorpusSkipsDrafter(t *testing.T) {
	retriever := new(MockRetriever)
	drafter := new(MockDrafter)

	retriever.On("Search", mock.Anything, mock.Anything, mock.Anything).
		Return([]retrieval.Result{}, nil)

	state := &workflow.State{RunID: "run-1", Query: "crypto staking rules"}
	_, err := runPipeline(t, retriever, drafter, state)
	assert.NoError(t, err)

	assert.True(t, state.EmptyContext)
	assert.Contains(t, state.Draft, "No relevant sources")
	assert.Empty(t, state.Citations)
	drafter.AssertNotCalled(t, "Draft", mock.Anything, mock.Anything)
}

func TestPipeline_RetrieverFailureStopsRun(t *testing.T) {
	retriever := new(MockRetriever)
	drafter := new(MockDrafter)

	retriever.On("Search", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, retrieval.ErrUnavailable)

	state := &workflow.State{RunID: "run-1", Query: "annual leave"}
	events, err := runPipeline(t, retriever, drafter, state)
	assert.ErrorIs(t, err, retrieval.ErrUnavailable)

	last := events[len(events)-1]
	assert.Equal(t, workflow.StageRetrieve, last.Stage)
	assert.Equal(t, workflow.PhaseFailed, last.Phase)
	drafter.AssertNotCalled(t, "Draft", mock.Anything, mock.Anything)
}

func TestPipeline_UnverifiedCitationIsFlaggedNotDropped(t *testing.T) {
	retriever := new(MockRetriever)
	drafter := new(MockDrafter)

	retriever.On("Search", mock.Anything, mock.Anything, mock.Anything).
		Return([]retrieval.Result{difcResult("c1", "payment of end of service gratuity")}, nil)
	drafter.On("Draft", mock.Anything, mock.Anything).Return("draft text", nil)

	state := &workflow.State{RunID: "run-1", Query: "gratuity"}
	_, err := runPipeline(t, retriever, drafter, state)
	assert.NoError(t, err)

	// Corrupt the claimed text, then re-verify through a fresh run of
	// the verify stage to simulate a drafter misquote.
	state.Citations[0].ClaimedText = "completely unrelated words about maritime salvage"
	stages := workflow.DefaultStages(retriever, drafter, citations.NewVerifier(0.25))
	verify := stages[4]
	assert.Equal(t, workflow.StageVerifyCitations, verify.Name)
	assert.NoError(t, verify.Run(context.Background(), state))

	assert.Len(t, state.Citations, 1)
	assert.False(t, state.Citations[0].Verified)
}

func TestPipeline_DrafterFailure(t *testing.T) {
	retriever := new(MockRetriever)
	drafter := new(MockDrafter)

	retriever.On("Search", mock.Anything, mock.Anything, mock.Anything).
		Return([]retrieval.Result{difcResult("c1", "some text")}, nil)
	drafter.On("Draft", mock.Anything, mock.Anything).Return("", errors.New("model overloaded"))

	state := &workflow.State{RunID: "run-1", Query: "anything"}
	events, err := runPipeline(t, retriever, drafter, state)
	assert.Error(t, err)

	last := events[len(events)-1]
	assert.Equal(t, workflow.StageDraft, last.Stage)
	assert.Equal(t, workflow.PhaseFailed, last.Phase)
}
