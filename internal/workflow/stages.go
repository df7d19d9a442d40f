package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"qaai/apps/backend/internal/citations"
	"qaai/apps/backend/internal/retrieval"
)

const (
	StagePreflight       = "preflight"
	StagePlan            = "plan"
	StageRetrieve        = "retrieve"
	StageDraft           = "draft"
	StageVerifyCitations = "verify_citations"
	StageExport          = "export"
)

var ErrEmptyQuery = errors.New("query must not be empty")

type Retriever interface {
	Search(ctx context.Context, query string, opts *retrieval.Options) ([]retrieval.Result, error)
}

type Drafter interface {
	Draft(ctx context.Context, prompt string) (string, error)
}

type Verifier interface {
	Verify(claimedText string, candidates []citations.Candidate) citations.Result
}

// DefaultStages wires the standard drafting run:
// preflight -> plan -> retrieve -> draft -> verify_citations -> export.
func DefaultStages(retriever Retriever, drafter Drafter, verifier Verifier) []Stage {
	return []Stage{
		{Name: StagePreflight, Run: preflight},
		{Name: StagePlan, Run: plan},
		{Name: StageRetrieve, Run: retrieve(retriever)},
		{Name: StageDraft, Run: draft(drafter)},
		{Name: StageVerifyCitations, Run: verifyCitations(verifier)},
		{Name: StageExport, Run: export},
	}
}

func preflight(ctx context.Context, state *State) error {
	state.Query = strings.TrimSpace(state.Query)
	if state.Query == "" {
		return ErrEmptyQuery
	}
	return nil
}

func plan(ctx context.Context, state *State) error {
	var b strings.Builder
	b.WriteString("You are drafting a legal memorandum for a DIFC practitioner.\n")
	b.WriteString("Question: " + state.Query + "\n")
	b.WriteString("Prefer DIFC primary sources, then DFSA material, then UAE federal law.\n")
	b.WriteString("Cite every proposition against the provided sources and quote sections verbatim.\n")
	state.Plan = b.String()
	return nil
}

func retrieve(retriever Retriever) func(ctx context.Context, state *State) error {
	return func(ctx context.Context, state *State) error {
		opts := &retrieval.Options{ProjectID: state.ProjectID}
		results, err := retriever.Search(ctx, state.Query, opts)
		if err != nil {
			return err
		}
		state.Results = results
		// An empty candidate set is a legitimate answer; the draft
		// stage must say so instead of inventing authority.
		state.EmptyContext = len(results) == 0
		return nil
	}
}

func draft(drafter Drafter) func(ctx context.Context, state *State) error {
	return func(ctx context.Context, state *State) error {
		if state.EmptyContext {
			state.Draft = "No relevant sources were found in the corpus for this question. " +
				"A position cannot be drafted without supporting authority."
			return nil
		}

		var b strings.Builder
		b.WriteString(state.Plan)
		b.WriteString("\nSources:\n")
		for i, res := range state.Results {
			b.WriteString(fmt.Sprintf("[%d] %s %s", i+1, res.Chunk.Jurisdiction, res.Chunk.InstrumentType))
			if res.Chunk.SectionRef != "" {
				b.WriteString(" " + res.Chunk.SectionRef)
			}
			b.WriteString("\n" + res.Chunk.Text + "\n\n")
		}

		text, err := drafter.Draft(ctx, b.String())
		if err != nil {
			return err
		}
		state.Draft = text

		// One citation per retrieved source; verification scores them
		// against the corpus in the next stage.
		state.Citations = make([]citations.Citation, 0, len(state.Results))
		for _, res := range state.Results {
			state.Citations = append(state.Citations, citations.Citation{
				Section:        res.Chunk.SectionRef,
				Jurisdiction:   res.Chunk.Jurisdiction,
				InstrumentType: res.Chunk.InstrumentType,
				ClaimedText:    res.Chunk.Text,
			})
		}
		return nil
	}
}

func verifyCitations(verifier Verifier) func(ctx context.Context, state *State) error {
	return func(ctx context.Context, state *State) error {
		candidates := make([]citations.Candidate, 0, len(state.Results))
		for _, res := range state.Results {
			candidates = append(candidates, citations.Candidate{
				ChunkID: res.Chunk.ID,
				Text:    res.Chunk.Text,
			})
		}

		// Unverified citations are flagged, never dropped: the reader
		// decides what to do with an unsupported quote.
		for i := range state.Citations {
			result := verifier.Verify(state.Citations[i].ClaimedText, candidates)
			state.Citations[i].Verified = result.Verified
			state.Citations[i].Score = result.BestScore
		}
		return nil
	}
}

func export(ctx context.Context, state *State) error {
	var b strings.Builder
	b.WriteString("# Draft\n\n")
	b.WriteString(state.Draft)
	if len(state.Citations) > 0 {
		b.WriteString("\n\n## Citations\n")
		for i, c := range state.Citations {
			mark := "unverified"
			if c.Verified {
				mark = "verified"
			}
			b.WriteString(fmt.Sprintf("%d. %s %s", i+1, c.Jurisdiction, c.InstrumentType))
			if c.Section != "" {
				b.WriteString(" " + c.Section)
			}
			b.WriteString(fmt.Sprintf(" (%s, score %.2f)\n", mark, c.Score))
		}
	}
	state.Export = b.String()
	return nil
}
