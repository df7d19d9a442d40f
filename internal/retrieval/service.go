// Package retrieval ranks corpus chunks for a query by blending vector
// similarity with jurisdiction priority weights.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"qaai/apps/backend/internal/corpus"
	"qaai/apps/backend/internal/legal"
)

// ErrUnavailable marks vector index infrastructure failures. An empty
// result set is a valid outcome and is never reported as this error.
var ErrUnavailable = errors.New("vector index unavailable")

// Result is one ranked match. BoostedScore is the ranking key; RawScore
// is the index similarity before the jurisdiction weight is applied.
type Result struct {
	Chunk        corpus.Chunk `json:"chunk"`
	RawScore     float64      `json:"raw_score"`
	BoostedScore float64      `json:"boosted_score"`
}

// Match is a raw index hit before re-ranking.
type Match struct {
	Chunk    corpus.Chunk
	RawScore float64
}

// Filter narrows the candidate set before similarity search. Empty
// slices mean "no restriction".
type Filter struct {
	Jurisdictions   []legal.Jurisdiction
	InstrumentTypes []legal.InstrumentType
	ProjectID       string
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Index interface {
	Search(ctx context.Context, vector []float32, topN int, filter Filter) ([]Match, error)
}

// Config is read-only after construction; tests and multi-tenant setups
// inject their own values instead of mutating shared state.
type Config struct {
	Weights             legal.WeightTable
	TopK                int
	CandidateMultiplier int
	MinSimilarity       float64
}

func DefaultConfig() Config {
	return Config{
		Weights:             legal.DefaultWeights(),
		TopK:                10,
		CandidateMultiplier: 4,
		MinSimilarity:       0.15,
	}
}

type Options struct {
	Jurisdictions   []legal.Jurisdiction
	InstrumentTypes []legal.InstrumentType
	ProjectID       string
	TopK            *int
}

type Service struct {
	embedder Embedder
	index    Index
	cfg      Config
	logger   *QueryLogger
}

func NewService(e Embedder, ix Index, cfg Config, l *QueryLogger) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if cfg.CandidateMultiplier <= 0 {
		cfg.CandidateMultiplier = 4
	}
	return &Service{embedder: e, index: ix, cfg: cfg, logger: l}
}

// Search embeds the query, fetches top-N candidates from the index and
// re-ranks them DIFC-first. The steps are strictly sequential; each one
// depends on the previous step's output.
func (s *Service) Search(ctx context.Context, query string, opts *Options) ([]Result, error) {
	start := time.Now()
	var final []Result
	var err error

	defer func() {
		if s.logger != nil && err == nil {
			s.logger.Log(QueryLogEntry{
				Query:      query,
				NumResults: len(final),
				Duration:   time.Since(start),
			})
		}
	}()

	topK := s.cfg.TopK
	filter := Filter{}
	if opts != nil {
		if opts.TopK != nil && *opts.TopK > 0 {
			topK = *opts.TopK
		}
		filter.Jurisdictions = opts.Jurisdictions
		filter.InstrumentTypes = opts.InstrumentTypes
		filter.ProjectID = opts.ProjectID
	}

	// 1. Embed query
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	// 2. Nearest neighbors, over-fetched to leave room for re-ranking
	topN := topK * s.cfg.CandidateMultiplier
	matches, searchErr := s.index.Search(ctx, vec, topN, filter)
	if searchErr != nil {
		err = fmt.Errorf("%w: %v", ErrUnavailable, searchErr)
		return nil, err
	}

	// 3. Boost, threshold, rank
	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		if m.RawScore < s.cfg.MinSimilarity {
			continue
		}
		weight := s.cfg.Weights.Weight(m.Chunk.Jurisdiction, m.Chunk.InstrumentType)
		results = append(results, Result{
			Chunk:        m.Chunk,
			RawScore:     m.RawScore,
			BoostedScore: m.RawScore * weight,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.BoostedScore != b.BoostedScore {
			return a.BoostedScore > b.BoostedScore
		}
		if a.RawScore != b.RawScore {
			return a.RawScore > b.RawScore
		}
		if a.Chunk.DocumentID != b.Chunk.DocumentID {
			return a.Chunk.DocumentID < b.Chunk.DocumentID
		}
		return a.Chunk.ChunkIndex < b.Chunk.ChunkIndex
	})

	if len(results) > topK {
		results = results[:topK]
	}

	final = results
	return results, nil
}
