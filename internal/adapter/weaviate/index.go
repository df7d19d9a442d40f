// Package weaviate adapts the weaviate client to the retrieval and
// ingestion interfaces. Vectors live here; chunk text of record lives
// in postgres.
package weaviate

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"qaai/apps/backend/internal/corpus"
	"qaai/apps/backend/internal/legal"
	"qaai/apps/backend/internal/retrieval"
	"qaai/apps/backend/internal/vector"
)

type Index struct {
	client *weaviate.Client
}

func NewIndex(client *weaviate.Client) *Index {
	return &Index{client: client}
}

// StoreChunk writes one chunk object keyed by its stable chunk id.
// Callers delete a document's objects before re-ingesting, so a plain
// create never collides.
func (ix *Index) StoreChunk(ctx context.Context, projectID string, chunk corpus.Chunk) error {
	_, err := ix.client.Data().Creator().
		WithClassName(vector.ClassName).
		WithID(chunk.ID).
		WithProperties(map[string]interface{}{
			"content":        chunk.Text,
			"documentId":     chunk.DocumentID,
			"chunkIndex":     chunk.ChunkIndex,
			"sectionRef":     chunk.SectionRef,
			"jurisdiction":   string(chunk.Jurisdiction),
			"instrumentType": string(chunk.InstrumentType),
			"projectId":      projectID,
		}).
		WithVector(chunk.Embedding).
		Do(ctx)
	return err
}

func (ix *Index) DeleteChunk(ctx context.Context, chunkID string) error {
	return ix.client.Data().Deleter().
		WithClassName(vector.ClassName).
		WithID(chunkID).
		Do(ctx)
}

func (ix *Index) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := ix.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassName).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"documentId"}).
			WithOperator(filters.Equal).
			WithValueString(documentID)).
		Do(ctx)
	return err
}

// Search returns the topN nearest chunks by cosine certainty. The
// returned RawScore is weaviate's certainty in [0,1]; thresholding and
// jurisdiction boosting happen in the retrieval service.
func (ix *Index) Search(ctx context.Context, queryVector []float32, topN int, filter retrieval.Filter) ([]retrieval.Match, error) {
	nearVector := ix.client.GraphQL().NearVectorArgBuilder().
		WithVector(queryVector)

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "documentId"},
		{Name: "chunkIndex"},
		{Name: "sectionRef"},
		{Name: "jurisdiction"},
		{Name: "instrumentType"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "certainty"}}},
	}

	query := ix.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithNearVector(nearVector).
		WithLimit(topN).
		WithFields(fields...)

	if where := buildWhere(filter); where != nil {
		query = query.WithWhere(where)
	}

	res, err := query.Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var matches []retrieval.Match
	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return matches, nil
	}
	rawHits, ok := data[vector.ClassName].([]interface{})
	if !ok {
		return matches, nil
	}

	for _, h := range rawHits {
		props, ok := h.(map[string]interface{})
		if !ok {
			continue
		}
		match := retrieval.Match{}
		if content, ok := props["content"].(string); ok {
			match.Chunk.Text = content
		}
		if docID, ok := props["documentId"].(string); ok {
			match.Chunk.DocumentID = docID
		}
		if idx, ok := props["chunkIndex"].(float64); ok {
			match.Chunk.ChunkIndex = int(idx)
		}
		if ref, ok := props["sectionRef"].(string); ok {
			match.Chunk.SectionRef = ref
		}
		if raw, ok := props["jurisdiction"].(string); ok {
			if j, err := legal.ParseJurisdiction(raw); err == nil {
				match.Chunk.Jurisdiction = j
			}
		}
		if raw, ok := props["instrumentType"].(string); ok {
			if it, err := legal.ParseInstrumentType(raw); err == nil {
				match.Chunk.InstrumentType = it
			}
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if id, ok := additional["id"].(string); ok {
				match.Chunk.ID = id
			}
			// certainty arrives as a JSON number but some server
			// versions send _additional values as strings
			if certainty, ok := additional["certainty"].(float64); ok {
				match.RawScore = certainty
			} else if certainty, ok := additional["certainty"].(string); ok {
				var f float64
				fmt.Sscanf(certainty, "%f", &f)
				match.RawScore = f
			}
		}
		matches = append(matches, match)
	}

	return matches, nil
}

func buildWhere(filter retrieval.Filter) *filters.WhereBuilder {
	var operands []*filters.WhereBuilder

	if len(filter.Jurisdictions) > 0 {
		values := make([]string, 0, len(filter.Jurisdictions))
		for _, j := range filter.Jurisdictions {
			values = append(values, string(j))
		}
		operands = append(operands, filters.Where().
			WithPath([]string{"jurisdiction"}).
			WithOperator(filters.ContainsAny).
			WithValueString(values...))
	}
	if len(filter.InstrumentTypes) > 0 {
		values := make([]string, 0, len(filter.InstrumentTypes))
		for _, it := range filter.InstrumentTypes {
			values = append(values, string(it))
		}
		operands = append(operands, filters.Where().
			WithPath([]string{"instrumentType"}).
			WithOperator(filters.ContainsAny).
			WithValueString(values...))
	}
	if filter.ProjectID != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"projectId"}).
			WithOperator(filters.Equal).
			WithValueString(filter.ProjectID))
	}

	switch len(operands) {
	case 0:
		return nil
	case 1:
		return operands[0]
	default:
		return filters.Where().
			WithOperator(filters.And).
			WithOperands(operands)
	}
}
