// Package corpus holds the chunk model shared by the chunk store, the
// vector index adapter and the retriever.
package corpus

import (
	"fmt"

	"github.com/google/uuid"

	"qaai/apps/backend/internal/legal"
)

// chunkNamespace seeds deterministic chunk ids so re-ingesting the same
// document span always yields the same id.
var chunkNamespace = uuid.MustParse("8640d2a8-26cb-4e79-9a3c-6a1f0de53c11")

// Chunk is an immutable span of normalized document text plus its
// provenance metadata. Embedding is populated at ingest time and never
// recomputed for a stored chunk.
type Chunk struct {
	ID             string               `json:"id"`
	DocumentID     string               `json:"document_id"`
	Text           string               `json:"text"`
	ChunkIndex     int                  `json:"chunk_index"`
	SectionRef     string               `json:"section_ref,omitempty"`
	Jurisdiction   legal.Jurisdiction   `json:"jurisdiction"`
	InstrumentType legal.InstrumentType `json:"instrument_type"`
	Embedding      []float32            `json:"-"`
}

// ChunkID derives the stable id for a document span.
func ChunkID(documentID string, chunkIndex int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s:%d", documentID, chunkIndex))).String()
}
