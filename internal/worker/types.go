package worker

import (
	"context"

	"qaai/apps/backend/internal/corpus"
)

// IngestTaskPayload is the message published to ingest.task when a
// document is created or re-ingested.
type IngestTaskPayload struct {
	DocumentID     string `json:"document_id"`
	Title          string `json:"title"`
	Content        string `json:"content"`
	Jurisdiction   string `json:"jurisdiction"`
	InstrumentType string `json:"instrument_type"`
	ProjectID      string `json:"project_id,omitempty"`

	CorrelationID string `json:"correlation_id"`
}

// IngestResultPayload is published to ingest.result once a task has
// been fully processed or permanently dropped.
type IngestResultPayload struct {
	DocumentID    string `json:"document_id"`
	Status        string `json:"status"` // "completed" or "failed"
	ChunkCount    int    `json:"chunk_count"`
	Error         string `json:"error,omitempty"`
	CorrelationID string `json:"correlation_id"`
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChunkWriter persists the chunk rows of record. PutChunks replaces a
// document's chunk set atomically.
type ChunkWriter interface {
	PutChunks(ctx context.Context, documentID string, chunks []corpus.Chunk) error
}

// VectorWriter mirrors chunk vectors into the index.
type VectorWriter interface {
	StoreChunk(ctx context.Context, projectID string, chunk corpus.Chunk) error
	DeleteByDocument(ctx context.Context, documentID string) error
}

type ResultPublisher interface {
	Publish(topic string, body []byte) error
}

type DocumentStatusUpdater interface {
	UpdateStatus(ctx context.Context, id, status string) error
	UpdateChunkCount(ctx context.Context, id string, count int) error
}
