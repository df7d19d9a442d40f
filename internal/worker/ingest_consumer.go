package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"qaai/apps/backend/internal/config"
	"qaai/apps/backend/internal/corpus"
	"qaai/apps/backend/internal/legal"
	"qaai/apps/backend/internal/middleware"
	"qaai/apps/backend/internal/text"
)

// IngestConsumer turns an ingest.task message into stored chunks: it
// splits the document, embeds every chunk, replaces the document's
// rows in the chunk store and mirrors the vectors into the index.
type IngestConsumer struct {
	embedder  Embedder
	chunks    ChunkWriter
	index     VectorWriter
	publisher ResultPublisher

	chunkSize    int
	chunkOverlap int
	embedTimeout time.Duration
}

func NewIngestConsumer(e Embedder, cw ChunkWriter, vw VectorWriter, p ResultPublisher, chunkSize, chunkOverlap int, embedTimeout time.Duration) *IngestConsumer {
	return &IngestConsumer{
		embedder:     e,
		chunks:       cw,
		index:        vw,
		publisher:    p,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		embedTimeout: embedTimeout,
	}
}

func (h *IngestConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload IngestTaskPayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		// Poison pill: invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}

	ctx := context.Background()
	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}

	if payload.DocumentID == "" || payload.Content == "" {
		slog.ErrorContext(ctx, "missing required fields, dropping", "document_id", payload.DocumentID)
		return nil
	}

	jurisdiction, err := legal.ParseJurisdiction(payload.Jurisdiction)
	if err != nil {
		// Poison pill: the value can never become valid on retry
		slog.ErrorContext(ctx, "dropping task with invalid jurisdiction", "error", err, "document_id", payload.DocumentID)
		h.publishResult(ctx, payload, 0, err)
		return nil
	}
	instrumentType, err := legal.ParseInstrumentType(payload.InstrumentType)
	if err != nil {
		slog.ErrorContext(ctx, "dropping task with invalid instrument type", "error", err, "document_id", payload.DocumentID)
		h.publishResult(ctx, payload, 0, err)
		return nil
	}

	spans := text.Split(payload.Content, h.chunkSize, h.chunkOverlap)
	if len(spans) == 0 {
		slog.WarnContext(ctx, "document produced no chunks", "document_id", payload.DocumentID)
		h.publishResult(ctx, payload, 0, nil)
		return nil
	}

	chunks := make([]corpus.Chunk, 0, len(spans))
	for _, span := range spans {
		embedCtx, cancel := context.WithTimeout(ctx, h.embedTimeout)
		vector, err := h.embedder.Embed(embedCtx, h.contextualText(payload, span))
		cancel()
		if err != nil {
			slog.ErrorContext(ctx, "embedding failed", "error", err, "document_id", payload.DocumentID, "chunk_index", span.Index)
			return err // Retry
		}

		chunks = append(chunks, corpus.Chunk{
			ID:             corpus.ChunkID(payload.DocumentID, span.Index),
			DocumentID:     payload.DocumentID,
			Text:           span.Text,
			ChunkIndex:     span.Index,
			SectionRef:     span.SectionRef,
			Jurisdiction:   jurisdiction,
			InstrumentType: instrumentType,
			Embedding:      vector,
		})
	}

	// Rows of record first. PutChunks replaces the document's chunk
	// set in one transaction, so a retry never leaves a partial set.
	if err := h.chunks.PutChunks(ctx, payload.DocumentID, chunks); err != nil {
		slog.ErrorContext(ctx, "store chunks failed", "error", err, "document_id", payload.DocumentID)
		return err // Retry
	}

	if err := h.index.DeleteByDocument(ctx, payload.DocumentID); err != nil {
		slog.ErrorContext(ctx, "delete old vectors failed", "error", err, "document_id", payload.DocumentID)
		return err // Retry
	}
	for _, chunk := range chunks {
		if err := h.index.StoreChunk(ctx, payload.ProjectID, chunk); err != nil {
			slog.ErrorContext(ctx, "store vector failed", "error", err, "document_id", payload.DocumentID, "chunk_index", chunk.ChunkIndex)
			return err // Retry
		}
	}

	slog.InfoContext(ctx, "document ingested", "document_id", payload.DocumentID, "chunks", len(chunks))
	h.publishResult(ctx, payload, len(chunks), nil)
	return nil
}

// contextualText prefixes the chunk with its provenance so the
// embedding captures what kind of instrument the text comes from.
func (h *IngestConsumer) contextualText(payload IngestTaskPayload, span text.Chunk) string {
	header := fmt.Sprintf("Title: %s\nJurisdiction: %s\nType: %s",
		payload.Title, payload.Jurisdiction, payload.InstrumentType)
	if span.SectionRef != "" {
		header += fmt.Sprintf("\nSection: %s", span.SectionRef)
	}
	return header + "\n---\n" + span.Text
}

func (h *IngestConsumer) publishResult(ctx context.Context, payload IngestTaskPayload, chunkCount int, taskErr error) {
	result := IngestResultPayload{
		DocumentID:    payload.DocumentID,
		Status:        "completed",
		ChunkCount:    chunkCount,
		CorrelationID: payload.CorrelationID,
	}
	if taskErr != nil {
		result.Status = "failed"
		result.Error = taskErr.Error()
	}

	body, err := json.Marshal(result)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal result payload", "error", err)
		return
	}
	if err := h.publisher.Publish(config.TopicIngestResult, body); err != nil {
		slog.ErrorContext(ctx, "failed to publish result", "error", err, "document_id", payload.DocumentID)
	}
}
