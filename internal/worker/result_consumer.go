package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"qaai/apps/backend/internal/middleware"
)

// ResultConsumer applies ingest.result messages to the document
// registry so API reads reflect ingestion progress.
type ResultConsumer struct {
	updater DocumentStatusUpdater
}

func NewResultConsumer(u DocumentStatusUpdater) *ResultConsumer {
	return &ResultConsumer{updater: u}
}

func (h *ResultConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload IngestResultPayload
	err := json.Unmarshal(m.Body, &payload)

	correlationID := payload.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	ctx := context.Background()
	ctx = middleware.WithCorrelationID(ctx, correlationID)

	if err != nil {
		slog.ErrorContext(ctx, "invalid message format", "error", err)
		return nil // Don't retry invalid messages
	}

	if payload.DocumentID == "" {
		slog.ErrorContext(ctx, "missing document id, dropping")
		return nil
	}

	if payload.Status == "failed" {
		slog.ErrorContext(ctx, "ingestion failed", "document_id", payload.DocumentID, "error", payload.Error)
		if err := h.updater.UpdateStatus(ctx, payload.DocumentID, "failed"); err != nil {
			slog.WarnContext(ctx, "failed to update document status", "error", err)
			return err
		}
		return nil
	}

	if err := h.updater.UpdateChunkCount(ctx, payload.DocumentID, payload.ChunkCount); err != nil {
		slog.WarnContext(ctx, "failed to update chunk count", "error", err)
		return err
	}
	if err := h.updater.UpdateStatus(ctx, payload.DocumentID, "completed"); err != nil {
		slog.WarnContext(ctx, "failed to update document status", "error", err)
		return err
	}

	slog.InfoContext(ctx, "document ingestion completed", "document_id", payload.DocumentID, "chunks", payload.ChunkCount)
	return nil
}
