package document

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"qaai/apps/backend/internal/config"
	"qaai/apps/backend/internal/corpus"
	"qaai/apps/backend/internal/legal"
	"qaai/apps/backend/internal/middleware"
	"qaai/apps/backend/internal/worker"
)

var ErrDuplicate = errors.New("duplicate document")

// Document is a legal instrument registered in the corpus. Content is
// the normalized raw text kept so re-ingestion never needs the
// original upload.
type Document struct {
	ID             string               `json:"id"`
	Title          string               `json:"title"`
	Jurisdiction   legal.Jurisdiction   `json:"jurisdiction"`
	InstrumentType legal.InstrumentType `json:"instrument_type"`
	SourceURL      string               `json:"source_url,omitempty"`
	ProjectID      string               `json:"project_id,omitempty"`
	Status         string               `json:"status"` // in_progress, completed, failed
	ChunkCount     int                  `json:"chunk_count"`
	Content        string               `json:"-"`
	ContentHash    string               `json:"-"`
}

type Repository interface {
	Save(ctx context.Context, doc *Document) error
	ExistsByHash(ctx context.Context, hash string) (bool, error)
	Get(ctx context.Context, id string) (*Document, error)
	List(ctx context.Context, projectID string) ([]Document, error)
	UpdateStatus(ctx context.Context, id, status string) error
	UpdateChunkCount(ctx context.Context, id string, count int) error
	SoftDelete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// ChunkReader serves stored chunk rows for document detail views.
type ChunkReader interface {
	ListByDocument(ctx context.Context, documentID string) ([]corpus.Chunk, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}

// VectorCleaner removes a document's vectors from the index.
type VectorCleaner interface {
	DeleteByDocument(ctx context.Context, documentID string) error
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo   Repository
	pub    EventPublisher
	chunks ChunkReader
	index  VectorCleaner
}

func NewService(repo Repository, pub EventPublisher, chunks ChunkReader, index VectorCleaner) *Service {
	return &Service{repo: repo, pub: pub, chunks: chunks, index: index}
}

// Create registers the document and queues it for ingestion. Chunking
// and embedding happen asynchronously in the ingest worker.
func (s *Service) Create(ctx context.Context, doc *Document) error {
	if !doc.Jurisdiction.Valid() {
		return fmt.Errorf("unknown jurisdiction %q", doc.Jurisdiction)
	}
	if !doc.InstrumentType.Valid() {
		return fmt.Errorf("unknown instrument type %q", doc.InstrumentType)
	}

	hash := sha256.Sum256([]byte(doc.Content))
	doc.ContentHash = fmt.Sprintf("%x", hash)

	exists, err := s.repo.ExistsByHash(ctx, doc.ContentHash)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicate
	}

	doc.Status = "in_progress"
	if err := s.repo.Save(ctx, doc); err != nil {
		return err
	}

	if err := s.publishIngestTask(ctx, doc); err != nil {
		slog.ErrorContext(ctx, "failed to publish ingest.task event", "error", err, "document_id", doc.ID)
		return err
	}
	slog.InfoContext(ctx, "published ingest.task event", "document_id", doc.ID, "title", doc.Title)
	return nil
}

type Detail struct {
	Document
	Chunks      []corpus.Chunk `json:"chunks"`
	TotalChunks int            `json:"total_chunks"`
}

func (s *Service) Get(ctx context.Context, id string) (*Detail, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	chunks, err := s.chunks.ListByDocument(ctx, id)
	if err != nil {
		slog.WarnContext(ctx, "failed to fetch chunks", "error", err, "document_id", id)
		chunks = []corpus.Chunk{}
	}

	return &Detail{
		Document:    *doc,
		Chunks:      chunks,
		TotalChunks: len(chunks),
	}, nil
}

func (s *Service) List(ctx context.Context, projectID string) ([]Document, error) {
	return s.repo.List(ctx, projectID)
}

// Reingest re-queues the stored content. The worker replaces the
// document's chunk set atomically, so overlapping re-ingestions
// serialize instead of corrupting each other.
func (s *Service) Reingest(ctx context.Context, id string) error {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateStatus(ctx, id, "in_progress"); err != nil {
		return err
	}

	if err := s.publishIngestTask(ctx, doc); err != nil {
		slog.ErrorContext(ctx, "failed to publish reingest event", "error", err, "document_id", id)
		return err
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	// Vectors first, then rows, then the registry entry. A crash
	// between steps leaves orphans that the next ingest replaces.
	if err := s.index.DeleteByDocument(ctx, id); err != nil {
		return err
	}
	if err := s.chunks.DeleteByDocument(ctx, id); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) publishIngestTask(ctx context.Context, doc *Document) error {
	payload, err := json.Marshal(worker.IngestTaskPayload{
		DocumentID:     doc.ID,
		Title:          doc.Title,
		Content:        doc.Content,
		Jurisdiction:   string(doc.Jurisdiction),
		InstrumentType: string(doc.InstrumentType),
		ProjectID:      doc.ProjectID,
		CorrelationID:  middleware.GetCorrelationID(ctx),
	})
	if err != nil {
		return err
	}
	return s.pub.Publish(config.TopicIngestTask, payload)
}
