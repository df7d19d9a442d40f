// Package assistant exposes retrieval and citation verification to API
// clients: ad-hoc corpus queries and spot checks of quoted text.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"qaai/apps/backend/internal/chunkstore"
	"qaai/apps/backend/internal/citations"
	"qaai/apps/backend/internal/corpus"
	"qaai/apps/backend/internal/embedding"
	"qaai/apps/backend/internal/legal"
	"qaai/apps/backend/internal/middleware"
	"qaai/apps/backend/internal/retrieval"
)

type Retriever interface {
	Search(ctx context.Context, query string, opts *retrieval.Options) ([]retrieval.Result, error)
}

type ChunkGetter interface {
	GetChunk(ctx context.Context, id string) (*corpus.Chunk, error)
	ListByDocument(ctx context.Context, documentID string) ([]corpus.Chunk, error)
}

type Verifier interface {
	Verify(claimedText string, candidates []citations.Candidate) citations.Result
}

type Handler struct {
	retriever Retriever
	chunks    ChunkGetter
	verifier  Verifier
}

func NewHandler(r Retriever, c ChunkGetter, v Verifier) *Handler {
	return &Handler{retriever: r, chunks: c, verifier: v}
}

func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query           string   `json:"query"`
		TopK            *int     `json:"top_k"`
		ProjectID       string   `json:"project_id"`
		Jurisdictions   []string `json:"jurisdictions"`
		InstrumentTypes []string `json:"instrument_types"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "Query is required", http.StatusBadRequest)
		return
	}

	opts := &retrieval.Options{TopK: req.TopK, ProjectID: req.ProjectID}
	for _, raw := range req.Jurisdictions {
		j, err := legal.ParseJurisdiction(raw)
		if err != nil {
			h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
			return
		}
		opts.Jurisdictions = append(opts.Jurisdictions, j)
	}
	for _, raw := range req.InstrumentTypes {
		it, err := legal.ParseInstrumentType(raw)
		if err != nil {
			h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
			return
		}
		opts.InstrumentTypes = append(opts.InstrumentTypes, it)
	}

	results, err := h.retriever.Search(r.Context(), req.Query, opts)
	if err != nil {
		if errors.Is(err, embedding.ErrUnavailable) {
			h.writeError(r.Context(), w, "EMBEDDING_UNAVAILABLE", "Embedding backend unavailable", http.StatusServiceUnavailable)
			return
		}
		if errors.Is(err, retrieval.ErrUnavailable) {
			h.writeError(r.Context(), w, "RETRIEVAL_UNAVAILABLE", "Vector index unavailable", http.StatusServiceUnavailable)
			return
		}
		slog.Error("query failed", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []retrieval.Result{}
	}

	w.Header().Set("Content-Type", "application/json")
	// "empty" is explicit so clients never mistake a thin corpus for
	// an infrastructure failure.
	resp := map[string]interface{}{
		"data":  results,
		"meta":  map[string]int{"count": len(results)},
		"empty": len(results) == 0,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) VerifyCitation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClaimedText string   `json:"claimed_text"`
		ChunkIDs    []string `json:"chunk_ids"`
		DocumentID  string   `json:"document_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if req.ClaimedText == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "claimed_text is required", http.StatusBadRequest)
		return
	}
	if len(req.ChunkIDs) == 0 && req.DocumentID == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "chunk_ids or document_id is required", http.StatusBadRequest)
		return
	}

	var candidates []citations.Candidate
	for _, id := range req.ChunkIDs {
		chunk, err := h.chunks.GetChunk(r.Context(), id)
		if err != nil {
			if errors.Is(err, chunkstore.ErrNotFound) {
				h.writeError(r.Context(), w, "NOT_FOUND", "Chunk not found: "+id, http.StatusNotFound)
				return
			}
			h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
			return
		}
		candidates = append(candidates, citations.Candidate{ChunkID: chunk.ID, Text: chunk.Text})
	}
	if req.DocumentID != "" {
		chunks, err := h.chunks.ListByDocument(r.Context(), req.DocumentID)
		if err != nil {
			h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
			return
		}
		for _, chunk := range chunks {
			candidates = append(candidates, citations.Candidate{ChunkID: chunk.ID, Text: chunk.Text})
		}
	}

	result := h.verifier.Verify(req.ClaimedText, candidates)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": result}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
