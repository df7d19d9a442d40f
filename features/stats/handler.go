package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"qaai/apps/backend/internal/middleware"
)

type DocumentRepo interface {
	Count(ctx context.Context) (int, error)
}

type ProjectRepo interface {
	Count(ctx context.Context) (int, error)
}

type ChunkStore interface {
	Count(ctx context.Context) (int, error)
}

type RunRepo interface {
	Count(ctx context.Context) (int, error)
}

type Handler struct {
	documents DocumentRepo
	projects  ProjectRepo
	chunks    ChunkStore
	runs      RunRepo
}

func NewHandler(d DocumentRepo, p ProjectRepo, c ChunkStore, r RunRepo) *Handler {
	return &Handler{documents: d, projects: p, chunks: c, runs: r}
}

type StatsResponse struct {
	Documents int `json:"documents"`
	Projects  int `json:"projects"`
	Chunks    int `json:"chunks"`
	Runs      int `json:"runs"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	dCount, err := h.documents.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count documents", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count documents", http.StatusInternalServerError)
		return
	}

	pCount, err := h.projects.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count projects", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count projects", http.StatusInternalServerError)
		return
	}

	cCount, err := h.chunks.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count chunks", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count chunks", http.StatusInternalServerError)
		return
	}

	rCount, err := h.runs.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count runs", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count runs", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		Documents: dCount,
		Projects:  pCount,
		Chunks:    cCount,
		Runs:      rCount,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
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
