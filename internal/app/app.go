package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"qaai/apps/backend/features/assistant"
	"qaai/apps/backend/features/document"
	"qaai/apps/backend/features/stats"
	"qaai/apps/backend/features/vault"
	"qaai/apps/backend/features/workflow"
	"qaai/apps/backend/internal/adapter/gemini"
	wstore "qaai/apps/backend/internal/adapter/weaviate"
	"qaai/apps/backend/internal/chunkstore"
	"qaai/apps/backend/internal/citations"
	"qaai/apps/backend/internal/config"
	"qaai/apps/backend/internal/embedding"
	"qaai/apps/backend/internal/legal"
	"qaai/apps/backend/internal/middleware"
	"qaai/apps/backend/internal/retrieval"
	"qaai/apps/backend/internal/worker"
	wf "qaai/apps/backend/internal/workflow"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
)

// TaskPublisher is what the features need from NSQ: fire a message at
// a topic. *nsq.Producer satisfies it.
type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

type App struct {
	Handler         http.Handler
	DocumentService *document.Service
	IngestConsumer  *worker.IngestConsumer
	ResultConsumer  *worker.ResultConsumer

	addr string
}

func New(
	cfg *config.Config,
	db *sql.DB,
	wClient *weaviate.Client,
	taskPub TaskPublisher,
	logger *slog.Logger,
) (*App, error) {

	// Adapters
	index := wstore.NewIndex(wClient)
	chunkStore := chunkstore.NewStore(db)

	geminiEmbedder, err := gemini.NewEmbedder(context.Background(), cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("gemini embedder error: %w", err)
	}
	drafter, err := gemini.NewDrafter(context.Background(), cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("gemini drafter error: %w", err)
	}

	gateway := embedding.NewGateway(geminiEmbedder, cfg.EmbedMaxRetries,
		time.Duration(cfg.EmbedRetryBaseMS)*time.Millisecond)

	// Retrieval
	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}

	retrievalService := retrieval.NewService(gateway, index, retrieval.Config{
		Weights:             legal.DefaultWeights(),
		TopK:                cfg.RetrievalTopK,
		CandidateMultiplier: cfg.CandidateMultiplier,
		MinSimilarity:       cfg.MinSimilarity,
	}, queryLogger)

	verifier := citations.NewVerifier(cfg.CitationThreshold)

	// Feature: Document
	docRepo := document.NewPostgresRepo(db)
	docService := document.NewService(docRepo, taskPub, chunkStore, index)
	docHandler := document.NewHandler(docService)

	// Feature: Vault
	vaultRepo := vault.NewPostgresRepo(db)
	vaultService := vault.NewService(vaultRepo, retrievalService)
	vaultHandler := vault.NewHandler(vaultService)

	// Feature: Assistant
	assistantHandler := assistant.NewHandler(retrievalService, chunkStore, verifier)

	// Feature: Workflow
	pipeline := wf.NewPipeline(wf.DefaultStages(retrievalService, drafter, verifier))
	runRepo := workflow.NewPostgresRepo(db)
	runService := workflow.NewService(runRepo, pipeline)
	workflowHandler := workflow.NewHandler(runService)

	// Feature: Stats
	statsHandler := stats.NewHandler(docRepo, vaultRepo, chunkStore, runRepo)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /api/documents", middleware.CorrelationID(enableCORS(docHandler.Create)))
	mux.Handle("GET /api/documents", middleware.CorrelationID(enableCORS(docHandler.List)))
	mux.Handle("GET /api/documents/{id}", middleware.CorrelationID(enableCORS(docHandler.Get)))
	mux.Handle("DELETE /api/documents/{id}", middleware.CorrelationID(enableCORS(docHandler.Delete)))
	mux.Handle("POST /api/documents/{id}/reingest", middleware.CorrelationID(enableCORS(docHandler.Reingest)))

	mux.Handle("POST /api/projects", middleware.CorrelationID(enableCORS(vaultHandler.Create)))
	mux.Handle("GET /api/projects", middleware.CorrelationID(enableCORS(vaultHandler.List)))
	mux.Handle("GET /api/projects/{id}", middleware.CorrelationID(enableCORS(vaultHandler.Get)))
	mux.Handle("PUT /api/projects/{id}", middleware.CorrelationID(enableCORS(vaultHandler.Update)))
	mux.Handle("DELETE /api/projects/{id}", middleware.CorrelationID(enableCORS(vaultHandler.Delete)))
	mux.Handle("POST /api/projects/{id}/search", middleware.CorrelationID(enableCORS(vaultHandler.Search)))

	mux.Handle("POST /api/assistant/query", middleware.CorrelationID(enableCORS(assistantHandler.Query)))
	mux.Handle("POST /api/assistant/verify", middleware.CorrelationID(enableCORS(assistantHandler.VerifyCitation)))

	mux.Handle("POST /api/workflows", middleware.CorrelationID(enableCORS(workflowHandler.Start)))
	mux.Handle("GET /api/workflows", middleware.CorrelationID(enableCORS(workflowHandler.List)))
	mux.Handle("GET /api/workflows/{id}", middleware.CorrelationID(enableCORS(workflowHandler.Get)))
	mux.Handle("GET /api/workflows/{id}/events", middleware.CorrelationID(enableCORS(workflowHandler.Stream)))

	mux.Handle("GET /api/stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Workers
	ingestConsumer := worker.NewIngestConsumer(gateway, chunkStore, index, taskPub,
		cfg.ChunkSize, cfg.ChunkOverlap, time.Duration(cfg.EmbedTimeoutSeconds)*time.Second)
	resultConsumer := worker.NewResultConsumer(docRepo)

	return &App{
		Handler:         mux,
		DocumentService: docService,
		IngestConsumer:  ingestConsumer,
		ResultConsumer:  resultConsumer,
		addr:            fmt.Sprintf(":%d", cfg.ServerPort),
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    a.addr,
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "addr", a.addr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
