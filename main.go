package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nsqio/go-nsq"

	"qaai/apps/backend/internal/app"
	"qaai/apps/backend/internal/config"
	applog "qaai/apps/backend/internal/logger"
)

func main() {
	// JSON logs with the request correlation id attached when present.
	logger := slog.New(applog.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.DB.Close()

	a, err := app.New(cfg, deps.DB, deps.Weaviate, deps.NSQProducer, logger)
	if err != nil {
		return err
	}

	// Ingestion worker: consumes documents queued for chunking and
	// embedding. Runs in-process unless disabled, so a single binary
	// serves both the API and the pipeline.
	if cfg.EnableIngestWorker {
		ingestConsumer, err := nsq.NewConsumer(config.TopicIngestTask, "backend", nsq.NewConfig())
		if err != nil {
			return err
		}
		ingestConsumer.AddHandler(nsq.HandlerFunc(func(m *nsq.Message) error {
			return a.IngestConsumer.HandleMessage(m)
		}))
		if err := ingestConsumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
			slog.Error("failed to connect ingest consumer to NSQLookupd", "error", err)
		} else {
			slog.Info("NSQ ingest consumer connected")
		}
		defer ingestConsumer.Stop()
	}

	// Result consumer: flips document status once ingestion finishes.
	resultConsumer, err := nsq.NewConsumer(config.TopicIngestResult, "backend", nsq.NewConfig())
	if err != nil {
		return err
	}
	resultConsumer.AddHandler(nsq.HandlerFunc(func(m *nsq.Message) error {
		return a.ResultConsumer.HandleMessage(m)
	}))
	if err := resultConsumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
		slog.Error("failed to connect result consumer to NSQLookupd", "error", err)
	} else {
		slog.Info("NSQ result consumer connected")
	}
	defer resultConsumer.Stop()

	if !cfg.EnableAPI {
		// Worker-only deployment: keep consuming until shutdown.
		<-ctx.Done()
		return ctx.Err()
	}

	return a.Run(ctx)
}
