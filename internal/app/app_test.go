package app

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"qaai/apps/backend/internal/config"
)

func TestNew(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := weaviate.Config{
		Host:   server.URL[7:],
		Scheme: "http",
	}
	wClient, err := weaviate.NewClient(cfg)
	assert.NoError(t, err)

	// NSQ producers connect lazily, so a fake address is fine here.
	nsqCfg := nsq.NewConfig()
	producer, err := nsq.NewProducer("localhost:4150", nsqCfg)
	assert.NoError(t, err)

	appCfg := &config.Config{GeminiAPIKey: "test-key", QueryLogPath: t.TempDir() + "/query.log"}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	app, err := New(appCfg, db, wClient, producer, logger)
	assert.NoError(t, err)
	assert.NotNil(t, app)
	assert.NotNil(t, app.Handler)
	assert.NotNil(t, app.DocumentService)
	assert.NotNil(t, app.IngestConsumer)
	assert.NotNil(t, app.ResultConsumer)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	app.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}
