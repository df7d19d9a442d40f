package assistant_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"qaai/apps/backend/features/assistant"
	"qaai/apps/backend/internal/chunkstore"
	"qaai/apps/backend/internal/citations"
	"qaai/apps/backend/internal/corpus"
	"qaai/apps/backend/internal/embedding"
	"qaai/apps/backend/internal/legal"
	"qaai/apps/backend/internal/retrieval"
)

type MockRetriever struct{ mock.Mock }

func (m *MockRetriever) Search(ctx context.Context, query string, opts *retrieval.Options) ([]retrieval.Result, error) {
	args := m.Called(ctx, query, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]retrieval.Result), args.Error(1)
}

type MockChunks struct{ mock.Mock }

func (m *MockChunks) GetChunk(ctx context.Context, id string) (*corpus.Chunk, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*corpus.Chunk), args.Error(1)
}

func (m *MockChunks) ListByDocument(ctx context.Context, documentID string) ([]corpus.Chunk, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]corpus.Chunk), args.Error(1)
}

func newHandler(r *MockRetriever, c *MockChunks) *assistant.Handler {
	return assistant.NewHandler(r, c, citations.NewVerifier(0.25))
}

func TestHandler_Query(t *testing.T) {
	retriever := new(MockRetriever)
	h := newHandler(retriever, new(MockChunks))

	retriever.On("Search", mock.Anything, "notice period", mock.MatchedBy(func(opts *retrieval.Options) bool {
		return len(opts.Jurisdictions) == 1 && opts.Jurisdictions[0] == legal.JurisdictionDIFC
	})).Return([]retrieval.Result{
		{Chunk: corpus.Chunk{ID: "c1", Text: "notice period of 30 days"}, RawScore: 0.8, BoostedScore: 0.8},
	}, nil)

	body, _ := json.Marshal(map[string]interface{}{
		"query":         "notice period",
		"jurisdictions": []string{"DIFC"},
	})
	req := httptest.NewRequest("POST", "/api/assistant/query", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Query(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"empty":false`)
	assert.Contains(t, w.Body.String(), "notice period of 30 days")
}

func TestHandler_Query_EmptyResultIsNotAnError(t *testing.T) {
	retriever := new(MockRetriever)
	h := newHandler(retriever, new(MockChunks))

	retriever.On("Search", mock.Anything, mock.Anything, mock.Anything).
		Return([]retrieval.Result{}, nil)

	body, _ := json.Marshal(map[string]string{"query": "obscure topic"})
	req := httptest.NewRequest("POST", "/api/assistant/query", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Query(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"empty":true`)
	assert.Contains(t, w.Body.String(), `"data":[]`)
}

func TestHandler_Query_Unavailable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code string
	}{
		{"Retrieval", fmt.Errorf("%w: conn refused", retrieval.ErrUnavailable), "RETRIEVAL_UNAVAILABLE"},
		{"Embedding", fmt.Errorf("%w: budget exhausted", embedding.ErrUnavailable), "EMBEDDING_UNAVAILABLE"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			retriever := new(MockRetriever)
			h := newHandler(retriever, new(MockChunks))

			retriever.On("Search", mock.Anything, mock.Anything, mock.Anything).Return(nil, tc.err)

			body, _ := json.Marshal(map[string]string{"query": "anything"})
			req := httptest.NewRequest("POST", "/api/assistant/query", bytes.NewReader(body))
			w := httptest.NewRecorder()

			h.Query(w, req)
			assert.Equal(t, http.StatusServiceUnavailable, w.Code)
			assert.Contains(t, w.Body.String(), tc.code)
		})
	}
}

func TestHandler_Query_MissingQuery(t *testing.T) {
	h := newHandler(new(MockRetriever), new(MockChunks))

	req := httptest.NewRequest("POST", "/api/assistant/query", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()

	h.Query(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_VerifyCitation(t *testing.T) {
	chunks := new(MockChunks)
	h := newHandler(new(MockRetriever), chunks)

	chunks.On("GetChunk", mock.Anything, "c1").Return(&corpus.Chunk{
		ID:   "c1",
		Text: "An employee is entitled to paid annual leave.",
	}, nil)

	body, _ := json.Marshal(map[string]interface{}{
		"claimed_text": "An employee is entitled to paid annual leave.",
		"chunk_ids":    []string{"c1"},
	})
	req := httptest.NewRequest("POST", "/api/assistant/verify", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.VerifyCitation(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data citations.Result `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Verified)
	assert.Equal(t, "c1", resp.Data.BestCandidateID)
	assert.InDelta(t, 1.0, resp.Data.BestScore, 1e-9)
}

func TestHandler_VerifyCitation_AgainstDocument(t *testing.T) {
	chunks := new(MockChunks)
	h := newHandler(new(MockRetriever), chunks)

	chunks.On("ListByDocument", mock.Anything, "doc-1").Return([]corpus.Chunk{
		{ID: "c1", Text: "completely different subject matter"},
		{ID: "c2", Text: "the employer shall pay a gratuity on termination"},
	}, nil)

	body, _ := json.Marshal(map[string]interface{}{
		"claimed_text": "the employer shall pay a gratuity on termination",
		"document_id":  "doc-1",
	})
	req := httptest.NewRequest("POST", "/api/assistant/verify", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.VerifyCitation(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data citations.Result `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Verified)
	assert.Equal(t, "c2", resp.Data.BestCandidateID)
}

func TestHandler_VerifyCitation_ChunkNotFound(t *testing.T) {
	chunks := new(MockChunks)
	h := newHandler(new(MockRetriever), chunks)

	chunks.On("GetChunk", mock.Anything, "missing").Return(nil, chunkstore.ErrNotFound)

	body, _ := json.Marshal(map[string]interface{}{
		"claimed_text": "anything",
		"chunk_ids":    []string{"missing"},
	})
	req := httptest.NewRequest("POST", "/api/assistant/verify", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.VerifyCitation(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_VerifyCitation_NoCandidates(t *testing.T) {
	h := newHandler(new(MockRetriever), new(MockChunks))

	body, _ := json.Marshal(map[string]string{"claimed_text": "anything"})
	req := httptest.NewRequest("POST", "/api/assistant/verify", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.VerifyCitation(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
