package weaviate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	adapter "qaai/apps/backend/internal/adapter/weaviate"
	"qaai/apps/backend/internal/corpus"
	"qaai/apps/backend/internal/legal"
	"qaai/apps/backend/internal/retrieval"
)

func mockWeaviate(t *testing.T, handler http.HandlerFunc) (*weaviate.Client, *httptest.Server) {
	ts := httptest.NewServer(handler)
	cfg := weaviate.Config{Host: ts.Listener.Addr().String(), Scheme: "http"}
	client, err := weaviate.NewClient(cfg)
	assert.NoError(t, err)
	return client, ts
}

func TestIndex_StoreChunk(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		assert.Equal(t, "/v1/objects", r.URL.Path)
		assert.Equal(t, "POST", r.Method)

		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "LegalChunk", body["class"])
		props := body["properties"].(map[string]interface{})
		assert.Equal(t, "employees are entitled to leave", props["content"])
		assert.Equal(t, "DIFC", props["jurisdiction"])
		assert.Equal(t, "Law", props["instrumentType"])
		assert.Equal(t, "proj-1", props["projectId"])

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "1"})
	})
	defer ts.Close()

	ix := adapter.NewIndex(client)
	chunk := corpus.Chunk{
		ID:             corpus.ChunkID("doc-1", 0),
		DocumentID:     "doc-1",
		Text:           "employees are entitled to leave",
		ChunkIndex:     0,
		Jurisdiction:   legal.JurisdictionDIFC,
		InstrumentType: legal.InstrumentLaw,
		Embedding:      []float32{0.1, 0.2},
	}
	err := ix.StoreChunk(context.Background(), "proj-1", chunk)
	assert.NoError(t, err)
}

func TestIndex_DeleteByDocument(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		assert.Equal(t, "/v1/batch/objects", r.URL.Path)
		assert.Equal(t, "DELETE", r.Method)
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{})
	})
	defer ts.Close()

	ix := adapter.NewIndex(client)
	err := ix.DeleteByDocument(context.Background(), "doc-1")
	assert.NoError(t, err)
}

func TestIndex_Search(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		assert.Equal(t, "/v1/graphql", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		resp := map[string]interface{}{
			"data": map[string]interface{}{
				"Get": map[string]interface{}{
					"LegalChunk": []interface{}{
						map[string]interface{}{
							"content":        "annual leave entitlement",
							"documentId":     "doc-1",
							"chunkIndex":     2.0,
							"sectionRef":     "Article 27",
							"jurisdiction":   "DIFC",
							"instrumentType": "Law",
							"_additional": map[string]interface{}{
								"id":        "9f2c1a4e-0000-0000-0000-000000000000",
								"certainty": 0.92,
							},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	ix := adapter.NewIndex(client)
	matches, err := ix.Search(context.Background(), []float32{0.1, 0.2}, 10, retrieval.Filter{})
	assert.NoError(t, err)
	assert.Len(t, matches, 1)
	assert.Equal(t, "annual leave entitlement", matches[0].Chunk.Text)
	assert.Equal(t, "doc-1", matches[0].Chunk.DocumentID)
	assert.Equal(t, 2, matches[0].Chunk.ChunkIndex)
	assert.Equal(t, "Article 27", matches[0].Chunk.SectionRef)
	assert.Equal(t, legal.JurisdictionDIFC, matches[0].Chunk.Jurisdiction)
	assert.Equal(t, legal.InstrumentLaw, matches[0].Chunk.InstrumentType)
	assert.Equal(t, 0.92, matches[0].RawScore)
}

func TestIndex_Search_StringCertainty(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		resp := map[string]interface{}{
			"data": map[string]interface{}{
				"Get": map[string]interface{}{
					"LegalChunk": []interface{}{
						map[string]interface{}{
							"content":      "payment of wages",
							"jurisdiction": "UAE",
							"_additional": map[string]interface{}{
								"certainty": "0.83",
							},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	ix := adapter.NewIndex(client)
	matches, err := ix.Search(context.Background(), []float32{0.3}, 5, retrieval.Filter{})
	assert.NoError(t, err)
	assert.Len(t, matches, 1)
	assert.InDelta(t, 0.83, matches[0].RawScore, 1e-9)
}

func TestIndex_Search_FiltersInQuery(t *testing.T) {
	var gql string
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		gql, _ = body["query"].(string)
		w.WriteHeader(http.StatusOK)
		resp := map[string]interface{}{
			"data": map[string]interface{}{
				"Get": map[string]interface{}{"LegalChunk": []interface{}{}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	ix := adapter.NewIndex(client)
	filter := retrieval.Filter{
		Jurisdictions:   []legal.Jurisdiction{legal.JurisdictionDIFC, legal.JurisdictionDFSA},
		InstrumentTypes: []legal.InstrumentType{legal.InstrumentLaw},
		ProjectID:       "proj-1",
	}
	matches, err := ix.Search(context.Background(), []float32{0.1}, 5, filter)
	assert.NoError(t, err)
	assert.Empty(t, matches)
	assert.Contains(t, gql, "jurisdiction")
	assert.Contains(t, gql, "instrumentType")
	assert.Contains(t, gql, "projectId")
	assert.Contains(t, gql, "proj-1")
}

func TestIndex_Search_GraphQLError(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		resp := map[string]interface{}{
			"errors": []interface{}{
				map[string]interface{}{"message": "vector length mismatch"},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	ix := adapter.NewIndex(client)
	_, err := ix.Search(context.Background(), []float32{0.1}, 5, retrieval.Filter{})
	assert.Error(t, err)
}
