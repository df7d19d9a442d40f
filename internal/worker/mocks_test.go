package worker_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"qaai/apps/backend/internal/corpus"
)

// Mocks

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockChunkWriter struct{ mock.Mock }

func (m *MockChunkWriter) PutChunks(ctx context.Context, documentID string, chunks []corpus.Chunk) error {
	args := m.Called(ctx, documentID, chunks)
	return args.Error(0)
}

type MockVectorWriter struct{ mock.Mock }

func (m *MockVectorWriter) StoreChunk(ctx context.Context, projectID string, chunk corpus.Chunk) error {
	args := m.Called(ctx, projectID, chunk)
	return args.Error(0)
}

func (m *MockVectorWriter) DeleteByDocument(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(topic string, body []byte) error {
	args := m.Called(topic, body)
	return args.Error(0)
}

type MockUpdater struct{ mock.Mock }

func (m *MockUpdater) UpdateStatus(ctx context.Context, id, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockUpdater) UpdateChunkCount(ctx context.Context, id string, count int) error {
	args := m.Called(ctx, id, count)
	return args.Error(0)
}
