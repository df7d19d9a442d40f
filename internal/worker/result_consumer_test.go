package worker_test

import (
	"encoding/json"
	"testing"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"qaai/apps/backend/internal/worker"
)

func TestResultConsumer_Completed(t *testing.T) {
	u := new(MockUpdater)
	consumer := worker.NewResultConsumer(u)

	payload := worker.IngestResultPayload{
		DocumentID: "doc-1",
		Status:     "completed",
		ChunkCount: 7,
	}
	body, _ := json.Marshal(payload)

	u.On("UpdateChunkCount", mock.Anything, "doc-1", 7).Return(nil)
	u.On("UpdateStatus", mock.Anything, "doc-1", "completed").Return(nil)

	err := consumer.HandleMessage(&nsq.Message{Body: body})
	assert.NoError(t, err)
	u.AssertExpectations(t)
}

func TestResultConsumer_Failed(t *testing.T) {
	u := new(MockUpdater)
	consumer := worker.NewResultConsumer(u)

	payload := worker.IngestResultPayload{
		DocumentID: "doc-1",
		Status:     "failed",
		Error:      "invalid jurisdiction",
	}
	body, _ := json.Marshal(payload)

	u.On("UpdateStatus", mock.Anything, "doc-1", "failed").Return(nil)

	err := consumer.HandleMessage(&nsq.Message{Body: body})
	assert.NoError(t, err)
	u.AssertExpectations(t)
	u.AssertNotCalled(t, "UpdateChunkCount", mock.Anything, mock.Anything, mock.Anything)
}

func TestResultConsumer_InvalidJSON(t *testing.T) {
	u := new(MockUpdater)
	consumer := worker.NewResultConsumer(u)

	err := consumer.HandleMessage(&nsq.Message{Body: []byte("not json")})
	assert.NoError(t, err)
	u.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestResultConsumer_MissingDocumentID(t *testing.T) {
	u := new(MockUpdater)
	consumer := worker.NewResultConsumer(u)

	body, _ := json.Marshal(worker.IngestResultPayload{Status: "completed"})
	err := consumer.HandleMessage(&nsq.Message{Body: body})
	assert.NoError(t, err)
	u.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}
