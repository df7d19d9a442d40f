package config

const (
	// TopicIngestTask is the NSQ topic for document ingestion tasks.
	TopicIngestTask = "ingest.task"

	// TopicIngestResult is the NSQ topic for ingestion results (success/failure).
	TopicIngestResult = "ingest.result"
)
