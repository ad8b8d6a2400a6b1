package dto

import "github.com/portfoliokit/ingest-service/internal/ingest/processor"

// MediumWebhookRequest is the article-feed ingestion payload.
type MediumWebhookRequest struct {
	Articles []processor.Article `json:"articles"`
}

// IngestResults breaks down per-item outcomes of one webhook delivery.
type IngestResults struct {
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// IngestResponse is returned with 202 Accepted for every ingestion endpoint.
// Asynchronous retry outcomes are only visible via the status/DLQ endpoints.
type IngestResponse struct {
	WebhookID string        `json:"webhook_id"`
	Processed int           `json:"processed"`
	Results   IngestResults `json:"results"`
}
