// Package notifier publishes apply-outcome events so downstream consumers
// (analytics, cache invalidation) can react to ingested content. Publishing
// is best-effort: a broker failure is logged and never fails the ingestion
// path.
package notifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/portfoliokit/ingest-service/internal/ingest/domain"
	"github.com/portfoliokit/ingest-service/internal/store"
	"github.com/portfoliokit/ingest-service/shared/rabbitmq"
)

// Event is the message published for every applied candidate record.
type Event struct {
	Event      string    `json:"event"` // record.created, record.updated, record.skipped
	Name       string    `json:"name"`
	SourceType string    `json:"source_type"`
	URL        string    `json:"url,omitempty"`
	Tags       []string  `json:"tags"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier publishes outcome events over RabbitMQ. A nil Notifier is valid
// and publishes nothing.
type Notifier struct {
	client *rabbitmq.Client
	logger *slog.Logger
}

// New creates a notifier backed by the given RabbitMQ client.
func New(client *rabbitmq.Client, logger *slog.Logger) *Notifier {
	return &Notifier{client: client, logger: logger}
}

// RecordApplied publishes the outcome of one applied candidate record.
func (n *Notifier) RecordApplied(ctx context.Context, record *domain.CandidateRecord, decision store.Decision) {
	if n == nil || n.client == nil {
		return
	}

	event := Event{
		Event:      "record." + string(decision),
		Name:       record.Name,
		SourceType: record.SourceType,
		URL:        record.URL,
		Tags:       record.Tags,
		OccurredAt: time.Now().UTC(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("Failed to marshal outcome event",
			slog.Any("error", err),
		)
		return
	}

	if err := n.client.PublishWithRetry(ctx, body, "application/json"); err != nil {
		n.logger.Error("Failed to publish outcome event",
			slog.String("event", event.Event),
			slog.String("name", event.Name),
			slog.Any("error", err),
		)
	}
}
