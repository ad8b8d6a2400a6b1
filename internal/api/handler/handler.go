package handler

import (
	"log/slog"

	"github.com/portfoliokit/ingest-service/internal/config"
	"github.com/portfoliokit/ingest-service/internal/ingest/queue"
	"github.com/portfoliokit/ingest-service/internal/notifier"
	"github.com/portfoliokit/ingest-service/internal/store"
	"github.com/portfoliokit/ingest-service/shared/postgresql"
	"github.com/portfoliokit/ingest-service/shared/rabbitmq"
)

// Dependencies holds all dependencies needed by handlers. DB and Broker are
// nil when the corresponding backend is disabled; health reporting skips
// them in that case.
type Dependencies struct {
	Logger   *slog.Logger
	Store    store.RecordStore
	Queue    *queue.Queue
	Notifier *notifier.Notifier
	Webhook  config.WebhookConfig
	DB       *postgresql.Client
	Broker   *rabbitmq.Client
}

// WebhookHandler handles webhook ingestion and queue inspection requests
type WebhookHandler struct {
	logger   *slog.Logger
	store    store.RecordStore
	queue    *queue.Queue
	notifier *notifier.Notifier
	webhook  config.WebhookConfig
	db       *postgresql.Client
	broker   *rabbitmq.Client
}

// NewWebhookHandler creates a new WebhookHandler instance
func NewWebhookHandler(deps *Dependencies) *WebhookHandler {
	return &WebhookHandler{
		logger:   deps.Logger,
		store:    deps.Store,
		queue:    deps.Queue,
		notifier: deps.Notifier,
		webhook:  deps.Webhook,
		db:       deps.DB,
		broker:   deps.Broker,
	}
}
