package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/portfoliokit/ingest-service/internal/api/dto"
	"github.com/portfoliokit/ingest-service/internal/ingest/domain"
	"github.com/portfoliokit/ingest-service/internal/ingest/processor"
	"github.com/portfoliokit/ingest-service/internal/ingest/verifier"
	"github.com/portfoliokit/ingest-service/internal/store"
)

const signatureHeader = "X-Webhook-Signature"

// GitHub handles POST /webhooks/github
// Ingests a source-control push event authenticated by HMAC signature.
func (h *WebhookHandler) GitHub(c *gin.Context) {
	body, ok := h.readSignedBody(c, h.webhook.GitHubSecret)
	if !ok {
		return
	}

	var event processor.PushEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if !processor.ValidatePushEvent(&event) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Push event requires repository name and url"})
		return
	}

	record, err := processor.ProcessPushEvent(&event)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results := dto.IngestResults{}
	h.applyCandidate(c.Request.Context(), record, &results)

	c.JSON(http.StatusAccepted, dto.IngestResponse{
		WebhookID: uuid.New().String(),
		Processed: 1,
		Results:   results,
	})
}

// Medium handles POST /webhooks/medium
// Ingests article-feed entries authenticated by HMAC signature.
func (h *WebhookHandler) Medium(c *gin.Context) {
	body, ok := h.readSignedBody(c, h.webhook.MediumSecret)
	if !ok {
		return
	}

	var req dto.MediumWebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if len(req.Articles) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one article is required"})
		return
	}

	results := dto.IngestResults{}
	for i := range req.Articles {
		article := &req.Articles[i]
		if !processor.ValidateArticle(article) {
			results.Failed++
			continue
		}

		record, err := processor.ProcessArticle(article)
		if err != nil {
			results.Failed++
			continue
		}

		h.applyCandidate(c.Request.Context(), record, &results)
	}

	c.JSON(http.StatusAccepted, dto.IngestResponse{
		WebhookID: uuid.New().String(),
		Processed: len(req.Articles),
		Results:   results,
	})
}

// Ingest handles POST /webhooks/ingest
// Ingests generic items authenticated by HMAC signature or bearer token.
func (h *WebhookHandler) Ingest(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	signatureOK := verifier.VerifySignature(body, c.GetHeader(signatureHeader), h.webhook.CustomSecret)
	bearerOK := verifier.VerifyBearerToken(c.GetHeader("Authorization"), h.webhook.BearerToken)
	if !signatureOK && !bearerOK {
		h.logger.Warn("Ingest webhook rejected",
			slog.String("ip", c.ClientIP()),
		)
		c.JSON(http.StatusUnauthorized, gin.H{"error": domain.ErrAuthentication.Error()})
		return
	}

	var envelope domain.WebhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if len(envelope.Items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one item is required"})
		return
	}

	webhookID := envelope.WebhookID
	if webhookID == "" {
		webhookID = uuid.New().String()
	}

	results := dto.IngestResults{}
	for i := range envelope.Items {
		record, err := processor.ProcessGenericItem(&envelope.Items[i])
		if err != nil {
			results.Failed++
			continue
		}

		h.applyCandidate(c.Request.Context(), record, &results)
	}

	c.JSON(http.StatusAccepted, dto.IngestResponse{
		WebhookID: webhookID,
		Processed: len(envelope.Items),
		Results:   results,
	})
}

// Status handles GET /webhooks/status
func (h *WebhookHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.queue.Stats())
}

// DeadLetters handles GET /webhooks/dlq
func (h *WebhookHandler) DeadLetters(c *gin.Context) {
	entries := h.queue.DeadLetters()
	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}

// RetryDeadLetter handles POST /webhooks/dlq/retry/:id
func (h *WebhookHandler) RetryDeadLetter(c *gin.Context) {
	id := c.Param("id")
	if !h.queue.RetryFromDLQ(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Dead-letter entry not found"})
		return
	}

	h.logger.Info("Dead-letter entry manually retried",
		slog.String("entry_id", id),
	)
	c.JSON(http.StatusOK, gin.H{"id": id, "requeued": true})
}

// readSignedBody reads the raw body and enforces the HMAC signature header.
// Verification failure is terminal: the request is rejected before any
// processor or queue work happens.
func (h *WebhookHandler) readSignedBody(c *gin.Context, secret string) ([]byte, bool) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return nil, false
	}

	if !verifier.VerifySignature(body, c.GetHeader(signatureHeader), secret) {
		h.logger.Warn("Webhook signature rejected",
			slog.String("path", c.Request.URL.Path),
			slog.String("ip", c.ClientIP()),
		)
		c.JSON(http.StatusUnauthorized, gin.H{"error": domain.ErrAuthentication.Error()})
		return nil, false
	}

	return body, true
}

// applyCandidate applies one record synchronously, routing transient store
// failures into the retry queue. Queued items count as failed in the
// immediate response; their eventual outcome surfaces via the status and DLQ
// endpoints.
func (h *WebhookHandler) applyCandidate(ctx context.Context, record *domain.CandidateRecord, results *dto.IngestResults) {
	decision, err := h.store.Apply(ctx, record)
	if err != nil {
		results.Failed++

		if !domain.IsRetryable(err) {
			h.logger.Error("Record application failed permanently",
				slog.String("name", record.Name),
				slog.Any("error", err),
			)
			return
		}

		id, qErr := h.queue.Add(record)
		if qErr != nil {
			h.logger.Error("Failed to enqueue record for retry",
				slog.String("name", record.Name),
				slog.Any("error", qErr),
			)
			return
		}

		h.logger.Warn("Record application deferred to retry queue",
			slog.String("name", record.Name),
			slog.String("entry_id", id),
			slog.Any("error", err),
		)
		return
	}

	h.notifier.RecordApplied(ctx, record, decision)

	if decision == store.DecisionSkipped {
		results.Skipped++
	} else {
		results.Indexed++
	}
}
