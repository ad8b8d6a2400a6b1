package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health reports service liveness plus the state of the optional backing
// dependencies. Any unreachable dependency degrades the response to 503 so
// load balancers stop routing to this instance.
func (h *WebhookHandler) Health(c *gin.Context) {
	resp := gin.H{
		"service": "ingest-service",
		"status":  "healthy",
	}
	status := http.StatusOK

	if h.db != nil {
		if err := h.db.HealthCheck(c.Request.Context()); err != nil {
			h.logger.Error("Database health check failed",
				slog.String("error", err.Error()),
			)
			resp["database"] = "unavailable"
			resp["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else {
			resp["database"] = "ok"
		}
	}

	if h.broker != nil {
		if h.broker.IsConnected() {
			resp["rabbitmq"] = "ok"
		} else {
			h.logger.Error("RabbitMQ connection is down")
			resp["rabbitmq"] = "unavailable"
			resp["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, resp)
}
