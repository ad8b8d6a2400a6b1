package router

import (
	"github.com/gin-gonic/gin"

	"github.com/portfoliokit/ingest-service/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	webhookHandler := handler.NewWebhookHandler(deps)

	// Health check endpoint, covering optional backing dependencies
	r.GET("/health", webhookHandler.Health)

	webhooks := r.Group("/webhooks")
	{
		// Ingestion endpoints, authenticated per source
		webhooks.POST("/github", webhookHandler.GitHub)
		webhooks.POST("/medium", webhookHandler.Medium)
		webhooks.POST("/ingest", webhookHandler.Ingest)

		// Internal inspection endpoints
		webhooks.GET("/status", webhookHandler.Status)
		webhooks.GET("/dlq", webhookHandler.DeadLetters)
		webhooks.POST("/dlq/retry/:id", webhookHandler.RetryDeadLetter)
	}

	return r
}
