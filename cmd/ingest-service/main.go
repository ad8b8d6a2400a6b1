package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/portfoliokit/ingest-service/internal/api/handler"
	"github.com/portfoliokit/ingest-service/internal/api/router"
	"github.com/portfoliokit/ingest-service/internal/config"
	"github.com/portfoliokit/ingest-service/internal/ingest/domain"
	"github.com/portfoliokit/ingest-service/internal/ingest/queue"
	"github.com/portfoliokit/ingest-service/internal/notifier"
	"github.com/portfoliokit/ingest-service/internal/store"
	"github.com/portfoliokit/ingest-service/shared/logger"
	"github.com/portfoliokit/ingest-service/shared/postgresql"
	"github.com/portfoliokit/ingest-service/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("INGEST_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/ingest-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting ingest service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Record store: Postgres when configured, in-memory otherwise
	var (
		recordStore store.RecordStore
		dbClient    *postgresql.Client
	)
	if cfg.Database.Enabled {
		dbClient, err = initPostgreSQL(&cfg.Database, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		appLogger.Info("Database connection established")

		recordStore, err = store.NewPostgres(context.Background(), dbClient, cfg.Webhook.SimilarityThreshold)
		if err != nil {
			return fmt.Errorf("failed to initialize record store: %w", err)
		}
	} else {
		appLogger.Warn("Database disabled, using in-memory record store")
		recordStore = store.NewMemory(cfg.Webhook.SimilarityThreshold)
	}

	// Outcome-event publisher, optional
	var (
		rabbitClient  *rabbitmq.Client
		eventNotifier *notifier.Notifier
	)
	if cfg.RabbitMQ.Enabled {
		rabbitClient, err = initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		appLogger.Info("RabbitMQ connection established")
		eventNotifier = notifier.New(rabbitClient, appLogger.Logger)
	}

	// Retry queue: re-applies records that failed transiently at ingest time
	retryQueue := queue.New(&queue.Config{
		Logger:         appLogger.Logger,
		MaxAttempts:    cfg.Webhook.Queue.MaxAttempts,
		AttemptTimeout: cfg.Webhook.Queue.AttemptTimeout,
	})
	retryQueue.SetProcessor(func(ctx context.Context, payload json.RawMessage) error {
		var record domain.CandidateRecord
		if err := json.Unmarshal(payload, &record); err != nil {
			return fmt.Errorf("failed to decode queued record: %w", err)
		}

		decision, err := recordStore.Apply(ctx, &record)
		if err != nil {
			return err
		}

		eventNotifier.RecordApplied(ctx, &record, decision)
		return nil
	})
	retryQueue.Start(cfg.Webhook.Queue.Interval)

	r := initRouter(cfg, appLogger.Logger, recordStore, retryQueue, eventNotifier, dbClient, rabbitClient)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	appLogger.Info("Ingest service is running",
		slog.String("address", addr),
	)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	retryQueue.Stop()

	shutdownErr := srv.Shutdown(ctx)

	if dbClient != nil {
		dbClient.Close()
	}
	if rabbitClient != nil {
		rabbitClient.Close()
	}

	if shutdownErr != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", shutdownErr),
		)
		return shutdownErr
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	return postgresql.NewClient(&postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}, logger)
}

// initRabbitMQ initializes the RabbitMQ publisher client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(&rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}, logger)
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(
	cfg *config.Config,
	logger *slog.Logger,
	recordStore store.RecordStore,
	retryQueue *queue.Queue,
	eventNotifier *notifier.Notifier,
	dbClient *postgresql.Client,
	rabbitClient *rabbitmq.Client,
) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(&handler.Dependencies{
		Logger:   logger,
		Store:    recordStore,
		Queue:    retryQueue,
		Notifier: eventNotifier,
		Webhook:  cfg.Webhook,
		DB:       dbClient,
		Broker:   rabbitClient,
	})
}
