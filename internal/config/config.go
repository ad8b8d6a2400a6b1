package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
	Webhook  WebhookConfig  `yaml:"webhook"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration. When Enabled is
// false the service falls back to the in-memory record store.
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds the outcome-event publisher configuration. When
// Enabled is false no events are published.
type RabbitMQConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Durable bool   `yaml:"durable"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WebhookConfig holds webhook verification and queue settings. Secrets come
// from the environment so each source can be rotated independently; YAML
// values act as defaults for local development only.
type WebhookConfig struct {
	GitHubSecret        string      `yaml:"github_secret"`
	MediumSecret        string      `yaml:"medium_secret"`
	CustomSecret        string      `yaml:"custom_secret"`
	BearerToken         string      `yaml:"bearer_token"`
	SimilarityThreshold int         `yaml:"similarity_threshold"`
	Queue               QueueConfig `yaml:"queue"`
}

// QueueConfig holds retry queue settings
type QueueConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	Interval       time.Duration `yaml:"interval"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
}

// Load reads and parses the configuration file, then applies environment
// overrides for webhook secrets.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applySecretOverrides()

	return &config, nil
}

// applySecretOverrides replaces webhook secrets with their environment
// counterparts when set.
func (c *Config) applySecretOverrides() {
	if v := os.Getenv("WEBHOOK_GITHUB_SECRET"); v != "" {
		c.Webhook.GitHubSecret = v
	}
	if v := os.Getenv("WEBHOOK_MEDIUM_SECRET"); v != "" {
		c.Webhook.MediumSecret = v
	}
	if v := os.Getenv("WEBHOOK_CUSTOM_SECRET"); v != "" {
		c.Webhook.CustomSecret = v
	}
	if v := os.Getenv("WEBHOOK_BEARER_TOKEN"); v != "" {
		c.Webhook.BearerToken = v
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Port < MinPort || c.Database.Port > MaxPort {
			return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if c.RabbitMQ.Enabled {
		if c.RabbitMQ.Host == "" {
			return fmt.Errorf("rabbitmq host is required")
		}
		if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
			return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
		}
		if c.RabbitMQ.Exchange.Name == "" {
			return fmt.Errorf("rabbitmq exchange name is required")
		}
	}

	if c.Webhook.GitHubSecret == "" && c.Webhook.MediumSecret == "" &&
		c.Webhook.CustomSecret == "" && c.Webhook.BearerToken == "" {
		return fmt.Errorf("at least one webhook secret or bearer token is required")
	}

	if c.Webhook.SimilarityThreshold < 0 || c.Webhook.SimilarityThreshold > 100 {
		return fmt.Errorf("similarity threshold must be between 0 and 100, got %d", c.Webhook.SimilarityThreshold)
	}

	if c.Webhook.Queue.MaxAttempts < 0 {
		return fmt.Errorf("queue max_attempts must not be negative")
	}

	if c.Webhook.Queue.Interval <= 0 {
		return fmt.Errorf("queue interval must be greater than 0")
	}

	return nil
}
