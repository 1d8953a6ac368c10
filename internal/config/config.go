package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"outreachai/internal/gateway"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Database DatabaseConfig
	RabbitMQ RabbitMQConfig
	Engine   EngineConfig
	Env      string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
}

// StoreConfig selects the campaign store backend
type StoreConfig struct {
	// Backend is "postgres" or "memory". Memory mode runs without
	// Postgres or RabbitMQ, for local development.
	Backend string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// RabbitMQConfig holds RabbitMQ configuration
type RabbitMQConfig struct {
	Host     string
	Port     string
	User     string
	Password string
}

// EngineConfig holds the automation engine webhook URLs
type EngineConfig struct {
	PingURL          string
	CreateDraftURL   string
	SendMailURL      string
	CheckRepliesURL  string
	ProbeIntervalSec int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Store: StoreConfig{
			Backend: getEnv("STORE_BACKEND", "postgres"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     getEnv("POSTGRES_USER", "outreachai"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			DBName:   getEnv("POSTGRES_DB", "outreachai_db"),
		},
		RabbitMQ: RabbitMQConfig{
			Host:     getEnv("RABBITMQ_HOST", "localhost"),
			Port:     getEnv("RABBITMQ_PORT", "5672"),
			User:     getEnv("RABBITMQ_DEFAULT_USER", "guest"),
			Password: getEnv("RABBITMQ_DEFAULT_PASS", "guest"),
		},
		Engine: EngineConfig{
			PingURL:          getEnv("ENGINE_PING_URL", "http://localhost:5678/webhook/ping"),
			CreateDraftURL:   getEnv("ENGINE_CREATE_DRAFT_URL", "http://localhost:5678/webhook/create-draft"),
			SendMailURL:      getEnv("ENGINE_SEND_MAIL_URL", "http://localhost:5678/webhook/send-mail"),
			CheckRepliesURL:  getEnv("ENGINE_CHECK_REPLIES_URL", "http://localhost:5678/webhook/check-replies"),
			ProbeIntervalSec: getEnvAsInt("ENGINE_PROBE_INTERVAL_SECONDS", 30),
		},
		Env: getEnv("ENV", "development"),
	}

	// Validate required fields
	if config.Store.Backend != "postgres" && config.Store.Backend != "memory" {
		return nil, fmt.Errorf("STORE_BACKEND must be postgres or memory, got %q", config.Store.Backend)
	}
	if config.Store.Backend == "postgres" && config.Database.Password == "" {
		return nil, fmt.Errorf("POSTGRES_PASSWORD is required")
	}

	return config, nil
}

// GetDatabaseDSN returns PostgreSQL connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// GetRabbitMQURL returns RabbitMQ connection URL
func (c *Config) GetRabbitMQURL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		c.RabbitMQ.User,
		c.RabbitMQ.Password,
		c.RabbitMQ.Host,
		c.RabbitMQ.Port,
	)
}

// EngineEndpoints returns the webhook endpoint set for the gateway
func (c *Config) EngineEndpoints() gateway.Endpoints {
	return gateway.Endpoints{
		Ping:         c.Engine.PingURL,
		CreateDraft:  c.Engine.CreateDraftURL,
		SendMail:     c.Engine.SendMailURL,
		CheckReplies: c.Engine.CheckRepliesURL,
	}
}

// ProbeInterval returns the engine health probe interval
func (c *Config) ProbeInterval() time.Duration {
	return time.Duration(c.Engine.ProbeIntervalSec) * time.Second
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// getEnv gets environment variable or returns default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets environment variable as integer or returns default
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
