package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DBConfig holds database configuration
type DBConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// OpenAIConfig holds settings shared by the chat and image clients
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	ChatModel string
}

// S3Config holds the durable image storage settings
type S3Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	PublicBaseURL   string
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Host           string
	Port           int
	SiteURL        string
	RateLimitRPS   float64
	RateLimitBurst int
}

// Config holds all configuration for the application
type Config struct {
	OpenAI              OpenAIConfig
	DalleEnabled        bool
	PollinationsEnabled bool
	PollinationsBaseURL string
	DefaultImageWidth   int
	DefaultImageHeight  int
	PersistCron         string
	PersistBatchSize    int
	PersistMaxAttempts  int
	S3                  S3Config
	Server              ServerConfig
	DB                  DBConfig
}

// Load loads the configuration from environment variables.
// A .env file is read first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	config := &Config{
		OpenAI: OpenAIConfig{
			APIKey:    os.Getenv("OPENAI_API_KEY"),
			BaseURL:   os.Getenv("OPENAI_BASE_URL"),
			ChatModel: getString("OPENAI_CHAT_MODEL", "gpt-4"),
		},
		DalleEnabled:        getBool("DALLE_ENABLED", false),
		PollinationsEnabled: getBool("POLLINATIONS_ENABLED", true),
		PollinationsBaseURL: os.Getenv("POLLINATIONS_BASE_URL"),
		DefaultImageWidth:   getInt("DEFAULT_IMAGE_WIDTH", 1024),
		DefaultImageHeight:  getInt("DEFAULT_IMAGE_HEIGHT", 1024),
		PersistCron:         getString("PERSIST_CRON", "0 */10 * * * *"),
		PersistBatchSize:    getInt("PERSIST_BATCH_SIZE", 20),
		PersistMaxAttempts:  getInt("PERSIST_MAX_ATTEMPTS", 5),
		S3: S3Config{
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			Region:          getString("S3_REGION", "us-east-1"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			Bucket:          getString("S3_BUCKET_NAME", "images"),
			PublicBaseURL:   os.Getenv("S3_PUBLIC_BASE_URL"),
		},
		Server: ServerConfig{
			Host:           getString("SERVER_HOST", "0.0.0.0"),
			Port:           getInt("SERVER_PORT", 8080),
			SiteURL:        os.Getenv("SITE_URL"),
			RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 1),
			RateLimitBurst: getInt("RATE_LIMIT_BURST", 5),
		},
	}

	// Load database configuration
	config.DB = DBConfig{
		Host:            os.Getenv("DB_HOST"),
		Port:            getInt("DB_PORT", 5432),
		User:            os.Getenv("DB_USER"),
		Password:        os.Getenv("DB_PASSWORD"),
		Database:        os.Getenv("DB_NAME"),
		SSLMode:         getString("DB_SSL_MODE", "disable"),
		MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 25),
		ConnMaxLifetime: time.Duration(getInt("DB_CONN_MAX_LIFETIME", 300)) * time.Second,
	}

	if config.DalleEnabled && config.OpenAI.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required when DALLE_ENABLED is set")
	}
	if config.PersistBatchSize <= 0 {
		return nil, fmt.Errorf("PERSIST_BATCH_SIZE must be positive")
	}
	if config.PersistMaxAttempts <= 0 {
		return nil, fmt.Errorf("PERSIST_MAX_ATTEMPTS must be positive")
	}

	// Validate database configuration
	if config.DB.Host == "" {
		return nil, fmt.Errorf("DB_HOST is required")
	}
	if config.DB.User == "" {
		return nil, fmt.Errorf("DB_USER is required")
	}
	if config.DB.Database == "" {
		return nil, fmt.Errorf("DB_NAME is required")
	}

	return config, nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Database, c.DB.SSLMode)
}

// Addr returns the HTTP listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}
