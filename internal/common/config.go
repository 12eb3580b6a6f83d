// Package common provides shared utilities for the video-analysis service.
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the video-analysis service.
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	Blob        BlobConfig    `toml:"blob"`
	Queue       QueueConfig   `toml:"queue"`
	Worker      WorkerConfig  `toml:"worker"`
	Logging     LoggingConfig `toml:"logging"`
	Auth        AuthConfig    `toml:"auth"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds the SurrealDB connection configuration backing JobStore.
type StorageConfig struct {
	Address   string `toml:"address"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
}

// BlobConfig configures the BlobStore backend: "file" for local dev/test,
// "s3" for production (spec §4.1, §6).
type BlobConfig struct {
	Backend                string  `toml:"backend"`
	Bucket                 string  `toml:"bucket"`                    // BLOB_BUCKET
	PresignedURLTTLSeconds int     `toml:"presigned_url_ttl_seconds"` // PRESIGNED_URL_TTL_SECONDS
	Region                 string  `toml:"region"`
	Endpoint               string  `toml:"endpoint"`
	AccessKey              string  `toml:"access_key"`
	SecretKey              string  `toml:"secret_key"`
	FileBasePath           string  `toml:"file_base_path"`
	FilePresignBaseURL     string  `toml:"file_presign_base_url"`
}

// PresignedURLTTL parses the configured TTL in seconds, defaulting to 15 minutes.
func (c *BlobConfig) PresignedURLTTL() time.Duration {
	if c.PresignedURLTTLSeconds <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.PresignedURLTTLSeconds) * time.Second
}

// QueueConfig configures the MessageQueue backend and durable dispatch URL
// (spec §4.1, §6 QUEUE_URL).
type QueueConfig struct {
	Backend string `toml:"backend"` // "sqs" or "mem"
	URL     string `toml:"url"`     // QUEUE_URL
	Region  string `toml:"region"`
}

// WorkerConfig configures the AnalysisWorker pool's concurrency, visibility
// timeout, deadlines, and DLQ redrive threshold (spec §4.3, §6).
type WorkerConfig struct {
	Concurrency               int `toml:"concurrency"`
	VisibilityTimeoutSeconds  int `toml:"visibility_timeout_seconds"`  // WORKER_VISIBILITY_TIMEOUT_SECONDS
	JobDeadlineSeconds        int `toml:"job_deadline_seconds"`        // WORKER_JOB_DEADLINE_SECONDS
	PollSeconds               int `toml:"poll_seconds"`                // WORKER_POLL_SECONDS
	MaxReceiveCount           int `toml:"max_receive_count"`           // MAX_RECEIVE_COUNT
	SampleFPS                 int `toml:"sample_fps"`
}

func (c *WorkerConfig) VisibilityTimeout() time.Duration {
	if c.VisibilityTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.VisibilityTimeoutSeconds) * time.Second
}

func (c *WorkerConfig) JobDeadline() time.Duration {
	if c.JobDeadlineSeconds <= 0 {
		return 20 * time.Minute
	}
	return time.Duration(c.JobDeadlineSeconds) * time.Second
}

func (c *WorkerConfig) PollInterval() time.Duration {
	if c.PollSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.PollSeconds) * time.Second
}

// AuthConfig holds the JWT verification configuration backing
// AuthorizationContext (spec §1 non-goals: authentication itself is external;
// the core only verifies and reads claims).
type AuthConfig struct {
	JWTSecret   string `toml:"jwt_secret"`
	TokenExpiry string `toml:"token_expiry"`
}

func (c *AuthConfig) GetTokenExpiry() time.Duration {
	d, err := time.ParseDuration(c.TokenExpiry)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string   `toml:"level"`
	Format     string   `toml:"format"`
	Outputs    []string `toml:"outputs"`
	FilePath   string   `toml:"file_path"`
	MaxSizeMB  int      `toml:"max_size_mb"`
	MaxBackups int      `toml:"max_backups"`
}

// NewDefaultConfig returns a Config with sensible defaults for local development.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Address:   "ws://localhost:8000/rpc",
			Username:  "root",
			Password:  "root",
			Namespace: "video_analysis",
			Database:  "video_analysis",
		},
		Blob: BlobConfig{
			Backend:                "file",
			PresignedURLTTLSeconds: 900,
			FileBasePath:           "data/blobs",
		},
		Queue: QueueConfig{
			Backend: "mem",
		},
		Worker: WorkerConfig{
			Concurrency:              2,
			VisibilityTimeoutSeconds: 60,
			JobDeadlineSeconds:       1200,
			PollSeconds:              5,
			MaxReceiveCount:          5,
			SampleFPS:                5,
		},
		Auth: AuthConfig{
			JWTSecret:   "dev-jwt-secret-change-in-production",
			TokenExpiry: "24h",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Outputs:    []string{"console", "file"},
			FilePath:   "./logs/video-analysis.log",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}

// LoadConfig loads configuration from TOML files (later files override
// earlier) then applies environment variable overrides.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

// applyEnvOverrides applies the exact set of environment variables named in
// spec §6: BLOB_BUCKET, PRESIGNED_URL_TTL_SECONDS, QUEUE_URL,
// WORKER_VISIBILITY_TIMEOUT_SECONDS, WORKER_JOB_DEADLINE_SECONDS,
// WORKER_POLL_SECONDS, MAX_RECEIVE_COUNT, plus the ambient server/logging/auth
// knobs the teacher's config layer always carries.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("VIDEO_ANALYSIS_ENV"); v != "" {
		config.Environment = v
	}
	if v := os.Getenv("VIDEO_ANALYSIS_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("VIDEO_ANALYSIS_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			config.Server.Port = p
		}
	}
	if v := os.Getenv("VIDEO_ANALYSIS_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("SURREALDB_ADDRESS"); v != "" {
		config.Storage.Address = v
	}
	if v := os.Getenv("SURREALDB_USERNAME"); v != "" {
		config.Storage.Username = v
	}
	if v := os.Getenv("SURREALDB_PASSWORD"); v != "" {
		config.Storage.Password = v
	}

	// Spec §6 env vars.
	if v := os.Getenv("BLOB_BUCKET"); v != "" {
		config.Blob.Bucket = v
		config.Blob.Backend = "s3"
	}
	if v := os.Getenv("PRESIGNED_URL_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Blob.PresignedURLTTLSeconds = n
		}
	}
	if v := os.Getenv("QUEUE_URL"); v != "" {
		config.Queue.URL = v
		config.Queue.Backend = "sqs"
	}
	if v := os.Getenv("WORKER_VISIBILITY_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Worker.VisibilityTimeoutSeconds = n
		}
	}
	if v := os.Getenv("WORKER_JOB_DEADLINE_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Worker.JobDeadlineSeconds = n
		}
	}
	if v := os.Getenv("WORKER_POLL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Worker.PollSeconds = n
		}
	}
	if v := os.Getenv("MAX_RECEIVE_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Worker.MaxReceiveCount = n
		}
	}

	if v := os.Getenv("AUTH_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("AUTH_TOKEN_EXPIRY"); v != "" {
		config.Auth.TokenExpiry = v
	}
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
