package config

import (
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Core settings
	Environment string
	ServiceName string
	LogLevel    string
	Version     string

	// Adapter selection
	Adapters AdapterConfig

	// Component configurations
	HTTP          HTTPConfig
	Lambda        LambdaConfig
	RabbitMQ      RabbitMQConfig
	Storage       StorageConfig
	Database      DatabaseConfig
	Observability ObservabilityConfig
	Offload       OffloadConfig
	Publisher     PublisherConfig
}

// AdapterConfig specifies which implementations to use
type AdapterConfig struct {
	Runtime   string // "lambda", "http", "rabbitmq"
	Storage   string // "s3", "filesystem"
	Ledger    string // "memory", "postgres"
	Logger    string // "stdout", "cloudwatch"
	Metrics   string // "stdout", "prometheus", "cloudwatch"
	Publisher string // "none", "sqs", "rabbitmq"
}

// HTTPConfig holds HTTP runtime configuration
type HTTPConfig struct {
	Timeout        time.Duration
	Addr           string
	MaxRequestSize int64
}

// LambdaConfig holds Lambda-specific configuration
type LambdaConfig struct {
	Timeout                   time.Duration
	EnablePartialBatchFailure bool
}

// RabbitMQConfig holds the consumer runtime settings
type RabbitMQConfig struct {
	URL           string
	Queue         string
	PrefetchCount int
	Timeout       time.Duration
}

// StorageConfig holds object store configuration
type StorageConfig struct {
	// Bucket name for s3, base directory for filesystem
	BucketOrPath   string
	MaxRetries     int
	Timeout        time.Duration
	ConnectTimeout time.Duration

	S3 S3Config
}

// S3Config holds S3-specific configuration
type S3Config struct {
	Region          string
	Endpoint        string // DigitalOcean Spaces, MinIO or any S3-compatible service
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	ACL             string

	// InsecureSkipVerify disables TLS certificate verification. Off unless set explicitly.
	InsecureSkipVerify bool
}

// DatabaseConfig holds the key ledger database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	Database     string
	Username     string
	Password     string
	MaxOpenConns int
	MaxIdleConns int
	SSLMode      string
}

// ObservabilityConfig holds observability configuration
type ObservabilityConfig struct {
	LogFormat           string // "text" or "json"
	CloudWatchRegion    string
	CloudWatchLogGroup  string
	CloudWatchNamespace string
	FlushInterval       time.Duration
}

// OffloadConfig holds the key naming and URL rewriting settings
type OffloadConfig struct {
	// SiteURL is the origin the CMS renders media URLs with
	SiteURL string
	// CDNURL replaces SiteURL in rewritten media URLs
	CDNURL string
	// LocalUploadSegment marks URLs that point at offloaded media
	LocalUploadSegment string
	// RemotePrefix is the first segment of every remote key
	RemotePrefix    string
	ImageExtensions []string
}

// PublisherConfig holds where batch results are announced
type PublisherConfig struct {
	// Target is the SQS queue name or RabbitMQ queue results are sent to
	Target      string
	SQSRegion   string
	SQSEndpoint string
	Timeout     time.Duration
}

// Environment detection methods

// IsLocal returns true if running in local/development environment
func (c *Config) IsLocal() bool {
	env := strings.ToLower(c.Environment)
	return env == "local" || env == "development" || env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Environment)
	return env == "production" || env == "prod"
}

// IsTest returns true if running in test environment
func (c *Config) IsTest() bool {
	env := strings.ToLower(c.Environment)
	return env == "test" || env == "testing"
}
