package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate validates the entire configuration
func (c *Config) Validate() error {
	var errors []string

	if c.ServiceName == "" {
		errors = append(errors, "SERVICE_NAME is required")
	}

	if err := c.Adapters.Validate(); err != nil {
		errors = append(errors, err.Error())
	}

	// Validate component configs based on selected adapters
	switch c.Adapters.Runtime {
	case "http":
		if err := c.HTTP.Validate(); err != nil {
			errors = append(errors, err.Error())
		}
	case "lambda":
		if err := c.Lambda.Validate(); err != nil {
			errors = append(errors, err.Error())
		}
	case "rabbitmq":
		if err := c.RabbitMQ.Validate(); err != nil {
			errors = append(errors, err.Error())
		}
	}

	if err := c.Storage.Validate(c.Adapters); err != nil {
		errors = append(errors, err.Error())
	}

	if err := c.Observability.Validate(c.Adapters); err != nil {
		errors = append(errors, err.Error())
	}

	if c.Adapters.Ledger == "postgres" {
		if err := c.Database.Validate(); err != nil {
			errors = append(errors, err.Error())
		}
	}

	if err := c.Offload.Validate(); err != nil {
		errors = append(errors, err.Error())
	}

	if err := c.Publisher.Validate(c.Adapters, c.RabbitMQ); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// Validate validates adapter configuration
func (a *AdapterConfig) Validate() error {
	validRuntimes := map[string]bool{"lambda": true, "http": true, "rabbitmq": true}
	if !validRuntimes[a.Runtime] {
		return fmt.Errorf("invalid runtime adapter: %s (must be lambda, http, or rabbitmq)", a.Runtime)
	}

	validStorage := map[string]bool{"s3": true, "filesystem": true}
	if !validStorage[a.Storage] {
		return fmt.Errorf("invalid storage adapter: %s (must be s3 or filesystem)", a.Storage)
	}

	validLedgers := map[string]bool{"memory": true, "postgres": true}
	if !validLedgers[a.Ledger] {
		return fmt.Errorf("invalid ledger adapter: %s (must be memory or postgres)", a.Ledger)
	}

	validLoggers := map[string]bool{"stdout": true, "cloudwatch": true}
	if !validLoggers[a.Logger] {
		return fmt.Errorf("invalid logger adapter: %s (must be stdout or cloudwatch)", a.Logger)
	}

	validMetrics := map[string]bool{"cloudwatch": true, "stdout": true, "prometheus": true}
	if !validMetrics[a.Metrics] {
		return fmt.Errorf("invalid metrics adapter: %s (must be stdout, prometheus, or cloudwatch)", a.Metrics)
	}

	validPublishers := map[string]bool{"none": true, "sqs": true, "rabbitmq": true}
	if !validPublishers[a.Publisher] {
		return fmt.Errorf("invalid publisher adapter: %s (must be none, sqs, or rabbitmq)", a.Publisher)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if h.Addr == "" {
		return fmt.Errorf("HTTP_ADDR is required for HTTP adapter")
	}
	if h.MaxRequestSize <= 0 {
		return fmt.Errorf("HTTP_MAX_REQUEST_SIZE must be positive")
	}
	return nil
}

// Validate validates Lambda configuration
func (l *LambdaConfig) Validate() error {
	if l.Timeout <= 0 {
		return fmt.Errorf("LAMBDA_TIMEOUT must be positive")
	}
	return nil
}

// Validate validates RabbitMQ configuration
func (r *RabbitMQConfig) Validate() error {
	if r.URL == "" {
		return fmt.Errorf("RABBITMQ_URL is required for RabbitMQ adapter")
	}
	if r.Queue == "" {
		return fmt.Errorf("RABBITMQ_QUEUE is required for RabbitMQ adapter")
	}
	if r.Timeout <= 0 {
		return fmt.Errorf("RABBITMQ_TIMEOUT must be positive")
	}
	return nil
}

// Validate validates Storage configuration
func (s *StorageConfig) Validate(adapters AdapterConfig) error {
	if s.MaxRetries < 0 {
		return fmt.Errorf("STORAGE_MAX_RETRIES cannot be negative")
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("STORAGE_TIMEOUT must be positive")
	}

	switch adapters.Storage {
	case "s3":
		if s.BucketOrPath == "" {
			return fmt.Errorf("STORAGE_BUCKET_OR_PATH (bucket) is required for S3 storage")
		}
		if s.S3.Region == "" {
			return fmt.Errorf("S3_REGION is required for S3 storage")
		}
		if s.ConnectTimeout <= 0 {
			return fmt.Errorf("STORAGE_CONNECT_TIMEOUT must be positive")
		}
	case "filesystem":
		if s.BucketOrPath == "" {
			return fmt.Errorf("STORAGE_BUCKET_OR_PATH (path) is required for filesystem storage")
		}
	}

	return nil
}

// Validate validates Observability configuration
func (o *ObservabilityConfig) Validate(adapters AdapterConfig) error {
	if o.LogFormat != "text" && o.LogFormat != "json" {
		return fmt.Errorf("invalid LOG_FORMAT: %s (must be text or json)", o.LogFormat)
	}

	if adapters.Logger == "cloudwatch" {
		if o.CloudWatchRegion == "" {
			return fmt.Errorf("CLOUDWATCH_REGION is required for CloudWatch logs")
		}
		if o.CloudWatchLogGroup == "" {
			return fmt.Errorf("CLOUDWATCH_LOG_GROUP is required for CloudWatch logs")
		}
		if o.FlushInterval <= 0 {
			return fmt.Errorf("METRICS_FLUSH_INTERVAL must be positive")
		}
	}

	if adapters.Metrics == "cloudwatch" {
		if o.CloudWatchRegion == "" {
			return fmt.Errorf("CLOUDWATCH_REGION is required for CloudWatch metrics")
		}
		if o.CloudWatchNamespace == "" {
			return fmt.Errorf("CLOUDWATCH_NAMESPACE is required for CloudWatch metrics")
		}
		if o.FlushInterval <= 0 {
			return fmt.Errorf("METRICS_FLUSH_INTERVAL must be positive")
		}
	}

	return nil
}

// Validate validates Database configuration
func (d *DatabaseConfig) Validate() error {
	var errors []string

	if d.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}

	if d.Port <= 0 || d.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}

	if d.Database == "" {
		errors = append(errors, "DB_NAME is required")
	}

	if d.Username == "" {
		errors = append(errors, "DB_USER is required")
	}

	if d.MaxOpenConns < 0 {
		errors = append(errors, "DB_MAX_OPEN_CONNS cannot be negative")
	}

	if d.MaxIdleConns < 0 {
		errors = append(errors, "DB_MAX_IDLE_CONNS cannot be negative")
	}

	if d.MaxOpenConns > 0 && d.MaxIdleConns > d.MaxOpenConns {
		errors = append(errors, "DB_MAX_IDLE_CONNS cannot be greater than DB_MAX_OPEN_CONNS")
	}

	if len(errors) > 0 {
		return fmt.Errorf("database configuration errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// Validate validates the offload settings
func (o *OffloadConfig) Validate() error {
	var errors []string

	origins := []struct{ name, raw string }{
		{"OFFLOAD_SITE_URL", o.SiteURL},
		{"OFFLOAD_CDN_URL", o.CDNURL},
	}
	for _, origin := range origins {
		name, raw := origin.name, origin.raw
		if raw == "" {
			errors = append(errors, name+" is required")
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, name+" must be an absolute URL")
		}
	}

	if o.LocalUploadSegment == "" {
		errors = append(errors, "OFFLOAD_UPLOAD_SEGMENT is required")
	}
	if o.RemotePrefix == "" {
		errors = append(errors, "OFFLOAD_REMOTE_PREFIX is required")
	}
	if len(o.ImageExtensions) == 0 {
		errors = append(errors, "OFFLOAD_IMAGE_EXTENSIONS cannot be empty")
	}

	if len(errors) > 0 {
		return fmt.Errorf("offload configuration errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// Validate validates the result publisher settings
func (p *PublisherConfig) Validate(adapters AdapterConfig, rabbit RabbitMQConfig) error {
	switch adapters.Publisher {
	case "sqs":
		if p.SQSRegion == "" {
			return fmt.Errorf("SQS_REGION is required for the SQS publisher")
		}
	case "rabbitmq":
		if rabbit.URL == "" {
			return fmt.Errorf("RABBITMQ_URL is required for the RabbitMQ publisher")
		}
	default:
		return nil
	}

	if p.Target == "" {
		return fmt.Errorf("PUBLISHER_TARGET is required when results are published")
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("PUBLISHER_TIMEOUT must be positive")
	}
	return nil
}
