package config

import (
	"fmt"
	"strings"
)

// applyDefaults applies environment-specific defaults
func applyDefaults(cfg *Config) {
	switch {
	case cfg.IsProduction():
		setIfEmpty(&cfg.Adapters.Runtime, "lambda")
		setIfEmpty(&cfg.Adapters.Storage, "s3")
		setIfEmpty(&cfg.Adapters.Ledger, "postgres")
		setIfEmpty(&cfg.Adapters.Logger, "stdout")
		setIfEmpty(&cfg.Adapters.Metrics, "cloudwatch")
		setIfEmpty(&cfg.Observability.CloudWatchNamespace, cfg.ServiceName)
		// CloudWatch Logs Insights parses JSON lines
		cfg.Observability.LogFormat = "json"
	default:
		setIfEmpty(&cfg.Adapters.Runtime, "http")
		setIfEmpty(&cfg.Adapters.Storage, "filesystem")
		setIfEmpty(&cfg.Adapters.Ledger, "memory")
		setIfEmpty(&cfg.Adapters.Logger, "stdout")
		setIfEmpty(&cfg.Adapters.Metrics, "stdout")
	}

	// Set bucket/path default if still empty
	if cfg.Storage.BucketOrPath == "" {
		if cfg.Adapters.Storage == "s3" {
			cfg.Storage.BucketOrPath = fmt.Sprintf("%s-media", cfg.ServiceName)
		} else {
			cfg.Storage.BucketOrPath = "/tmp/media-offload"
		}
	}

	setIfEmpty(&cfg.Adapters.Publisher, "none")
	setIfEmpty(&cfg.Observability.CloudWatchLogGroup, "/aws/lambda/"+cfg.ServiceName)

	// Only one consumer delivery in flight at a time
	cfg.RabbitMQ.PrefetchCount = 1

	cfg.Offload.SiteURL = strings.TrimRight(cfg.Offload.SiteURL, "/")
	cfg.Offload.CDNURL = strings.TrimRight(cfg.Offload.CDNURL, "/")
	cfg.Offload.LocalUploadSegment = strings.Trim(cfg.Offload.LocalUploadSegment, "/")
	cfg.Offload.RemotePrefix = strings.Trim(cfg.Offload.RemotePrefix, "/")

	exts := make([]string, 0, len(cfg.Offload.ImageExtensions))
	for _, ext := range cfg.Offload.ImageExtensions {
		exts = append(exts, strings.ToLower(strings.TrimPrefix(ext, ".")))
	}
	cfg.Offload.ImageExtensions = exts
}

func setIfEmpty(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
