package s3

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
	"github.com/jayllellis/do-spaces-media-offload/domain/media"
	"github.com/jayllellis/do-spaces-media-offload/infrastructure/config"
)

// Store implements ports.ObjectStore for S3-compatible services
type Store struct {
	s3Client *s3.Client
	bucket   string
	acl      s3types.ObjectCannedACL
	logger   ports.Logger
	metrics  ports.Metrics
}

// New creates an S3 store. All client settings are fixed here.
func New(cfg *config.StorageConfig, obs ports.Observability) (*Store, error) {
	logger, metrics, err := obs.ComponentsScoped("storage.s3")
	if err != nil {
		return nil, fmt.Errorf("failed to get observability components: %w", err)
	}

	if cfg.BucketOrPath == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	if cfg.S3.InsecureSkipVerify {
		logger.Warn("TLS certificate verification is disabled for the object store",
			"endpoint", cfg.S3.Endpoint)
	}

	awsCfg, err := buildAWSConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
		}
		o.UsePathStyle = cfg.S3.UsePathStyle
		// S3-compatible services reject the default trailing checksums
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	acl := s3types.ObjectCannedACL(cfg.S3.ACL)
	if acl == "" {
		acl = s3types.ObjectCannedACLPublicRead
	}

	st := &Store{
		s3Client: s3Client,
		bucket:   cfg.BucketOrPath,
		acl:      acl,
		logger:   logger,
		metrics:  metrics,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := st.VerifyBucket(ctx); err != nil {
		// uploads report their own failures, startup carries on
		logger.Warn("Failed to verify bucket", "bucket", st.bucket, "error", err)
	}

	logger.Info("S3 store initialized",
		"bucket", st.bucket,
		"region", cfg.S3.Region,
		"endpoint", cfg.S3.Endpoint,
		"acl", string(acl))
	return st, nil
}

// Put uploads an object with the configured canned ACL
func (c *Store) Put(ctx context.Context, key string, reader io.Reader, contentType string) error {
	start := time.Now()

	// The SDK needs a seekable body to sign plain HTTP requests
	body, ok := reader.(io.ReadSeeker)
	if !ok {
		buf := &bytes.Buffer{}
		if _, err := io.Copy(buf, reader); err != nil {
			c.logger.Error("Failed to read content", "key", key, "error", err)
			c.metrics.IncrementCounter("s3.put.errors", map[string]string{"error_type": string(media.ErrorKindLocalIO)})
			return &ports.StoreError{Kind: media.ErrorKindLocalIO, Op: "put", Key: key, Err: err}
		}
		body = bytes.NewReader(buf.Bytes())
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   body,
		ACL:    c.acl,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := c.s3Client.PutObject(ctx, input); err != nil {
		storeErr := classify("put", key, err)
		c.logger.Error("Failed to put object",
			"bucket", c.bucket,
			"key", key,
			"kind", string(storeErr.Kind),
			"error", err)
		c.metrics.IncrementCounter("s3.put.errors", map[string]string{"error_type": string(storeErr.Kind)})
		return storeErr
	}

	duration := time.Since(start)
	c.logger.Info("Object stored successfully",
		"bucket", c.bucket,
		"key", key,
		"content_type", contentType,
		"duration_ms", duration.Milliseconds())

	c.metrics.IncrementCounter("s3.put.success", nil)
	c.metrics.RecordHistogram("s3.put.duration", float64(duration.Milliseconds()), nil)

	return nil
}

// Delete removes an object. A missing key is treated as deleted.
func (c *Store) Delete(ctx context.Context, key string) error {
	start := time.Now()

	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			c.logger.Info("Object already absent", "bucket", c.bucket, "key", key)
			c.metrics.IncrementCounter("s3.delete.not_found", nil)
			return nil
		}

		storeErr := classify("delete", key, err)
		c.logger.Error("Failed to delete object",
			"bucket", c.bucket,
			"key", key,
			"kind", string(storeErr.Kind),
			"error", err)
		c.metrics.IncrementCounter("s3.delete.errors", map[string]string{"error_type": string(storeErr.Kind)})
		return storeErr
	}

	duration := time.Since(start)
	c.logger.Info("Object deleted successfully",
		"bucket", c.bucket,
		"key", key,
		"duration_ms", duration.Milliseconds())

	c.metrics.IncrementCounter("s3.delete.success", nil)
	c.metrics.RecordHistogram("s3.delete.duration", float64(duration.Milliseconds()), nil)

	return nil
}

// VerifyBucket checks that the configured bucket is reachable
func (c *Store) VerifyBucket(ctx context.Context) error {
	_, err := c.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		return classify("head_bucket", c.bucket, err)
	}
	return nil
}

// buildAWSConfig builds the AWS configuration from the storage config
func buildAWSConfig(storageConfig *config.StorageConfig) (aws.Config, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	s3Config := storageConfig.S3

	if s3Config.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(s3Config.Region))
	}

	// Use static credentials if provided
	if s3Config.AccessKeyID != "" && s3Config.SecretAccessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				s3Config.AccessKeyID,
				s3Config.SecretAccessKey,
				"",
			),
		))
	}

	// MaxRetries counts retries, the SDK counts attempts
	optFns = append(optFns, awsconfig.WithRetryMaxAttempts(storageConfig.MaxRetries+1))
	optFns = append(optFns, awsconfig.WithHTTPClient(buildHTTPClient(storageConfig)))

	return awsconfig.LoadDefaultConfig(context.Background(), optFns...)
}

// buildHTTPClient stays a BuildableClient so the SDK can still apply
// AWS_CA_BUNDLE to its transport.
func buildHTTPClient(storageConfig *config.StorageConfig) *awshttp.BuildableClient {
	return awshttp.NewBuildableClient().
		WithTimeout(storageConfig.Timeout).
		WithDialerOptions(func(d *net.Dialer) {
			d.Timeout = storageConfig.ConnectTimeout
		}).
		WithTransportOptions(func(tr *http.Transport) {
			tr.TLSHandshakeTimeout = storageConfig.ConnectTimeout
			tr.MaxIdleConnsPerHost = 4
			tr.IdleConnTimeout = 90 * time.Second
			if tr.TLSClientConfig == nil {
				tr.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			}
			tr.TLSClientConfig.InsecureSkipVerify = storageConfig.S3.InsecureSkipVerify // #nosec G402 -- explicit opt-in, warned at startup
		})
}

// classify maps an SDK error onto the failure taxonomy. Anything the
// service answered is a service failure, everything else never got a
// usable response.
func classify(op, key string, err error) *ports.StoreError {
	kind := media.ErrorKindRemoteTransport

	var apiErr smithy.APIError
	var sendErr *smithyhttp.RequestSendError
	var netErr net.Error
	switch {
	case errors.As(err, &sendErr), errors.As(err, &netErr),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kind = media.ErrorKindRemoteTransport
	case errors.As(err, &apiErr):
		kind = media.ErrorKindRemoteService
	}

	return &ports.StoreError{Kind: kind, Op: op, Key: key, Err: err}
}

// isNotFoundError checks if an error is a not found error
func isNotFoundError(err error) bool {
	var nsk *s3types.NoSuchKey
	var nse *s3types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nse) {
		return true
	}

	var respErr *smithyhttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound &&
		!isNoSuchBucket(err)
}

func isNoSuchBucket(err error) bool {
	var nsb *s3types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchBucket"
}
