package cloudwatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
	"github.com/jayllellis/do-spaces-media-offload/infrastructure/config"
)

const (
	// PutMetricData accepts at most this many data points per call
	maxBatchSize = 1000
	// and this many dimensions per datum
	maxDimensions = 30
	bufferSize    = 500
)

// PutMetricDataAPI is the subset of the CloudWatch client used here
type PutMetricDataAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// flusher owns the buffer shared by every Metrics derived through WithTags
type flusher struct {
	client    PutMetricDataAPI
	namespace string
	interval  time.Duration
	bufferCh  chan types.MetricDatum
	flushCh   chan chan struct{}
	stopOnce  sync.Once
	done      chan struct{}
}

// Metrics implements ports.Metrics using AWS CloudWatch Metrics
type Metrics struct {
	flusher     *flusher
	defaultTags map[string]string
}

// NewMetrics creates a CloudWatch metrics client from configuration
func NewMetrics(cfg *config.Config) (*Metrics, error) {
	namespace := cfg.Observability.CloudWatchNamespace
	if namespace == "" {
		namespace = fmt.Sprintf("%s/%s", cfg.ServiceName, cfg.Environment)
	}

	region := cfg.Observability.CloudWatchRegion
	if region == "" {
		region = cfg.Storage.S3.Region
	}
	if region == "" {
		return nil, fmt.Errorf("no AWS region specified for metrics")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for metrics: %w", err)
	}

	return NewMetricsWithClient(cloudwatch.NewFromConfig(awsCfg), namespace, cfg.Observability.FlushInterval), nil
}

// NewMetricsWithClient starts the background flusher around client
func NewMetricsWithClient(client PutMetricDataAPI, namespace string, interval time.Duration) *Metrics {
	if interval <= 0 {
		interval = 10 * time.Second
	}

	f := &flusher{
		client:    client,
		namespace: namespace,
		interval:  interval,
		bufferCh:  make(chan types.MetricDatum, bufferSize),
		flushCh:   make(chan chan struct{}),
		done:      make(chan struct{}),
	}
	go f.run()

	return &Metrics{
		flusher:     f,
		defaultTags: make(map[string]string),
	}
}

// WithTags returns a new Metrics instance with additional default tags
func (m *Metrics) WithTags(tags map[string]string) ports.Metrics {
	return &Metrics{
		flusher:     m.flusher,
		defaultTags: m.mergeTags(tags),
	}
}

func (m *Metrics) IncrementCounter(name string, tags map[string]string) {
	m.record(name, 1, types.StandardUnitCount, tags)
}

func (m *Metrics) RecordHistogram(name string, value float64, tags map[string]string) {
	m.record(name, value, types.StandardUnitNone, tags)
}

func (m *Metrics) RecordGauge(name string, value float64, tags map[string]string) {
	m.record(name, value, types.StandardUnitNone, tags)
}

// Flush sends everything buffered so far and waits for the call to finish
func (m *Metrics) Flush() {
	ack := make(chan struct{})
	select {
	case m.flusher.flushCh <- ack:
		<-ack
	case <-m.flusher.done:
	}
}

// Close flushes the buffer and stops the background flusher
func (m *Metrics) Close() error {
	m.Flush()
	m.flusher.stopOnce.Do(func() { close(m.flusher.done) })
	return nil
}

func (m *Metrics) record(name string, value float64, unit types.StandardUnit, tags map[string]string) {
	merged := m.mergeTags(tags)

	datum := types.MetricDatum{
		MetricName: aws.String(buildMetricName(name, merged)),
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(time.Now()),
		Dimensions: tagsToDimensions(merged),
	}

	select {
	case m.flusher.bufferCh <- datum:
	default:
		// Buffer full, drop metric
	}
}

func (m *Metrics) mergeTags(tags map[string]string) map[string]string {
	merged := make(map[string]string, len(m.defaultTags)+len(tags))
	for k, v := range m.defaultTags {
		merged[k] = v
	}
	for k, v := range tags {
		merged[k] = v
	}
	return merged
}

// buildMetricName prefixes the metric name with the component tag
func buildMetricName(name string, tags map[string]string) string {
	if component, ok := tags["component"]; ok && component != "" {
		return fmt.Sprintf("%s.%s", component, name)
	}
	return name
}

// tagsToDimensions converts tags to dimensions in key order, empty values
// are not accepted by CloudWatch and are skipped
func tagsToDimensions(tags map[string]string) []types.Dimension {
	keys := make([]string, 0, len(tags))
	for k, v := range tags {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if len(keys) > maxDimensions {
		keys = keys[:maxDimensions]
	}

	dimensions := make([]types.Dimension, 0, len(keys))
	for _, k := range keys {
		dimensions = append(dimensions, types.Dimension{
			Name:  aws.String(k),
			Value: aws.String(tags[k]),
		})
	}
	return dimensions
}

// run buffers data points and sends them on a timer, when the batch is
// full, or when asked to
func (f *flusher) run() {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	buffer := make([]types.MetricDatum, 0, 20)

	drain := func() {
		for {
			select {
			case datum := <-f.bufferCh:
				buffer = append(buffer, datum)
			default:
				return
			}
		}
	}

	for {
		select {
		case datum := <-f.bufferCh:
			buffer = append(buffer, datum)
			if len(buffer) >= maxBatchSize {
				f.send(buffer)
				buffer = buffer[:0]
			}

		case <-ticker.C:
			if len(buffer) > 0 {
				f.send(buffer)
				buffer = buffer[:0]
			}

		case ack := <-f.flushCh:
			drain()
			if len(buffer) > 0 {
				f.send(buffer)
				buffer = buffer[:0]
			}
			close(ack)

		case <-f.done:
			return
		}
	}
}

func (f *flusher) send(data []types.MetricDatum) {
	for start := 0; start < len(data); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(data) {
			end = len(data)
		}

		batch := make([]types.MetricDatum, end-start)
		copy(batch, data[start:end])

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, _ = f.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(f.namespace),
			MetricData: batch,
		})
		cancel()
	}
}
