package cloudwatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwltypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
	"github.com/jayllellis/do-spaces-media-offload/infrastructure/config"
)

const (
	// PutLogEvents accepts at most this many events per call
	maxLogBatch = 10000
	// and roughly this many bytes, counting 26 bytes of overhead per event
	maxLogBatchBytes = 1000000
	logEventOverhead = 26
	logBufferSize    = 1000
)

// LogsAPI is the subset of the CloudWatch Logs client used here
type LogsAPI interface {
	CreateLogGroup(ctx context.Context, params *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	CreateLogStream(ctx context.Context, params *cloudwatchlogs.CreateLogStreamInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
	PutLogEvents(ctx context.Context, params *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
}

type logLevel int

const (
	levelInfo logLevel = iota
	levelWarn
	levelError
)

func parseLogLevel(level string) logLevel {
	switch level {
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// logSink batches events for one log stream. Batches that cannot be
// delivered are written to the fallback writer.
type logSink struct {
	client   LogsAPI
	group    string
	stream   string
	interval time.Duration
	fallback io.Writer
	eventsCh chan cwltypes.InputLogEvent
	flushCh  chan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// Logger implements ports.Logger on top of CloudWatch Logs
type Logger struct {
	sink   *logSink
	fields map[string]interface{}
	level  logLevel
}

// NewLogger creates a logger writing to the configured log group. The
// stream name is unique per process.
func NewLogger(cfg *config.Config) (*Logger, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Observability.CloudWatchRegion),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for logs: %w", err)
	}

	hostname, _ := os.Hostname()
	stream := fmt.Sprintf("%s-%s-%s-%d", cfg.ServiceName, cfg.Environment, hostname, time.Now().Unix())

	return NewLoggerWithClient(
		cloudwatchlogs.NewFromConfig(awsCfg),
		cfg.Observability.CloudWatchLogGroup,
		stream,
		cfg.LogLevel,
		cfg.Observability.FlushInterval,
	)
}

// NewLoggerWithClient makes sure the group and stream exist and starts the
// background sender
func NewLoggerWithClient(client LogsAPI, group, stream, level string, interval time.Duration) (*Logger, error) {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := ensureLogGroup(ctx, client, group); err != nil {
		return nil, err
	}
	if err := ensureLogStream(ctx, client, group, stream); err != nil {
		return nil, err
	}

	sink := &logSink{
		client:   client,
		group:    group,
		stream:   stream,
		interval: interval,
		fallback: os.Stderr,
		eventsCh: make(chan cwltypes.InputLogEvent, logBufferSize),
		flushCh:  make(chan chan struct{}),
		done:     make(chan struct{}),
	}
	go sink.run()

	return &Logger{
		sink:   sink,
		fields: make(map[string]interface{}),
		level:  parseLogLevel(level),
	}, nil
}

func (l *Logger) Info(msg string, fields ...interface{}) {
	l.log(levelInfo, "INFO", msg, fields...)
}

func (l *Logger) Warn(msg string, fields ...interface{}) {
	l.log(levelWarn, "WARN", msg, fields...)
}

func (l *Logger) Error(msg string, fields ...interface{}) {
	l.log(levelError, "ERROR", msg, fields...)
}

// WithFields returns a Logger sharing the same stream with extra fields
func (l *Logger) WithFields(fields map[string]interface{}) ports.Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{sink: l.sink, fields: merged, level: l.level}
}

// Flush sends every buffered event and waits for the call to finish
func (l *Logger) Flush() {
	ack := make(chan struct{})
	select {
	case l.sink.flushCh <- ack:
		<-ack
	case <-l.sink.done:
	}
}

// Close flushes and stops the background sender
func (l *Logger) Close() error {
	l.Flush()
	l.sink.stopOnce.Do(func() { close(l.sink.done) })
	return nil
}

func (l *Logger) log(level logLevel, name, msg string, fields ...interface{}) {
	if level < l.level {
		return
	}

	now := time.Now()
	entry := make(map[string]interface{}, len(l.fields)+len(fields)/2+3)
	for k, v := range l.fields {
		entry[k] = v
	}
	for i := 0; i < len(fields)-1; i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprint(fields[i])
		}
		if err, ok := fields[i+1].(error); ok {
			entry[key] = err.Error()
			continue
		}
		entry[key] = fields[i+1]
	}
	entry["level"] = name
	entry["message"] = msg
	entry["timestamp"] = now.UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(entry)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"level":%q,"message":%q,"error":"failed to marshal log entry"}`, name, msg))
	}

	event := cwltypes.InputLogEvent{
		Message:   aws.String(string(data)),
		Timestamp: aws.Int64(now.UnixMilli()),
	}

	select {
	case l.sink.eventsCh <- event:
	default:
		// Buffer full, keep the line locally
		fmt.Fprintln(l.sink.fallback, string(data))
	}
}

func (s *logSink) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var (
		batch []cwltypes.InputLogEvent
		size  int
	)

	flush := func() {
		if len(batch) > 0 {
			s.send(batch)
			batch, size = nil, 0
		}
	}
	add := func(event cwltypes.InputLogEvent) {
		eventSize := len(aws.ToString(event.Message)) + logEventOverhead
		if len(batch) >= maxLogBatch || size+eventSize > maxLogBatchBytes {
			flush()
		}
		batch = append(batch, event)
		size += eventSize
	}

	for {
		select {
		case event := <-s.eventsCh:
			add(event)

		case <-ticker.C:
			flush()

		case ack := <-s.flushCh:
		drain:
			for {
				select {
				case event := <-s.eventsCh:
					add(event)
				default:
					break drain
				}
			}
			flush()
			close(ack)

		case <-s.done:
			return
		}
	}
}

func (s *logSink) send(batch []cwltypes.InputLogEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.client.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  aws.String(s.group),
		LogStreamName: aws.String(s.stream),
		LogEvents:     batch,
	})
	if err == nil {
		return
	}

	fmt.Fprintf(s.fallback, "cloudwatch logs: failed to put %d events: %v\n", len(batch), err)
	for _, event := range batch {
		fmt.Fprintln(s.fallback, aws.ToString(event.Message))
	}
}

func ensureLogGroup(ctx context.Context, client LogsAPI, group string) error {
	_, err := client.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(group),
	})
	var exists *cwltypes.ResourceAlreadyExistsException
	if err != nil && !errors.As(err, &exists) {
		return fmt.Errorf("failed to create log group %s: %w", group, err)
	}
	return nil
}

func ensureLogStream(ctx context.Context, client LogsAPI, group, stream string) error {
	_, err := client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(group),
		LogStreamName: aws.String(stream),
	})
	var exists *cwltypes.ResourceAlreadyExistsException
	if err != nil && !errors.As(err, &exists) {
		return fmt.Errorf("failed to create log stream %s: %w", stream, err)
	}
	return nil
}
