package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
	"github.com/jayllellis/do-spaces-media-offload/infrastructure/config"
)

const sqsEventSource = "aws:sqs"

// lambdaRuntime accepts direct invocations carrying a request envelope and
// SQS batches
type lambdaRuntime struct {
	handler ports.Handler
	logger  ports.Logger
	metrics ports.Metrics
	config  *config.LambdaConfig
}

func NewLambdaRuntime(cfg *config.LambdaConfig, handler ports.Handler, obs ports.Observability) (ports.Runtime, error) {
	if handler == nil {
		return nil, errors.New("failed to create runtime: handler is required")
	}

	logger, metrics, err := obs.ComponentsScoped("runtime.lambda")
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime: %w", err)
	}

	return &lambdaRuntime{
		handler: handler,
		logger:  logger,
		metrics: metrics,
		config:  cfg,
	}, nil
}

// Start hands control to the Lambda runtime loop and never returns on AWS
func (rt *lambdaRuntime) Start() error {
	rt.logger.Info("Starting Lambda runtime")
	rt.metrics.IncrementCounter("lambda.starts", nil)
	lambda.Start(rt.handleEvent)
	return nil
}

// Shutdown is a no-op, the Lambda service owns the process lifecycle
func (rt *lambdaRuntime) Shutdown(ctx context.Context) error {
	return nil
}

func (rt *lambdaRuntime) handleEvent(ctx context.Context, event json.RawMessage) (interface{}, error) {
	start := time.Now()
	eventType := "unsupported"
	defer func() {
		rt.metrics.RecordHistogram("lambda.duration", time.Since(start).Seconds(),
			map[string]string{"event_type": eventType})
	}()

	var sqsEvent events.SQSEvent
	if err := json.Unmarshal(event, &sqsEvent); err == nil && isSQSEvent(sqsEvent) {
		eventType = "sqs"
		return rt.processSQSEvent(ctx, sqsEvent)
	}

	var req ports.RuntimeRequest
	if err := json.Unmarshal(event, &req); err == nil && req.Type != "" {
		eventType = "direct"
		fillDefaults(&req, "lambda")
		rt.metrics.IncrementCounter("lambda.invocations.direct", nil)
		rt.logger.Info("Processing direct request", "request_id", req.ID, "type", req.Type)

		ctx, cancel := rt.withTimeout(ctx)
		defer cancel()
		return rt.handler.Handle(ctx, req)
	}

	rt.logger.Error("Unsupported event", "event_size", len(event))
	rt.metrics.IncrementCounter("lambda.invocations.unsupported", nil)
	return nil, errors.New("unsupported event type")
}

func isSQSEvent(event events.SQSEvent) bool {
	return len(event.Records) > 0 && event.Records[0].EventSource == sqsEventSource
}

// processSQSEvent handles records in order. Without partial batch responses
// any failure fails the whole invocation so SQS redelivers the batch.
func (rt *lambdaRuntime) processSQSEvent(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{BatchItemFailures: []events.SQSBatchItemFailure{}}
	failures := 0

	rt.logger.Info("Processing SQS batch", "batch_size", len(event.Records))
	rt.metrics.RecordHistogram("lambda.batch_size", float64(len(event.Records)), nil)

	for _, record := range event.Records {
		if rt.processRecord(ctx, record) {
			continue
		}
		failures++
		response.BatchItemFailures = append(response.BatchItemFailures,
			events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
	}

	rt.logger.Info("SQS batch complete",
		"total", len(event.Records),
		"failed", failures,
		"partial_batch_enabled", rt.config.EnablePartialBatchFailure)

	if failures == 0 {
		rt.metrics.IncrementCounter("lambda.batch.complete_success", nil)
		return response, nil
	}
	rt.metrics.IncrementCounter("lambda.batch.failures", nil)

	if !rt.config.EnablePartialBatchFailure {
		return events.SQSEventResponse{}, fmt.Errorf("batch processing failed: %d/%d messages failed",
			failures, len(event.Records))
	}
	return response, nil
}

// processRecord reports whether the record was handled successfully
func (rt *lambdaRuntime) processRecord(ctx context.Context, record events.SQSMessage) bool {
	var msgType string
	if attr, ok := record.MessageAttributes["type"]; ok && attr.StringValue != nil {
		msgType = *attr.StringValue
	}

	req, err := decodeMessage(record.MessageId, "sqs", msgType, []byte(record.Body))
	if err != nil {
		rt.logger.Error("Invalid SQS message", "message_id", record.MessageId, "error", err)
		rt.metrics.IncrementCounter("lambda.messages.invalid", nil)
		return false
	}
	for key, attr := range record.MessageAttributes {
		if attr.StringValue != nil {
			req.Metadata[key] = *attr.StringValue
		}
	}
	req.Metadata["sqs_message_id"] = record.MessageId

	ctx, cancel := rt.withTimeout(ctx)
	defer cancel()

	resp, err := rt.handler.Handle(ctx, req)
	if failed(resp, err) {
		rt.logger.Error("Message processing failed",
			"message_id", record.MessageId,
			"error", err,
			"response_error", resp.Error)
		return false
	}
	return true
}

func (rt *lambdaRuntime) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if rt.config.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, rt.config.Timeout)
}
