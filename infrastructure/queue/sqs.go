package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
	"github.com/jayllellis/do-spaces-media-offload/infrastructure/config"
)

// SQSAPI is the subset of the SQS client used for publishing
type SQSAPI interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// sqsSender resolves queue names to URLs once and sends the body as is
type sqsSender struct {
	client SQSAPI

	mu   sync.Mutex
	urls map[string]string
}

// NewSQSPublisher publishes to SQS queues in cfg.SQSRegion. SQSEndpoint
// points the client at a local emulator.
func NewSQSPublisher(cfg *config.PublisherConfig, obs ports.Observability) (*Publisher, error) {
	logger, metrics, err := obs.ComponentsScoped("queue.sqs")
	if err != nil {
		return nil, fmt.Errorf("failed to get observability components: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.SQSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.SQSEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.SQSEndpoint)
		}
	})

	logger.Info("SQS publisher ready", "region", cfg.SQSRegion, "endpoint", cfg.SQSEndpoint)
	return newPublisher("sqs", newSQSSender(client), logger, metrics), nil
}

func newSQSSender(client SQSAPI) *sqsSender {
	return &sqsSender{client: client, urls: make(map[string]string)}
}

func (s *sqsSender) queueURL(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if url, ok := s.urls[name]; ok {
		return url, nil
	}

	out, err := s.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err != nil {
		return "", fmt.Errorf("failed to resolve queue %s: %w", name, err)
	}

	url := aws.ToString(out.QueueUrl)
	s.urls[name] = url
	return url, nil
}

func (s *sqsSender) send(ctx context.Context, target, msgType string, body []byte) error {
	url, err := s.queueURL(ctx, target)
	if err != nil {
		return err
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(url),
		MessageBody: aws.String(string(body)),
	}
	if msgType != "" {
		input.MessageAttributes = map[string]types.MessageAttributeValue{
			"type": {DataType: aws.String("String"), StringValue: aws.String(msgType)},
		}
	}

	if _, err := s.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("failed to send message to %s: %w", target, err)
	}
	return nil
}

// close is a no-op, the SQS client holds no connection
func (s *sqsSender) close() error {
	return nil
}
