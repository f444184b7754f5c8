// Package handler turns runtime requests into offload and rewrite calls.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
	"github.com/jayllellis/do-spaces-media-offload/domain/media"
)

// Offloader runs the lifecycle batches
type Offloader interface {
	OnCreated(ctx context.Context, a media.Attachment) media.BatchResult
	OnDeleted(ctx context.Context, a media.Attachment) media.BatchResult
}

// Rewriter maps media URLs to the CDN
type Rewriter interface {
	RewriteURL(url string) string
	RewriteSrcSet(sources []media.SrcSetSource) []media.SrcSetSource
}

// URLPayload is the body of url.rewrite requests and responses
type URLPayload struct {
	URL string `json:"url"`
}

// SrcSetPayload is the body of srcset.rewrite requests and responses
type SrcSetPayload struct {
	Sources []media.SrcSetSource `json:"sources"`
}

// ResultTypeOffload is the message type of published batch results
const ResultTypeOffload = "offload.result"

// ResultMessage is the body published after each lifecycle batch
type ResultMessage struct {
	RequestID string            `json:"request_id"`
	Result    media.BatchResult `json:"result"`
}

// Option configures a Handler
type Option func(*Handler)

// WithPublisher announces every lifecycle batch result on target. Publish
// errors never fail the request.
func WithPublisher(queue ports.Queue, target string, timeout time.Duration) Option {
	return func(h *Handler) {
		h.queue = queue
		h.target = target
		h.publishTimeout = timeout
	}
}

// Handler implements ports.Handler. Lifecycle batches run one at a time no
// matter how many requests a runtime delivers concurrently.
type Handler struct {
	offloader Offloader
	rewriter  Rewriter
	mu        sync.Mutex
	chain     HandlerFunc
	logger    ports.Logger
	metrics   ports.Metrics

	queue          ports.Queue
	target         string
	publishTimeout time.Duration
}

func NewHandler(offloader Offloader, rewriter Rewriter, obs ports.Observability, opts ...Option) (*Handler, error) {
	logger, metrics, err := obs.ComponentsScoped("handler")
	if err != nil {
		return nil, fmt.Errorf("failed to get observability: %w", err)
	}

	h := &Handler{
		offloader: offloader,
		rewriter:  rewriter,
		logger:    logger,
		metrics:   metrics,
	}
	for _, opt := range opts {
		opt(h)
	}

	// Apply middleware in reverse order
	chain := HandlerFunc(h.dispatch)
	middlewares := []Middleware{
		RecoveryMiddleware(logger),
		MetricsMiddleware(metrics),
		LoggingMiddleware(logger),
	}
	for i := len(middlewares) - 1; i >= 0; i-- {
		chain = middlewares[i](chain)
	}
	h.chain = chain

	return h, nil
}

func (h *Handler) Handle(ctx context.Context, req ports.RuntimeRequest) (ports.RuntimeResponse, error) {
	return h.chain(ctx, req)
}

func (h *Handler) dispatch(ctx context.Context, req ports.RuntimeRequest) (ports.RuntimeResponse, error) {
	switch req.Type {
	case ports.RequestAttachmentCreated, ports.RequestAttachmentDeleted:
		var attachment media.Attachment
		if err := req.Unmarshal(&attachment); err != nil {
			return failure("invalid attachment payload: %v", err), nil
		}
		if err := validateAttachment(attachment); err != nil {
			return failure("%v", err), nil
		}

		h.mu.Lock()
		defer h.mu.Unlock()

		var result media.BatchResult
		if req.Type == ports.RequestAttachmentCreated {
			result = h.offloader.OnCreated(ctx, attachment)
		} else {
			result = h.offloader.OnDeleted(ctx, attachment)
		}
		h.publish(ctx, req.ID, result)
		return success(result)

	case ports.RequestURLRewrite:
		var payload URLPayload
		if err := req.Unmarshal(&payload); err != nil {
			return failure("invalid url payload: %v", err), nil
		}
		return success(URLPayload{URL: h.rewriter.RewriteURL(payload.URL)})

	case ports.RequestSrcSetRewrite:
		var payload SrcSetPayload
		if err := req.Unmarshal(&payload); err != nil {
			return failure("invalid srcset payload: %v", err), nil
		}
		return success(SrcSetPayload{Sources: h.rewriter.RewriteSrcSet(payload.Sources)})

	default:
		return failure("unsupported request type: %q", req.Type), nil
	}
}

func (h *Handler) publish(ctx context.Context, requestID string, result media.BatchResult) {
	if h.queue == nil {
		return
	}

	// The batch already happened; a cancelled request must not drop its result
	ctx = context.WithoutCancel(ctx)
	if h.publishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.publishTimeout)
		defer cancel()
	}

	err := h.queue.Publish(ctx, &ports.QueueMessage{
		Target: h.target,
		Type:   ResultTypeOffload,
		Body:   ResultMessage{RequestID: requestID, Result: result},
	})
	if err != nil {
		h.logger.Error("Failed to publish batch result",
			"request_id", requestID,
			"attachment_id", result.AttachmentID,
			"error", err)
		h.metrics.IncrementCounter("handler.publish.errors", map[string]string{"event": string(result.Event)})
	}
}

func validateAttachment(a media.Attachment) error {
	var errs []error
	if a.ID <= 0 {
		errs = append(errs, fmt.Errorf("invalid attachment id: %d", a.ID))
	}
	if a.Path == "" {
		errs = append(errs, errors.New("attachment path is required"))
	}
	return errors.Join(errs...)
}

func success(v interface{}) (ports.RuntimeResponse, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return ports.RuntimeResponse{}, fmt.Errorf("failed to marshal response: %w", err)
	}
	return ports.RuntimeResponse{Success: true, Data: data}, nil
}

func failure(format string, args ...interface{}) ports.RuntimeResponse {
	return ports.RuntimeResponse{Success: false, Error: fmt.Sprintf(format, args...)}
}
