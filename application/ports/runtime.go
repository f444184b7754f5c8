package ports

import (
	"context"
	"encoding/json"
	"time"
)

// Request types understood by the offload handler
const (
	RequestAttachmentCreated = "attachment.created"
	RequestAttachmentDeleted = "attachment.deleted"
	RequestURLRewrite        = "url.rewrite"
	RequestSrcSetRewrite     = "srcset.rewrite"
)

type RuntimeRequest struct {
	ID        string            `json:"id"`
	Source    string            `json:"source"`
	Type      string            `json:"type"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func (r *RuntimeRequest) Unmarshal(v interface{}) error {
	return json.Unmarshal(r.Payload, v)
}

type RuntimeResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Handler processes a request delivered by a runtime
type Handler interface {
	Handle(ctx context.Context, req RuntimeRequest) (RuntimeResponse, error)
}

// Runtime delivers requests from a platform to the handler
type Runtime interface {
	// Start blocks until the runtime stops or fails
	Start() error

	// Shutdown stops accepting requests and waits for the in-flight one
	Shutdown(ctx context.Context) error
}
