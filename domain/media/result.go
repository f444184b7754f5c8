package media

import "time"

// Event names the lifecycle notification a batch was run for.
type Event string

const (
	EventCreated Event = "attachment.created"
	EventDeleted Event = "attachment.deleted"
)

// ErrorKind classifies a per-file failure.
type ErrorKind string

const (
	ErrorKindNone ErrorKind = ""
	// LocalIO covers missing or unreadable local files
	ErrorKindLocalIO ErrorKind = "local_io"
	// RemoteTransport covers network failures and timeouts after retries
	ErrorKindRemoteTransport ErrorKind = "remote_transport"
	// RemoteService covers requests the object store rejected
	ErrorKindRemoteService ErrorKind = "remote_service"
)

// UploadResult is the outcome of a single put or delete.
type UploadResult struct {
	Key       string    `json:"key"`
	LocalPath string    `json:"local_path,omitempty"`
	Success   bool      `json:"success"`
	Kind      ErrorKind `json:"error_kind,omitempty"`
	Err       error     `json:"-"`
	Error     string    `json:"error,omitempty"`
}

// BatchResult aggregates one UploadResult per resolved file.
type BatchResult struct {
	AttachmentID int64          `json:"attachment_id"`
	Event        Event          `json:"event"`
	Results      []UploadResult `json:"results"`
	Failures     int            `json:"failures"`
	Duration     time.Duration  `json:"duration_ns"`
}

// Add appends a result and keeps the failure count in step.
func (b *BatchResult) Add(r UploadResult) {
	if !r.Success {
		b.Failures++
		if r.Err != nil && r.Error == "" {
			r.Error = r.Err.Error()
		}
	}
	b.Results = append(b.Results, r)
}

// Succeeded reports the number of successful outcomes.
func (b *BatchResult) Succeeded() int {
	return len(b.Results) - b.Failures
}
