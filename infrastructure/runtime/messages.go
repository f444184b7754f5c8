package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
)

var errMissingType = errors.New("request type is required")

// decodeMessage builds a request from a queue message. With a type attribute
// the body is the payload itself, otherwise the body is a full envelope.
func decodeMessage(id, source, msgType string, body []byte) (ports.RuntimeRequest, error) {
	var req ports.RuntimeRequest

	if msgType != "" {
		if !json.Valid(body) {
			return req, fmt.Errorf("message body is not valid JSON")
		}
		req.Type = msgType
		req.Payload = json.RawMessage(body)
	} else if err := json.Unmarshal(body, &req); err != nil {
		return req, fmt.Errorf("invalid message envelope: %w", err)
	}

	if req.Type == "" {
		return req, errMissingType
	}

	if id != "" {
		req.ID = id
	}
	fillDefaults(&req, source)
	return req, nil
}

func fillDefaults(req *ports.RuntimeRequest, source string) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Source == "" {
		req.Source = source
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now().UTC()
	}
	if req.Metadata == nil {
		req.Metadata = make(map[string]string)
	}
}

// failed reports whether a delivery should be treated as not processed
func failed(resp ports.RuntimeResponse, err error) bool {
	return err != nil || !resp.Success
}
