package ports

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jayllellis/do-spaces-media-offload/domain/media"
)

// Common storage errors
var (
	ErrObjectNotFound = errors.New("object not found")
)

// ObjectStore is the gateway to the bucket media is mirrored into.
// Implementations are safe for sequential reuse.
type ObjectStore interface {
	// Put stores the stream under key as a publicly readable object
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error

	// Delete removes key. Deleting a key that does not exist succeeds.
	Delete(ctx context.Context, key string) error
}

// StoreError carries the failure kind of an object store operation.
type StoreError struct {
	Kind media.ErrorKind
	Op   string
	Key  string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Key, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure kind of err. Errors that were not classified
// by a store are treated as remote service failures.
func KindOf(err error) media.ErrorKind {
	if err == nil {
		return media.ErrorKindNone
	}
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Kind
	}
	return media.ErrorKindRemoteService
}
