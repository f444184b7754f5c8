package ports

import "context"

// KeyLedger remembers the keys an attachment was uploaded under so the
// delete path does not depend on recomputing date-based keys.
type KeyLedger interface {
	// Record replaces the keys stored for the attachment
	Record(ctx context.Context, attachmentID int64, keys []string) error

	// Lookup returns the stored keys, or an empty slice when none exist
	Lookup(ctx context.Context, attachmentID int64) ([]string, error)

	// Forget drops the stored keys
	Forget(ctx context.Context, attachmentID int64) error
}
