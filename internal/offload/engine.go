// Package offload mirrors attachment files into the object store and
// removes them again when the attachment is deleted.
package offload

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
	"github.com/jayllellis/do-spaces-media-offload/domain/media"
)

// Engine runs one batch per lifecycle event. Files are processed one at a
// time and a failing file never stops the rest of the batch.
type Engine struct {
	resolver *media.KeyResolver
	store    ports.ObjectStore
	ledger   ports.KeyLedger
	logger   ports.Logger
	metrics  ports.Metrics
}

func NewEngine(
	resolver *media.KeyResolver,
	store ports.ObjectStore,
	ledger ports.KeyLedger,
	obs ports.Observability,
) (*Engine, error) {
	logger, metrics, err := obs.ComponentsScoped("offload")
	if err != nil {
		return nil, fmt.Errorf("failed to get observability: %w", err)
	}

	return &Engine{
		resolver: resolver,
		store:    store,
		ledger:   ledger,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// OnCreated uploads the original and every variant of a. The resolved keys
// are recorded in the ledger even when some uploads failed.
func (e *Engine) OnCreated(ctx context.Context, a media.Attachment) media.BatchResult {
	start := time.Now()
	logger := e.logger.WithFields(map[string]interface{}{
		"attachment_id": a.ID,
		"event":         string(media.EventCreated),
	})

	refs := e.resolver.Resolve(a)
	batch := media.BatchResult{AttachmentID: a.ID, Event: media.EventCreated}

	logger.Info("Offloading attachment", "path", a.Path, "files", len(refs))

	for _, ref := range refs {
		res := e.upload(ctx, logger, ref)
		batch.Add(res)
		e.count(media.EventCreated, res)
	}

	if err := e.ledger.Record(ctx, a.ID, media.KeysOf(refs)); err != nil {
		logger.Error("Failed to record keys", "error", err)
		e.metrics.IncrementCounter("offload.ledger.errors", map[string]string{"op": "record"})
	}

	return e.finish(logger, batch, start)
}

// OnDeleted removes every object that belongs to a. Keys recorded at upload
// time take precedence over recomputed ones.
func (e *Engine) OnDeleted(ctx context.Context, a media.Attachment) media.BatchResult {
	start := time.Now()
	logger := e.logger.WithFields(map[string]interface{}{
		"attachment_id": a.ID,
		"event":         string(media.EventDeleted),
	})

	refs := e.deleteTargets(ctx, logger, a)
	batch := media.BatchResult{AttachmentID: a.ID, Event: media.EventDeleted}

	for _, ref := range refs {
		res := e.delete(ctx, logger, ref)
		batch.Add(res)
		e.count(media.EventDeleted, res)
	}

	// keep the keys around for a retry while anything is left behind
	if batch.Failures == 0 {
		if err := e.ledger.Forget(ctx, a.ID); err != nil {
			logger.Error("Failed to forget keys", "error", err)
			e.metrics.IncrementCounter("offload.ledger.errors", map[string]string{"op": "forget"})
		}
	}

	return e.finish(logger, batch, start)
}

func (e *Engine) deleteTargets(ctx context.Context, logger ports.Logger, a media.Attachment) []media.FileRef {
	keys, err := e.ledger.Lookup(ctx, a.ID)
	if err != nil {
		logger.Error("Failed to look up keys, recomputing", "error", err)
		e.metrics.IncrementCounter("offload.ledger.errors", map[string]string{"op": "lookup"})
	}

	resolved := e.resolver.Resolve(a)
	if len(keys) == 0 {
		return resolved
	}

	byKey := make(map[string]media.FileRef, len(resolved))
	for _, ref := range resolved {
		byKey[ref.Key] = ref
	}

	// the ledger stores keys in upload order, original first
	refs := make([]media.FileRef, len(keys))
	for i, key := range keys {
		ref, ok := byKey[key]
		if !ok {
			ref = media.FileRef{Key: key}
			if i > 0 {
				ref.Variant = unknownVariant
			}
		}
		refs[i] = ref
	}
	return refs
}

func (e *Engine) upload(ctx context.Context, logger ports.Logger, ref media.FileRef) media.UploadResult {
	res := media.UploadResult{Key: ref.Key, LocalPath: ref.LocalPath}
	subject := describe(ref)

	file, err := os.Open(ref.LocalPath)
	if err != nil {
		res.Kind = media.ErrorKindLocalIO
		res.Err = fmt.Errorf("open %s: %w", ref.LocalPath, err)
		logger.Error("Failed to open "+subject,
			"path", ref.LocalPath,
			"key", ref.Key,
			"error_kind", string(res.Kind),
			"error", err)
		return res
	}

	err = e.store.Put(ctx, ref.Key, file, ref.ContentType)
	file.Close()
	if err != nil {
		res.Kind = ports.KindOf(err)
		res.Err = err
		logger.Error("Error uploading "+subject,
			"path", ref.LocalPath,
			"key", ref.Key,
			"error_kind", string(res.Kind),
			"error", err)
		return res
	}

	res.Success = true
	return res
}

func (e *Engine) delete(ctx context.Context, logger ports.Logger, ref media.FileRef) media.UploadResult {
	res := media.UploadResult{Key: ref.Key, LocalPath: ref.LocalPath}

	if err := e.store.Delete(ctx, ref.Key); err != nil {
		res.Kind = ports.KindOf(err)
		res.Err = err
		logger.Error("Error deleting "+describe(ref),
			"key", ref.Key,
			"error_kind", string(res.Kind),
			"error", err)
		return res
	}

	res.Success = true
	return res
}

func (e *Engine) count(event media.Event, res media.UploadResult) {
	if res.Success {
		e.metrics.IncrementCounter("offload.files.success", map[string]string{
			"event": string(event),
		})
		return
	}
	e.metrics.IncrementCounter("offload.files.failure", map[string]string{
		"event": string(event),
		"kind":  string(res.Kind),
	})
}

func (e *Engine) finish(logger ports.Logger, batch media.BatchResult, start time.Time) media.BatchResult {
	batch.Duration = time.Since(start)

	e.metrics.RecordHistogram("offload.batch.duration", batch.Duration.Seconds(), map[string]string{
		"event": string(batch.Event),
	})

	if batch.Failures > 0 {
		logger.Warn("Batch finished with failures",
			"succeeded", batch.Succeeded(),
			"failed", batch.Failures,
			"duration", batch.Duration.String())
	} else {
		logger.Info("Batch finished",
			"succeeded", batch.Succeeded(),
			"duration", batch.Duration.String())
	}

	return batch
}

// unknownVariant marks a recorded variant key whose size name is no longer
// in the attachment metadata.
const unknownVariant = "unknown"

// describe names the file kind the way log lines refer to it
func describe(ref media.FileRef) string {
	if ref.Variant != "" {
		return "thumbnail"
	}
	return "file"
}
