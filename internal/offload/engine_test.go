package offload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
	"github.com/jayllellis/do-spaces-media-offload/application/ports/mocks"
	"github.com/jayllellis/do-spaces-media-offload/domain/media"
	"github.com/jayllellis/do-spaces-media-offload/infrastructure/repository"
)

type extProber struct{}

func (extProber) Probe(path, declared string) string {
	return media.ContentTypeByExtension(path)
}

func newResolver(year int, month time.Month) *media.KeyResolver {
	return media.NewKeyResolver(media.KeyResolverConfig{
		RemotePrefix: "uploads",
		Clock:        func() time.Time { return time.Date(year, month, 10, 0, 0, 0, 0, time.UTC) },
		Prober:       extProber{},
	})
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// imageFixture lays out an original and its variants, skipping the names in missing
func imageFixture(t *testing.T, missing ...string) media.Attachment {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "wp-content", "uploads", "2023", "11")
	skip := map[string]bool{}
	for _, m := range missing {
		skip[m] = true
	}

	files := []string{"photo.jpg", "photo-300x200.jpg", "photo-150x150.jpg"}
	for _, f := range files {
		if !skip[f] {
			writeFile(t, filepath.Join(dir, f), "bytes of "+f)
		}
	}

	return media.Attachment{
		ID:       42,
		Path:     filepath.Join(dir, "photo.jpg"),
		MimeType: "image/jpeg",
		Metadata: &media.Metadata{
			File: "2023/11/photo.jpg",
			Sizes: map[string]media.Variant{
				"thumbnail": {File: "photo-150x150.jpg", MimeType: "image/jpeg"},
				"medium":    {File: "photo-300x200.jpg", MimeType: "image/jpeg"},
			},
		},
	}
}

func newTestEngine(t *testing.T, resolver *media.KeyResolver, store ports.ObjectStore, ledger ports.KeyLedger) *Engine {
	t.Helper()
	engine, err := NewEngine(resolver, store, ledger, mocks.NewNopObservability())
	require.NoError(t, err)
	return engine
}

func TestEngine_OnCreated(t *testing.T) {
	t.Run("uploads original and variants in order", func(t *testing.T) {
		store := &mocks.MockObjectStore{}
		store.On("Put", mock.Anything, mock.Anything, "image/jpeg").Return(nil)
		ledger := repository.NewMemoryKeyLedger()

		engine := newTestEngine(t, newResolver(2024, time.January), store, ledger)
		result := engine.OnCreated(context.Background(), imageFixture(t))

		assert.Equal(t, int64(42), result.AttachmentID)
		assert.Equal(t, media.EventCreated, result.Event)
		assert.Zero(t, result.Failures)
		require.Len(t, result.Results, 3)

		keys := []string{
			"uploads/2023/11/photo.jpg",
			"uploads/2023/11/photo-300x200.jpg",
			"uploads/2023/11/photo-150x150.jpg",
		}
		for i, key := range keys {
			assert.Equal(t, key, result.Results[i].Key)
			assert.True(t, result.Results[i].Success)
		}
		assert.Equal(t, "bytes of photo-150x150.jpg", string(store.Bodies["uploads/2023/11/photo-150x150.jpg"]))

		recorded, err := ledger.Lookup(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, keys, recorded)
	})

	t.Run("missing variant does not stop the batch", func(t *testing.T) {
		store := &mocks.MockObjectStore{}
		store.On("Put", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		engine := newTestEngine(t, newResolver(2024, time.January), store, repository.NewMemoryKeyLedger())
		result := engine.OnCreated(context.Background(), imageFixture(t, "photo-300x200.jpg"))

		require.Len(t, result.Results, 3)
		assert.Equal(t, 1, result.Failures)
		assert.Equal(t, 2, result.Succeeded())

		assert.True(t, result.Results[0].Success)
		assert.False(t, result.Results[1].Success)
		assert.Equal(t, media.ErrorKindLocalIO, result.Results[1].Kind)
		assert.NotEmpty(t, result.Results[1].Error)
		assert.True(t, result.Results[2].Success)

		store.AssertNotCalled(t, "Put", mock.Anything, "uploads/2023/11/photo-300x200.jpg", mock.Anything)
		store.AssertNumberOfCalls(t, "Put", 2)
	})

	t.Run("store failures keep their kind", func(t *testing.T) {
		store := &mocks.MockObjectStore{}
		store.On("Put", mock.Anything, "uploads/2023/11/photo.jpg", mock.Anything).
			Return(&ports.StoreError{Kind: media.ErrorKindRemoteTransport, Op: "put", Err: errors.New("dial tcp: timeout")})
		store.On("Put", mock.Anything, "uploads/2023/11/photo-300x200.jpg", mock.Anything).
			Return(errors.New("unexpected"))
		store.On("Put", mock.Anything, "uploads/2023/11/photo-150x150.jpg", mock.Anything).Return(nil)

		engine := newTestEngine(t, newResolver(2024, time.January), store, repository.NewMemoryKeyLedger())
		result := engine.OnCreated(context.Background(), imageFixture(t))

		assert.Equal(t, 2, result.Failures)
		assert.Equal(t, media.ErrorKindRemoteTransport, result.Results[0].Kind)
		assert.Equal(t, media.ErrorKindRemoteService, result.Results[1].Kind)
		assert.Equal(t, media.ErrorKindNone, result.Results[2].Kind)
	})

	t.Run("non image uses the upload month", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "report.pdf")
		writeFile(t, path, "%PDF-1.4")

		store := &mocks.MockObjectStore{}
		store.On("Put", mock.Anything, "uploads/2024/03/report.pdf", "application/pdf").Return(nil)

		engine := newTestEngine(t, newResolver(2024, time.March), store, repository.NewMemoryKeyLedger())
		result := engine.OnCreated(context.Background(), media.Attachment{ID: 7, Path: path, MimeType: "application/pdf"})

		require.Len(t, result.Results, 1)
		assert.True(t, result.Results[0].Success)
		store.AssertExpectations(t)
	})

	t.Run("ledger failure is logged only", func(t *testing.T) {
		store := &mocks.MockObjectStore{}
		store.On("Put", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		ledger := &mocks.MockKeyLedger{}
		ledger.On("Record", mock.Anything, int64(42), mock.Anything).Return(errors.New("db down"))

		engine := newTestEngine(t, newResolver(2024, time.January), store, ledger)
		result := engine.OnCreated(context.Background(), imageFixture(t))

		assert.Zero(t, result.Failures)
		ledger.AssertExpectations(t)
	})
}

func TestEngine_OnCreatedMetricsAndLogs(t *testing.T) {
	logger := &mocks.MockLogger{}
	logger.On("WithFields", mock.Anything).Return(logger)
	logger.On("Error", "Failed to open thumbnail", mock.Anything).Once()
	logger.On("Info", mock.Anything, mock.Anything)
	logger.On("Warn", "Batch finished with failures", mock.Anything).Once()

	metrics := &mocks.MockMetrics{}
	metrics.On("IncrementCounter", "offload.files.failure", map[string]string{
		"event": "attachment.created",
		"kind":  "local_io",
	}).Once()
	metrics.On("IncrementCounter", "offload.files.success", map[string]string{
		"event": "attachment.created",
	}).Twice()
	metrics.On("RecordHistogram", "offload.batch.duration", mock.AnythingOfType("float64"), mock.Anything).Once()

	obs := &mocks.MockObservability{}
	obs.On("ComponentsScoped", "offload").Return(logger, metrics, nil)

	store := &mocks.MockObjectStore{}
	store.On("Put", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	engine, err := NewEngine(newResolver(2024, time.January), store, repository.NewMemoryKeyLedger(), obs)
	require.NoError(t, err)

	engine.OnCreated(context.Background(), imageFixture(t, "photo-150x150.jpg"))

	logger.AssertExpectations(t)
	metrics.AssertExpectations(t)
}

func TestEngine_OnDeletedNamesVariantsFromLedger(t *testing.T) {
	attachment := imageFixture(t)
	serviceErr := &ports.StoreError{Kind: media.ErrorKindRemoteService, Op: "delete", Err: errors.New("AccessDenied")}

	logger := &mocks.MockLogger{}
	logger.On("WithFields", mock.Anything).Return(logger)
	logger.On("Error", "Error deleting thumbnail", mock.Anything).Twice()
	logger.On("Info", mock.Anything, mock.Anything)
	logger.On("Warn", "Batch finished with failures", mock.Anything).Once()

	obs := &mocks.MockObservability{}
	obs.On("ComponentsScoped", "offload").Return(logger, mocks.NewNopMetrics(), nil)

	store := &mocks.MockObjectStore{}
	store.On("Delete", mock.Anything, "uploads/2023/11/photo.jpg").Return(nil)
	store.On("Delete", mock.Anything, "uploads/2023/11/photo-150x150.jpg").Return(serviceErr)
	store.On("Delete", mock.Anything, "uploads/2023/11/photo-100x100.jpg").Return(serviceErr)

	// the last key belongs to a size no longer listed in the metadata
	ledger := &mocks.MockKeyLedger{}
	ledger.On("Lookup", mock.Anything, int64(42)).Return([]string{
		"uploads/2023/11/photo.jpg",
		"uploads/2023/11/photo-150x150.jpg",
		"uploads/2023/11/photo-100x100.jpg",
	}, nil)

	engine, err := NewEngine(newResolver(2024, time.January), store, ledger, obs)
	require.NoError(t, err)

	result := engine.OnDeleted(context.Background(), attachment)

	require.Len(t, result.Results, 3)
	assert.Equal(t, 2, result.Failures)
	assert.Equal(t, filepath.Join(filepath.Dir(attachment.Path), "photo-150x150.jpg"), result.Results[1].LocalPath)
	logger.AssertExpectations(t)
	logger.AssertNotCalled(t, "Error", "Error deleting file", mock.Anything)
	ledger.AssertNotCalled(t, "Forget", mock.Anything, mock.Anything)
}

func TestEngine_OnDeleted(t *testing.T) {
	t.Run("uses recorded keys across month boundaries", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "report.pdf")
		writeFile(t, path, "%PDF-1.4")
		attachment := media.Attachment{ID: 7, Path: path, MimeType: "application/pdf"}

		store := &mocks.MockObjectStore{}
		store.On("Put", mock.Anything, "uploads/2024/01/report.pdf", mock.Anything).Return(nil)
		store.On("Delete", mock.Anything, "uploads/2024/01/report.pdf").Return(nil)
		ledger := repository.NewMemoryKeyLedger()

		created := newTestEngine(t, newResolver(2024, time.January), store, ledger).
			OnCreated(context.Background(), attachment)
		require.Zero(t, created.Failures)

		deleted := newTestEngine(t, newResolver(2024, time.February), store, ledger).
			OnDeleted(context.Background(), attachment)

		require.Len(t, deleted.Results, 1)
		assert.Equal(t, "uploads/2024/01/report.pdf", deleted.Results[0].Key)
		assert.True(t, deleted.Results[0].Success)
		store.AssertExpectations(t)

		remaining, err := ledger.Lookup(context.Background(), 7)
		require.NoError(t, err)
		assert.Empty(t, remaining)
	})

	t.Run("recomputes keys without a ledger entry", func(t *testing.T) {
		store := &mocks.MockObjectStore{}
		store.On("Delete", mock.Anything, mock.Anything).Return(nil)

		engine := newTestEngine(t, newResolver(2024, time.January), store, repository.NewMemoryKeyLedger())
		result := engine.OnDeleted(context.Background(), imageFixture(t))

		require.Len(t, result.Results, 3)
		assert.Equal(t, media.EventDeleted, result.Event)
		store.AssertCalled(t, "Delete", mock.Anything, "uploads/2023/11/photo.jpg")
		store.AssertCalled(t, "Delete", mock.Anything, "uploads/2023/11/photo-300x200.jpg")
		store.AssertCalled(t, "Delete", mock.Anything, "uploads/2023/11/photo-150x150.jpg")
	})

	t.Run("repeated delete succeeds", func(t *testing.T) {
		store := &mocks.MockObjectStore{}
		store.On("Delete", mock.Anything, mock.Anything).Return(nil)

		engine := newTestEngine(t, newResolver(2024, time.January), store, repository.NewMemoryKeyLedger())
		attachment := imageFixture(t)

		first := engine.OnDeleted(context.Background(), attachment)
		second := engine.OnDeleted(context.Background(), attachment)

		assert.Zero(t, first.Failures)
		assert.Zero(t, second.Failures)
		assert.Len(t, second.Results, 3)
	})

	t.Run("failure keeps ledger entry", func(t *testing.T) {
		store := &mocks.MockObjectStore{}
		store.On("Delete", mock.Anything, "uploads/2024/01/a.pdf").
			Return(&ports.StoreError{Kind: media.ErrorKindRemoteService, Op: "delete", Err: errors.New("AccessDenied")})

		ledger := &mocks.MockKeyLedger{}
		ledger.On("Lookup", mock.Anything, int64(3)).Return([]string{"uploads/2024/01/a.pdf"}, nil)

		engine := newTestEngine(t, newResolver(2024, time.January), store, ledger)
		result := engine.OnDeleted(context.Background(), media.Attachment{ID: 3, Path: "/srv/a.pdf"})

		assert.Equal(t, 1, result.Failures)
		assert.Equal(t, media.ErrorKindRemoteService, result.Results[0].Kind)
		ledger.AssertNotCalled(t, "Forget", mock.Anything, mock.Anything)
	})

	t.Run("lookup failure falls back to resolver", func(t *testing.T) {
		store := &mocks.MockObjectStore{}
		store.On("Delete", mock.Anything, "uploads/2024/05/a.pdf").Return(nil)

		ledger := &mocks.MockKeyLedger{}
		ledger.On("Lookup", mock.Anything, int64(3)).Return(nil, errors.New("db down"))
		ledger.On("Forget", mock.Anything, int64(3)).Return(nil)

		engine := newTestEngine(t, newResolver(2024, time.May), store, ledger)
		result := engine.OnDeleted(context.Background(), media.Attachment{ID: 3, Path: "/srv/a.pdf"})

		assert.Zero(t, result.Failures)
		store.AssertExpectations(t)
		ledger.AssertExpectations(t)
	})
}
