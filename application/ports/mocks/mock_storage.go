package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

// MockObjectStore is a mock implementation of ports.ObjectStore.
// Put drains the reader so tests can assert on the uploaded body.
type MockObjectStore struct {
	mock.Mock
	Bodies map[string][]byte
}

func (m *MockObjectStore) Put(ctx context.Context, key string, reader io.Reader, contentType string) error {
	body, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if m.Bodies == nil {
		m.Bodies = make(map[string][]byte)
	}
	m.Bodies[key] = body

	args := m.Called(ctx, key, contentType)
	return args.Error(0)
}

func (m *MockObjectStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockKeyLedger is a mock implementation of ports.KeyLedger
type MockKeyLedger struct {
	mock.Mock
}

func (m *MockKeyLedger) Record(ctx context.Context, attachmentID int64, keys []string) error {
	args := m.Called(ctx, attachmentID, keys)
	return args.Error(0)
}

func (m *MockKeyLedger) Lookup(ctx context.Context, attachmentID int64) ([]string, error) {
	args := m.Called(ctx, attachmentID)
	keys, _ := args.Get(0).([]string)
	return keys, args.Error(1)
}

func (m *MockKeyLedger) Forget(ctx context.Context, attachmentID int64) error {
	args := m.Called(ctx, attachmentID)
	return args.Error(0)
}
