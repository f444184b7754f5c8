package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
)

// MockQueue is a mock implementation of ports.Queue
type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) Publish(ctx context.Context, message *ports.QueueMessage) error {
	return m.Called(ctx, message).Error(0)
}

func (m *MockQueue) Close() error {
	return m.Called().Error(0)
}
