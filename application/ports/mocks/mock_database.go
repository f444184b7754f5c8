package mocks

import (
	"context"
	"database/sql"

	"github.com/stretchr/testify/mock"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
)

// MockDatabase is a mock implementation of ports.Database.
// Query arguments are recorded as a single []interface{} argument.
type MockDatabase struct {
	mock.Mock
}

func (m *MockDatabase) Execute(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	ret := m.Called(ctx, query, args)
	result, _ := ret.Get(0).(sql.Result)
	return result, ret.Error(1)
}

func (m *MockDatabase) Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return m.Called(ctx, dest, query, args).Error(0)
}

// Transaction hands the configured ports.Transaction to fn
func (m *MockDatabase) Transaction(ctx context.Context, fn func(tx ports.Transaction) error) error {
	ret := m.Called(ctx)
	if tx, ok := ret.Get(0).(ports.Transaction); ok {
		if err := fn(tx); err != nil {
			return err
		}
	}
	return ret.Error(1)
}

func (m *MockDatabase) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDatabase) Close() error {
	return m.Called().Error(0)
}

// MockTransaction is a mock implementation of ports.Transaction
type MockTransaction struct {
	mock.Mock
}

func (m *MockTransaction) Execute(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	ret := m.Called(ctx, query, args)
	result, _ := ret.Get(0).(sql.Result)
	return result, ret.Error(1)
}
