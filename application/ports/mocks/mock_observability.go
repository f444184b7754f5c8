// Package mocks provides mock implementations of the ports for testing
package mocks

import (
	"github.com/jayllellis/do-spaces-media-offload/application/ports"

	"github.com/stretchr/testify/mock"
)

// MockLogger is a mock implementation of ports.Logger.
// Fields are recorded as a single []interface{} argument.
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Info(msg string, fields ...interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Error(msg string, fields ...interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Warn(msg string, fields ...interface{}) {
	m.Called(msg, fields)
}

// WithFields returns the configured logger, or the mock itself
func (m *MockLogger) WithFields(fields map[string]interface{}) ports.Logger {
	args := m.Called(fields)
	if logger, ok := args.Get(0).(ports.Logger); ok {
		return logger
	}
	return m
}

// NewNopLogger returns a MockLogger that accepts any call
func NewNopLogger() *MockLogger {
	m := &MockLogger{}
	m.On("Info", mock.Anything, mock.Anything).Maybe()
	m.On("Error", mock.Anything, mock.Anything).Maybe()
	m.On("Warn", mock.Anything, mock.Anything).Maybe()
	m.On("WithFields", mock.Anything).Return(m).Maybe()
	return m
}

// MockMetrics is a mock implementation of ports.Metrics
type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) IncrementCounter(name string, tags map[string]string) {
	m.Called(name, tags)
}

func (m *MockMetrics) RecordHistogram(name string, value float64, tags map[string]string) {
	m.Called(name, value, tags)
}

func (m *MockMetrics) RecordGauge(name string, value float64, tags map[string]string) {
	m.Called(name, value, tags)
}

// WithTags returns the configured metrics, or the mock itself
func (m *MockMetrics) WithTags(tags map[string]string) ports.Metrics {
	args := m.Called(tags)
	if metrics, ok := args.Get(0).(ports.Metrics); ok {
		return metrics
	}
	return m
}

// NewNopMetrics returns a MockMetrics that accepts any call
func NewNopMetrics() *MockMetrics {
	m := &MockMetrics{}
	m.On("IncrementCounter", mock.Anything, mock.Anything).Maybe()
	m.On("RecordHistogram", mock.Anything, mock.Anything, mock.Anything).Maybe()
	m.On("RecordGauge", mock.Anything, mock.Anything, mock.Anything).Maybe()
	m.On("WithTags", mock.Anything).Return(m).Maybe()
	return m
}

// MockObservability is a mock implementation of ports.Observability
type MockObservability struct {
	mock.Mock
}

func (m *MockObservability) Components() (ports.Logger, ports.Metrics, error) {
	args := m.Called()
	return loggerArg(args, 0), metricsArg(args, 1), args.Error(2)
}

func (m *MockObservability) ComponentsScoped(component string) (ports.Logger, ports.Metrics, error) {
	args := m.Called(component)
	return loggerArg(args, 0), metricsArg(args, 1), args.Error(2)
}

func (m *MockObservability) Logger() (ports.Logger, error) {
	args := m.Called()
	return loggerArg(args, 0), args.Error(1)
}

func (m *MockObservability) LoggerScoped(component string) (ports.Logger, error) {
	args := m.Called(component)
	return loggerArg(args, 0), args.Error(1)
}

func (m *MockObservability) Metrics() (ports.Metrics, error) {
	args := m.Called()
	return metricsArg(args, 0), args.Error(1)
}

func (m *MockObservability) MetricsScoped(component string) (ports.Metrics, error) {
	args := m.Called(component)
	return metricsArg(args, 0), args.Error(1)
}

// NewNopObservability returns a MockObservability handing out nop components
func NewNopObservability() *MockObservability {
	logger, metrics := NewNopLogger(), NewNopMetrics()
	m := &MockObservability{}
	m.On("Components").Return(logger, metrics, nil).Maybe()
	m.On("ComponentsScoped", mock.Anything).Return(logger, metrics, nil).Maybe()
	m.On("Logger").Return(logger, nil).Maybe()
	m.On("LoggerScoped", mock.Anything).Return(logger, nil).Maybe()
	m.On("Metrics").Return(metrics, nil).Maybe()
	m.On("MetricsScoped", mock.Anything).Return(metrics, nil).Maybe()
	return m
}

func loggerArg(args mock.Arguments, i int) ports.Logger {
	if logger, ok := args.Get(i).(ports.Logger); ok {
		return logger
	}
	return nil
}

func metricsArg(args mock.Arguments, i int) ports.Metrics {
	if metrics, ok := args.Get(i).(ports.Metrics); ok {
		return metrics
	}
	return nil
}
