package ports

type Observability interface {
	// Components returns the root logger and metrics without scoping
	Components() (Logger, Metrics, error)

	// ComponentsScoped returns logger and metrics scoped to a specific component
	ComponentsScoped(component string) (Logger, Metrics, error)

	Logger() (Logger, error)
	LoggerScoped(component string) (Logger, error)
	Metrics() (Metrics, error)
	MetricsScoped(component string) (Metrics, error)
}

// Logger is a structured logger taking alternating key/value fields.
type Logger interface {
	// Info logs normal operations: uploads, deletes, state changes.
	Info(msg string, fields ...interface{})

	// Error logs failures. Pass the error itself under the "error" key.
	Error(msg string, fields ...interface{})

	// Warn logs degraded but tolerated conditions.
	Warn(msg string, fields ...interface{})

	// WithFields returns a Logger that adds fields to every entry.
	WithFields(fields map[string]interface{}) Logger
}

// Metrics records application metrics.
type Metrics interface {
	// IncrementCounter increments a counter metric by 1.
	IncrementCounter(name string, tags map[string]string)

	// RecordHistogram records a value in a histogram distribution.
	// Use for latencies, sizes, or any value where distribution matters.
	RecordHistogram(name string, value float64, tags map[string]string)

	// RecordGauge records a point-in-time measurement.
	RecordGauge(name string, value float64, tags map[string]string)

	// WithTags returns a Metrics that adds tags to every measurement.
	WithTags(tags map[string]string) Metrics
}
