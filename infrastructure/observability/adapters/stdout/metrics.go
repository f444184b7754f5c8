package stdout

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
)

// store is shared by every Metrics derived through WithTags
type store struct {
	mu         sync.RWMutex
	counters   map[string]int64
	histograms map[string][]float64
	gauges     map[string]float64
}

// Metrics implements ports.Metrics by logging each measurement and keeping
// the values in memory
type Metrics struct {
	tags   map[string]string
	logger *log.Logger
	json   bool
	store  *store
}

// NewMetrics creates a stdout metrics instance. format is "json" or "text".
func NewMetrics(format string) *Metrics {
	return NewMetricsTo(os.Stdout, format)
}

// NewMetricsTo creates a metrics instance writing to w
func NewMetricsTo(w io.Writer, format string) *Metrics {
	return &Metrics{
		tags:   make(map[string]string),
		logger: log.New(w, "", 0),
		json:   format == "json",
		store: &store{
			counters:   make(map[string]int64),
			histograms: make(map[string][]float64),
			gauges:     make(map[string]float64),
		},
	}
}

func (m *Metrics) IncrementCounter(name string, tags map[string]string) {
	all := m.combineTags(tags)
	key := buildKey(name, all)

	m.store.mu.Lock()
	m.store.counters[key]++
	value := m.store.counters[key]
	m.store.mu.Unlock()

	m.logMetric("COUNTER", name, float64(value), all, nil)
}

func (m *Metrics) RecordHistogram(name string, value float64, tags map[string]string) {
	all := m.combineTags(tags)
	key := buildKey(name, all)

	m.store.mu.Lock()
	m.store.histograms[key] = append(m.store.histograms[key], value)
	stats := calculateStats(m.store.histograms[key])
	m.store.mu.Unlock()

	m.logMetric("HISTOGRAM", name, value, all, &stats)
}

func (m *Metrics) RecordGauge(name string, value float64, tags map[string]string) {
	all := m.combineTags(tags)
	key := buildKey(name, all)

	m.store.mu.Lock()
	m.store.gauges[key] = value
	m.store.mu.Unlock()

	m.logMetric("GAUGE", name, value, all, nil)
}

// WithTags returns a Metrics sharing the same storage with additional tags
func (m *Metrics) WithTags(tags map[string]string) ports.Metrics {
	return &Metrics{
		tags:   m.combineTags(tags),
		logger: m.logger,
		json:   m.json,
		store:  m.store,
	}
}

// GetCounter returns the current value of a counter, tags include defaults
func (m *Metrics) GetCounter(name string, tags map[string]string) int64 {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	return m.store.counters[buildKey(name, m.combineTags(tags))]
}

// GetHistogram returns a copy of the values recorded for a histogram
func (m *Metrics) GetHistogram(name string, tags map[string]string) []float64 {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()

	values := m.store.histograms[buildKey(name, m.combineTags(tags))]
	result := make([]float64, len(values))
	copy(result, values)
	return result
}

// GetGauge returns the current value of a gauge
func (m *Metrics) GetGauge(name string, tags map[string]string) float64 {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	return m.store.gauges[buildKey(name, m.combineTags(tags))]
}

func (m *Metrics) combineTags(tags map[string]string) map[string]string {
	all := make(map[string]string, len(m.tags)+len(tags))
	for k, v := range m.tags {
		all[k] = v
	}
	for k, v := range tags {
		all[k] = v
	}
	return all
}

func (m *Metrics) logMetric(metricType, name string, value float64, tags map[string]string, stats *histogramStats) {
	timestamp := time.Now().UTC().Format(time.RFC3339)

	if m.json {
		entry := map[string]interface{}{
			"timestamp": timestamp,
			"type":      "metric",
			"metric":    metricType,
			"name":      name,
			"value":     value,
			"tags":      tags,
		}
		if stats != nil {
			entry["stats"] = map[string]interface{}{
				"count": stats.count,
				"min":   stats.min,
				"max":   stats.max,
				"avg":   stats.avg,
			}
		}
		if b, err := json.Marshal(entry); err == nil {
			m.logger.Println(string(b))
		}
		return
	}

	line := fmt.Sprintf("%s [METRIC] %s %s=%.2f", timestamp, metricType, name, value)
	if stats != nil {
		line += fmt.Sprintf(" count=%d min=%.2f max=%.2f avg=%.2f", stats.count, stats.min, stats.max, stats.avg)
	}
	if tagStr := formatTags(tags, "="); tagStr != "" {
		line += " " + strings.ReplaceAll(tagStr, ",", " ")
	}
	m.logger.Println(line)
}

// buildKey creates a stable key for a metric with tags
func buildKey(name string, tags map[string]string) string {
	if len(tags) == 0 {
		return name
	}
	return fmt.Sprintf("%s{%s}", name, formatTags(tags, ":"))
}

func formatTags(tags map[string]string, sep string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+sep+tags[k])
	}
	return strings.Join(pairs, ",")
}

type histogramStats struct {
	count int
	min   float64
	max   float64
	avg   float64
}

func calculateStats(values []float64) histogramStats {
	if len(values) == 0 {
		return histogramStats{}
	}

	stats := histogramStats{
		count: len(values),
		min:   values[0],
		max:   values[0],
	}

	sum := 0.0
	for _, v := range values {
		sum += v
		if v < stats.min {
			stats.min = v
		}
		if v > stats.max {
			stats.max = v
		}
	}

	stats.avg = sum / float64(len(values))
	return stats
}
