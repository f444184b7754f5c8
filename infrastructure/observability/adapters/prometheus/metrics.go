// Package prometheus exposes ports.Metrics as Prometheus collectors.
// Collectors are registered on first use, their label set is fixed by the
// tags of that first measurement plus the default tags.
package prometheus

import (
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
)

type collector struct {
	labels    []string
	counter   *prometheus.CounterVec
	histogram *prometheus.HistogramVec
	gauge     *prometheus.GaugeVec
}

type registry struct {
	mu         sync.Mutex
	namespace  string
	registerer prometheus.Registerer
	collectors map[string]*collector
}

// Metrics implements ports.Metrics
type Metrics struct {
	tags map[string]string
	reg  *registry
}

// NewMetrics creates metrics registered on registerer, names are prefixed
// with namespace.
func NewMetrics(namespace string, registerer prometheus.Registerer) *Metrics {
	return &Metrics{
		tags: make(map[string]string),
		reg: &registry{
			namespace:  sanitize(namespace),
			registerer: registerer,
			collectors: make(map[string]*collector),
		},
	}
}

func (m *Metrics) IncrementCounter(name string, tags map[string]string) {
	all := m.combineTags(tags)
	c := m.reg.get(name+"_total", all, func(opts metricOpts) *collector {
		return &collector{counter: prometheus.NewCounterVec(prometheus.CounterOpts(opts.counter()), opts.labels)}
	})
	if c == nil || c.counter == nil {
		return
	}
	c.counter.WithLabelValues(c.values(all)...).Inc()
}

func (m *Metrics) RecordHistogram(name string, value float64, tags map[string]string) {
	all := m.combineTags(tags)
	c := m.reg.get(name, all, func(opts metricOpts) *collector {
		return &collector{histogram: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: opts.namespace,
			Name:      opts.name,
			Help:      opts.help,
			Buckets:   prometheus.DefBuckets,
		}, opts.labels)}
	})
	if c == nil || c.histogram == nil {
		return
	}
	c.histogram.WithLabelValues(c.values(all)...).Observe(value)
}

func (m *Metrics) RecordGauge(name string, value float64, tags map[string]string) {
	all := m.combineTags(tags)
	c := m.reg.get(name, all, func(opts metricOpts) *collector {
		return &collector{gauge: prometheus.NewGaugeVec(prometheus.GaugeOpts(opts.counter()), opts.labels)}
	})
	if c == nil || c.gauge == nil {
		return
	}
	c.gauge.WithLabelValues(c.values(all)...).Set(value)
}

// WithTags returns a Metrics sharing the registry with additional tags
func (m *Metrics) WithTags(tags map[string]string) ports.Metrics {
	return &Metrics{tags: m.combineTags(tags), reg: m.reg}
}

func (m *Metrics) combineTags(tags map[string]string) map[string]string {
	all := make(map[string]string, len(m.tags)+len(tags))
	for k, v := range m.tags {
		all[sanitize(k)] = v
	}
	for k, v := range tags {
		all[sanitize(k)] = v
	}
	return all
}

type metricOpts struct {
	namespace string
	name      string
	help      string
	labels    []string
}

func (o metricOpts) counter() prometheus.Opts {
	return prometheus.Opts{Namespace: o.namespace, Name: o.name, Help: o.help}
}

// get returns the collector for name, creating and registering it on first
// use. It returns nil when registration fails.
func (r *registry) get(name string, tags map[string]string, build func(metricOpts) *collector) *collector {
	name = sanitize(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.collectors[name]; ok {
		return c
	}

	labels := make([]string, 0, len(tags))
	for k := range tags {
		labels = append(labels, k)
	}
	sort.Strings(labels)

	c := build(metricOpts{
		namespace: r.namespace,
		name:      name,
		help:      strings.ReplaceAll(name, "_", " "),
		labels:    labels,
	})
	c.labels = labels

	var err error
	switch {
	case c.counter != nil:
		err = r.registerer.Register(c.counter)
	case c.histogram != nil:
		err = r.registerer.Register(c.histogram)
	case c.gauge != nil:
		err = r.registerer.Register(c.gauge)
	}
	if err != nil {
		return nil
	}

	r.collectors[name] = c
	return c
}

// values orders tag values by the collector's labels. Missing tags become
// empty strings and tags unknown to the collector are dropped.
func (c *collector) values(tags map[string]string) []string {
	values := make([]string, len(c.labels))
	for i, label := range c.labels {
		values[i] = tags[label]
	}
	return values
}

// sanitize maps dotted metric names onto the Prometheus charset
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
