// Package metrics records compression counters in a private Prometheus
// registry. A batch run writes them as a node_exporter textfile so cron
// jobs and CI can scrape the result.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tagtrim/cli/internal/minify"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "tagtrim").
	Namespace string
	// ConstLabels are added to every metric.
	ConstLabels prometheus.Labels
	// Buckets are the histogram buckets for pass duration.
	Buckets []float64
}

// Option configures Config.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(ns string) Option {
	return func(c *Config) { c.Namespace = ns }
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) { c.ConstLabels = labels }
}

// WithBuckets sets the histogram buckets.
func WithBuckets(b []float64) Option {
	return func(c *Config) { c.Buckets = b }
}

func defaultConfig() Config {
	return Config{
		Namespace: "tagtrim",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
	}
}

// Recorder owns a registry and the collectors registered on it. A nil
// *Recorder ignores every call.
type Recorder struct {
	reg          *prometheus.Registry
	files        *prometheus.CounterVec
	tokens       prometheus.Counter
	bytesIn      prometheus.Counter
	bytesOut     prometheus.Counter
	runsStripped prometheus.Counter
	notices      *prometheus.CounterVec
	duration     prometheus.Histogram
}

// New creates a Recorder with its own registry.
func New(opts ...Option) *Recorder {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        name,
			Help:        help,
			ConstLabels: cfg.ConstLabels,
		})
	}
	return &Recorder{
		reg: reg,
		files: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "files_total",
			Help:        "Documents processed, by outcome",
			ConstLabels: cfg.ConstLabels,
		}, []string{"status"}),
		tokens:       counter("tokens_total", "Stream tokens read"),
		bytesIn:      counter("text_bytes_in_total", "Text bytes before compression"),
		bytesOut:     counter("text_bytes_out_total", "Text bytes after compression"),
		runsStripped: counter("runs_stripped_total", "Whitespace runs removed between tags"),
		notices: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "notices_total",
			Help:        "Non-fatal notices raised during compression, by kind",
			ConstLabels: cfg.ConstLabels,
		}, []string{"kind"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Name:        "pass_duration_seconds",
			Help:        "Time spent in one compression pass",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}),
	}
}

// Registry exposes the underlying registry as a Gatherer.
func (r *Recorder) Registry() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.reg
}

// ObservePass records one successful compression pass.
func (r *Recorder) ObservePass(rep minify.Report, d time.Duration) {
	if r == nil {
		return
	}
	r.files.WithLabelValues("ok").Inc()
	r.tokens.Add(float64(rep.Tokens))
	r.bytesIn.Add(float64(rep.TextBytesIn))
	r.bytesOut.Add(float64(rep.TextBytesOut))
	r.runsStripped.Add(float64(rep.RunsStripped))
	for _, n := range rep.Notices {
		r.notices.WithLabelValues(n.Kind.String()).Inc()
	}
	r.duration.Observe(d.Seconds())
}

// ObserveFailure records a document that could not be processed.
func (r *Recorder) ObserveFailure() {
	if r == nil {
		return
	}
	r.files.WithLabelValues("error").Inc()
}

// WriteTextfile writes all metrics to path in the Prometheus text format.
// The file is written atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.reg)
}
