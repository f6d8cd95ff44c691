package dissect

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/soypat/dissect/token"
)

// MetricsConfig configures the Prometheus collectors of a [Session].
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "dissect").
	Namespace string
	// Registry collectors are registered on. Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
	// Buckets of the decode duration histogram. Default: prometheus.DefBuckets.
	Buckets []float64
}

// Metrics holds the Prometheus collectors updated by a [Session].
// A nil *Metrics records nothing.
type Metrics struct {
	framesTotal     *prometheus.CounterVec
	layersTotal     prometheus.Counter
	unknownTotal    *prometheus.CounterVec
	decodeDuration  prometheus.Histogram
	dynamicTokens   prometheus.Gauge
	violationsTotal prometheus.Counter
}

// NewMetrics creates and registers the session collectors. It panics if the
// collectors are already registered on cfg.Registry, like promauto does.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if cfg.Namespace == "" {
		cfg.Namespace = "dissect"
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.DefaultRegisterer
	}
	if cfg.Buckets == nil {
		cfg.Buckets = prometheus.DefBuckets
	}
	factory := promauto.With(cfg.Registry)
	return &Metrics{
		framesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "frames_total",
			Help:      "Total number of frames decoded by final status",
		}, []string{"status"}),
		layersTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "layers_total",
			Help:      "Total number of layers produced by completed frames",
		}),
		unknownTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "unknown_protocol_total",
			Help:      "Total number of dispatches with no registered decoder",
		}, []string{"proto"}),
		decodeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "decode_duration_seconds",
			Help:      "Frame decode duration in seconds",
			Buckets:   cfg.Buckets,
		}),
		dynamicTokens: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "dynamic_tokens",
			Help:      "Number of tokens issued by the dynamic registry",
		}),
		violationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "protocol_violations_total",
			Help:      "Total number of decoder contract violations",
		}),
	}
}

func (m *Metrics) observeFrame(f *Frame, elapsed time.Duration, reg *token.Registry) {
	if m == nil {
		return
	}
	m.framesTotal.WithLabelValues(f.status.String()).Inc()
	m.decodeDuration.Observe(elapsed.Seconds())
	if f.status == StatusCompleted {
		m.layersTotal.Add(float64(len(f.layers)))
	} else {
		m.violationsTotal.Inc()
	}
	if reg != nil {
		m.dynamicTokens.Set(float64(reg.Len()))
	}
}

func (m *Metrics) observeUnknown(name string) {
	if m == nil {
		return
	}
	m.unknownTotal.WithLabelValues(name).Inc()
}
