package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var registry = prometheus.NewRegistry()

var registerer = prometheus.WrapRegistererWith(nil, registry)

var (
	// Common labels for all metrics
	directionLabels = []string{"direction"}

	// Per-guardrail labels (higher cardinality, gated by config)
	guardrailLabels = []string{"direction", "guardrail", "kind"}

	// Latency buckets in milliseconds
	latencyBuckets = []float64{
		1, 2.5, 5, // pattern and keyword checks
		10, 25, 50, // local pipelines
		100, 250, 500, // remote classifiers
		1000, 2500, 5000, 10000, // LLM judges and timeouts
	}

	EvaluationTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustrail_evaluations_total",
			Help: "Total number of pipeline evaluations",
		},
		append(directionLabels, "decision"),
	)

	EvaluationLatency = promauto.With(registerer).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trustrail_evaluation_latency_ms",
			Help:    "Pipeline evaluation latency in milliseconds",
			Buckets: latencyBuckets,
		},
		directionLabels,
	)

	GuardrailDecisionTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustrail_guardrail_decisions_total",
			Help: "Decisions per guardrail",
		},
		append(guardrailLabels, "decision"),
	)

	GuardrailLatency = promauto.With(registerer).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trustrail_guardrail_latency_ms",
			Help:    "Per guardrail evaluation latency in milliseconds",
			Buckets: latencyBuckets,
		},
		guardrailLabels,
	)

	GuardrailErrorTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustrail_guardrail_errors_total",
			Help: "Guardrail executions that failed and fell back to their error policy",
		},
		guardrailLabels,
	)

	RateLimitExceededTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustrail_rate_limit_exceeded_total",
			Help: "Evaluations short-circuited by a rate limit",
		},
		[]string{"scope"},
	)

	AuditDroppedTotal = promauto.With(registerer).NewCounter(
		prometheus.CounterOpts{
			Name: "trustrail_audit_dropped_total",
			Help: "Audit records dropped because the queue was full",
		},
	)
)

type MetricsConfig struct {
	EnableLatency      bool // Evaluation latency histograms
	EnablePerGuardrail bool // Per-guardrail counters and histograms (higher cardinality)
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		EnableLatency:      true,  // Basic latency is usually safe
		EnablePerGuardrail: false, // Disabled by default (high cardinality)
	}
}

var Config MetricsConfig

// Gatherer exposes the engine registry for the metrics endpoint.
func Gatherer() prometheus.Gatherer {
	return registry
}

func Initialize(cfg MetricsConfig) {
	Config = cfg
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
}
