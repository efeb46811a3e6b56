// Package metrics defines the Prometheus metrics exported on /metrics.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Webhook metrics
	WebhookDurationSeconds *prometheus.HistogramVec
	WebhookRequestsTotal   *prometheus.CounterVec
	WebhookDuplicatesTotal prometheus.Counter

	// HTTP metrics
	HTTPErrorsTotal *prometheus.CounterVec

	// Detection metrics
	DetectionsTotal          *prometheus.CounterVec
	DetectionDurationSeconds *prometheus.HistogramVec
	RuleLabelsTotal          *prometheus.CounterVec

	// LLM metrics
	LLMRequestsTotal   *prometheus.CounterVec
	LLMDurationSeconds *prometheus.HistogramVec
	LLMFallbackTotal   *prometheus.CounterVec

	// Rule dictionary reloads
	RuleReloadsTotal *prometheus.CounterVec

	// Rate limiter metrics
	RateLimiterDropped *prometheus.CounterVec
	RateLimiterUsers   *prometheus.GaugeVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		WebhookDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scamguard_webhook_duration_seconds",
				Help:    "Webhook event processing duration in seconds by event type",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"event_type"}, // event_type: message, postback, follow
		),

		WebhookRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scamguard_webhook_requests_total",
				Help: "Total number of webhook events by event type and status",
			},
			[]string{"event_type", "status"}, // status: success, error
		),

		WebhookDuplicatesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "scamguard_webhook_duplicates_total",
				Help: "Redelivered webhook events skipped by the event ID window",
			},
		),

		HTTPErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scamguard_http_errors_total",
				Help: "Total HTTP errors by type and module",
			},
			[]string{"error_type", "module"}, // error_type: invalid_signature, parse_error, validation, ...
		),

		DetectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scamguard_detections_total",
				Help: "Detections by resolved stage, result source and LLM error flag",
			},
			[]string{"stage", "source", "llm_error"}, // source: rules, llm, merged
		),

		DetectionDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scamguard_detection_duration_seconds",
				Help:    "End-to-end detection duration in seconds by input type",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"input_type"},
		),

		RuleLabelsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scamguard_rule_labels_total",
				Help: "Labels emitted by the rule engine",
			},
			[]string{"label"},
		),

		LLMRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scamguard_llm_requests_total",
				Help: "LLM calls by provider, operation and status",
			},
			[]string{"provider", "operation", "status"}, // operation: classify, chat; status: success, error, malformed
		),

		LLMDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scamguard_llm_duration_seconds",
				Help:    "LLM call latency in seconds by provider and operation",
				Buckets: []float64{0.25, 0.5, 1, 2, 3, 5, 10, 20},
			},
			[]string{"provider", "operation"},
		),

		LLMFallbackTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scamguard_llm_fallback_total",
				Help: "Calls answered by a non-preferred provider",
			},
			[]string{"from", "to"},
		),

		RuleReloadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scamguard_rule_reloads_total",
				Help: "Rule dictionary reload attempts by source and status",
			},
			[]string{"source", "status"}, // status: loaded, unchanged, error
		),

		RateLimiterDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scamguard_rate_limiter_dropped_total",
				Help: "Total number of requests dropped by rate limiter",
			},
			[]string{"limiter_type"}, // limiter_type: user, llm, global
		),

		RateLimiterUsers: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scamguard_rate_limiter_users",
				Help: "Number of tracked keys per limiter",
			},
			[]string{"limiter_type"},
		),
	}
}

// RecordWebhook records a processed webhook event
func (m *Metrics) RecordWebhook(eventType, status string, duration float64) {
	if m == nil {
		return
	}
	m.WebhookRequestsTotal.WithLabelValues(eventType, status).Inc()
	m.WebhookDurationSeconds.WithLabelValues(eventType).Observe(duration)
}

// RecordWebhookDuplicate records a skipped redelivery
func (m *Metrics) RecordWebhookDuplicate() {
	if m == nil {
		return
	}
	m.WebhookDuplicatesTotal.Inc()
}

// RecordHTTPError records HTTP error metrics
func (m *Metrics) RecordHTTPError(errorType, module string) {
	if m == nil {
		return
	}
	m.HTTPErrorsTotal.WithLabelValues(errorType, module).Inc()
}

// RecordDetection records a finished detection.
func (m *Metrics) RecordDetection(inputType string, stage int, source string, llmError bool, duration float64) {
	if m == nil {
		return
	}
	m.DetectionsTotal.WithLabelValues(strconv.Itoa(stage), source, strconv.FormatBool(llmError)).Inc()
	m.DetectionDurationSeconds.WithLabelValues(inputType).Observe(duration)
}

// RecordRuleLabels counts each rule label once.
func (m *Metrics) RecordRuleLabels(labels []string) {
	if m == nil {
		return
	}
	for _, l := range labels {
		m.RuleLabelsTotal.WithLabelValues(l).Inc()
	}
}

// RecordLLM records a single provider call
func (m *Metrics) RecordLLM(provider, operation, status string, duration float64) {
	if m == nil {
		return
	}
	m.LLMRequestsTotal.WithLabelValues(provider, operation, status).Inc()
	m.LLMDurationSeconds.WithLabelValues(provider, operation).Observe(duration)
}

// RecordLLMFallback records a provider switch
func (m *Metrics) RecordLLMFallback(from, to string) {
	if m == nil {
		return
	}
	m.LLMFallbackTotal.WithLabelValues(from, to).Inc()
}

// RecordRuleReload records a rule dictionary reload attempt
func (m *Metrics) RecordRuleReload(source, status string) {
	if m == nil {
		return
	}
	m.RuleReloadsTotal.WithLabelValues(source, status).Inc()
}

// RecordRateLimiterDrop records a request dropped by rate limiter
func (m *Metrics) RecordRateLimiterDrop(limiterType string) {
	if m == nil {
		return
	}
	m.RateLimiterDropped.WithLabelValues(limiterType).Inc()
}

// SetRateLimiterUsers sets the number of keys a limiter tracks.
func (m *Metrics) SetRateLimiterUsers(limiterType string, count int) {
	if m == nil {
		return
	}
	m.RateLimiterUsers.WithLabelValues(limiterType).Set(float64(count))
}
