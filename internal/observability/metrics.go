package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	deployTotal    *prometheus.CounterVec
	deployDuration *prometheus.HistogramVec
	deployPhase    *prometheus.CounterVec
	breakerState   *prometheus.GaugeVec
	hookTotal      *prometheus.CounterVec

	commandTotal    *prometheus.CounterVec
	commandDuration prometheus.Histogram

	fileWriteTotal *prometheus.CounterVec
	archiveBytes   prometheus.Histogram
	activeSessions prometheus.Gauge

	licenseTotal *prometheus.CounterVec

	assistantTotal    *prometheus.CounterVec
	assistantDuration *prometheus.HistogramVec

	gatewayRequests *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			deployTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "deploy_total",
					Help: "Total deploy attempts by target and status.",
				},
				[]string{"target", "status"},
			),
			deployDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "deploy_duration_seconds",
					Help:    "Deploy duration in seconds by target.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"target"},
			),
			deployPhase: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "deploy_phase_failures_total",
					Help: "Deploy failures by target and the phase they failed in.",
				},
				[]string{"target", "phase"},
			),
			breakerState: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "deploy_breaker_open",
					Help: "Deploy target circuit breaker state (1 open, 0 otherwise).",
				},
				[]string{"target"},
			),
			hookTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "deploy_hook_total",
					Help: "Deploy hook invocations by target and outcome.",
				},
				[]string{"target", "outcome"},
			),
			commandTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "command_execution_total",
					Help: "Total session command executions by status.",
				},
				[]string{"status"},
			),
			commandDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "command_duration_seconds",
					Help:    "Session command duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			fileWriteTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "file_write_total",
					Help: "Total session file writes by status.",
				},
				[]string{"status"},
			),
			archiveBytes: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "archive_size_bytes",
					Help:    "Size of packaged deploy archives.",
					Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
				},
			),
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "active_sessions",
					Help: "Current session directory count.",
				},
			),
			licenseTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "license_verification_total",
					Help: "License verifications by verdict reason.",
				},
				[]string{"reason"},
			),
			assistantTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "assistant_ask_total",
					Help: "Model asks by provider and status.",
				},
				[]string{"provider", "status"},
			),
			assistantDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "assistant_ask_duration_seconds",
					Help:    "Model ask duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			gatewayRequests: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "gateway_requests_total",
					Help: "Gateway requests by channel and HTTP status code.",
				},
				[]string{"channel", "code"},
			),
			gatewayDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "gateway_request_duration_seconds",
					Help:    "Gateway request duration in seconds by channel.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"channel"},
			),
		}

		prometheus.MustRegister(
			m.deployTotal,
			m.deployDuration,
			m.deployPhase,
			m.breakerState,
			m.hookTotal,
			m.commandTotal,
			m.commandDuration,
			m.fileWriteTotal,
			m.archiveBytes,
			m.activeSessions,
			m.licenseTotal,
			m.assistantTotal,
			m.assistantDuration,
			m.gatewayRequests,
			m.gatewayDuration,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func RecordDeploy(target string, duration time.Duration, success bool) {
	m := getMetrics()
	m.deployTotal.WithLabelValues(target, statusLabel(success)).Inc()
	m.deployDuration.WithLabelValues(target).Observe(duration.Seconds())
}

func RecordDeployPhaseFailure(target, phase string) {
	getMetrics().deployPhase.WithLabelValues(target, phase).Inc()
}

func SetBreakerOpen(target string, open bool) {
	value := 0.0
	if open {
		value = 1.0
	}
	getMetrics().breakerState.WithLabelValues(target).Set(value)
}

func RecordHook(target, outcome string) {
	getMetrics().hookTotal.WithLabelValues(target, outcome).Inc()
}

func RecordCommand(duration time.Duration, success bool) {
	m := getMetrics()
	m.commandTotal.WithLabelValues(statusLabel(success)).Inc()
	m.commandDuration.Observe(duration.Seconds())
}

func RecordFileWrite(success bool) {
	getMetrics().fileWriteTotal.WithLabelValues(statusLabel(success)).Inc()
}

func RecordArchiveSize(bytes int64) {
	getMetrics().archiveBytes.Observe(float64(bytes))
}

func SetActiveSessions(count int) {
	getMetrics().activeSessions.Set(float64(count))
}

func RecordLicenseVerification(reason string) {
	getMetrics().licenseTotal.WithLabelValues(reason).Inc()
}

func RecordAssistantAsk(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	m.assistantTotal.WithLabelValues(provider, statusLabel(success)).Inc()
	m.assistantDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func RecordGatewayRequest(channel string, code int, duration time.Duration) {
	m := getMetrics()
	m.gatewayRequests.WithLabelValues(channel, strconv.Itoa(code)).Inc()
	m.gatewayDuration.WithLabelValues(channel).Observe(duration.Seconds())
}
