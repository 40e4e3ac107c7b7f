package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors for the API and reconciliation flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	tokensMintedTotal    prometheus.Counter
	mintFailuresTotal    *prometheus.CounterVec
	mintIndeterminate    prometheus.Counter
	partialFailures      prometheus.Counter
	mintDuration         prometheus.Histogram
	reconcileRepaired    prometheus.Counter
	reconcileResolutions *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tracerx",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tracerx",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		tokensMintedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "tracerx",
				Name:      "tokens_minted_total",
				Help:      "Total number of batch tokens minted and confirmed by receipt.",
			},
		),
		mintFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tracerx",
				Name:      "mint_failures_total",
				Help:      "Total number of failed mint attempts grouped by failure reason.",
			},
			[]string{"reason"},
		),
		mintIndeterminate: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "tracerx",
				Name:      "mint_indeterminate_total",
				Help:      "Total number of mints whose outcome was unknown at request end and were left for reconciliation.",
			},
		),
		partialFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "tracerx",
				Name:      "partial_failures_total",
				Help:      "Total number of confirmed mints whose registry write failed.",
			},
		),
		mintDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "tracerx",
				Name:      "mint_duration_seconds",
				Help:      "Submit-to-receipt duration of token creations in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
			},
		),
		reconcileRepaired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "tracerx",
				Name:      "reconcile_repaired_total",
				Help:      "Total number of minted-but-unrecorded batches repaired by reconciliation.",
			},
		),
		reconcileResolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tracerx",
				Name:      "reconcile_resolutions_total",
				Help:      "Total number of stale pending batches resolved by outcome.",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.tokensMintedTotal,
		m.mintFailuresTotal,
		m.mintIndeterminate,
		m.partialFailures,
		m.mintDuration,
		m.reconcileRepaired,
		m.reconcileResolutions,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncTokenMinted() {
	if m == nil {
		return
	}
	m.tokensMintedTotal.Inc()
}

func (m *Metrics) IncMintFailed(reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "unknown"
	}
	m.mintFailuresTotal.WithLabelValues(reasonLabel).Inc()
}

func (m *Metrics) IncMintIndeterminate() {
	if m == nil {
		return
	}
	m.mintIndeterminate.Inc()
}

func (m *Metrics) IncPartialFailure() {
	if m == nil {
		return
	}
	m.partialFailures.Inc()
}

func (m *Metrics) ObserveMintDuration(duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.mintDuration.Observe(seconds)
}

func (m *Metrics) IncReconcileRepaired() {
	if m == nil {
		return
	}
	m.reconcileRepaired.Inc()
}

func (m *Metrics) IncReconcileResolution(outcome string) {
	if m == nil {
		return
	}
	outcomeLabel := strings.TrimSpace(strings.ToLower(outcome))
	if outcomeLabel == "" {
		outcomeLabel = "unknown"
	}
	m.reconcileResolutions.WithLabelValues(outcomeLabel).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}
