package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the service.
// All methods are safe on a nil receiver so components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal      *prometheus.CounterVec
	HTTPRequestDuration    *prometheus.HistogramVec
	AuthorizationDecisions *prometheus.CounterVec
	PortalValidations      *prometheus.CounterVec
	PortalRenewals         prometheus.Counter
	AuditFailures          *prometheus.CounterVec
	NotificationFailures   *prometheus.CounterVec
	AuditExportedRecords   prometheus.Counter
}

// NewMetrics creates and registers all collectors on registry
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "project_access_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "project_access_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AuthorizationDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "project_access_authorization_decisions_total",
				Help: "Single-row authorization decisions by resource, operation and result",
			},
			[]string{"resource", "operation", "result"},
		),
		PortalValidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "project_access_portal_validations_total",
				Help: "Portal token validations by result",
			},
			[]string{"result"},
		),
		PortalRenewals: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "project_access_portal_renewals_total",
				Help: "Portal tokens extended by the renewal sweep",
			},
		),
		AuditFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "project_access_audit_failures_total",
				Help: "Audit records that could not be written; the primary write still committed",
			},
			[]string{"entity"},
		),
		NotificationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "project_access_notification_failures_total",
				Help: "Notification fan-outs that failed after the primary write",
			},
			[]string{"entity"},
		),
		AuditExportedRecords: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "project_access_audit_exported_records_total",
				Help: "Audit records written to export storage",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthorizationDecisions,
		m.PortalValidations,
		m.PortalRenewals,
		m.AuditFailures,
		m.NotificationFailures,
		m.AuditExportedRecords,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveDecision counts one authorization decision
func (m *Metrics) ObserveDecision(resource, operation string, allowed bool) {
	if m == nil {
		return
	}
	result := "deny"
	if allowed {
		result = "allow"
	}
	m.AuthorizationDecisions.WithLabelValues(resource, operation, result).Inc()
}

// ObservePortalValidation counts one portal validation
func (m *Metrics) ObservePortalValidation(valid bool) {
	if m == nil {
		return
	}
	result := "invalid"
	if valid {
		result = "valid"
	}
	m.PortalValidations.WithLabelValues(result).Inc()
}

// AddPortalRenewals counts tokens extended by one sweep
func (m *Metrics) AddPortalRenewals(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.PortalRenewals.Add(float64(n))
}

// IncAuditFailure counts an audit record that was dropped
func (m *Metrics) IncAuditFailure(entity string) {
	if m == nil {
		return
	}
	m.AuditFailures.WithLabelValues(entity).Inc()
}

// IncNotificationFailure counts a failed notification fan-out
func (m *Metrics) IncNotificationFailure(entity string) {
	if m == nil {
		return
	}
	m.NotificationFailures.WithLabelValues(entity).Inc()
}

// AddAuditExported counts exported audit records
func (m *Metrics) AddAuditExported(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.AuditExportedRecords.Add(float64(n))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration labelled by chi route pattern
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
