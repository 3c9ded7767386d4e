// Package metrics holds the Prometheus collectors of the ledger and implements
// core.Recorder on top of them.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"finledger/internal/core"
)

// Metrics contains all Prometheus metrics for the application
type Metrics struct {
	EntriesPosted       *prometheus.CounterVec
	EntriesReversed     *prometheus.CounterVec
	MovementsRecorded   *prometheus.CounterVec
	ReportDuration      *prometheus.HistogramVec
	IntegrityViolations *prometheus.CounterVec
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

var _ core.Recorder = (*Metrics)(nil)

// New registers the collectors with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewWithRegistry registers the collectors with a custom registry, which tests use
// to avoid duplicate registration.
func NewWithRegistry(registry prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		EntriesPosted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "finledger_journal_entries_total",
			Help: "Journal entry post attempts by source type and outcome",
		}, []string{"source_type", "outcome"}),
		EntriesReversed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "finledger_journal_reversals_total",
			Help: "Journal entry reversal attempts by outcome",
		}, []string{"outcome"}),
		MovementsRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "finledger_inventory_movements_total",
			Help: "Inventory movement attempts by type, reason and outcome",
		}, []string{"type", "reason", "outcome"}),
		ReportDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "finledger_report_duration_seconds",
			Help:    "Time taken to derive a report",
			Buckets: prometheus.DefBuckets,
		}, []string{"report"}),
		IntegrityViolations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "finledger_integrity_violations_total",
			Help: "Integrity checks that failed; any non-zero value needs investigation",
		}, []string{"check"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "finledger_http_requests_total",
			Help: "HTTP requests by route pattern, method and status code",
		}, []string{"route", "method", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "finledger_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		gatherer: gatherer,
	}
}

// invalidLabel replaces caller-supplied label values outside the closed enums, so a
// client cannot mint new series.
const invalidLabel = "invalid"

func (m *Metrics) EntryPosted(source core.SourceType, outcome string) {
	label := invalidLabel
	if source.Valid() {
		label = string(source)
	}
	m.EntriesPosted.WithLabelValues(label, outcome).Inc()
}

func (m *Metrics) EntryReversed(outcome string) {
	m.EntriesReversed.WithLabelValues(outcome).Inc()
}

func (m *Metrics) MovementRecorded(t core.MovementType, reason core.Reason, outcome string) {
	typeLabel, reasonLabel := invalidLabel, invalidLabel
	if allowed := core.AllowedReasons(t); allowed != nil {
		typeLabel = string(t)
		for _, r := range allowed {
			if r == reason {
				reasonLabel = string(r)
			}
		}
	}
	m.MovementsRecorded.WithLabelValues(typeLabel, reasonLabel, outcome).Inc()
}

func (m *Metrics) ReportServed(report string, d time.Duration) {
	m.ReportDuration.WithLabelValues(report).Observe(d.Seconds())
}

func (m *Metrics) IntegrityViolation(check string) {
	m.IntegrityViolations.WithLabelValues(check).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
