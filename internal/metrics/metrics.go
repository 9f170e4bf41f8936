// Package metrics exposes Prometheus instruments for ordering and scope I/O.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"snipshelf/internal/ordering"
)

// Metrics groups every instrument the service records. The zero value is not
// usable; build one with New.
type Metrics struct {
	registry *prometheus.Registry

	migrations      *prometheus.CounterVec
	migratedKeys    *prometheus.CounterVec
	planUpdates     prometheus.Histogram
	insertAttempts  *prometheus.CounterVec
	scopeCache      *prometheus.CounterVec
	searchFallbacks prometheus.Counter
}

// New registers all instruments on a fresh registry, including the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		migrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "snipshelf_ordering_migrations_total",
			Help: "Lazy ordinal backfill attempts that issued writes, by writer mode and outcome",
		}, []string{"mode", "outcome"}),
		migratedKeys: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "snipshelf_ordering_migrated_keys_total",
			Help: "Ordinal keys written by successful backfills",
		}, []string{"mode"}),
		planUpdates: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "snipshelf_ordering_plan_updates",
			Help:    "Existing items shifted per insertion",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 1000},
		}),
		insertAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "snipshelf_ordering_insert_attempts_total",
			Help: "Insertion transaction attempts, by outcome",
		}, []string{"outcome"}),
		scopeCache: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "snipshelf_scope_cache_requests_total",
			Help: "Scope cache lookups, by result",
		}, []string{"result"}),
		searchFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "snipshelf_search_fallbacks_total",
			Help: "Searches answered by SQL because the search engine was unavailable",
		}),
	}
}

// ObserveMigration implements ordering.Observer.
func (m *Metrics) ObserveMigration(mode ordering.Mode, updates int, err error) {
	if err != nil {
		m.migrations.WithLabelValues(mode.String(), "failed").Inc()
		return
	}
	m.migrations.WithLabelValues(mode.String(), "written").Inc()
	m.migratedKeys.WithLabelValues(mode.String()).Add(float64(updates))
}

func (m *Metrics) ObservePlan(updates int) {
	m.planUpdates.Observe(float64(updates))
}

// ObserveInsertAttempt records one transaction attempt. outcome is "committed",
// "aborted" or "failed".
func (m *Metrics) ObserveInsertAttempt(outcome string) {
	m.insertAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveScopeCache(hit bool) {
	m.scopeCache.WithLabelValues(strconv.FormatBool(hit)).Inc()
}

func (m *Metrics) ObserveSearchFallback() {
	m.searchFallbacks.Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
