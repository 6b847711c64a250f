package pool

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mosaicnetworks/ledgerpool/src/common"
)

const (
	namespace         = "ledgerpool"
	requestSubsystem  = "request"
	catchupSubsystem  = "catchup"
	registrySubsystem = "registry"
)

// Metrics are the prometheus collectors of one Pool. Each Pool has its own
// prometheus registry so that several pools can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rejectedReplies *prometheus.CounterVec
	dispatchErrors  *prometheus.CounterVec
	catchupRuns     *prometheus.CounterVec
	catchupEntries  prometheus.Counter
	resyncs         prometheus.Counter
	storeErrors     prometheus.Counter
	registrySeq     prometheus.Gauge
	activeNodes     prometheus.Gauge
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: requestSubsystem,
				Name:      "total",
				Help:      "Number of requests by class and outcome",
			},
			[]string{"class", "outcome"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: requestSubsystem,
				Name:      "duration_seconds",
				Help:      "Time to decide a request",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"class"},
		),
		rejectedReplies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: requestSubsystem,
				Name:      "rejected_replies_total",
				Help:      "Number of replies discarded by the verifier, by reason",
			},
			[]string{"reason"},
		),
		dispatchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: requestSubsystem,
				Name:      "dispatch_errors_total",
				Help:      "Number of dispatches that got no reply, by reason",
			},
			[]string{"reason"},
		),
		catchupRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: catchupSubsystem,
				Name:      "runs_total",
				Help:      "Number of catch-up runs by outcome",
			},
			[]string{"outcome"},
		),
		catchupEntries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: catchupSubsystem,
				Name:      "entries_total",
				Help:      "Number of pool ledger entries verified and applied",
			},
		),
		resyncs: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: catchupSubsystem,
				Name:      "resyncs_total",
				Help:      "Number of times the registry was rebuilt from genesis",
			},
		),
		storeErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: registrySubsystem,
				Name:      "store_errors_total",
				Help:      "Number of failed registry snapshot saves",
			},
		),
		registrySeq: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: registrySubsystem,
				Name:      "seq",
				Help:      "Sequence number of the last applied pool ledger entry",
			},
		),
		activeNodes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: registrySubsystem,
				Name:      "active_nodes",
				Help:      "Number of active validator nodes",
			},
		),
	}

	m.registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.rejectedReplies,
		m.dispatchErrors,
		m.catchupRuns,
		m.catchupEntries,
		m.resyncs,
		m.storeErrors,
		m.registrySeq,
		m.activeNodes,
	)

	return m
}

// Handler serves the collectors in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry, mostly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *Metrics) observeRequest(class string, start time.Time, err error) {
	outcome := "accepted"
	if err != nil {
		outcome = reason(err)
	}
	m.requests.WithLabelValues(class, outcome).Inc()
	m.requestDuration.WithLabelValues(class).Observe(time.Since(start).Seconds())
}

func (m *Metrics) rejectedReply(err error) {
	m.rejectedReplies.WithLabelValues(reason(err)).Inc()
}

func (m *Metrics) dispatchError(err error) {
	m.dispatchErrors.WithLabelValues(reason(err)).Inc()
}

func (m *Metrics) catchupRun(err error) {
	outcome := "synced"
	if err != nil {
		outcome = reason(err)
	}
	m.catchupRuns.WithLabelValues(outcome).Inc()
}

// reason turns an error into a bounded label value.
func reason(err error) string {
	if poolErr := common.AsPool(err); poolErr != nil {
		return poolErr.Type().String()
	}
	return "other"
}
