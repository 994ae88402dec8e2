package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters for the poll pipeline.
type Metrics struct {
	cycles            prometheus.Counter
	signaturesScanned prometheus.Counter
	burnsEmitted      prometheus.Counter
	eventsDeduped     prometheus.Counter
	txSkipped         *prometheus.CounterVec
	rpcErrors         prometheus.Counter
	sinkErrors        prometheus.Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// Init initializes global metrics (idempotent).
func Init() *Metrics {
	once.Do(func() {
		metrics = &Metrics{
			cycles: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "burn_listener_cycles_total",
				Help: "Total number of completed poll cycles",
			}),
			signaturesScanned: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "burn_listener_signatures_scanned_total",
				Help: "Total number of signatures returned by scans",
			}),
			burnsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "burn_listener_burns_emitted_total",
				Help: "Total number of burn events emitted to sinks",
			}),
			eventsDeduped: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "burn_listener_signatures_deduped_total",
				Help: "Total number of signatures skipped by the dedupe tracker",
			}),
			txSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "burn_listener_transactions_skipped_total",
				Help: "Total number of transactions permanently skipped, by reason",
			}, []string{"reason"}),
			rpcErrors: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "burn_listener_rpc_errors_total",
				Help: "Total number of transient RPC errors (retried with backoff)",
			}),
			sinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "burn_listener_sink_errors_total",
				Help: "Total number of sink delivery failures",
			}),
		}
		prometheus.MustRegister(
			metrics.cycles,
			metrics.signaturesScanned,
			metrics.burnsEmitted,
			metrics.eventsDeduped,
			metrics.txSkipped,
			metrics.rpcErrors,
			metrics.sinkErrors,
		)
	})
	return metrics
}

// Cycles increments the completed cycle counter.
func (m *Metrics) Cycles() {
	if m != nil {
		m.cycles.Inc()
	}
}

// SignaturesScanned adds to the scanned signature counter.
func (m *Metrics) SignaturesScanned(n int) {
	if m != nil {
		m.signaturesScanned.Add(float64(n))
	}
}

// BurnsEmitted increments the emitted burn counter.
func (m *Metrics) BurnsEmitted() {
	if m != nil {
		m.burnsEmitted.Inc()
	}
}

// EventsDeduped increments the dedupe skip counter.
func (m *Metrics) EventsDeduped() {
	if m != nil {
		m.eventsDeduped.Inc()
	}
}

// TxSkipped increments the permanent-skip counter for a reason
// ("not_found", "malformed", "failed").
func (m *Metrics) TxSkipped(reason string) {
	if m != nil {
		m.txSkipped.WithLabelValues(reason).Inc()
	}
}

// RPCErrors increments the transient RPC error counter.
func (m *Metrics) RPCErrors() {
	if m != nil {
		m.rpcErrors.Inc()
	}
}

// SinkErrors increments the sink failure counter.
func (m *Metrics) SinkErrors() {
	if m != nil {
		m.sinkErrors.Inc()
	}
}

// Handler returns an HTTP handler for /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
