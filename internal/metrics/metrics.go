package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the collectors shared by the host, indexer and replay paths.
type Registry struct {
	reg          *prometheus.Registry
	instructions *prometheus.CounterVec
	emitted      *prometheus.CounterVec
	indexed      prometheus.Counter
	skippedTx    prometheus.Counter
	decodeFailed prometheus.Counter
	violations   *prometheus.CounterVec
	lastSlot     prometheus.Gauge
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the lazily-initialised process registry.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = New()
	})
	return defaultReg
}

// New builds an isolated registry. Tests use it to avoid shared counters.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xstaking",
			Subsystem: "host",
			Name:      "instructions_total",
			Help:      "Instructions executed by the host segmented by instruction and outcome.",
		}, []string{"instruction", "outcome"}),
		emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xstaking",
			Subsystem: "host",
			Name:      "events_committed_total",
			Help:      "Program data records committed to the log stream by event name.",
		}, []string{"event"}),
		indexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xstaking",
			Subsystem: "indexer",
			Name:      "records_total",
			Help:      "Log records written by the indexer.",
		}),
		skippedTx: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xstaking",
			Subsystem: "indexer",
			Name:      "failed_transactions_skipped_total",
			Help:      "Transactions skipped because they did not commit.",
		}),
		decodeFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xstaking",
			Subsystem: "decoder",
			Name:      "failures_total",
			Help:      "Log records that could not be decoded.",
		}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xstaking",
			Subsystem: "ledger",
			Name:      "violations_total",
			Help:      "Replay invariant violations by rule.",
		}, []string{"rule"}),
		lastSlot: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "xstaking",
			Subsystem: "indexer",
			Name:      "last_slot",
			Help:      "Slot of the last indexed transaction.",
		}),
	}
	r.reg.MustRegister(
		r.instructions,
		r.emitted,
		r.indexed,
		r.skippedTx,
		r.decodeFailed,
		r.violations,
		r.lastSlot,
	)
	return r
}

func (r *Registry) ObserveInstruction(instruction, outcome string) {
	if r == nil {
		return
	}
	r.instructions.WithLabelValues(instruction, outcome).Inc()
}

func (r *Registry) ObserveCommittedEvent(event string) {
	if r == nil {
		return
	}
	r.emitted.WithLabelValues(event).Inc()
}

func (r *Registry) ObserveIndexed(records int, slot uint64) {
	if r == nil {
		return
	}
	r.indexed.Add(float64(records))
	r.lastSlot.Set(float64(slot))
}

func (r *Registry) ObserveSkippedTransaction() {
	if r == nil {
		return
	}
	r.skippedTx.Inc()
}

func (r *Registry) ObserveDecodeFailure() {
	if r == nil {
		return
	}
	r.decodeFailed.Inc()
}

func (r *Registry) ObserveViolation(rule string) {
	if r == nil {
		return
	}
	r.violations.WithLabelValues(rule).Inc()
}

// Gatherer exposes the underlying registry for scraping and tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
