// Package metrics provides Prometheus collectors for spiralmind's knowledge
// operations. All methods are nil-safe so components can run without metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "spiralmind"

// Recall results.
const (
	ResultHit        = "hit"
	ResultMiss       = "miss"
	ResultContextual = "contextual"
)

// Gateway lookup results.
const (
	ResultFound       = "found"
	ResultNotFound    = "not_found"
	ResultUnreachable = "unreachable"
	ResultTimeout     = "timeout"
)

// Metrics holds the knowledge collectors.
type Metrics struct {
	learned             *prometheus.CounterVec
	recalls             *prometheus.CounterVec
	reinforcements      prometheus.Counter
	gatewayLookups      *prometheus.CounterVec
	persistenceFailures prometheus.Counter
	concepts            prometheus.Gauge
	routed              *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// A nil reg skips registration, which is convenient in tests.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		learned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "knowledge",
			Name:      "learned_total",
			Help:      "Explanations learned, labeled by source (user, gateway, teach).",
		}, []string{"source"}),
		recalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "knowledge",
			Name:      "recalls_total",
			Help:      "Recall attempts, labeled by result.",
		}, []string{"result"}),
		reinforcements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "knowledge",
			Name:      "reinforcements_total",
			Help:      "Cross-reference explanations written by reinforcement.",
		}),
		gatewayLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "lookups_total",
			Help:      "External knowledge lookups, labeled by provider and result.",
		}, []string{"provider", "result"}),
		persistenceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "knowledge",
			Name:      "persistence_failures_total",
			Help:      "Failed full-map saves. In-memory state stays authoritative.",
		}),
		concepts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "knowledge",
			Name:      "concepts",
			Help:      "Number of stored concepts.",
		}),
		routed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "utterances_total",
			Help:      "Utterances handled by the query router, labeled by response kind.",
		}, []string{"kind"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{
			m.learned, m.recalls, m.reinforcements, m.gatewayLookups,
			m.persistenceFailures, m.concepts, m.routed,
		} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// Learned counts one learned explanation.
func (m *Metrics) Learned(source string) {
	if m == nil {
		return
	}
	m.learned.WithLabelValues(source).Inc()
}

// Recall counts one recall attempt.
func (m *Metrics) Recall(result string) {
	if m == nil {
		return
	}
	m.recalls.WithLabelValues(result).Inc()
}

// Reinforced counts n cross-reference writes.
func (m *Metrics) Reinforced(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reinforcements.Add(float64(n))
}

// GatewayLookup counts one provider lookup.
func (m *Metrics) GatewayLookup(provider, result string) {
	if m == nil {
		return
	}
	m.gatewayLookups.WithLabelValues(provider, result).Inc()
}

// PersistenceFailed counts one failed save.
func (m *Metrics) PersistenceFailed() {
	if m == nil {
		return
	}
	m.persistenceFailures.Inc()
}

// SetConcepts records the current concept count.
func (m *Metrics) SetConcepts(n int) {
	if m == nil {
		return
	}
	m.concepts.Set(float64(n))
}

// Routed counts one routed utterance.
func (m *Metrics) Routed(kind string) {
	if m == nil {
		return
	}
	m.routed.WithLabelValues(kind).Inc()
}
