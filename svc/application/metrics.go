package application

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the lifecycle's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	transitions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	effects     *prometheus.CounterVec
	rollbacks   *prometheus.CounterVec
	dispatch    *prometheus.HistogramVec
	bulkItems   *prometheus.CounterVec
	reconciled  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "castflow",
			Name:      "transitions_total",
			Help:      "Committed application transitions.",
		}, []string{"transition"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "castflow",
			Name:      "transition_failures_total",
			Help:      "Transition attempts that did not commit, by error kind.",
		}, []string{"transition", "kind"}),
		effects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "castflow",
			Name:      "side_effects_total",
			Help:      "Side effect executions by outcome.",
		}, []string{"effect", "outcome"}),
		rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "castflow",
			Name:      "rollbacks_total",
			Help:      "Transitions reverted after a critical side effect failed.",
		}, []string{"target", "restored"}),
		dispatch: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "castflow",
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent running the side effects of one transition.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"target"}),
		bulkItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "castflow",
			Name:      "bulk_items_total",
			Help:      "Bulk items processed by result kind.",
		}, []string{"mode", "kind"}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "castflow",
			Name:      "reconciled_dispatches_total",
			Help:      "Unfinished dispatches handled by the reconciler.",
		}, []string{"action"}),
	}

	for _, c := range []prometheus.Collector{
		m.transitions, m.rejections, m.effects, m.rollbacks, m.dispatch, m.bulkItems, m.reconciled,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) transition(t Transition) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) failure(t Transition, err error) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(string(t), string(Kind(err))).Inc()
}

func (m *Metrics) effect(name, outcome string) {
	if m == nil {
		return
	}
	m.effects.WithLabelValues(name, outcome).Inc()
}

func (m *Metrics) rollback(target State, restored bool) {
	if m == nil {
		return
	}
	label := "false"
	if restored {
		label = "true"
	}
	m.rollbacks.WithLabelValues(string(target), label).Inc()
}

func (m *Metrics) dispatched(target State, d time.Duration) {
	if m == nil {
		return
	}
	m.dispatch.WithLabelValues(string(target)).Observe(d.Seconds())
}

func (m *Metrics) bulkItem(mode string, err error) {
	if m == nil {
		return
	}
	kind := "success"
	if err != nil {
		kind = string(Kind(err))
	}
	m.bulkItems.WithLabelValues(mode, kind).Inc()
}

func (m *Metrics) reconcile(action string) {
	if m == nil {
		return
	}
	m.reconciled.WithLabelValues(action).Inc()
}
