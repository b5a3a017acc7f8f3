package observability

import (
	"context"

	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flowgraph"

// Metrics holds the engine collectors.
type Metrics struct {
	runsStarted  prometheus.Counter
	runsFinished *prometheus.CounterVec
	runsActive   prometheus.Gauge
	runSteps     prometheus.Histogram
	nodeVisits   *prometheus.CounterVec
	nodeErrors   *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of runs started",
		}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Total number of runs that reached a terminal status",
		}, []string{"status"}),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_active",
			Help:      "Runs currently executing",
		}),
		runSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_steps",
			Help:      "Number of node invocations per finished run",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
		}),
		nodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_visits_total",
			Help:      "Total number of node visits",
		}, []string{"node", "function"}),
		nodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_errors_total",
			Help:      "Node invocations that failed or could not be routed",
		}, []string{"node"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Duration of node function executions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"function"}),
	}

	for _, c := range []prometheus.Collector{
		m.runsStarted, m.runsFinished, m.runsActive, m.runSteps,
		m.nodeVisits, m.nodeErrors, m.nodeDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks feeding the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart: func(ctx context.Context, e *domain.RunEvent) {
			m.runsStarted.Inc()
			m.runsActive.Inc()
		},
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			m.nodeVisits.WithLabelValues(e.NodeID, functionLabel(e)).Inc()
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			m.nodeDuration.WithLabelValues(functionLabel(e)).Observe(e.Duration.Seconds())
			if e.IsError {
				m.nodeErrors.WithLabelValues(e.NodeID).Inc()
			}
		},
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) {
			m.runsActive.Dec()
			m.runsFinished.WithLabelValues(string(e.Status)).Inc()
			m.runSteps.Observe(float64(e.Steps))
		},
	}
}

// Inline functions have no registry name.
func functionLabel(e *domain.NodeEvent) string {
	if e.Function == "" {
		return "inline"
	}
	return e.Function
}

// RunsActive exposes the in-flight gauge.
func (m *Metrics) RunsActive() prometheus.Gauge {
	return m.runsActive
}
