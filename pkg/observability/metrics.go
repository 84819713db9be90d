package observability

import (
	"context"
	"errors"
	"net/http"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline collectors.
type Metrics struct {
	Steps       *prometheus.CounterVec
	Failures    *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	Emergencies prometheus.Counter
	Suspensions *prometheus.CounterVec
	Resumes     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// Collectors already registered (e.g. by a second pipeline in the same process) are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inquiry_steps_total",
			Help: "Total number of executed pipeline steps",
		}, []string{"step"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inquiry_step_failures_total",
			Help: "Total number of failed step executions",
		}, []string{"step"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inquiry_step_duration_seconds",
			Help:    "Duration of step executions",
			Buckets: prometheus.DefBuckets,
		}, []string{"step"}),
		Emergencies: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inquiry_emergency_routes_total",
			Help: "Total number of forced routes taken to break planning loops",
		}),
		Suspensions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inquiry_suspensions_total",
			Help: "Total number of suspensions awaiting a human decision",
		}, []string{"step"}),
		Resumes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inquiry_resumes_total",
			Help: "Total number of human decisions merged into suspended sessions",
		}, []string{"step"}),
	}

	var err error
	if m.Steps, err = register(reg, m.Steps); err != nil {
		return nil, err
	}
	if m.Failures, err = register(reg, m.Failures); err != nil {
		return nil, err
	}
	if m.Duration, err = register(reg, m.Duration); err != nil {
		return nil, err
	}
	if m.Emergencies, err = register(reg, m.Emergencies); err != nil {
		return nil, err
	}
	if m.Suspensions, err = register(reg, m.Suspensions); err != nil {
		return nil, err
	}
	if m.Resumes, err = register(reg, m.Resumes); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Hooks returns lifecycle hooks that record into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepLeave: func(ctx context.Context, e *domain.StepEvent) {
			step := e.Step.String()
			m.Steps.WithLabelValues(step).Inc()
			m.Duration.WithLabelValues(step).Observe(e.Duration.Seconds())
			if e.Err != nil {
				m.Failures.WithLabelValues(step).Inc()
			}
		},
		OnRoute: func(ctx context.Context, e *domain.RouteEvent) {
			if e.Emergency {
				m.Emergencies.Inc()
			}
		},
		OnSuspend: func(ctx context.Context, e *domain.StepEvent) {
			m.Suspensions.WithLabelValues(e.Step.String()).Inc()
		},
		OnResume: func(ctx context.Context, e *domain.StepEvent) {
			m.Resumes.WithLabelValues(e.Step.String()).Inc()
		},
	}
}

// Handler exposes the gatherer in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
