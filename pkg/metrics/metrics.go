// Package metrics provides Prometheus instrumentation for pipeline operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/YuminosukeSato/tabprep/pkg/errors"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Recorder records fit/transform/predict calls. A nil *Recorder records
// nothing, so callers need not check whether metrics are enabled.
type Recorder struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	rows       *prometheus.CounterVec
}

// NewRecorder registers the pipeline metrics with cfg.Registry. It returns
// nil when cfg.Enabled is false. Registering twice on the same registry
// reuses the collectors already registered.
func NewRecorder(cfg Config) (*Recorder, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = "tabprep"
	}

	operations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "operations_total",
			Help:        "Total number of pipeline operations by status",
			ConstLabels: cfg.Labels,
		},
		[]string{"pipeline", "operation", "status"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   ns,
			Name:        "operation_duration_seconds",
			Help:        "Time spent in pipeline operations",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: cfg.Labels,
		},
		[]string{"pipeline", "operation"},
	)
	rows := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   ns,
			Name:        "rows_processed_total",
			Help:        "Total number of table rows processed successfully",
			ConstLabels: cfg.Labels,
		},
		[]string{"pipeline", "operation"},
	)

	r := &Recorder{}
	var err error
	if r.operations, err = register(reg, operations); err != nil {
		return nil, err
	}
	if r.duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	if r.rows, err = register(reg, rows); err != nil {
		return nil, err
	}
	return r, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, errors.Wrap(err, "register metric")
	}
	return c, nil
}

// Observe records one operation that started at start. rows is counted only
// when err is nil.
func (r *Recorder) Observe(pipeline, operation string, rows int, start time.Time, err error) {
	if r == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	r.operations.WithLabelValues(pipeline, operation, status).Inc()
	r.duration.WithLabelValues(pipeline, operation).Observe(time.Since(start).Seconds())
	if err == nil && rows > 0 {
		r.rows.WithLabelValues(pipeline, operation).Add(float64(rows))
	}
}
