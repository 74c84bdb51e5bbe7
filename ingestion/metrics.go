package ingestion

import (
	"errors"

	"github.com/poiesic/datajobs/core"
	"github.com/prometheus/client_golang/prometheus"
)

// metrics mirrors Counters into Prometheus. A nil *metrics records nothing.
type metrics struct {
	batches     *prometheus.CounterVec
	objects     *prometheus.CounterVec
	failures    *prometheus.CounterVec
	postProcess prometheus.Counter
	abandoned   prometheus.Counter
	inflight    prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer, name string) (*metrics, error) {
	if reg == nil {
		return nil, nil
	}
	if name != "" {
		reg = prometheus.WrapRegistererWith(prometheus.Labels{"ingester": name}, reg)
	}

	m := &metrics{
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datajobs",
			Subsystem: "ingestion",
			Name:      "batches_total",
			Help:      "Batches processed by outcome.",
		}, []string{"outcome"}),
		objects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datajobs",
			Subsystem: "ingestion",
			Name:      "objects_total",
			Help:      "Objects processed by outcome.",
		}, []string{"outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datajobs",
			Subsystem: "ingestion",
			Name:      "failures_total",
			Help:      "Classified pipeline failures by category.",
		}, []string{"category"}),
		postProcess: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "datajobs",
			Subsystem: "ingestion",
			Name:      "post_process_failures_total",
			Help:      "Post-processor failures.",
		}),
		abandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "datajobs",
			Subsystem: "ingestion",
			Name:      "abandoned_objects_total",
			Help:      "Objects dropped by an immediate shutdown.",
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "datajobs",
			Subsystem: "ingestion",
			Name:      "inflight_objects",
			Help:      "Objects enqueued but not yet accounted for.",
		}),
	}

	var err error
	if m.batches, err = register(reg, m.batches); err != nil {
		return nil, err
	}
	if m.objects, err = register(reg, m.objects); err != nil {
		return nil, err
	}
	if m.failures, err = register(reg, m.failures); err != nil {
		return nil, err
	}
	if m.postProcess, err = register(reg, m.postProcess); err != nil {
		return nil, err
	}
	if m.abandoned, err = register(reg, m.abandoned); err != nil {
		return nil, err
	}
	if m.inflight, err = register(reg, m.inflight); err != nil {
		return nil, err
	}
	return m, nil
}

// register reuses an identical collector registered by an earlier ingester.
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

func (m *metrics) success(objects int) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues("success").Inc()
	m.objects.WithLabelValues("success").Add(float64(objects))
	m.inflight.Sub(float64(objects))
}

func (m *metrics) failure(objects int, cat core.Category) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues("failure").Inc()
	m.objects.WithLabelValues("failure").Add(float64(objects))
	m.failures.WithLabelValues(cat.String()).Inc()
	m.inflight.Sub(float64(objects))
}

func (m *metrics) postProcessFailure(cat core.Category) {
	if m == nil {
		return
	}
	m.postProcess.Inc()
	m.failures.WithLabelValues(cat.String()).Inc()
}

func (m *metrics) abandon(objects int) {
	if m == nil {
		return
	}
	m.abandoned.Add(float64(objects))
	m.inflight.Sub(float64(objects))
}

func (m *metrics) enqueued(objects int) {
	if m == nil {
		return
	}
	m.inflight.Add(float64(objects))
}
