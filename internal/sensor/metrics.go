package sensor

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Reading outcomes
const (
	resultStored    = "stored"
	resultDuplicate = "duplicate"
	resultStale     = "stale"
	resultInvalid   = "invalid"
	resultFailed    = "failed"
)

type metrics struct {
	readings *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	shared      *metrics
)

// newMetrics registers the agent's counters with the default registry once
func newMetrics() *metrics {
	metricsOnce.Do(func() {
		m := &metrics{
			readings: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "doorpi",
				Subsystem: "sensor",
				Name:      "readings_total",
				Help:      "Door readings received, by location and outcome",
			}, []string{"location", "result"}),
		}
		if err := prometheus.Register(m.readings); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
					m.readings = existing
				}
			}
		}
		shared = m
	})
	return shared
}

func (m *metrics) observe(location, result string) {
	m.readings.WithLabelValues(location, result).Inc()
}
