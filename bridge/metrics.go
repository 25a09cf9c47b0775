package bridge

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusOutstanding prometheus.Gauge
	prometheusCalls       *prometheus.CounterVec
	prometheusFailures    *prometheus.CounterVec
	prometheusTimeouts    prometheus.Counter
)

var prometheusMetricsOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsOnce.Do(func() {
		prometheusOutstanding = promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "shield",
				Subsystem: "bridge",
				Name:      "outstanding_calls",
				Help:      "Number of engine calls awaiting a reply",
			},
		)
		prometheusCalls = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "shield",
				Subsystem: "bridge",
				Name:      "calls",
				Help:      "Number of engine calls made, by operation",
			},
			[]string{"operation"},
		)
		prometheusFailures = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "shield",
				Subsystem: "bridge",
				Name:      "engine_failures",
				Help:      "Number of engine calls rejected by the engine, by operation",
			},
			[]string{"operation"},
		)
		prometheusTimeouts = promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "shield",
				Subsystem: "bridge",
				Name:      "timeouts",
				Help:      "Number of engine calls evicted after the call timeout",
			},
		)
	})
}
