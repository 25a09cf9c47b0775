package wallet

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusBlocksProcessed prometheus.Counter
	prometheusSyncedHeight    prometheus.Gauge
	prometheusTxCreated       prometheus.Counter
	prometheusReloads         prometheus.Counter
)

var prometheusMetricsOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsOnce.Do(func() {
		prometheusBlocksProcessed = promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "shield",
				Subsystem: "wallet",
				Name:      "blocks_processed",
				Help:      "Number of blocks ingested by the wallet",
			},
		)
		prometheusSyncedHeight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "shield",
				Subsystem: "wallet",
				Name:      "synced_height",
				Help:      "Height of the last block processed by the wallet",
			},
		)
		prometheusTxCreated = promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "shield",
				Subsystem: "wallet",
				Name:      "transactions_created",
				Help:      "Number of transactions built by the wallet",
			},
		)
		prometheusReloads = promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "shield",
				Subsystem: "wallet",
				Name:      "checkpoint_reloads",
				Help:      "Number of checkpoint reloads",
			},
		)
	})
}
