package services

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	rowsTotal   *prometheus.CounterVec
	runsTotal   *prometheus.CounterVec
	runDuration prometheus.Histogram
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		rowsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "migration",
			Name:      "rows_total",
			Help:      "Rows processed by migration runs.",
		}, []string{"entity", "result"}),
		runsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "migration",
			Name:      "runs_total",
			Help:      "Migration runs by terminal status.",
		}, []string{"status"}),
		runDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "migration",
			Name:      "run_duration_seconds",
			Help:      "Wall time of execute-mode migration runs.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}
