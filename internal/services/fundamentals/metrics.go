package fundamentals

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	fetchLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "factorlab",
		Subsystem: "fundamentals",
		Name:      "fetch_latency_seconds",
		Help:      "Latency of fundamentals lookups that reached the remote service",
		Buckets:   prometheus.DefBuckets,
	})

	lookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "factorlab",
		Subsystem: "fundamentals",
		Name:      "lookups_total",
		Help:      "Fundamentals lookups by outcome (hit, miss, error)",
	}, []string{"outcome"})
)

func register() {
	once.Do(func() {
		prometheus.MustRegister(fetchLatency, lookups)
	})
}
