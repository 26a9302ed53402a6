package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "book_commands_total", Help: "Commands processed by kind and status"},
		[]string{"kind", "status"},
	)
	CommandLatencyMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "book_command_latency_ms",
		Help:    "Time from record receipt to outbox commit",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
	})
	RestingOrders = prometheus.NewGauge(prometheus.GaugeOpts{Name: "book_resting_orders", Help: "Orders resting on both sides"})
	PriceLevels   = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "book_price_levels", Help: "Price levels by side"}, []string{"side"})
	BestPrice     = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "book_best_price_ticks", Help: "Best price in ticks by side; absent when the side is empty"}, []string{"side"})

	RedeliveriesSkipped = prometheus.NewCounter(prometheus.CounterOpts{Name: "book_redeliveries_skipped_total", Help: "Command records skipped because their event id was already processed"})
	OutboxPublished     = prometheus.NewCounter(prometheus.CounterOpts{Name: "outbox_published_total", Help: "Outbox events shipped to Kafka"})
	OutboxErrors        = prometheus.NewCounter(prometheus.CounterOpts{Name: "outbox_errors_total", Help: "Outbox events that failed to ship"})
	ChaosInjected       = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "chaos_injected_total", Help: "Injected faults by kind"}, []string{"kind"})
)

// Init registers every collector on a fresh registry
func Init(logger *zap.Logger) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	toRegister := []prometheus.Collector{
		CommandsTotal, CommandLatencyMs, RestingOrders, PriceLevels, BestPrice,
		RedeliveriesSkipped, OutboxPublished, OutboxErrors, ChaosInjected,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range toRegister {
		if err := reg.Register(c); err != nil {
			logger.Warn("failed to register collector", zap.Error(err))
		}
	}
	logger.Info("prometheus metrics initialized")
	return reg
}

// Handler serves the registry in the Prometheus exposition format
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
