// Package metrics содержит Prometheus-метрики сервиса.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "playhouse"

// Metrics объединяет коллекторы сервиса. Нулевой указатель допустим: все методы становятся no-op.
type Metrics struct {
	registry *prometheus.Registry

	CheckIns       *prometheus.CounterVec
	Checkouts      *prometheus.CounterVec
	BilledAmount   *prometheus.CounterVec
	OverageMinutes prometheus.Histogram
	PrintJobs      *prometheus.CounterVec
	PrintQueue     prometheus.Gauge
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
}

// New создаёт метрики на отдельном реестре вместе со стандартными метриками Go и процесса.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		CheckIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkins_total",
			Help:      "Number of opened sessions.",
		}, []string{"tariff"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Number of checkout attempts by outcome.",
		}, []string{"tariff", "result"}),
		BilledAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "billed_amount_total",
			Help:      "Total amount charged at checkout, in currency units.",
		}, []string{"tariff"}),
		OverageMinutes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "overage_minutes",
			Help:      "Minutes spent beyond the paid time at checkout.",
			Buckets:   []float64{1, 5, 10, 15, 30, 60, 120, 240},
		}),
		PrintJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "print_jobs_total",
			Help:      "Receipt print attempts by outcome.",
		}, []string{"result"}),
		PrintQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "print_queue_length",
			Help:      "Receipts waiting to be printed.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled by the server.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency distribution in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}, []string{"method", "route"}),
	}

	mustRegister(reg,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.CheckIns, m.Checkouts, m.BilledAmount, m.OverageMinutes,
		m.PrintJobs, m.PrintQueue, m.HTTPRequests, m.HTTPDuration,
	)

	return m
}

func mustRegister(reg prometheus.Registerer, cs ...prometheus.Collector) {
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			panic(fmt.Errorf("register collector: %w", err))
		}
	}
}

// Handler возвращает HTTP-обработчик для /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// CheckIn учитывает открытие сессии.
func (m *Metrics) CheckIn(tariff string) {
	if m == nil {
		return
	}
	m.CheckIns.WithLabelValues(tariff).Inc()
}

// Checkout учитывает успешное закрытие сессии.
func (m *Metrics) Checkout(tariff string, amount int64, overageMinutes int) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(tariff, "ok").Inc()
	m.BilledAmount.WithLabelValues(tariff).Add(float64(amount))
	if overageMinutes > 0 {
		m.OverageMinutes.Observe(float64(overageMinutes))
	}
}

// CheckoutFailed учитывает неудачную попытку закрытия.
func (m *Metrics) CheckoutFailed(tariff, reason string) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(tariff, reason).Inc()
}

// PrintJob учитывает результат печати чека.
func (m *Metrics) PrintJob(result string) {
	if m == nil {
		return
	}
	m.PrintJobs.WithLabelValues(result).Inc()
}

// QueueLength выставляет текущую длину очереди печати.
func (m *Metrics) QueueLength(n int) {
	if m == nil {
		return
	}
	m.PrintQueue.Set(float64(n))
}

// HTTPRequest учитывает обработанный HTTP-запрос.
func (m *Metrics) HTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(float64(d) / float64(time.Millisecond))
}
