// Package metrics exports exchange and trade counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus implements the exchange client and executor observer ports on
// its own registry.
type Prometheus struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	errors   *prometheus.CounterVec
	auth     *prometheus.CounterVec
	trades   *prometheus.CounterVec
}

func New() *Prometheus {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	p := &Prometheus{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scalper_exchange_requests_total",
			Help: "Exchange HTTP attempts by route, method and status (0 = transport failure).",
		}, []string{"route", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scalper_exchange_request_duration_seconds",
			Help:    "Exchange HTTP attempt latency.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"route", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scalper_exchange_errors_total",
			Help: "Failed exchange attempts by route.",
		}, []string{"route"}),
		auth: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scalper_auth_total",
			Help: "Authentication round trips by outcome.",
		}, []string{"outcome"}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scalper_trades_total",
			Help: "Orchestrated opens and closes by outcome.",
		}, []string{"action", "outcome"}),
	}
	reg.MustRegister(p.requests, p.duration, p.errors, p.auth, p.trades)
	return p
}

func (p *Prometheus) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	p.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	p.duration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (p *Prometheus) ObserveError(route string) {
	p.errors.WithLabelValues(route).Inc()
}

func (p *Prometheus) ObserveAuth(outcome string) {
	p.auth.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) ObserveTrade(action, outcome string) {
	p.trades.WithLabelValues(action, outcome).Inc()
}

func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}
