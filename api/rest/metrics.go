package rest

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the gateway-side counters. The engine processes stay
// metric-free; their observable surface is the introspection command.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests prometheus.Counter
	OrdersPlaced prometheus.Counter
	Tickers      prometheus.Counter
	Executions   prometheus.Counter
	WSClients    prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "disorderbook_http_requests_total",
			Help: "HTTP requests handled by the gateway.",
		}),
		OrdersPlaced: factory.NewCounter(prometheus.CounterOpts{
			Name: "disorderbook_orders_placed_total",
			Help: "Orders relayed to an engine.",
		}),
		Tickers: factory.NewCounter(prometheus.CounterOpts{
			Name: "disorderbook_ticker_events_total",
			Help: "Ticker events observed on the feed.",
		}),
		Executions: factory.NewCounter(prometheus.CounterOpts{
			Name: "disorderbook_execution_events_total",
			Help: "Execution events observed on the feed.",
		}),
		WSClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "disorderbook_ws_clients",
			Help: "Connected websocket clients.",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
