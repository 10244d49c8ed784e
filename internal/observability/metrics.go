package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects scan pipeline counters on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	OffersFetched      prometheus.Counter
	ProductsNormalized prometheus.Counter
	ProductsEvaluated  prometheus.Counter
	ProductsDiscarded  prometheus.Counter
	ProfitableProducts prometheus.Counter
	ListingsCreated    prometheus.Counter
}

// NewMetrics initialises the registry and pipeline counters.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		OffersFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_offers_fetched_total",
			Help: "Raw wholesale offers fetched.",
		}),
		ProductsNormalized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_products_normalized_total",
			Help: "Offers normalized into canonical products.",
		}),
		ProductsEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_products_evaluated_total",
			Help: "Products with a completed profit evaluation.",
		}),
		ProductsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_products_discarded_total",
			Help: "Products silently dropped during normalization or evaluation.",
		}),
		ProfitableProducts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_profitable_products_total",
			Help: "Evaluated products above the minimum margin.",
		}),
		ListingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_listings_created_total",
			Help: "Create-listing requests submitted.",
		}),
	}

	registry.MustRegister(
		m.OffersFetched,
		m.ProductsNormalized,
		m.ProductsEvaluated,
		m.ProductsDiscarded,
		m.ProfitableProducts,
		m.ListingsCreated,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}
