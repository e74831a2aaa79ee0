// Package metrics exposes the adapter's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Requests counts transport requests by method and outcome.
	Requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coinbase_adapter",
		Name:      "requests_total",
		Help:      "Transport requests by method and outcome.",
	}, []string{"method", "outcome"})

	// InstantRetries counts immediate retries triggered by the fake
	// rate-limit marker, by operation.
	InstantRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coinbase_adapter",
		Name:      "instant_retries_total",
		Help:      "Immediate retries on the transient rate-limit marker.",
	}, []string{"operation"})

	// NormalizationRepairs counts repair passes that actually changed a
	// payload, by pass name.
	NormalizationRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coinbase_adapter",
		Name:      "normalization_repairs_total",
		Help:      "Response repairs applied, by pass.",
	}, []string{"pass"})
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
