// Package metrics provides Prometheus metrics for folioserve.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the Prometheus registry for all folioserve metrics.
var Registry = prometheus.NewRegistry()

var (
	// HTTPRequests counts handled HTTP requests by path and status code.
	HTTPRequests = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "folioserve_http_requests_total",
		Help: "Handled HTTP requests",
	}, []string{"path", "code"})

	// ReconcileRepairs counts object configs repaired or created by the
	// reconciliation pass.
	ReconcileRepairs = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "folioserve_reconcile_repairs_total",
		Help: "Object configs repaired or created during reconciliation",
	})

	// Logins counts login attempts by outcome (success / failure).
	Logins = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "folioserve_logins_total",
		Help: "Login attempts by outcome",
	}, []string{"outcome"})
)

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// Handler returns an HTTP handler exposing the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
