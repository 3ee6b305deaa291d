// Package router aggregates every HTTP surface of the service onto one mux.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/dropDatabas3/dancefloor/internal/http"
	"github.com/dropDatabas3/dancefloor/internal/http/handlers"
)

// Deps carries everything the router mounts.
type Deps struct {
	Dance  *handlers.DanceHandler
	Readyz http.Handler

	// Registry for /metrics. Nil uses the default registerer/gatherer.
	Registry *prometheus.Registry
}

// New builds the service router: dance routes, health probes and metrics,
// wrapped in the request-id/recover/logging chain.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(httpapi.WithRequestID)
	r.Use(httpapi.WithRecover)
	r.Use(httpapi.WithLogging)

	if deps.Dance != nil {
		deps.Dance.Register(r)
	}

	r.Method(http.MethodGet, "/healthz", handlers.NewHealthzHandler())
	if deps.Readyz != nil {
		r.Method(http.MethodGet, "/readyz", deps.Readyz)
	}

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	} else {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	return r
}
