package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Dance-related Prometheus metrics. Standalone package to avoid import
// cycles between the dance controller and the HTTP packages.

var (
	DancesStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth_dances_started_total",
		Help: "Dances iniciados (redirect al provider emitido)",
	}, []string{"provider"})

	DancesFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth_dances_finished_total",
		Help: "Dances terminados por estado final (accepted, rejected, provider_error, csrf_failed)",
	}, []string{"provider", "outcome"})

	TokenCacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth_token_cache_hits_total",
		Help: "Hits del read-cache de tokens",
	}, []string{"provider"})

	TokenCacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth_token_cache_misses_total",
		Help: "Misses del read-cache de tokens",
	}, []string{"provider"})
)

// Register registers the dance metrics on the given registry (or default if nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		DancesStarted, DancesFinished, TokenCacheHits, TokenCacheMisses,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
