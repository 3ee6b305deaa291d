package handlers

import (
	"context"
	"net/http"
	"time"

	httpapi "github.com/dropDatabas3/dancefloor/internal/http"
)

// NewHealthzHandler: liveness plano, siempre 200 si el proceso responde.
func NewHealthzHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// NewReadyzHandler: readiness con pings opcionales (nil = no se chequea).
func NewReadyzHandler(pings map[string]func(context.Context) error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{}
		healthy := true
		for name, ping := range pings {
			if ping == nil {
				continue
			}
			if err := ping(ctx); err != nil {
				checks[name] = err.Error()
				healthy = false
			} else {
				checks[name] = "ok"
			}
		}
		if !healthy {
			httpapi.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "checks": checks})
			return
		}
		httpapi.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "checks": checks})
	})
}
