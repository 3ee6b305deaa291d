// Package handlers exposes the OAuth dance over HTTP: one login route and
// one callback route per configured provider.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dropDatabas3/dancefloor/internal/dance"
	httpapi "github.com/dropDatabas3/dancefloor/internal/http"
	"github.com/dropDatabas3/dancefloor/internal/observability/logger"
	"github.com/dropDatabas3/dancefloor/internal/store"
	"github.com/dropDatabas3/dancefloor/internal/transient"
)

// DanceHandler serves /oauth/{provider} and /oauth/{provider}/authorized for
// every registered controller. Each request gets a cookie-backed transient
// store injected into its context; the controllers read and write per-dance
// state through it.
type DanceHandler struct {
	controllers map[string]*dance.Controller

	trustProxy   bool
	cookieSecret []byte
	cookieOpts   transient.CookieOptions
}

type DanceDeps struct {
	Controllers map[string]*dance.Controller
	TrustProxy  bool

	CookieSecret []byte
	CookieOpts   transient.CookieOptions
}

func NewDanceHandler(deps DanceDeps) *DanceHandler {
	return &DanceHandler{
		controllers:  deps.Controllers,
		trustProxy:   deps.TrustProxy,
		cookieSecret: deps.CookieSecret,
		cookieOpts:   deps.CookieOpts,
	}
}

func (h *DanceHandler) Register(r chi.Router) {
	r.Get("/oauth/{provider}", h.login)
	r.Get("/oauth/{provider}/authorized", h.authorized)
}

func (h *DanceHandler) controller(w http.ResponseWriter, r *http.Request) (*dance.Controller, bool) {
	name := chi.URLParam(r, "provider")
	c, ok := h.controllers[name]
	if !ok {
		httpapi.WriteError(w, http.StatusNotFound, "unknown_provider", "no such provider: "+name)
		return nil, false
	}
	return c, true
}

func (h *DanceHandler) login(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}

	ts := transient.NewCookie(w, r, h.cookieSecret, h.cookieOpts)
	ctx := transient.ToContext(r.Context(), ts)

	res, err := c.Login(ctx, dance.FromHTTP(r, h.trustProxy))
	if err != nil {
		h.writeDanceError(ctx, w, err)
		return
	}
	http.Redirect(w, r, res.Redirect, http.StatusFound)
}

func (h *DanceHandler) authorized(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}

	ts := transient.NewCookie(w, r, h.cookieSecret, h.cookieOpts)
	ctx := transient.ToContext(r.Context(), ts)

	res, err := c.Callback(ctx, dance.FromHTTP(r, h.trustProxy))
	if err != nil {
		h.writeDanceError(ctx, w, err)
		return
	}
	// denials and vetoes redirect like any finished dance; the state only
	// matters to subscribers and metrics
	http.Redirect(w, r, res.Redirect, http.StatusFound)
}

func (h *DanceHandler) writeDanceError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logger.From(ctx).Named("handlers.dance")
	switch {
	case errors.Is(err, dance.ErrStateMismatch):
		httpapi.WriteError(w, http.StatusForbidden, "state_mismatch", "oauth state validation failed")
	case isUnreachable(err):
		httpapi.WriteError(w, http.StatusBadGateway, "provider_unreachable", "could not reach the oauth provider")
	case isProtocol(err):
		log.Error("provider protocol error", zap.Error(err))
		httpapi.WriteError(w, http.StatusBadGateway, "provider_error", "the oauth provider returned an invalid response")
	case store.IsIntegrity(err):
		log.Error("token storage integrity violation", zap.Error(err))
		httpapi.WriteError(w, http.StatusInternalServerError, "storage_error", "token storage is inconsistent")
	default:
		log.Error("dance failed", zap.Error(err))
		httpapi.WriteError(w, http.StatusInternalServerError, "internal_error", "authorization flow failed")
	}
}

func isUnreachable(err error) bool {
	var e *dance.ProviderUnreachableError
	return errors.As(err, &e)
}

func isProtocol(err error) bool {
	var e *dance.ProtocolError
	return errors.As(err, &e)
}
