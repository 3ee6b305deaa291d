// Package dance orchestrates the client side of the OAuth authorization
// dance: issuing the provider redirect, validating the callback, exchanging
// the grant for a token, and persisting it through a TokenStore.
package dance

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/dropDatabas3/dancefloor/internal/metrics"
	"github.com/dropDatabas3/dancefloor/internal/observability/logger"
	"github.com/dropDatabas3/dancefloor/internal/store"
	"github.com/dropDatabas3/dancefloor/internal/transient"
)

// State is the position of one dance instance in its lifecycle. The four
// rightmost states are terminal; a new dance starts a fresh instance.
type State int

const (
	StateIdle State = iota
	StateRedirectIssued
	StateCallbackPending
	StateTokenAccepted
	StateTokenRejected
	StateProviderError
	StateCSRFFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRedirectIssued:
		return "redirect_issued"
	case StateCallbackPending:
		return "callback_pending"
	case StateTokenAccepted:
		return "accepted"
	case StateTokenRejected:
		return "rejected"
	case StateProviderError:
		return "provider_error"
	case StateCSRFFailed:
		return "csrf_failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of one dance step: the terminal (or last reached)
// state and where to send the user next.
type Result struct {
	State    State
	Redirect string
}

// Controller drives one login→callback round trip per provider. It is
// stateless across exchanges; everything per-dance lives in the transient
// collaborator or in the Result returned to the caller.
type Controller struct {
	// Provider names the OAuth provider. Keys tokens, events and metrics.
	Provider string

	// NewSession builds a fresh AuthorizationSession per exchange; the
	// controller closes it before returning.
	NewSession SessionFactory

	// Tokens persists accepted records. Nil disables persistence.
	Tokens store.TokenStore

	// Bus receives authorized/error events. Nil means no subscribers.
	Bus *Bus

	// CallbackURL is the absolute URL of the authorized endpoint.
	CallbackURL string

	// RedirectURL is the static post-login destination. Consulted after an
	// explicit ?next= parameter.
	RedirectURL string

	// RedirectTo resolves a named post-login route; consulted after
	// RedirectURL. Nil means fall through to "/".
	RedirectTo func() string

	// Identity supplies the dance identity for persistence and events.
	// Nil means the store's configured defaults apply.
	Identity func(ctx context.Context) store.Lookup

	log *zap.Logger
}

func (c *Controller) logger() *zap.Logger {
	if c.log == nil {
		c.log = logger.Named("dance").With(logger.Provider(c.Provider))
	}
	return c.log
}

func (c *Controller) stateKey() string {
	return fmt.Sprintf("%s_oauth_state", c.Provider)
}

// next resolves the post-login destination: explicit ?next= parameter,
// static RedirectURL, named RedirectTo, root path.
func (c *Controller) next(q url.Values) string {
	if n := q.Get("next"); n != "" {
		return n
	}
	if c.RedirectURL != "" {
		return c.RedirectURL
	}
	if c.RedirectTo != nil {
		if n := c.RedirectTo(); n != "" {
			return n
		}
	}
	return "/"
}

func (c *Controller) lookup(ctx context.Context) store.Lookup {
	if c.Identity == nil {
		return store.Lookup{}
	}
	return c.Identity(ctx)
}

// callbackURL builds the callback target for this dance: scheme forced to
// https behind a secure connection, ?next= round-tripped so the callback
// leg resolves the same destination.
func (c *Controller) callbackURL(req Request) (string, error) {
	u, err := url.Parse(c.CallbackURL)
	if err != nil {
		return "", fmt.Errorf("dance: bad callback url: %w", err)
	}
	if req.Secure {
		u.Scheme = "https"
	}
	if n := req.URL.Query().Get("next"); n != "" {
		q := u.Query()
		q.Set("next", n)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Login runs the login step: builds the provider redirect, stashes the
// per-dance correlator, and returns the redirect target.
func (c *Controller) Login(ctx context.Context, req Request) (Result, error) {
	sess := c.NewSession()
	defer sess.Close()

	callback, err := c.callbackURL(req)
	if err != nil {
		return Result{State: StateIdle}, err
	}

	redirect, correlator, err := sess.BeginLogin(ctx, callback)
	if err != nil {
		return Result{State: StateIdle}, err
	}

	if correlator != "" {
		ts := transient.FromContext(ctx)
		if ts == nil {
			return Result{State: StateIdle}, ErrNoTransientStore
		}
		ts.Set(c.stateKey(), correlator)
	}

	metrics.DancesStarted.WithLabelValues(c.Provider).Inc()
	c.logger().Info("login redirect issued", logger.Redirect(redirect))
	return Result{State: StateRedirectIssued, Redirect: redirect}, nil
}

// Callback runs the callback step. Provider denials and vetoes are normal
// operation: they return a nil error with the terminal state in the Result.
// A CSRF mismatch returns ErrStateMismatch alongside StateCSRFFailed and is
// the one failure treated as fatal to the exchange.
func (c *Controller) Callback(ctx context.Context, req Request) (Result, error) {
	q := req.URL.Query()
	next := c.next(q)

	// read and delete up front: the correlator is single-use no matter how
	// this callback ends, so no outcome leaves a replay window
	var correlator string
	if ts := transient.FromContext(ctx); ts != nil {
		correlator, _ = ts.Get(c.stateKey())
		ts.Delete(c.stateKey())
	}

	if code := q.Get("error"); code != "" {
		e := ErrorEvent{
			Provider:    c.Provider,
			Code:        code,
			Description: q.Get("error_description"),
			URI:         q.Get("error_uri"),
		}
		c.logger().Warn("provider returned authorization error",
			logger.OAuthError(code), zap.String("description", e.Description))
		if c.Bus != nil {
			c.Bus.publishError(ctx, e)
		}
		metrics.DancesFinished.WithLabelValues(c.Provider, StateProviderError.String()).Inc()
		return Result{State: StateProviderError, Redirect: next}, nil
	}

	cb := *req.URL
	if req.Secure {
		cb.Scheme = "https"
	}

	sess := c.NewSession()
	defer sess.Close()

	tok, err := sess.CompleteCallback(ctx, &cb, correlator)
	if err != nil {
		if errors.Is(err, ErrStateMismatch) {
			c.logger().Error("csrf state mismatch, dance aborted")
			metrics.DancesFinished.WithLabelValues(c.Provider, StateCSRFFailed.String()).Inc()
			return Result{State: StateCSRFFailed, Redirect: next}, err
		}
		return Result{State: StateCallbackPending, Redirect: next}, err
	}

	lk := c.lookup(ctx)
	if c.Bus != nil {
		ok := c.Bus.publishAuthorized(ctx, AuthorizedEvent{
			Provider: c.Provider,
			Token:    tok,
			UserID:   lk.UserID,
			User:     lk.User,
		})
		if !ok {
			c.logger().Info("token vetoed by subscriber", logger.DanceState(StateTokenRejected.String()))
			metrics.DancesFinished.WithLabelValues(c.Provider, StateTokenRejected.String()).Inc()
			return Result{State: StateTokenRejected, Redirect: next}, nil
		}
	}

	if c.Tokens != nil {
		if err := c.Tokens.Set(ctx, tok, lk); err != nil {
			return Result{State: StateCallbackPending, Redirect: next}, err
		}
	}

	c.logger().Info("token accepted", logger.UserID(lk.UserID), logger.DanceState(StateTokenAccepted.String()))
	metrics.DancesFinished.WithLabelValues(c.Provider, StateTokenAccepted.String()).Inc()
	return Result{State: StateTokenAccepted, Redirect: next}, nil
}
