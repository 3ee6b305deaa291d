package dance

import (
	"context"
	"net/url"

	"github.com/dropDatabas3/dancefloor/internal/token"
)

// Session is one protocol-specific authorization exchange with a provider.
//
// A Session lives exactly one HTTP exchange: the controller builds it at the
// start of a login or callback step and closes it at the end, so no signer
// state can leak between unrelated dances.
//
// BeginLogin returns the provider redirect target plus a per-dance
// correlator the caller must stash in transient storage before redirecting.
// For OAuth 2 the correlator is the CSRF state; for OAuth 1 it carries the
// request-token secret. An empty correlator means the protocol needs none.
//
// CompleteCallback parses the provider's callback URL and exchanges the
// grant for a token, validating it against the stashed correlator.
type Session interface {
	BeginLogin(ctx context.Context, callbackURL string) (redirect, correlator string, err error)
	CompleteCallback(ctx context.Context, callback *url.URL, correlator string) (token.Record, error)
	Close()
}

// SessionFactory builds a fresh Session per exchange.
type SessionFactory func() Session

// resolveURL resolves ref against base when ref is relative. Invalid inputs
// fall through unchanged; the provider will reject them loudly enough.
func resolveURL(base, ref string) string {
	if base == "" {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
