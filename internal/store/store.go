// Package store persists provider tokens per (provider, identity) pair.
//
// Callers hold the TokenStore interface only; the concrete backend (null,
// single-slot memory, session-delegating, relational) is an assembly choice.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dropDatabas3/dancefloor/internal/identity"
	"github.com/dropDatabas3/dancefloor/internal/token"
)

// Lookup carries the optional identity overrides for one call. The zero
// value means "use the store's configured defaults". Overrides always win
// over defaults; the id wins over the object.
type Lookup struct {
	// UserID is an explicit identity-id override.
	UserID string
	// User is an explicit identity object override, in any shape accepted
	// by identity.Resolver.
	User identity.Ref
}

// TokenStore is the capability interface for token persistence.
//
// Get reports an absent token as ErrNotFound. Set atomically supersedes any
// prior record for the same (provider, identity); it never merges.
type TokenStore interface {
	Get(ctx context.Context, lk Lookup) (token.Record, error)
	Set(ctx context.Context, tok token.Record, lk Lookup) error
	Delete(ctx context.Context, lk Lookup) error
}

// ErrNotFound indicates no live token exists for the requested identity.
var ErrNotFound = errors.New("store: token not found")

// ErrNoSession indicates the session-delegating store was called outside an
// HTTP exchange (no transient collaborator in the context).
var ErrNoSession = errors.New("store: no transient session in context")

// IntegrityError reports more than one live record for a single
// (provider, identity) pair. This is a data fault for an operator to
// resolve; stores never pick a row silently.
type IntegrityError struct {
	Provider string
	Key      string
	Count    int
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("store: %d live tokens for provider %q identity %q, expected at most one",
		e.Count, e.Provider, e.Key)
}

// IsIntegrity reports whether err is an IntegrityError.
func IsIntegrity(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}
