package dance

import (
	"context"
	"sync"

	"github.com/dropDatabas3/dancefloor/internal/identity"
	"github.com/dropDatabas3/dancefloor/internal/token"
)

// AuthorizedEvent is published after a successful token exchange, before
// persistence. Subscribers decide whether the token is kept.
type AuthorizedEvent struct {
	Provider string
	Token    token.Record
	UserID   string
	User     identity.Ref
}

// ErrorEvent is published when the provider returns explicit error
// parameters on the callback.
type ErrorEvent struct {
	Provider    string
	Code        string
	Description string
	URI         string
}

// AuthorizedFunc votes on persistence. Returning false vetoes the token.
type AuthorizedFunc func(ctx context.Context, e AuthorizedEvent) bool

// ErrorFunc observes provider-side denials.
type ErrorFunc func(ctx context.Context, e ErrorEvent)

// Bus is a per-controller subscriber list: ordered, synchronous, no
// process-wide registry. The first negative vote short-circuits the
// remaining authorized subscribers.
type Bus struct {
	mu         sync.RWMutex
	authorized []AuthorizedFunc
	errs       []ErrorFunc
}

func NewBus() *Bus { return &Bus{} }

// OnAuthorized registers a persistence voter. Registration order is
// invocation order.
func (b *Bus) OnAuthorized(fn AuthorizedFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.authorized = append(b.authorized, fn)
}

// OnError registers an authorization-error observer.
func (b *Bus) OnError(fn ErrorFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errs = append(b.errs, fn)
}

// publishAuthorized reports false when any subscriber vetoed.
func (b *Bus) publishAuthorized(ctx context.Context, e AuthorizedEvent) bool {
	b.mu.RLock()
	subs := b.authorized
	b.mu.RUnlock()
	for _, fn := range subs {
		if !fn(ctx, e) {
			return false
		}
	}
	return true
}

func (b *Bus) publishError(ctx context.Context, e ErrorEvent) {
	b.mu.RLock()
	subs := b.errs
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(ctx, e)
	}
}
