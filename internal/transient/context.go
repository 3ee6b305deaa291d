package transient

import "context"

type ctxKey struct{}

// ToContext injects the exchange-scoped Store into the context. HTTP
// middleware does this once per request.
func ToContext(ctx context.Context, s Store) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext extracts the exchange-scoped Store, or nil when the current
// call is not running inside an HTTP exchange.
func FromContext(ctx context.Context) Store {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(ctxKey{}).(Store)
	return s
}
