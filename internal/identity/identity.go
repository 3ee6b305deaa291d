// Package identity normalizes "current identity" references before any token
// store operation touches them.
//
// A reference can be a concrete identity object, a func() any producing one
// lazily (request-scoped current-user helpers), or a proxy implementing
// Unwrapper. Resolution happens exactly once per store call; store code never
// branches on the reference shape itself.
package identity

import "fmt"

// Ref is a reference to the current identity in any of the accepted shapes.
type Ref = any

// Unwrapper is implemented by lazy proxies wrapping the real identity object.
type Unwrapper interface {
	Unwrap() any
}

// IDer is implemented by identity objects that expose their scalar id.
type IDer interface {
	IdentityID() string
}

// Resolver normalizes identity references.
//
// The zero value is usable: no anonymous marker is configured and every
// non-nil reference resolves.
type Resolver struct {
	// IsAnonymous reports whether a normalized value is the anonymous-user
	// sentinel of the host application. Such values are treated as absent.
	IsAnonymous func(v any) bool
}

// User returns the first reference that normalizes to a concrete,
// non-anonymous identity. Precedence is the argument order (callers pass
// explicit override first, then store default, then controller default).
// Returns nil when none resolve.
func (r Resolver) User(refs ...Ref) any {
	for _, ref := range refs {
		if v := r.normalize(ref); v != nil {
			return v
		}
	}
	return nil
}

// UserID returns the first non-empty id, same precedence as User. Ids and
// objects resolve independently: a caller may hold an id without an object
// or vice versa.
func (r Resolver) UserID(ids ...string) string {
	for _, id := range ids {
		if id != "" {
			return id
		}
	}
	return ""
}

// Key derives the scalar key used for cache entries and store filters.
// The explicit id wins; otherwise the object's IdentityID; otherwise the
// object's string form. Resolving the same logical identity through any of
// these paths yields the same key.
func (r Resolver) Key(id string, user any) string {
	if id != "" {
		return id
	}
	switch u := user.(type) {
	case nil:
		return ""
	case IDer:
		return u.IdentityID()
	case fmt.Stringer:
		return u.String()
	default:
		return fmt.Sprint(u)
	}
}

// normalize applies the per-reference rules: unwrap proxies, invoke lazy
// producers, drop anonymous sentinels.
func (r Resolver) normalize(ref Ref) any {
	v := ref
	if u, ok := v.(Unwrapper); ok {
		v = u.Unwrap()
	}
	if fn, ok := v.(func() any); ok {
		v = fn()
	}
	if v == nil {
		return nil
	}
	if r.IsAnonymous != nil && r.IsAnonymous(v) {
		return nil
	}
	return v
}
