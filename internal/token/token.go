// Package token defines the value object persisted after a successful OAuth dance.
package token

import (
	"encoding/json"
	"time"

	"golang.org/x/oauth2"
)

// Record is the provider-issued credential as an opaque key-value mapping
// (access token, optional refresh token, scopes, expiry). Stores own their
// records exclusively; use Clone before handing one across store boundaries.
type Record map[string]any

// Well-known keys. Providers may attach arbitrary extras next to these.
const (
	KeyAccessToken  = "access_token"
	KeyTokenType    = "token_type"
	KeyRefreshToken = "refresh_token"
	KeyExpiresAt    = "expires_at"
	KeyScope        = "scope"

	// OAuth 1 credentials.
	KeyOAuthToken       = "oauth_token"
	KeyOAuthTokenSecret = "oauth_token_secret"
)

// AccessToken returns the access token, or "" when missing.
func (r Record) AccessToken() string { return r.str(KeyAccessToken) }

// RefreshToken returns the refresh token, or "" when missing.
func (r Record) RefreshToken() string { return r.str(KeyRefreshToken) }

// TokenType returns the token type ("Bearer" for most OAuth 2 providers).
func (r Record) TokenType() string { return r.str(KeyTokenType) }

// ExpiresAt returns the token expiry, or the zero time when the provider
// issued a non-expiring token.
func (r Record) ExpiresAt() time.Time {
	switch v := r[KeyExpiresAt].(type) {
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}
		}
		return t
	case time.Time:
		return v
	case float64:
		return time.Unix(int64(v), 0)
	case int64:
		return time.Unix(v, 0)
	}
	return time.Time{}
}

// Clone returns a shallow copy. Values are scalars so a shallow copy is
// enough to break sharing between stores.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// MarshalJSON keeps Record round-trippable through caches and JSONB columns.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any(r))
}

// FromOAuth2 converts an x/oauth2 token into a Record.
func FromOAuth2(t *oauth2.Token) Record {
	if t == nil {
		return nil
	}
	r := Record{
		KeyAccessToken: t.AccessToken,
		KeyTokenType:   t.TokenType,
	}
	if t.RefreshToken != "" {
		r[KeyRefreshToken] = t.RefreshToken
	}
	if !t.Expiry.IsZero() {
		r[KeyExpiresAt] = t.Expiry.UTC().Format(time.RFC3339)
	}
	return r
}

// ToOAuth2 converts the Record back into an x/oauth2 token, e.g. to seed a
// refreshing TokenSource.
func (r Record) ToOAuth2() *oauth2.Token {
	if r == nil {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  r.AccessToken(),
		TokenType:    r.TokenType(),
		RefreshToken: r.RefreshToken(),
		Expiry:       r.ExpiresAt(),
	}
}

func (r Record) str(k string) string {
	if s, ok := r[k].(string); ok {
		return s
	}
	return ""
}
