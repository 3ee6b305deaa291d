package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dropDatabas3/dancefloor/internal/token"
	"github.com/dropDatabas3/dancefloor/internal/transient"
)

// DefaultSessionKey is the key template interpolated with the provider name.
const DefaultSessionKey = "%s_oauth_token"

// Session delegates persistence to the exchange-scoped transient collaborator
// (typically a signed cookie). No caching, no multi-identity support beyond
// whatever the collaborator itself provides; Lookup overrides are ignored.
type Session struct {
	// Provider is the owning provider's name, interpolated into KeyTemplate.
	Provider string
	// KeyTemplate defaults to DefaultSessionKey.
	KeyTemplate string
}

// NewSession creates a session-delegating store for the given provider.
func NewSession(provider string) *Session {
	return &Session{Provider: provider}
}

func (s *Session) key() string {
	tmpl := s.KeyTemplate
	if tmpl == "" {
		tmpl = DefaultSessionKey
	}
	return fmt.Sprintf(tmpl, s.Provider)
}

func (s *Session) Get(ctx context.Context, lk Lookup) (token.Record, error) {
	sess := transient.FromContext(ctx)
	if sess == nil {
		return nil, ErrNoSession
	}
	raw, ok := sess.Get(s.key())
	if !ok {
		return nil, ErrNotFound
	}
	var tok token.Record
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return nil, fmt.Errorf("store: decoding session token: %w", err)
	}
	return tok, nil
}

func (s *Session) Set(ctx context.Context, tok token.Record, lk Lookup) error {
	sess := transient.FromContext(ctx)
	if sess == nil {
		return ErrNoSession
	}
	raw, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("store: encoding session token: %w", err)
	}
	sess.Set(s.key(), string(raw))
	return nil
}

func (s *Session) Delete(ctx context.Context, lk Lookup) error {
	sess := transient.FromContext(ctx)
	if sess == nil {
		return ErrNoSession
	}
	sess.Delete(s.key())
	return nil
}
