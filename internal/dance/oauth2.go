package dance

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/dropDatabas3/dancefloor/internal/token"
)

// OAuth2Config declares an OAuth 2 provider. URLs may be absolute or
// relative to BaseURL.
type OAuth2Config struct {
	ClientID     string
	ClientSecret string
	Scopes       []string

	BaseURL          string
	AuthorizationURL string
	// AuthorizationParams are extra static query parameters for the
	// authorization URL, beyond the standard grant request.
	AuthorizationParams map[string]string
	TokenURL            string
	// TokenParams are extra static parameters for the token exchange.
	TokenParams map[string]string
}

// OAuth2Session drives one OAuth 2 authorization-code exchange. The actual
// wire work (request building, token parsing, refresh) is delegated to
// golang.org/x/oauth2.
type OAuth2Session struct {
	conf OAuth2Config

	// HTTPClient overrides the client used for provider calls. Nil means
	// the default x/oauth2 client.
	HTTPClient *http.Client

	// OnRefresh is invoked whenever a TokenSource built by this session
	// rotates the access token, so the refreshed token can be re-persisted
	// through the same store that holds the original.
	OnRefresh func(tok token.Record)

	mu       sync.Mutex
	redirect string // callback URL fixed at BeginLogin
	closed   bool
}

// NewOAuth2 builds a session for one exchange.
func NewOAuth2(conf OAuth2Config) *OAuth2Session {
	return &OAuth2Session{conf: conf}
}

func (s *OAuth2Session) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.conf.ClientID,
		ClientSecret: s.conf.ClientSecret,
		Scopes:       s.conf.Scopes,
		RedirectURL:  s.redirect,
		Endpoint: oauth2.Endpoint{
			AuthURL:  resolveURL(s.conf.BaseURL, s.conf.AuthorizationURL),
			TokenURL: resolveURL(s.conf.BaseURL, s.conf.TokenURL),
		},
	}
}

func (s *OAuth2Session) httpContext(ctx context.Context) context.Context {
	if s.HTTPClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, s.HTTPClient)
	}
	return ctx
}

// BeginLogin generates a fresh CSRF state, builds the authorization URL with
// the configured extra parameters, and returns both. The caller persists the
// state before redirecting.
func (s *OAuth2Session) BeginLogin(ctx context.Context, callbackURL string) (string, string, error) {
	s.mu.Lock()
	s.redirect = callbackURL
	cfg := s.oauthConfig()
	s.mu.Unlock()

	state := uuid.NewString()
	opts := make([]oauth2.AuthCodeOption, 0, len(s.conf.AuthorizationParams))
	for k, v := range s.conf.AuthorizationParams {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	return cfg.AuthCodeURL(state, opts...), state, nil
}

// CompleteCallback validates the callback and exchanges the code for a
// token. Provider error parameters surface as *ProviderDenied before any
// state check; a state mismatch is ErrStateMismatch and no exchange is
// attempted.
func (s *OAuth2Session) CompleteCallback(ctx context.Context, callback *url.URL, correlator string) (token.Record, error) {
	q := callback.Query()

	if code := q.Get("error"); code != "" {
		return nil, &ProviderDenied{
			Code:        code,
			Description: q.Get("error_description"),
			URI:         q.Get("error_uri"),
		}
	}

	if correlator == "" || q.Get("state") != correlator {
		return nil, ErrStateMismatch
	}

	code := q.Get("code")
	if code == "" {
		return nil, &ProtocolError{Op: "callback", Err: errors.New("missing code parameter")}
	}

	// The callback leg runs in a fresh session, so the login-time redirect is
	// unknown here. The callback URL is no substitute: providers echo extra
	// parameters onto it, and a redirect_uri that differs from the login-time
	// value gets rejected. Leave it empty so the exchange omits the parameter.
	s.mu.Lock()
	cfg := s.oauthConfig()
	s.mu.Unlock()

	opts := make([]oauth2.AuthCodeOption, 0, len(s.conf.TokenParams))
	for k, v := range s.conf.TokenParams {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	t, err := cfg.Exchange(s.httpContext(ctx), code, opts...)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return nil, &ProtocolError{Op: "token exchange", Err: err}
		}
		return nil, &ProviderUnreachableError{Op: "token exchange", Err: err}
	}

	rec := token.FromOAuth2(t)
	if scope, ok := t.Extra("scope").(string); ok && scope != "" {
		rec[token.KeyScope] = scope
	}
	return rec, nil
}

// TokenSource wraps an auto-refreshing x/oauth2 source so every rotation of
// the access token re-persists through OnRefresh.
func (s *OAuth2Session) TokenSource(ctx context.Context, tok token.Record) oauth2.TokenSource {
	s.mu.Lock()
	cfg := s.oauthConfig()
	s.mu.Unlock()
	return &notifySource{
		src:       cfg.TokenSource(s.httpContext(ctx), tok.ToOAuth2()),
		last:      tok.AccessToken(),
		onRefresh: s.OnRefresh,
	}
}

// Close invalidates the session. Subsequent use builds a new one.
func (s *OAuth2Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.redirect = ""
	s.mu.Unlock()
}

type notifySource struct {
	src       oauth2.TokenSource
	onRefresh func(token.Record)

	mu   sync.Mutex
	last string
}

func (n *notifySource) Token() (*oauth2.Token, error) {
	t, err := n.src.Token()
	if err != nil {
		return nil, err
	}
	n.mu.Lock()
	rotated := t.AccessToken != n.last
	if rotated {
		n.last = t.AccessToken
	}
	n.mu.Unlock()
	if rotated && n.onRefresh != nil {
		n.onRefresh(token.FromOAuth2(t))
	}
	return t, nil
}
