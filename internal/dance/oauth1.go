package dance

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/dghubble/oauth1"

	"github.com/dropDatabas3/dancefloor/internal/token"
)

// OAuth1Config declares an OAuth 1.0a provider. URLs may be absolute or
// relative to BaseURL. Signing is delegated to dghubble/oauth1: the default
// signer is HMAC-SHA1; set Signer for RSA or other methods.
type OAuth1Config struct {
	ConsumerKey    string
	ConsumerSecret string

	BaseURL          string
	RequestTokenURL  string
	AuthorizationURL string
	AccessTokenURL   string

	Signer oauth1.Signer
}

// OAuth1Session drives one OAuth 1 three-legged exchange.
//
// OAuth 1 has no CSRF state parameter; the request-token secret obtained at
// login is the per-dance correlator, carried through the same transient
// storage the OAuth 2 state uses and required to complete the callback.
type OAuth1Session struct {
	conf OAuth1Config
}

// NewOAuth1 builds a session for one exchange.
func NewOAuth1(conf OAuth1Config) *OAuth1Session {
	return &OAuth1Session{conf: conf}
}

func (s *OAuth1Session) clientConfig(callbackURL string) *oauth1.Config {
	return &oauth1.Config{
		ConsumerKey:    s.conf.ConsumerKey,
		ConsumerSecret: s.conf.ConsumerSecret,
		CallbackURL:    callbackURL,
		Signer:         s.conf.Signer,
		Endpoint: oauth1.Endpoint{
			RequestTokenURL: resolveURL(s.conf.BaseURL, s.conf.RequestTokenURL),
			AuthorizeURL:    resolveURL(s.conf.BaseURL, s.conf.AuthorizationURL),
			AccessTokenURL:  resolveURL(s.conf.BaseURL, s.conf.AccessTokenURL),
		},
	}
}

// BeginLogin requests a temporary request token from the provider and
// returns the authorization URL embedding it, plus the correlator holding
// the request token pair for the callback leg.
func (s *OAuth1Session) BeginLogin(ctx context.Context, callbackURL string) (string, string, error) {
	cfg := s.clientConfig(callbackURL)

	requestToken, requestSecret, err := cfg.RequestToken()
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			return "", "", &ProviderUnreachableError{Op: "request token", Err: err}
		}
		return "", "", &ProtocolError{Op: "request token", Err: err}
	}

	authURL, err := cfg.AuthorizationURL(requestToken)
	if err != nil {
		return "", "", &ProtocolError{Op: "authorization url", Err: err}
	}
	return authURL.String(), encodeCorrelator(requestToken, requestSecret), nil
}

// CompleteCallback checks the request-token echo against the correlator and
// exchanges the verifier for a permanent access token.
func (s *OAuth1Session) CompleteCallback(ctx context.Context, callback *url.URL, correlator string) (token.Record, error) {
	requestToken, requestSecret, err := decodeCorrelator(correlator)
	if err != nil {
		return nil, &ProtocolError{Op: "callback", Err: err}
	}

	q := callback.Query()
	echo := q.Get("oauth_token")
	verifier := q.Get("oauth_verifier")
	if echo == "" || verifier == "" {
		return nil, &ProtocolError{Op: "callback", Err: errors.New("missing oauth_token or oauth_verifier")}
	}
	if echo != requestToken {
		return nil, &ProtocolError{Op: "callback", Err: errors.New("request token echo mismatch")}
	}

	cfg := s.clientConfig("")
	accessToken, accessSecret, err := cfg.AccessToken(requestToken, requestSecret, verifier)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			return nil, &ProviderUnreachableError{Op: "access token", Err: err}
		}
		return nil, &ProtocolError{Op: "access token", Err: err}
	}

	return token.Record{
		token.KeyOAuthToken:       accessToken,
		token.KeyOAuthTokenSecret: accessSecret,
	}, nil
}

// Close invalidates the session.
func (s *OAuth1Session) Close() {}

func encodeCorrelator(requestToken, requestSecret string) string {
	v := url.Values{}
	v.Set("token", requestToken)
	v.Set("secret", requestSecret)
	return v.Encode()
}

func decodeCorrelator(correlator string) (string, string, error) {
	if correlator == "" {
		return "", "", errors.New("missing request token correlator")
	}
	v, err := url.ParseQuery(correlator)
	if err != nil {
		return "", "", fmt.Errorf("bad correlator: %w", err)
	}
	tok, sec := v.Get("token"), v.Get("secret")
	if tok == "" || sec == "" {
		return "", "", errors.New("incomplete request token correlator")
	}
	return tok, sec, nil
}
