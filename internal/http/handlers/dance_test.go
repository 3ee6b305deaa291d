package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/dancefloor/internal/dance"
	"github.com/dropDatabas3/dancefloor/internal/store"
	"github.com/dropDatabas3/dancefloor/internal/token"
	"github.com/dropDatabas3/dancefloor/internal/transient"
)

var testSecret = []byte("handler-test-secret")

type stubSession struct {
	correlator string
	tok        token.Record
	err        error
}

func (s *stubSession) BeginLogin(ctx context.Context, callbackURL string) (string, string, error) {
	return "https://provider.example/authorize?state=" + s.correlator, s.correlator, nil
}

func (s *stubSession) CompleteCallback(ctx context.Context, cb *url.URL, correlator string) (token.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	if correlator == "" || cb.Query().Get("state") != correlator {
		return nil, dance.ErrStateMismatch
	}
	return s.tok, nil
}

func (s *stubSession) Close() {}

func newTestRouter(sess *stubSession, tokens store.TokenStore) http.Handler {
	ctrl := &dance.Controller{
		Provider:    "github",
		NewSession:  func() dance.Session { return sess },
		Tokens:      tokens,
		Bus:         dance.NewBus(),
		CallbackURL: "http://app.example/oauth/github/authorized",
	}
	h := NewDanceHandler(DanceDeps{
		Controllers:  map[string]*dance.Controller{"github": ctrl},
		CookieSecret: testSecret,
	})
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func TestLogin_RedirectsAndSetsCookie(t *testing.T) {
	sess := &stubSession{correlator: "S"}
	r := newTestRouter(sess, store.NewMemory(nil))

	req := httptest.NewRequest(http.MethodGet, "http://app.example/oauth/github", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "https://provider.example/authorize?state=S", rec.Header().Get("Location"))

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies, "login must persist the state in the transient cookie")
	require.Equal(t, "dance_session", cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)
}

func TestAuthorized_FullRoundTrip(t *testing.T) {
	sess := &stubSession{correlator: "S", tok: token.Record{"access_token": "AT"}}
	tokens := store.NewMemory(nil)
	r := newTestRouter(sess, tokens)

	// login leg issues the cookie carrying the state
	req := httptest.NewRequest(http.MethodGet, "http://app.example/oauth/github", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusFound, rec.Code)
	loginCookies := rec.Result().Cookies()
	require.NotEmpty(t, loginCookies)

	// callback leg presents it back
	req = httptest.NewRequest(http.MethodGet,
		"http://app.example/oauth/github/authorized?code=ABC&state=S", nil)
	for _, c := range loginCookies {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))

	ctx := transient.ToContext(context.Background(), transient.NewMemory())
	got, err := tokens.Get(ctx, store.Lookup{})
	require.NoError(t, err)
	require.Equal(t, "AT", got.AccessToken())
}

func TestAuthorized_StateMismatchIs403(t *testing.T) {
	sess := &stubSession{correlator: "S"}
	r := newTestRouter(sess, store.NewMemory(nil))

	// no cookie at all: no stashed state, validation must fail
	req := httptest.NewRequest(http.MethodGet,
		"http://app.example/oauth/github/authorized?code=ABC&state=S", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "state_mismatch", body["error"])
}

func TestAuthorized_ProviderDenialRedirects(t *testing.T) {
	sess := &stubSession{correlator: "S"}
	r := newTestRouter(sess, store.NewMemory(nil))

	req := httptest.NewRequest(http.MethodGet,
		"http://app.example/oauth/github/authorized?error=access_denied", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	// a denial finishes the dance normally from HTTP's point of view
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))
}

func TestAuthorized_ProviderUnreachableIs502(t *testing.T) {
	sess := &stubSession{
		correlator: "S",
		err:        &dance.ProviderUnreachableError{Op: "token exchange", Err: context.DeadlineExceeded},
	}
	r := newTestRouter(sess, store.NewMemory(nil))

	req := httptest.NewRequest(http.MethodGet, "http://app.example/oauth/github", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	loginCookies := rec.Result().Cookies()

	req = httptest.NewRequest(http.MethodGet,
		"http://app.example/oauth/github/authorized?code=ABC&state=S", nil)
	for _, c := range loginCookies {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestUnknownProviderIs404(t *testing.T) {
	r := newTestRouter(&stubSession{}, nil)

	req := httptest.NewRequest(http.MethodGet, "http://app.example/oauth/gitlab", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
