package identity

import "testing"

type user struct{ id string }

func (u user) IdentityID() string { return u.id }

type anon struct{}

type proxy struct{ v any }

func (p proxy) Unwrap() any { return p.v }

func isAnon(v any) bool {
	_, ok := v.(anon)
	return ok
}

func TestUser_Precedence(t *testing.T) {
	r := Resolver{IsAnonymous: isAnon}

	explicit := user{id: "u1"}
	fallback := user{id: "u2"}

	got := r.User(explicit, fallback)
	if got != any(explicit) {
		t.Fatalf("expected explicit ref to win, got %v", got)
	}

	// nil explicit falls through to the default
	got = r.User(nil, fallback)
	if got != any(fallback) {
		t.Fatalf("expected fallback, got %v", got)
	}

	if got := r.User(nil, nil); got != nil {
		t.Fatalf("expected nil for all-absent refs, got %v", got)
	}
}

func TestUser_UnwrapsProxies(t *testing.T) {
	r := Resolver{}
	u := user{id: "u1"}
	got := r.User(proxy{v: u})
	if got != any(u) {
		t.Fatalf("expected unwrapped user, got %v", got)
	}
}

func TestUser_InvokesCallables(t *testing.T) {
	r := Resolver{}
	u := user{id: "u1"}
	got := r.User(func() any { return u })
	if got != any(u) {
		t.Fatalf("expected produced user, got %v", got)
	}
}

func TestUser_ProxyToCallable(t *testing.T) {
	r := Resolver{}
	u := user{id: "u1"}
	got := r.User(proxy{v: func() any { return u }})
	if got != any(u) {
		t.Fatalf("expected user through proxy+callable, got %v", got)
	}
}

func TestUser_AnonymousIsAbsent(t *testing.T) {
	r := Resolver{IsAnonymous: isAnon}
	fallback := user{id: "u2"}

	got := r.User(anon{}, fallback)
	if got != any(fallback) {
		t.Fatalf("anonymous ref should be skipped, got %v", got)
	}
	if got := r.User(proxy{v: anon{}}); got != nil {
		t.Fatalf("proxied anonymous should be absent, got %v", got)
	}
}

func TestUserID_FirstNonEmpty(t *testing.T) {
	r := Resolver{}
	if got := r.UserID("", "u2", "u3"); got != "u2" {
		t.Fatalf("expected u2, got %q", got)
	}
	if got := r.UserID("", ""); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestKey_SamePathSameKey(t *testing.T) {
	r := Resolver{}
	u := user{id: "42"}

	byID := r.Key("42", nil)
	byObj := r.Key("", u)
	if byID != byObj {
		t.Fatalf("key mismatch: id path %q vs object path %q", byID, byObj)
	}
	if byID != "42" {
		t.Fatalf("expected 42, got %q", byID)
	}
}

func TestKey_FallsBackToStringForm(t *testing.T) {
	r := Resolver{}
	if got := r.Key("", "plain"); got != "plain" {
		t.Fatalf("expected plain, got %q", got)
	}
	if got := r.Key("", nil); got != "" {
		t.Fatalf("expected empty for nil user, got %q", got)
	}
}
