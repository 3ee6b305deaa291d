package dance

import (
	"net/http"
	"net/url"
)

// Request is the slice of an inbound HTTP exchange the dance consumes:
// the full requested URL (query included) and whether the connection is
// secure, either directly or declared so by a trusted proxy.
type Request struct {
	URL    *url.URL
	Secure bool
}

// FromHTTP adapts an *http.Request. When trustProxy is set, an
// X-Forwarded-Proto: https header counts as secure.
func FromHTTP(r *http.Request, trustProxy bool) Request {
	secure := r.TLS != nil
	if trustProxy && r.Header.Get("X-Forwarded-Proto") == "https" {
		secure = true
	}
	u := *r.URL
	if u.Host == "" {
		u.Host = r.Host
	}
	if u.Scheme == "" {
		if secure {
			u.Scheme = "https"
		} else {
			u.Scheme = "http"
		}
	}
	return Request{URL: &u, Secure: secure}
}
