// Package transient holds short-lived per-exchange state: the CSRF correlator
// written at login and consumed at callback, and the payload of the
// session-delegating token store.
//
// A Store instance is scoped to one HTTP exchange. Nothing here survives the
// exchange except what the backing mechanism (e.g. a cookie) carries to the
// next one.
package transient

// Store is the transient key-value collaborator. Keys are caller-chosen
// strings; values are opaque strings.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// Memory is a map-backed Store for tests and single-exchange use.
type Memory map[string]string

func NewMemory() Memory { return make(Memory) }

func (m Memory) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m Memory) Set(key, value string) { m[key] = value }

func (m Memory) Delete(key string) { delete(m, key) }
