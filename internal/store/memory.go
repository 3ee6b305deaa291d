package store

import (
	"context"
	"sync"

	"github.com/dropDatabas3/dancefloor/internal/token"
)

// Memory holds exactly one token for the whole process, ignoring identity
// entirely. Single-tenant and testing use only; a multi-tenant deployment
// behind this store would hand every user the same token.
type Memory struct {
	mu  sync.RWMutex
	tok token.Record
}

// NewMemory creates a single-slot in-process store, optionally pre-seeded.
func NewMemory(seed token.Record) *Memory {
	return &Memory{tok: seed.Clone()}
}

func (m *Memory) Get(ctx context.Context, lk Lookup) (token.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tok == nil {
		return nil, ErrNotFound
	}
	return m.tok.Clone(), nil
}

func (m *Memory) Set(ctx context.Context, tok token.Record, lk Lookup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tok = tok.Clone()
	return nil
}

func (m *Memory) Delete(ctx context.Context, lk Lookup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tok = nil
	return nil
}
