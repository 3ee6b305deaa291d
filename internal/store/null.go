package store

import (
	"context"

	"github.com/dropDatabas3/dancefloor/internal/token"
)

// Null is a TokenStore that stores nothing. Use it when persistence is
// intentionally disabled; the dance still runs, tokens just evaporate.
type Null struct{}

func NewNull() Null { return Null{} }

func (Null) Get(ctx context.Context, lk Lookup) (token.Record, error) {
	return nil, ErrNotFound
}

func (Null) Set(ctx context.Context, tok token.Record, lk Lookup) error { return nil }

func (Null) Delete(ctx context.Context, lk Lookup) error { return nil }
