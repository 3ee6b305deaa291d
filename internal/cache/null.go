package cache

import (
	"context"
	"time"
)

// nullClient es un cache deshabilitado: todo Get es un miss y los writes se
// descartan. Permite correr el store relacional sin cache.
type nullClient struct{}

// NewNull crea un cliente de cache que no cachea nada.
func NewNull() Client { return nullClient{} }

func (nullClient) Get(ctx context.Context, key string) (string, error) { return "", ErrNotFound }
func (nullClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return nil
}
func (nullClient) Delete(ctx context.Context, key string) error { return nil }
func (nullClient) Ping(ctx context.Context) error               { return nil }
func (nullClient) Close() error                                 { return nil }
