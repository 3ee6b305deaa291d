// Package migrations embeds the Postgres schema and applies it in order.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed *.sql
var files embed.FS

// Apply ejecuta las migraciones *_up.sql en orden lexicográfico.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	return run(ctx, pool, "_up.sql", false)
}

// Rollback ejecuta las *_down.sql en orden inverso.
func Rollback(ctx context.Context, pool *pgxpool.Pool) error {
	return run(ctx, pool, "_down.sql", true)
}

func run(ctx context.Context, pool *pgxpool.Pool, suffix string, reverse bool) error {
	entries, err := files.ReadDir(".")
	if err != nil {
		return err
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(strings.ToLower(e.Name()), suffix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if reverse {
		for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
			names[i], names[j] = names[j], names[i]
		}
	}
	for _, name := range names {
		b, err := files.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := pool.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("exec %s: %w", name, err)
		}
	}
	return nil
}
