// Package pg implements the relational multi-tenant token store on Postgres.
//
// One live row per (provider, identity). Writes are delete-then-insert inside
// a single transaction; the read cache is invalidated after commit so a reader
// can never observe a value older than the latest committed write.
package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/dancefloor/internal/cache"
	"github.com/dropDatabas3/dancefloor/internal/identity"
	"github.com/dropDatabas3/dancefloor/internal/metrics"
	"github.com/dropDatabas3/dancefloor/internal/observability/logger"
	"github.com/dropDatabas3/dancefloor/internal/store"
	"github.com/dropDatabas3/dancefloor/internal/token"
)

// absentMarker is cached on a definitive miss so repeated misses do not
// repeatedly hit the backing store.
const absentMarker = "null"

// DB is the slice of pgxpool.Pool this store needs. *pgxpool.Pool satisfies it.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Config declares the store's static configuration. No runtime attribute
// injection: everything the store consults is set here, up front.
type Config struct {
	// Provider is the owning provider's name; every row and cache key carries it.
	Provider string

	// Table defaults to "oauth_tokens".
	Table string

	// WithoutIdentity marks a single-tenant table with no identity_id column.
	// All identity filters are disabled.
	WithoutIdentity bool

	// DefaultUserID / DefaultUser are the store-level identity defaults.
	DefaultUserID string
	DefaultUser   identity.Ref

	// OwnerUserID / OwnerUser supply the owning controller's defaults,
	// consulted after the store-level ones. Usually request-derived, hence
	// functions. Either may be nil.
	OwnerUserID func() string
	OwnerUser   func() identity.Ref

	// Anonymous configures the resolver's anonymous-identity marker.
	Anonymous func(v any) bool

	// CacheTTL bounds cache entries. 0 means no expiry.
	CacheTTL time.Duration
}

// Store is the relational TokenStore.
type Store struct {
	db       DB
	cache    cache.Client
	cfg      Config
	resolver identity.Resolver
}

// New creates the store. Pass cache.NewNull() to run cache-less.
func New(db DB, c cache.Client, cfg Config) *Store {
	if cfg.Table == "" {
		cfg.Table = "oauth_tokens"
	}
	if c == nil {
		c = cache.NewNull()
	}
	return &Store{
		db:       db,
		cache:    c,
		cfg:      cfg,
		resolver: identity.Resolver{IsAnonymous: cfg.Anonymous},
	}
}

// identityKey resolves the scalar identity key for one call, honoring the
// precedence: explicit id, explicit object, store default id, store default
// object, owner default id, owner default object.
func (s *Store) identityKey(lk store.Lookup) string {
	ownerID := ""
	if s.cfg.OwnerUserID != nil {
		ownerID = s.cfg.OwnerUserID()
	}
	var ownerUser identity.Ref
	if s.cfg.OwnerUser != nil {
		ownerUser = s.cfg.OwnerUser()
	}
	levels := []struct {
		id   string
		user identity.Ref
	}{
		{lk.UserID, lk.User},
		{s.cfg.DefaultUserID, s.cfg.DefaultUser},
		{ownerID, ownerUser},
	}
	for _, lv := range levels {
		if k := s.resolver.Key(lv.id, s.resolver.User(lv.user)); k != "" {
			return k
		}
	}
	return ""
}

func (s *Store) cacheKey(uid string) string {
	return fmt.Sprintf("oauth_token|%s|%s", s.cfg.Provider, uid)
}

// filter builds the WHERE clause shared by get, set and delete.
func (s *Store) filter(uid string) (string, []any) {
	clause := "provider = $1"
	args := []any{s.cfg.Provider}
	if s.cfg.WithoutIdentity {
		return clause, args
	}
	if uid != "" {
		return clause + " AND identity_id = $2", append(args, uid)
	}
	// schema declares identity, none resolved: anonymous row
	return clause + " AND identity_id IS NULL", args
}

func (s *Store) Get(ctx context.Context, lk store.Lookup) (token.Record, error) {
	uid := s.identityKey(lk)
	key := s.cacheKey(uid)

	cached, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		metrics.TokenCacheHits.WithLabelValues(s.cfg.Provider).Inc()
		if cached == absentMarker {
			return nil, store.ErrNotFound
		}
		var tok token.Record
		if err := json.Unmarshal([]byte(cached), &tok); err != nil {
			return nil, fmt.Errorf("pg: decoding cached token: %w", err)
		}
		return tok, nil
	case cache.IsNotFound(err):
		metrics.TokenCacheMisses.WithLabelValues(s.cfg.Provider).Inc()
	default:
		return nil, fmt.Errorf("pg: cache get: %w", err)
	}

	clause, args := s.filter(uid)
	q := fmt.Sprintf("SELECT token FROM %s WHERE %s", s.cfg.Table, clause)
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("pg: querying tokens: %w", err)
	}
	defer rows.Close()

	var raw []byte
	count := 0
	for rows.Next() {
		count++
		if count > 1 {
			// data-integrity fault: never pick one silently
			break
		}
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("pg: scanning token: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pg: reading tokens: %w", err)
	}
	if count > 1 {
		logger.Named("store.pg").Error("duplicate live tokens",
			logger.Provider(s.cfg.Provider), logger.UserID(uid), logger.Key(key))
		return nil, &store.IntegrityError{Provider: s.cfg.Provider, Key: uid, Count: count}
	}
	if count == 0 {
		if err := s.cache.Set(ctx, key, absentMarker, s.cfg.CacheTTL); err != nil {
			return nil, fmt.Errorf("pg: cache set: %w", err)
		}
		return nil, store.ErrNotFound
	}

	var tok token.Record
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("pg: decoding stored token: %w", err)
	}
	if err := s.cache.Set(ctx, key, string(raw), s.cfg.CacheTTL); err != nil {
		return nil, fmt.Errorf("pg: cache set: %w", err)
	}
	return tok, nil
}

func (s *Store) Set(ctx context.Context, tok token.Record, lk store.Lookup) error {
	uid := s.identityKey(lk)
	raw, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("pg: encoding token: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pg: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	clause, args := s.filter(uid)
	del := fmt.Sprintf("DELETE FROM %s WHERE %s", s.cfg.Table, clause)
	if _, err := tx.Exec(ctx, del, args...); err != nil {
		return fmt.Errorf("pg: superseding token: %w", err)
	}

	if s.cfg.WithoutIdentity {
		ins := fmt.Sprintf("INSERT INTO %s (provider, token) VALUES ($1, $2)", s.cfg.Table)
		if _, err := tx.Exec(ctx, ins, s.cfg.Provider, raw); err != nil {
			return fmt.Errorf("pg: inserting token: %w", err)
		}
	} else {
		var idCol any
		if uid != "" {
			idCol = uid
		}
		ins := fmt.Sprintf("INSERT INTO %s (provider, token, identity_id) VALUES ($1, $2, $3)", s.cfg.Table)
		if _, err := tx.Exec(ctx, ins, s.cfg.Provider, raw, idCol); err != nil {
			return fmt.Errorf("pg: inserting token: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pg: commit: %w", err)
	}

	// invalidate, never refresh: the next Get repopulates from the store,
	// so a concurrent writer cannot leave a stale value behind
	if err := s.cache.Delete(ctx, s.cacheKey(uid)); err != nil {
		return fmt.Errorf("pg: cache invalidate: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, lk store.Lookup) error {
	uid := s.identityKey(lk)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pg: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	clause, args := s.filter(uid)
	del := fmt.Sprintf("DELETE FROM %s WHERE %s", s.cfg.Table, clause)
	if _, err := tx.Exec(ctx, del, args...); err != nil {
		return fmt.Errorf("pg: deleting token: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pg: commit: %w", err)
	}

	if err := s.cache.Delete(ctx, s.cacheKey(uid)); err != nil {
		return fmt.Errorf("pg: cache invalidate: %w", err)
	}
	return nil
}
