package pg

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/dancefloor/internal/cache"
	"github.com/dropDatabas3/dancefloor/internal/store"
	"github.com/dropDatabas3/dancefloor/internal/token"
)

// ---- in-memory DB double ----

type dbRow struct {
	token      []byte
	identityID *string
}

type fakeDB struct {
	mu      sync.Mutex
	rows    []dbRow
	selects int
}

func (d *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selects++
	var out [][]byte
	for _, r := range d.rows {
		if matches(sql, args, r) {
			out = append(out, r.token)
		}
	}
	return &fakeRows{data: out}, nil
}

func (d *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return &fakeTx{db: d, staged: append([]dbRow(nil), d.rows...)}, nil
}

func matches(sql string, args []any, r dbRow) bool {
	switch {
	case strings.Contains(sql, "identity_id = $2"):
		uid, _ := args[1].(string)
		return r.identityID != nil && *r.identityID == uid
	case strings.Contains(sql, "identity_id IS NULL"):
		return r.identityID == nil
	default:
		return true
	}
}

type fakeRows struct {
	pgx.Rows
	data [][]byte
	i    int
}

func (r *fakeRows) Next() bool {
	r.i++
	return r.i <= len(r.data)
}

func (r *fakeRows) Scan(dest ...any) error {
	*(dest[0].(*[]byte)) = r.data[r.i-1]
	return nil
}

func (r *fakeRows) Err() error { return nil }
func (r *fakeRows) Close()     {}

type fakeTx struct {
	pgx.Tx
	db     *fakeDB
	staged []dbRow
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if strings.HasPrefix(sql, "DELETE") {
		kept := t.staged[:0]
		for _, r := range t.staged {
			if !matches(sql, args, r) {
				kept = append(kept, r)
			}
		}
		t.staged = kept
		return pgconn.NewCommandTag("DELETE"), nil
	}
	// INSERT (provider, token[, identity_id])
	var idp *string
	if len(args) == 3 && args[2] != nil {
		s := args[2].(string)
		idp = &s
	}
	t.staged = append(t.staged, dbRow{token: args[1].([]byte), identityID: idp})
	return pgconn.NewCommandTag("INSERT"), nil
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	t.db.rows = append([]dbRow(nil), t.staged...)
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error { return nil }

// ---- helpers ----

type testUser struct{ id string }

func (u testUser) IdentityID() string { return u.id }

func newStore(db *fakeDB, cfg Config) *Store {
	cfg.Provider = "github"
	return New(db, cache.NewMemory("", 0), cfg)
}

func strptr(s string) *string { return &s }

// ---- tests ----

func TestSetGet_PerIdentityIsolation(t *testing.T) {
	ctx := context.Background()
	db := &fakeDB{}
	s := newStore(db, Config{})

	t1 := token.Record{"access_token": "t1"}
	t2 := token.Record{"access_token": "t2"}
	require.NoError(t, s.Set(ctx, t1, store.Lookup{UserID: "u1"}))
	require.NoError(t, s.Set(ctx, t2, store.Lookup{UserID: "u2"}))

	got1, err := s.Get(ctx, store.Lookup{UserID: "u1"})
	require.NoError(t, err)
	require.Equal(t, "t1", got1.AccessToken())

	got2, err := s.Get(ctx, store.Lookup{UserID: "u2"})
	require.NoError(t, err)
	require.Equal(t, "t2", got2.AccessToken())

	require.Len(t, db.rows, 2, "one live row per identity")
}

func TestSet_SupersedesNotMerges(t *testing.T) {
	ctx := context.Background()
	db := &fakeDB{}
	s := newStore(db, Config{})

	require.NoError(t, s.Set(ctx, token.Record{"access_token": "old", "extra": "x"}, store.Lookup{UserID: "u1"}))
	require.NoError(t, s.Set(ctx, token.Record{"access_token": "new"}, store.Lookup{UserID: "u1"}))

	require.Len(t, db.rows, 1)
	got, err := s.Get(ctx, store.Lookup{UserID: "u1"})
	require.NoError(t, err)
	require.Equal(t, "new", got.AccessToken())
	_, kept := got["extra"]
	require.False(t, kept)
}

func TestGet_DeleteClears(t *testing.T) {
	ctx := context.Background()
	db := &fakeDB{}
	s := newStore(db, Config{})

	require.NoError(t, s.Set(ctx, token.Record{"access_token": "a"}, store.Lookup{UserID: "u1"}))
	require.NoError(t, s.Delete(ctx, store.Lookup{UserID: "u1"}))

	_, err := s.Get(ctx, store.Lookup{UserID: "u1"})
	require.ErrorIs(t, err, store.ErrNotFound)
	require.Empty(t, db.rows)
}

func TestGet_CacheHitSkipsBackingStore(t *testing.T) {
	ctx := context.Background()
	db := &fakeDB{}
	s := newStore(db, Config{})

	require.NoError(t, s.Set(ctx, token.Record{"access_token": "a"}, store.Lookup{UserID: "u1"}))

	_, err := s.Get(ctx, store.Lookup{UserID: "u1"})
	require.NoError(t, err)
	after := db.selects

	_, err = s.Get(ctx, store.Lookup{UserID: "u1"})
	require.NoError(t, err)
	require.Equal(t, after, db.selects, "second get must be served from cache")
}

func TestGet_DefinitiveMissIsCached(t *testing.T) {
	ctx := context.Background()
	db := &fakeDB{}
	s := newStore(db, Config{})

	_, err := s.Get(ctx, store.Lookup{UserID: "ghost"})
	require.ErrorIs(t, err, store.ErrNotFound)
	after := db.selects

	_, err = s.Get(ctx, store.Lookup{UserID: "ghost"})
	require.ErrorIs(t, err, store.ErrNotFound)
	require.Equal(t, after, db.selects, "absent marker must absorb repeated misses")
}

func TestSet_InvalidatesCache(t *testing.T) {
	ctx := context.Background()
	db := &fakeDB{}
	s := newStore(db, Config{})

	require.NoError(t, s.Set(ctx, token.Record{"access_token": "v1"}, store.Lookup{UserID: "u1"}))
	_, err := s.Get(ctx, store.Lookup{UserID: "u1"}) // populate cache
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, token.Record{"access_token": "v2"}, store.Lookup{UserID: "u1"}))
	got, err := s.Get(ctx, store.Lookup{UserID: "u1"})
	require.NoError(t, err)
	require.Equal(t, "v2", got.AccessToken(), "stale cached value must not survive a write")
}

func TestGet_DuplicateRowsIsIntegrityFault(t *testing.T) {
	ctx := context.Background()
	db := &fakeDB{rows: []dbRow{
		{token: []byte(`{"access_token":"a"}`), identityID: strptr("u1")},
		{token: []byte(`{"access_token":"b"}`), identityID: strptr("u1")},
	}}
	s := newStore(db, Config{})

	_, err := s.Get(ctx, store.Lookup{UserID: "u1"})
	require.True(t, store.IsIntegrity(err), "expected IntegrityError, got %v", err)
}

func TestIdentityPrecedence_ExplicitIDWins(t *testing.T) {
	ctx := context.Background()
	db := &fakeDB{}
	s := newStore(db, Config{
		DefaultUserID: "store-default",
		OwnerUserID:   func() string { return "owner-default" },
	})

	require.NoError(t, s.Set(ctx, token.Record{"access_token": "explicit"}, store.Lookup{UserID: "u1"}))
	require.NoError(t, s.Set(ctx, token.Record{"access_token": "default"}, store.Lookup{}))

	got, err := s.Get(ctx, store.Lookup{UserID: "u1"})
	require.NoError(t, err)
	require.Equal(t, "explicit", got.AccessToken())

	got, err = s.Get(ctx, store.Lookup{})
	require.NoError(t, err)
	require.Equal(t, "default", got.AccessToken())
	require.NotNil(t, db.rows[1].identityID)
	require.Equal(t, "store-default", *db.rows[1].identityID)
}

func TestIdentityKey_SameKeyThroughEitherPath(t *testing.T) {
	ctx := context.Background()
	db := &fakeDB{}
	s := newStore(db, Config{})

	// write through the object path, read through the id path
	require.NoError(t, s.Set(ctx, token.Record{"access_token": "a"}, store.Lookup{User: testUser{id: "42"}}))
	got, err := s.Get(ctx, store.Lookup{UserID: "42"})
	require.NoError(t, err)
	require.Equal(t, "a", got.AccessToken())
}

func TestNoIdentityResolved_UsesNullFilter(t *testing.T) {
	ctx := context.Background()
	db := &fakeDB{}
	s := newStore(db, Config{})

	require.NoError(t, s.Set(ctx, token.Record{"access_token": "anon"}, store.Lookup{}))
	require.Len(t, db.rows, 1)
	require.Nil(t, db.rows[0].identityID)

	got, err := s.Get(ctx, store.Lookup{})
	require.NoError(t, err)
	require.Equal(t, "anon", got.AccessToken())

	// an identity-scoped read must not see the anonymous row
	_, err = s.Get(ctx, store.Lookup{UserID: "u1"})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestWithoutIdentity_SingleTenantTable(t *testing.T) {
	ctx := context.Background()
	db := &fakeDB{}
	s := newStore(db, Config{WithoutIdentity: true})

	require.NoError(t, s.Set(ctx, token.Record{"access_token": "a"}, store.Lookup{UserID: "ignored"}))
	got, err := s.Get(ctx, store.Lookup{})
	require.NoError(t, err)
	require.Equal(t, "a", got.AccessToken())

	require.NoError(t, s.Set(ctx, token.Record{"access_token": "b"}, store.Lookup{}))
	require.Len(t, db.rows, 1, "identity-less table holds one row per provider")
}
