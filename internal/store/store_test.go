package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/pastekeeper/internal/common"
	"github.com/dmitrijs2005/pastekeeper/internal/dbx"
	"github.com/dmitrijs2005/pastekeeper/internal/ident"
	"github.com/dmitrijs2005/pastekeeper/internal/logging"
	"github.com/dmitrijs2005/pastekeeper/internal/metrics"
)

func newMemoryStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Options{Mode: InMemory})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

// backdate moves the expiry of id into the past without waiting for it.
func backdate(t *testing.T, s *Store, id ident.ID) {
	t.Helper()
	err := s.conn.Do(context.Background(), func(ctx context.Context, db dbx.DBTX) error {
		_, err := db.ExecContext(ctx, `UPDATE entries SET expires = datetime('now', '-1 minute') WHERE id = ?`, int64(id))
		return err
	})
	require.NoError(t, err)
}

func rowCount(t *testing.T, s *Store) int {
	t.Helper()
	var n int
	err := s.conn.Do(context.Background(), func(ctx context.Context, db dbx.DBTX) error {
		return db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n)
	})
	require.NoError(t, err)
	return n
}

func TestInsertAndGet(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	id := ident.FromUint32(1234)
	require.NoError(t, s.Insert(ctx, id, InsertEntry{Text: "hello world", UID: ptr(int64(10))}))

	e, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hello world", e.Text)
	require.NotNil(t, e.UID)
	assert.Equal(t, int64(10), *e.UID)
	assert.False(t, e.Burned)

	// Plain entries survive reads.
	_, err = s.Get(ctx, id)
	require.NoError(t, err)
}

func TestInsert_WithoutOwner(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	id := ident.FromUint32(7)
	require.NoError(t, s.Insert(ctx, id, InsertEntry{Text: "anonymous"}))

	e, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, e.UID)
}

func TestInsert_StoresCompressedData(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()
	text := strings.Repeat("compress me please ", 1000)

	id := ident.FromUint32(99)
	require.NoError(t, s.Insert(ctx, id, InsertEntry{Text: text}))

	var size int
	err := s.conn.Do(ctx, func(ctx context.Context, db dbx.DBTX) error {
		return db.QueryRowContext(ctx, `SELECT length(data) FROM entries WHERE id = ?`, int64(id)).Scan(&size)
	})
	require.NoError(t, err)
	assert.Less(t, size, len(text)/10)
}

func TestInsert_DuplicateID(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	id := ident.FromUint32(1234)
	require.NoError(t, s.Insert(ctx, id, InsertEntry{Text: "first"}))

	err := s.Insert(ctx, id, InsertEntry{Text: "second"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrorDuplicateID)

	e, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "first", e.Text, "duplicate insert must not overwrite")
}

func TestGet_NeverInserted(t *testing.T) {
	s := newMemoryStore(t)

	_, err := s.Get(context.Background(), ident.FromUint32(5678))
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGet_BurnAfterReading(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()
	before := testutil.ToFloat64(metrics.EntriesRemovedOnReadTotal.WithLabelValues(metrics.Burned))

	id := ident.FromUint32(1234)
	require.NoError(t, s.Insert(ctx, id, InsertEntry{Text: "secret", BurnAfterReading: true}))

	e, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "secret", e.Text)
	assert.True(t, e.Burned)

	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.Equal(t, 0, rowCount(t, s))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.EntriesRemovedOnReadTotal.WithLabelValues(metrics.Burned)))
}

func TestGet_BurnAfterReading_SingleWinnerUnderConcurrency(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	id := ident.FromUint32(4321)
	require.NoError(t, s.Insert(ctx, id, InsertEntry{Text: "once", BurnAfterReading: true}))

	var wins, misses atomic.Int32
	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			_, err := s.Get(ctx, id)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, common.ErrorNotFound):
				misses.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(15), misses.Load())
}

func TestGet_Expired(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the database clock")
	}
	s := newMemoryStore(t)
	ctx := context.Background()

	id := ident.FromUint32(1234)
	require.NoError(t, s.Insert(ctx, id, InsertEntry{Text: "short lived", Expires: ptr(uint32(1))}))

	time.Sleep(2 * time.Second)

	_, err := s.Get(ctx, id)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, common.ErrorNotFound, "expired entries must not come back")
	assert.Equal(t, 0, rowCount(t, s))
}

func TestGet_ExpiredIsDeleted(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()
	before := testutil.ToFloat64(metrics.EntriesRemovedOnReadTotal.WithLabelValues(metrics.Expired))

	id := ident.FromUint32(2)
	require.NoError(t, s.Insert(ctx, id, InsertEntry{Text: "x", Expires: ptr(uint32(60))}))
	backdate(t, s, id)

	_, err := s.Get(ctx, id)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.Equal(t, 0, rowCount(t, s))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.EntriesRemovedOnReadTotal.WithLabelValues(metrics.Expired)))
}

func TestGet_NotYetExpired(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	id := ident.FromUint32(3)
	require.NoError(t, s.Insert(ctx, id, InsertEntry{Text: "still here", Expires: ptr(uint32(3600))}))

	e, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "still here", e.Text)
}

func TestGetOwner(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	owned := ident.FromUint32(10)
	require.NoError(t, s.Insert(ctx, owned, InsertEntry{Text: "mine", UID: ptr(int64(42))}))
	uid, err := s.GetOwner(ctx, owned)
	require.NoError(t, err)
	require.NotNil(t, uid)
	assert.Equal(t, int64(42), *uid)

	anon := ident.FromUint32(11)
	require.NoError(t, s.Insert(ctx, anon, InsertEntry{Text: "nobody's"}))
	uid, err = s.GetOwner(ctx, anon)
	require.NoError(t, err)
	assert.Nil(t, uid)

	_, err = s.GetOwner(ctx, ident.FromUint32(12))
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGetOwner_DoesNotBurn(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	id := ident.FromUint32(20)
	require.NoError(t, s.Insert(ctx, id, InsertEntry{Text: "burn me", BurnAfterReading: true, UID: ptr(int64(1))}))

	for i := 0; i < 3; i++ {
		_, err := s.GetOwner(ctx, id)
		require.NoError(t, err)
	}

	e, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "burn me", e.Text)
}

func TestGetOwner_Expired(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	id := ident.FromUint32(21)
	require.NoError(t, s.Insert(ctx, id, InsertEntry{Text: "x", Expires: ptr(uint32(60)), UID: ptr(int64(1))}))
	backdate(t, s, id)

	_, err := s.GetOwner(ctx, id)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.Equal(t, 0, rowCount(t, s))
}

func TestDelete(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	id := ident.FromUint32(1234)
	require.NoError(t, s.Insert(ctx, id, InsertEntry{Text: "bye"}))

	_, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, id))

	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	require.NoError(t, s.Delete(ctx, id), "second delete must be a no-op")
	require.NoError(t, s.Delete(ctx, ident.FromUint32(999)), "deleting a never inserted id is fine")
}

func TestDelete_AllowsReuseOfID(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	id := ident.FromUint32(5)
	require.NoError(t, s.Insert(ctx, id, InsertEntry{Text: "old"}))
	require.NoError(t, s.Delete(ctx, id))
	require.NoError(t, s.Insert(ctx, id, InsertEntry{Text: "new"}))

	e, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "new", e.Text)
}

func TestNextSequence_Sequential(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	for want := int64(1); want <= 5; want++ {
		got, err := s.NextSequence(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestNextSequence_Concurrent(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	const n = 64
	results := make([]int64, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			v, err := s.NextSequence(ctx)
			results[i] = v
			return err
		})
	}
	require.NoError(t, g.Wait())

	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
	for i, v := range results {
		assert.Equal(t, int64(i+1), v, "values must be consecutive without gaps or duplicates")
	}
}

func TestOpen_FilePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pastes.db")

	s, err := Open(ctx, Options{Mode: File, Path: path})
	require.NoError(t, err)
	id := ident.FromUint32(77)
	require.NoError(t, s.Insert(ctx, id, InsertEntry{Text: "durable", UID: ptr(int64(3))}))
	seq, err := s.NextSequence(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, Options{Mode: File, Path: path})
	require.NoError(t, err)
	defer s.Close()

	e, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "durable", e.Text)

	next, err := s.NextSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, seq+1, next, "counter must survive a reopen")
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, Options{Mode: File})
	assert.ErrorIs(t, err, common.ErrorStoreInit)

	_, err = Open(ctx, Options{Mode: Mode(42)})
	assert.ErrorIs(t, err, common.ErrorStoreInit)

	for _, name := range []string{"a?b.db", "a#b.db", "a%20b.db"} {
		_, err = Open(ctx, Options{Mode: File, Path: filepath.Join(t.TempDir(), name)})
		assert.ErrorIs(t, err, common.ErrorStoreInit, name)
	}

	blocker := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	_, err = Open(ctx, Options{Mode: File, Path: filepath.Join(blocker, "pastes.db")})
	assert.ErrorIs(t, err, common.ErrorStoreInit)
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "pastes.db")

	s, err := Open(context.Background(), Options{Mode: File, Path: path})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_MigrationFailure(t *testing.T) {
	orig := runMigrations
	runMigrations = func(context.Context, *sql.DB, logging.Logger) error {
		return errors.New("half migrated")
	}
	defer func() { runMigrations = orig }()

	_, err := Open(context.Background(), Options{Mode: InMemory})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrorStoreInit)
	assert.Contains(t, err.Error(), "half migrated")
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "memory", InMemory.String())
	assert.Equal(t, "file", File.String())
	assert.Equal(t, "Mode(9)", Mode(9).String())
}
