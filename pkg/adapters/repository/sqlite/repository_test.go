package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wadjakorntonsri/go-linkpage/pkg/core/domain"
	"github.com/wadjakorntonsri/go-linkpage/pkg/ports"
)

const owner = "alice@example.com"

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func insert(t *testing.T, repo *SQLiteRepository, owner, code, key string) *domain.Link {
	t.Helper()
	now := time.Now()
	l := &domain.Link{Owner: owner, OriginalURL: "https://" + code + ".example", ShortCode: code, OrderKey: key, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.Create(context.Background(), l))
	return l
}

func TestListByScope_SortedAndScoped(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	c := insert(t, repo, owner, "c", "m")
	a := insert(t, repo, owner, "a", "b")
	b := insert(t, repo, owner, "b", "h")
	insert(t, repo, owner, "nokey", "")
	insert(t, repo, "bob@example.com", "other", "a")
	gone := insert(t, repo, owner, "gone", "c")
	require.NoError(t, repo.Delete(ctx, gone.ID))

	positions, err := repo.ListByScope(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, []domain.Position{
		{LinkID: a.ID, OrderKey: "b"},
		{LinkID: b.ID, OrderKey: "h"},
		{LinkID: c.ID, OrderKey: "m"},
	}, positions)

	last, err := repo.LastKey(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, "m", last)

	last, err = repo.LastKey(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Equal(t, "", last)
}

func TestScopeLinks_PaddedOrderKeysWithoutKeyLast(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	insert(t, repo, owner, "nokey", "")
	insert(t, repo, owner, "second", "c")
	insert(t, repo, owner, "first", "ba")
	insert(t, repo, owner, "zeroth", "b")

	links, err := repo.ScopeLinks(ctx, owner)
	require.NoError(t, err)
	var codes []string
	for _, l := range links {
		codes = append(codes, l.ShortCode)
	}
	// "b" and "ba" tie under padded comparison and keep id order
	assert.Equal(t, []string{"first", "zeroth", "second", "nokey"}, codes)
}

func TestListByScope_PaddedTiesKeepIDOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := insert(t, repo, owner, "first", "ba")
	second := insert(t, repo, owner, "second", "b")

	positions, err := repo.ListByScope(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, []domain.Position{
		{LinkID: first.ID, OrderKey: "ba"},
		{LinkID: second.ID, OrderKey: "b"},
	}, positions)
}

func TestLocalDSN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/tmp/links.db", "/tmp/links.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate"},
		{"file:db.sqlite?cache=shared", "file:db.sqlite?cache=shared&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate"},
		{"file:x.db?_pragma=busy_timeout(100)", "file:x.db?_pragma=busy_timeout(100)&_pragma=journal_mode(WAL)&_txlock=immediate"},
		{"x.db?_pragma=journal_mode(DELETE)&_pragma=busy_timeout(1)&_txlock=deferred", "x.db?_pragma=journal_mode(DELETE)&_pragma=busy_timeout(1)&_txlock=deferred"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, localDSN(tt.in), tt.in)
	}
}

func TestNewSQLiteRepository_WALAndBusyTimeout(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	var mode string
	require.NoError(t, repo.db.QueryRowContext(ctx, `PRAGMA journal_mode`).Scan(&mode))
	assert.Equal(t, "wal", mode)

	var timeout int
	require.NoError(t, repo.db.QueryRowContext(ctx, `PRAGMA busy_timeout`).Scan(&timeout))
	assert.Equal(t, 5000, timeout)
}

func TestWithinTx_ConcurrentWritersWait(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	const owners = 20
	links := make([]*domain.Link, owners)
	for i := range links {
		links[i] = insert(t, repo, fmt.Sprintf("user%d@example.com", i), fmt.Sprintf("code%d", i), "h")
	}

	var wg sync.WaitGroup
	errs := make(chan error, owners)
	for _, l := range links {
		wg.Add(1)
		go func(l *domain.Link) {
			defer wg.Done()
			errs <- repo.WithinTx(ctx, func(tx ports.OrderTx) error {
				if _, _, err := tx.GetOwner(ctx, l.ID); err != nil {
					return err
				}
				swapped, err := tx.WriteKey(ctx, l.ID, "h", "c")
				if err == nil && !swapped {
					err = errors.New("key changed")
				}
				return err
			})
		}(l)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	for _, l := range links {
		stored, err := repo.GetByID(ctx, l.ID)
		require.NoError(t, err)
		assert.Equal(t, "c", stored.OrderKey)
	}
}

func TestWithinTx_CompareAndSwap(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	l := insert(t, repo, owner, "x", "h")

	err := repo.WithinTx(ctx, func(tx ports.OrderTx) error {
		got, exists, err := tx.GetOwner(ctx, l.ID)
		require.NoError(t, err)
		assert.True(t, exists)
		assert.Equal(t, owner, got)

		swapped, err := tx.WriteKey(ctx, l.ID, "zz", "a")
		require.NoError(t, err)
		assert.False(t, swapped)

		swapped, err = tx.WriteKey(ctx, l.ID, "h", "d")
		require.NoError(t, err)
		assert.True(t, swapped)
		return nil
	})
	require.NoError(t, err)

	stored, err := repo.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "d", stored.OrderKey)

	err = repo.WithinTx(ctx, func(tx ports.OrderTx) error {
		_, exists, err := tx.GetOwner(ctx, 9999)
		require.NoError(t, err)
		assert.False(t, exists)
		return nil
	})
	require.NoError(t, err)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	l := insert(t, repo, owner, "x", "h")

	sentinel := domain.Conflict("stop", nil)
	err := repo.WithinTx(ctx, func(tx ports.OrderTx) error {
		_, err := tx.WriteKey(ctx, l.ID, "h", "d")
		require.NoError(t, err)
		return sentinel
	})
	assert.Equal(t, sentinel, err)

	stored, err := repo.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "h", stored.OrderKey)
}

func TestDelete_DropsFromOrdering(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	l := insert(t, repo, owner, "x", "h")

	require.NoError(t, repo.Delete(ctx, l.ID))

	stored, err := repo.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)

	err = repo.WithinTx(ctx, func(tx ports.OrderTx) error {
		swapped, err := tx.WriteKey(ctx, l.ID, "", "n")
		require.NoError(t, err)
		assert.False(t, swapped)
		return nil
	})
	require.NoError(t, err)

	dump, err := repo.Dump(ctx)
	require.NoError(t, err)
	require.Len(t, dump, 1)
	assert.NotNil(t, dump[0].DeletedAt)
}

func TestSetOrderKeys(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	a := insert(t, repo, owner, "a", "")
	b := insert(t, repo, owner, "b", "")

	require.NoError(t, repo.SetOrderKeys(ctx, []domain.Position{
		{LinkID: b.ID, OrderKey: "n"},
		{LinkID: a.ID, OrderKey: "o"},
	}))

	positions, err := repo.ListByScope(ctx, owner)
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, b.ID, positions[0].LinkID)
	assert.Equal(t, a.ID, positions[1].LinkID)
}

func TestProfiles(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	p := &domain.Profile{Owner: owner, Slug: "alice", Title: "Alice", Theme: domain.DefaultTheme, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.CreateProfile(ctx, p))
	assert.NotZero(t, p.ID)

	bySlug, err := repo.GetProfileBySlug(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, bySlug)
	assert.Equal(t, owner, bySlug.Owner)

	p.Slug = "alice2"
	p.Description = "hi"
	require.NoError(t, repo.UpdateProfile(ctx, p))

	byOwner, err := repo.GetProfileByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, "alice2", byOwner.Slug)
	assert.Equal(t, "hi", byOwner.Description)

	require.NoError(t, repo.DeleteProfile(ctx, p.ID))
	missing, err := repo.GetProfileBySlug(ctx, "alice2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestWithinTx_LockedDatabaseIsConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(errors.New("database is locked"))

	repo := NewSQLiteRepositoryWithDB(db)
	err = repo.WithinTx(context.Background(), func(ports.OrderTx) error {
		t.Fatal("callback must not run")
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteKey_BusyIsConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE links SET order_key").WillReturnError(errors.New("SQLITE_BUSY: database is busy"))
	mock.ExpectRollback()

	repo := NewSQLiteRepositoryWithDB(db)
	err = repo.WithinTx(context.Background(), func(tx ports.OrderTx) error {
		_, err := tx.WriteKey(context.Background(), 1, "b", "c")
		return err
	})
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_BusyIsConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM links WHERE id").WillReturnError(errors.New("database is locked (5) (SQLITE_BUSY)"))

	_, err = NewSQLiteRepositoryWithDB(db).GetByID(context.Background(), 1)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByScope_BusyIsConflict(t *testing.T) {
	t.Run("query", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT id, order_key FROM links").WillReturnError(errors.New("database is locked"))

		_, err = NewSQLiteRepositoryWithDB(db).ListByScope(context.Background(), owner)
		assert.Equal(t, domain.KindConflict, domain.KindOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("iteration", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		rows := sqlmock.NewRows([]string{"id", "order_key"}).
			AddRow(1, "b").
			AddRow(2, "c").
			RowError(1, errors.New("SQLITE_BUSY: database is busy"))
		mock.ExpectQuery("SELECT id, order_key FROM links").WillReturnRows(rows)

		_, err = NewSQLiteRepositoryWithDB(db).ListByScope(context.Background(), owner)
		assert.Equal(t, domain.KindConflict, domain.KindOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil, "op"))

	plain := classify(errors.New("no such table: links"), "list")
	assert.Equal(t, domain.KindUnexpected, domain.KindOf(plain))
	assert.Contains(t, plain.Error(), "list")

	nf := domain.NotFound("gone")
	assert.Equal(t, nf, classify(nf, "op"))

	assert.Equal(t, domain.KindConflict, domain.KindOf(classify(errors.New("database table is locked"), "op")))
}
