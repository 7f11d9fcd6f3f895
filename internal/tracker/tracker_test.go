package tracker

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"cdr.dev/slog/v3/sloggers/slogtest"
	"github.com/coder/quartz"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/mostviewed/internal/storage"
)

const notFoundID = 27

type testEnv struct {
	tracker *Tracker
	store   *storage.SQLiteStore
	db      *sql.DB
	clock   *quartz.Mock
	metrics *Metrics
}

// newTestEnv wires a Tracker to a migrated in-memory store and a mock clock.
func newTestEnv(t *testing.T, mutate ...func(*Options)) *testEnv {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, storage.NewMigrationRunner(db, "").Run())

	logger := slogtest.Make(t, nil)
	store, err := storage.NewSQLiteStore(db, logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := quartz.NewMock(t)
	metrics := NewMetrics(nil)
	opts := Options{
		Store:      store,
		NotFoundID: notFoundID,
		Clock:      clock,
		Logger:     logger,
		Metrics:    metrics,
	}
	for _, m := range mutate {
		m(&opts)
	}

	return &testEnv{
		tracker: New(opts),
		store:   store,
		db:      db,
		clock:   clock,
		metrics: metrics,
	}
}

// seed appends n views of subject at clock.Now()-age.
func (e *testEnv) seed(t *testing.T, subject, category int64, age time.Duration, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, e.store.AddView(context.Background(), &storage.ViewEvent{
			SubjectID:  subject,
			CategoryID: category,
			OccurredAt: e.clock.Now().Add(-age),
		}))
	}
}

func (e *testEnv) rowCount(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.QueryRow("SELECT COUNT(*) FROM "+storage.TableName).Scan(&n))
	return n
}

// failingStore fails every operation.
type failingStore struct{ err error }

var _ storage.Store = failingStore{}

func (f failingStore) AddView(context.Context, *storage.ViewEvent) error { return f.err }
func (f failingStore) TopSubjects(context.Context, storage.RankQuery) ([]storage.RankedRow, error) {
	return nil, f.err
}
func (f failingStore) CountBefore(context.Context, time.Time) (int64, error) { return 0, f.err }
func (f failingStore) PruneBefore(context.Context, time.Time) (int64, error) { return 0, f.err }
func (f failingStore) DeleteSubject(context.Context, int64) (int64, error)   { return 0, f.err }
func (f failingStore) PurgeAll(context.Context) (int64, error)               { return 0, f.err }
func (f failingStore) GetStats(context.Context) (*storage.Stats, error)      { return nil, f.err }
func (f failingStore) Close() error                                          { return nil }

var errDiskFull = errors.New("disk full")
