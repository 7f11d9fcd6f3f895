package cli

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"os"
	"testing"
	"time"

	"cdr.dev/slog/v3/sloggers/slogtest"
	"github.com/coder/quartz"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/mostviewed/internal/config"
	"github.com/runnerr0/mostviewed/internal/storage"
)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// newTestSession wires a session to a migrated in-memory database and a
// mock clock. mutate adjusts the default config before the session is built.
func newTestSession(t *testing.T, mutate ...func(*config.Config)) (*session, *quartz.Mock) {
	t.Helper()

	cfg := config.DefaultConfig()
	for _, m := range mutate {
		m(cfg)
	}

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	logger := slogtest.Make(t, &slogtest.Options{IgnoreErrors: true})
	sess, err := newSession(cfg, logger, db)
	require.NoError(t, err)
	t.Cleanup(sess.Close)

	clock := quartz.NewMock(t)
	sess.clock = clock
	return sess, clock
}

// seedViews appends n views of subject at clock.Now()-age.
func seedViews(t *testing.T, sess *session, clock quartz.Clock, subject, category int64, age time.Duration, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, sess.store.AddView(context.Background(), &storage.ViewEvent{
			SubjectID:  subject,
			CategoryID: category,
			OccurredAt: clock.Now().Add(-age),
		}))
	}
}

func countViews(t *testing.T, sess *session) int {
	t.Helper()
	var n int
	require.NoError(t, sess.db.QueryRow("SELECT COUNT(*) FROM "+storage.TableName).Scan(&n))
	return n
}

// breakStore drops the view table so every store call fails.
func breakStore(t *testing.T, sess *session) {
	t.Helper()
	_, err := sess.db.Exec("DROP TABLE " + storage.TableName)
	require.NoError(t, err)
}
