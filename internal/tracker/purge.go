package tracker

import (
	"context"
	"time"

	"cdr.dev/slog/v3"
)

const day = 24 * time.Hour

// PurgeOlderThan deletes views recorded more than days days ago and returns
// how many were removed. Repeating the call with the same cutoff removes
// nothing.
func (t *Tracker) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	const op = "purge older than"
	if days < 0 {
		return 0, invalidArgument(op, "days must not be negative, got %d", days)
	}

	cutoff := t.clock.Now().Add(-time.Duration(days) * day)
	n, err := t.store.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, &Error{Kind: KindStorageWrite, Op: op, Err: err}
	}

	t.afterPurge(ctx, "retention", n)
	t.logger.Info(ctx, "purged old views", slog.F("days", days), slog.F("deleted", n))
	return n, nil
}

// CountOlderThan reports how many views PurgeOlderThan would delete.
func (t *Tracker) CountOlderThan(ctx context.Context, days int) (int64, error) {
	const op = "count older than"
	if days < 0 {
		return 0, invalidArgument(op, "days must not be negative, got %d", days)
	}

	n, err := t.store.CountBefore(ctx, t.clock.Now().Add(-time.Duration(days)*day))
	if err != nil {
		return 0, &Error{Kind: KindStorageRead, Op: op, Err: err}
	}
	return n, nil
}

// PurgeForSubject deletes every view of a subject the host removed or
// trashed. Zero deletions is a normal outcome.
func (t *Tracker) PurgeForSubject(ctx context.Context, subjectID int64) (int64, error) {
	const op = "purge for subject"
	if subjectID <= 0 {
		return 0, invalidArgument(op, "subject id must be positive, got %d", subjectID)
	}

	n, err := t.store.DeleteSubject(ctx, subjectID)
	if err != nil {
		return 0, &Error{Kind: KindStorageWrite, Op: op, Err: err}
	}

	t.afterPurge(ctx, "subject", n)
	if n > 0 {
		t.logger.Info(ctx, "purged subject views", slog.F("subject_id", subjectID), slog.F("deleted", n))
	}
	return n, nil
}

// PurgeAll empties the view log.
func (t *Tracker) PurgeAll(ctx context.Context) (int64, error) {
	n, err := t.store.PurgeAll(ctx)
	if err != nil {
		return 0, &Error{Kind: KindStorageWrite, Op: "purge all", Err: err}
	}

	t.afterPurge(ctx, "all", n)
	t.logger.Info(ctx, "purged all views", slog.F("deleted", n))
	return n, nil
}

func (t *Tracker) afterPurge(ctx context.Context, cause string, n int64) {
	if n == 0 {
		return
	}
	t.metrics.ViewsPurged.WithLabelValues(cause).Add(float64(n))
	if t.cache == nil {
		return
	}
	if err := t.cache.Invalidate(ctx); err != nil {
		t.logger.Warn(ctx, "invalidate rank cache", slog.Error(err))
	}
}
