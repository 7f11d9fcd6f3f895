package tracker

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cdr.dev/slog/v3"

	"github.com/runnerr0/mostviewed/internal/storage"
)

// Query describes one MostViewed call.
type Query struct {
	Ladder Ladder
	// Lookback replaces the first rung when positive.
	Lookback time.Duration
	Limit    int
	// Categories are names or numeric ids, possibly comma separated.
	// Unknown names are dropped; an empty result means no restriction.
	Categories []string
	Mode       Mode
}

// MostViewed aggregates the view log over escalating windows. It stops at the
// first window that yields Limit rows, after the first window in FirstPass
// mode, or when the ladder runs out, and returns the rows of the last window
// it ran.
func (t *Tracker) MostViewed(ctx context.Context, q Query) ([]storage.RankedRow, error) {
	const op = "most viewed"
	if q.Limit <= 0 {
		return nil, invalidArgument(op, "limit must be positive, got %d", q.Limit)
	}
	if q.Lookback < 0 {
		return nil, invalidArgument(op, "lookback must not be negative, got %s", q.Lookback)
	}
	windows := q.Ladder.Windows(q.Lookback)
	if err := (Ladder{windows[0], windows[1], windows[2]}).Validate(); err != nil {
		return nil, invalidArgument(op, "ladder: %v", err)
	}

	categories, err := t.resolveCategories(ctx, q.Categories)
	if err != nil {
		return nil, invalidArgument(op, "%v", err)
	}

	key := cacheKey(windows, q.Limit, categories, q.Mode)
	if rows, ok := t.cachedRows(ctx, key); ok {
		return rows, nil
	}

	now := t.clock.Now()
	var rows []storage.RankedRow
	for i, w := range windows {
		rows, err = t.store.TopSubjects(ctx, storage.RankQuery{
			Since:          now.Add(-w),
			Limit:          q.Limit,
			ExcludeSubject: t.notFoundID,
			Categories:     categories,
		})
		if err != nil {
			return nil, &Error{Kind: KindStorageRead, Op: op, Err: err}
		}
		t.metrics.RankWindows.WithLabelValues(strconv.Itoa(i + 1)).Inc()

		if len(rows) >= q.Limit || q.Mode == FirstPass {
			break
		}
		t.logger.Debug(ctx, "widening most viewed window",
			slog.F("window", w),
			slog.F("rows", len(rows)),
			slog.F("limit", q.Limit),
		)
	}

	t.storeRows(ctx, key, rows)
	return rows, nil
}

// resolveCategories turns names and numeric ids into a sorted, de-duplicated
// id list.
func (t *Tracker) resolveCategories(ctx context.Context, names []string) ([]int64, error) {
	set := IDSet{}
	for _, entry := range names {
		for _, name := range strings.Split(entry, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if id, err := strconv.ParseInt(name, 10, 64); err == nil {
				if id <= 0 {
					return nil, fmt.Errorf("category id must be positive, got %d", id)
				}
				set[id] = struct{}{}
				continue
			}
			if id, ok := t.categories.ResolveCategory(ctx, name); ok {
				set[id] = struct{}{}
				continue
			}
			t.logger.Debug(ctx, "dropping unknown category", slog.F("name", name))
		}
	}
	if len(set) == 0 {
		return nil, nil
	}
	return set.Sorted(), nil
}

func cacheKey(windows []time.Duration, limit int, categories []int64, mode Mode) string {
	var b strings.Builder
	for _, w := range windows {
		fmt.Fprintf(&b, "w=%d;", int64(w/time.Second))
	}
	fmt.Fprintf(&b, "l=%d;m=%s;c=", limit, mode)
	for i, id := range categories {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(id, 10))
	}
	return b.String()
}

func (t *Tracker) cachedRows(ctx context.Context, key string) ([]storage.RankedRow, bool) {
	if t.cache == nil {
		return nil, false
	}
	rows, ok, err := t.cache.Get(ctx, key)
	if err != nil {
		t.logger.Warn(ctx, "read rank cache", slog.Error(err))
		return nil, false
	}
	return rows, ok
}

func (t *Tracker) storeRows(ctx context.Context, key string, rows []storage.RankedRow) {
	if t.cache == nil {
		return
	}
	if err := t.cache.Set(ctx, key, rows); err != nil {
		t.logger.Warn(ctx, "write rank cache", slog.Error(err))
	}
}

// ReportSection is the FirstPass ranking for one rung.
type ReportSection struct {
	Window time.Duration
	Rows   []storage.RankedRow
}

// Report runs a FirstPass query for every rung of the ladder, the way an
// admin dashboard shows "last N hours" tables side by side.
func (t *Tracker) Report(ctx context.Context, ladder Ladder, limit int, categories []string) ([]ReportSection, error) {
	sections := make([]ReportSection, 0, 3)
	for _, w := range ladder.Rungs() {
		rows, err := t.MostViewed(ctx, Query{
			Ladder:     ladder,
			Lookback:   w,
			Limit:      limit,
			Categories: categories,
			Mode:       FirstPass,
		})
		if err != nil {
			return nil, err
		}
		sections = append(sections, ReportSection{Window: w, Rows: rows})
	}
	return sections, nil
}
