package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/mostviewed/internal/storage"
)

var testLadder = LadderFromMinutes(60, 120, 180)

func TestMostViewed_FirstWindowSatisfiesLimit(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, 5, 1, 10*time.Minute, 3)
	env.seed(t, 7, 1, 5*time.Minute, 1)

	rows, err := env.tracker.MostViewed(context.Background(), Query{Ladder: testLadder, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []storage.RankedRow{
		{SubjectID: 5, Count: 3},
		{SubjectID: 7, Count: 1},
	}, rows)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.RankWindows.WithLabelValues("1")))
	assert.Equal(t, 0.0, testutil.ToFloat64(env.metrics.RankWindows.WithLabelValues("2")))
}

func TestMostViewed_EscalatesToSecondWindow(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, 1, 1, 30*time.Minute, 2)  // window 1
	env.seed(t, 2, 1, 90*time.Minute, 4)  // window 2
	env.seed(t, 3, 1, 150*time.Minute, 9) // window 3

	rows, err := env.tracker.MostViewed(context.Background(), Query{Ladder: testLadder, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []storage.RankedRow{
		{SubjectID: 2, Count: 4},
		{SubjectID: 1, Count: 2},
	}, rows)
	assert.Equal(t, 0.0, testutil.ToFloat64(env.metrics.RankWindows.WithLabelValues("3")))
}

func TestMostViewed_FirstPassStopsAfterPrimary(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, 1, 1, 30*time.Minute, 2)
	env.seed(t, 2, 1, 90*time.Minute, 4)

	rows, err := env.tracker.MostViewed(context.Background(), Query{Ladder: testLadder, Limit: 2, Mode: FirstPass})
	require.NoError(t, err)
	assert.Equal(t, []storage.RankedRow{{SubjectID: 1, Count: 2}}, rows)
}

func TestMostViewed_LadderExhausted(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, 1, 1, 30*time.Minute, 1)
	env.seed(t, 2, 1, 170*time.Minute, 1)
	env.seed(t, 3, 1, 10*time.Hour, 50) // outside every rung

	rows, err := env.tracker.MostViewed(context.Background(), Query{Ladder: testLadder, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, []storage.RankedRow{
		{SubjectID: 2, Count: 1},
		{SubjectID: 1, Count: 1},
	}, rows)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.RankWindows.WithLabelValues("3")))
}

func TestMostViewed_LookbackReplacesFirstRung(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, 1, 1, 5*time.Minute, 1)
	env.seed(t, 2, 1, 20*time.Minute, 1)

	rows, err := env.tracker.MostViewed(context.Background(), Query{
		Ladder:   testLadder,
		Lookback: 10 * time.Minute,
		Limit:    5,
		Mode:     FirstPass,
	})
	require.NoError(t, err)
	assert.Equal(t, []storage.RankedRow{{SubjectID: 1, Count: 1}}, rows)
}

func TestMostViewed_NeverExceedsLimitAndSorted(t *testing.T) {
	env := newTestEnv(t)
	for id := int64(1); id <= 12; id++ {
		env.seed(t, id, 1, time.Minute, int(id%4)+1)
	}

	rows, err := env.tracker.MostViewed(context.Background(), Query{Ladder: testLadder, Limit: 5})
	require.NoError(t, err)
	require.Len(t, rows, 5)
	for i := 1; i < len(rows); i++ {
		prev, cur := rows[i-1], rows[i]
		ordered := prev.Count > cur.Count || (prev.Count == cur.Count && prev.SubjectID > cur.SubjectID)
		assert.True(t, ordered, "row %d out of order: %+v then %+v", i, prev, cur)
	}
}

func TestMostViewed_SkipsNotFoundSubject(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, notFoundID, 1, time.Minute, 10)
	env.seed(t, 3, 1, time.Minute, 1)

	rows, err := env.tracker.MostViewed(context.Background(), Query{Ladder: testLadder, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, []storage.RankedRow{{SubjectID: 3, Count: 1}}, rows)
}

func TestMostViewed_CategoryFilter(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.Categories = CategoryMap{"article": 10, "event": 20}
	})
	env.seed(t, 1, 10, time.Minute, 3)
	env.seed(t, 2, 20, time.Minute, 2)
	env.seed(t, 3, 30, time.Minute, 5)

	ctx := context.Background()

	rows, err := env.tracker.MostViewed(ctx, Query{Ladder: testLadder, Limit: 5, Categories: []string{"Article, event"}})
	require.NoError(t, err)
	assert.Equal(t, []storage.RankedRow{{SubjectID: 1, Count: 3}, {SubjectID: 2, Count: 2}}, rows)

	rows, err = env.tracker.MostViewed(ctx, Query{Ladder: testLadder, Limit: 5, Categories: []string{"30"}})
	require.NoError(t, err)
	assert.Equal(t, []storage.RankedRow{{SubjectID: 3, Count: 5}}, rows)

	// Unknown names resolve to nothing, which means no restriction.
	rows, err = env.tracker.MostViewed(ctx, Query{Ladder: testLadder, Limit: 5, Categories: []string{"gallery"}})
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestMostViewed_EmptyLog(t *testing.T) {
	env := newTestEnv(t)

	rows, err := env.tracker.MostViewed(context.Background(), Query{Ladder: testLadder, Limit: 3})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMostViewed_RepeatableReads(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, 1, 1, time.Minute, 2)
	env.seed(t, 2, 1, 100*time.Minute, 2)
	env.seed(t, 3, 1, 100*time.Minute, 1)

	q := Query{Ladder: testLadder, Limit: 3}
	first, err := env.tracker.MostViewed(context.Background(), q)
	require.NoError(t, err)
	second, err := env.tracker.MostViewed(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMostViewed_InvalidArguments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		q    Query
	}{
		{"zero limit", Query{Ladder: testLadder, Limit: 0}},
		{"negative limit", Query{Ladder: testLadder, Limit: -1}},
		{"negative lookback", Query{Ladder: testLadder, Limit: 1, Lookback: -time.Minute}},
		{"zero rung", Query{Ladder: LadderFromMinutes(60, 0, 180), Limit: 1}},
		{"non-positive category id", Query{Ladder: testLadder, Limit: 1, Categories: []string{"0"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.tracker.MostViewed(ctx, tc.q)
			require.Error(t, err)
			assert.True(t, IsKind(err, KindInvalidArgument))
		})
	}
}

func TestMostViewed_StorageReadFailure(t *testing.T) {
	tr := New(Options{Store: failingStore{err: errDiskFull}})

	_, err := tr.MostViewed(context.Background(), Query{Ladder: testLadder, Limit: 3})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindStorageRead))
	assert.True(t, errors.Is(err, errDiskFull))
}

// memCache is a RankCache backed by a map.
type memCache struct {
	rows        map[string][]storage.RankedRow
	invalidated int
}

func (c *memCache) Get(_ context.Context, key string) ([]storage.RankedRow, bool, error) {
	rows, ok := c.rows[key]
	return rows, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, rows []storage.RankedRow) error {
	c.rows[key] = rows
	return nil
}

func (c *memCache) Invalidate(context.Context) error {
	c.rows = map[string][]storage.RankedRow{}
	c.invalidated++
	return nil
}

func TestMostViewed_UsesCache(t *testing.T) {
	cache := &memCache{rows: map[string][]storage.RankedRow{}}
	env := newTestEnv(t, func(o *Options) { o.Cache = cache })
	env.seed(t, 1, 1, time.Minute, 1)

	q := Query{Ladder: testLadder, Limit: 1}
	rows, err := env.tracker.MostViewed(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, cache.rows, 1)

	// A new view is not visible until the cached entry goes away.
	env.seed(t, 2, 1, time.Minute, 5)
	cached, err := env.tracker.MostViewed(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, rows, cached)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.RankWindows.WithLabelValues("1")))

	_, err = env.tracker.PurgeForSubject(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.invalidated)

	fresh, err := env.tracker.MostViewed(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []storage.RankedRow{{SubjectID: 2, Count: 5}}, fresh)
}

func TestCacheKey_DistinguishesModes(t *testing.T) {
	w := testLadder.Rungs()
	a := cacheKey(w, 5, []int64{1, 2}, Exhaustive)
	b := cacheKey(w, 5, []int64{1, 2}, FirstPass)
	c := cacheKey(w, 5, nil, Exhaustive)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, cacheKey(w, 5, []int64{1, 2}, Exhaustive))
}

func TestReport_OneFirstPassSectionPerRung(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, 1, 1, 30*time.Minute, 1)
	env.seed(t, 2, 1, 90*time.Minute, 2)
	env.seed(t, 3, 1, 150*time.Minute, 3)

	sections, err := env.tracker.Report(context.Background(), testLadder, 10, nil)
	require.NoError(t, err)
	require.Len(t, sections, 3)

	assert.Equal(t, time.Hour, sections[0].Window)
	assert.Equal(t, []storage.RankedRow{{SubjectID: 1, Count: 1}}, sections[0].Rows)
	assert.Len(t, sections[1].Rows, 2)
	assert.Equal(t, []storage.RankedRow{
		{SubjectID: 3, Count: 3},
		{SubjectID: 2, Count: 2},
		{SubjectID: 1, Count: 1},
	}, sections[2].Rows)
}

func TestLadderWindows(t *testing.T) {
	l := LadderFromMinutes(1440, 2880, 4320)
	assert.Equal(t, []time.Duration{24 * time.Hour, 48 * time.Hour, 72 * time.Hour}, l.Windows(0))
	assert.Equal(t, []time.Duration{time.Hour, 48 * time.Hour, 72 * time.Hour}, l.Windows(time.Hour))
	assert.NoError(t, l.Validate())
	assert.Error(t, Ladder{}.Validate())
}
