// Package tracker records page views and answers "most viewed" queries over
// the view log.
package tracker

import (
	"context"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"

	"github.com/runnerr0/mostviewed/internal/storage"
)

// RankCache stores ranked results for a short time. Keys are opaque query
// descriptors; the cache is free to hash them.
type RankCache interface {
	Get(ctx context.Context, key string) ([]storage.RankedRow, bool, error)
	Set(ctx context.Context, key string, rows []storage.RankedRow) error
	Invalidate(ctx context.Context) error
}

// Options configures a Tracker. Store is required.
type Options struct {
	Store storage.Store
	// NotFoundID is the host's reserved "page not found" subject. It is never
	// recorded or ranked.
	NotFoundID int64
	Clock      quartz.Clock
	Logger     slog.Logger
	Hierarchy  Hierarchy
	Categories CategoryResolver
	Metrics    *Metrics
	// Cache is invalidated by purges only; recorded views show up once
	// cached entries expire.
	Cache RankCache
}

// Tracker is stateless apart from its injected collaborators; every method
// is safe for concurrent use.
type Tracker struct {
	store      storage.Store
	notFoundID int64
	clock      quartz.Clock
	logger     slog.Logger
	hierarchy  Hierarchy
	categories CategoryResolver
	metrics    *Metrics
	cache      RankCache
}

// New builds a Tracker, filling unset collaborators with defaults.
func New(opts Options) *Tracker {
	t := &Tracker{
		store:      opts.Store,
		notFoundID: opts.NotFoundID,
		clock:      opts.Clock,
		logger:     opts.Logger,
		hierarchy:  opts.Hierarchy,
		categories: opts.Categories,
		metrics:    opts.Metrics,
		cache:      opts.Cache,
	}
	if t.clock == nil {
		t.clock = quartz.NewReal()
	}
	if t.hierarchy == nil {
		t.hierarchy = StaticHierarchy{}
	}
	if t.categories == nil {
		t.categories = CategoryMap{}
	}
	if t.metrics == nil {
		t.metrics = NewMetrics(nil)
	}
	return t
}

// NotFoundID returns the reserved subject id this tracker ignores.
func (t *Tracker) NotFoundID() int64 {
	return t.notFoundID
}
