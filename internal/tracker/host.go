package tracker

import (
	"context"
	"strings"
)

// Hierarchy reports the ancestors of a subject, nearest first. It is owned by
// the host system; the tracker never materializes the tree.
type Hierarchy interface {
	AncestorsOf(ctx context.Context, subjectID int64) []int64
}

// HierarchyFunc adapts a function to Hierarchy.
type HierarchyFunc func(ctx context.Context, subjectID int64) []int64

func (f HierarchyFunc) AncestorsOf(ctx context.Context, subjectID int64) []int64 {
	return f(ctx, subjectID)
}

// StaticHierarchy maps subject ids to their ancestor ids.
type StaticHierarchy map[int64][]int64

func (h StaticHierarchy) AncestorsOf(_ context.Context, subjectID int64) []int64 {
	return h[subjectID]
}

// CategoryResolver maps category names to ids.
type CategoryResolver interface {
	ResolveCategory(ctx context.Context, name string) (int64, bool)
}

// CategoryMap resolves names case-insensitively from a fixed table.
type CategoryMap map[string]int64

func (m CategoryMap) ResolveCategory(_ context.Context, name string) (int64, bool) {
	if id, ok := m[name]; ok {
		return id, true
	}
	for k, id := range m {
		if strings.EqualFold(k, name) {
			return id, true
		}
	}
	return 0, false
}
