package storage

import "time"

// TableName is the single table holding the view log.
const TableName = "most_viewed_views"

// ViewEvent is one recorded view of a subject. Rows are append-only.
type ViewEvent struct {
	SubjectID  int64
	CategoryID int64
	OccurredAt time.Time
}

// RankQuery defines one aggregation window over the view log.
type RankQuery struct {
	Since          time.Time
	Limit          int
	ExcludeSubject int64   // the "not found" subject, never ranked
	Categories     []int64 // empty means no restriction
}

// RankedRow pairs a subject with the number of views it got in a window.
type RankedRow struct {
	SubjectID int64 `json:"subject_id"`
	Count     int64 `json:"count"`
}

// Stats holds aggregate statistics about the view log.
type Stats struct {
	TotalViews       int64
	DistinctSubjects int64
	OldestView       time.Time
	NewestView       time.Time
	DatabaseSize     int64
	TopCategories    []CategoryCount
}

// CategoryCount pairs a category with its view count.
type CategoryCount struct {
	CategoryID int64
	Count      int64
}
