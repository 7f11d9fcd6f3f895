package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"cdr.dev/slog/v3"
)

// timeLayout matches SQLite's CURRENT_TIMESTAMP so that rows written with the
// column default and rows written by AddView order the same way.
const timeLayout = "2006-01-02 15:04:05"

// Store defines the interface for view log operations.
type Store interface {
	AddView(ctx context.Context, view *ViewEvent) error
	TopSubjects(ctx context.Context, query RankQuery) ([]RankedRow, error)
	CountBefore(ctx context.Context, cutoff time.Time) (int64, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteSubject(ctx context.Context, subjectID int64) (int64, error)
	PurgeAll(ctx context.Context) (int64, error)
	GetStats(ctx context.Context) (*Stats, error)
	Close() error
}

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger slog.Logger

	// Prepared statements
	insertView    *sql.Stmt
	deleteSubject *sql.Stmt
	pruneBefore   *sql.Stmt
	countBefore   *sql.Stmt
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLiteStore from an already-opened and migrated database.
func NewSQLiteStore(db *sql.DB, logger slog.Logger) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db, logger: logger}

	if err := s.prepareStatements(); err != nil {
		s.Close()
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.insertView, err = s.db.Prepare(`
		INSERT INTO ` + TableName + ` (page_id, template_id, created)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.deleteSubject, err = s.db.Prepare(`DELETE FROM ` + TableName + ` WHERE page_id = ?`)
	if err != nil {
		return err
	}

	s.pruneBefore, err = s.db.Prepare(`DELETE FROM ` + TableName + ` WHERE created < ?`)
	if err != nil {
		return err
	}

	s.countBefore, err = s.db.Prepare(`SELECT COUNT(*) FROM ` + TableName + ` WHERE created < ?`)
	if err != nil {
		return err
	}

	return nil
}

// formatTimestamp renders t in the stored layout, always in UTC.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTimestamp tries several common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		timeLayout,
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05.999999999-07:00",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}

// AddView appends a view to the log. A zero OccurredAt is replaced by the
// current time.
func (s *SQLiteStore) AddView(ctx context.Context, view *ViewEvent) error {
	if view.OccurredAt.IsZero() {
		view.OccurredAt = time.Now()
	}

	_, err := s.insertView.ExecContext(ctx,
		view.SubjectID, view.CategoryID, formatTimestamp(view.OccurredAt),
	)
	if err != nil {
		return fmt.Errorf("insert view: %w", err)
	}

	return nil
}

// TopSubjects counts views newer than q.Since grouped by subject, ordered by
// count and then subject id, both descending.
func (s *SQLiteStore) TopSubjects(ctx context.Context, q RankQuery) ([]RankedRow, error) {
	if q.Limit <= 0 {
		return []RankedRow{}, nil
	}

	clauses := []string{"page_id != ?", "created > ?"}
	args := []interface{}{q.ExcludeSubject, formatTimestamp(q.Since)}

	if len(q.Categories) > 0 {
		placeholders := make([]string, len(q.Categories))
		for i, id := range q.Categories {
			placeholders[i] = "?"
			args = append(args, id)
		}
		clauses = append(clauses, "template_id IN ("+strings.Join(placeholders, ", ")+")")
	}

	query := `
		SELECT page_id, COUNT(*) AS cnt
		FROM ` + TableName + `
		WHERE ` + strings.Join(clauses, " AND ") + `
		GROUP BY page_id
		ORDER BY cnt DESC, page_id DESC
		LIMIT ?`
	args = append(args, q.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query top subjects: %w", err)
	}
	defer rows.Close()

	result := []RankedRow{}
	for rows.Next() {
		var r RankedRow
		if err := rows.Scan(&r.SubjectID, &r.Count); err != nil {
			return nil, fmt.Errorf("scan ranked row: %w", err)
		}
		result = append(result, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ranked rows: %w", err)
	}

	return result, nil
}

// CountBefore reports how many views PruneBefore would delete.
func (s *SQLiteStore) CountBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	if err := s.countBefore.QueryRowContext(ctx, formatTimestamp(cutoff)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count views: %w", err)
	}
	return n, nil
}

// PruneBefore deletes views recorded before cutoff.
func (s *SQLiteStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.pruneBefore.ExecContext(ctx, formatTimestamp(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune views: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune views: %w", err)
	}

	s.logger.Debug(ctx, "pruned views",
		slog.F("cutoff", formatTimestamp(cutoff)),
		slog.F("deleted", n),
	)
	return n, nil
}

// DeleteSubject removes every view of one subject. Deleting nothing is not an error.
func (s *SQLiteStore) DeleteSubject(ctx context.Context, subjectID int64) (int64, error) {
	res, err := s.deleteSubject.ExecContext(ctx, subjectID)
	if err != nil {
		return 0, fmt.Errorf("delete subject %d: %w", subjectID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete subject %d: %w", subjectID, err)
	}

	if n > 0 {
		s.logger.Debug(ctx, "deleted subject views",
			slog.F("subject_id", subjectID),
			slog.F("deleted", n),
		)
	}
	return n, nil
}

// PurgeAll deletes the whole view log.
func (s *SQLiteStore) PurgeAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+TableName)
	if err != nil {
		return 0, fmt.Errorf("purge views: %w", err)
	}
	return res.RowsAffected()
}

// GetStats returns aggregate statistics about the view log.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT page_id) FROM "+TableName,
	).Scan(&stats.TotalViews, &stats.DistinctSubjects)
	if err != nil {
		return nil, fmt.Errorf("count views: %w", err)
	}

	// Oldest and newest (handle empty DB)
	if stats.TotalViews > 0 {
		var oldestStr, newestStr string
		err = s.db.QueryRowContext(ctx,
			"SELECT MIN(created), MAX(created) FROM "+TableName,
		).Scan(&oldestStr, &newestStr)
		if err != nil {
			return nil, fmt.Errorf("view time range: %w", err)
		}
		stats.OldestView, _ = parseTimestamp(oldestStr)
		stats.NewestView, _ = parseTimestamp(newestStr)
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err == nil {
			stats.DatabaseSize = pageCount * pageSize
		}
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT template_id, COUNT(*) AS cnt FROM "+TableName+
			" GROUP BY template_id ORDER BY cnt DESC, template_id ASC LIMIT 10",
	)
	if err != nil {
		return nil, fmt.Errorf("top categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cc CategoryCount
		if err := rows.Scan(&cc.CategoryID, &cc.Count); err != nil {
			return nil, err
		}
		stats.TopCategories = append(stats.TopCategories, cc)
	}

	return stats, rows.Err()
}

// Close releases all prepared statements. The underlying *sql.DB is NOT
// closed, that is the caller's responsibility.
func (s *SQLiteStore) Close() error {
	stmts := []*sql.Stmt{
		s.insertView, s.deleteSubject, s.pruneBefore, s.countBefore,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
	return nil
}
