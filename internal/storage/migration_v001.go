package storage

import "database/sql"

// migrateV001 creates the view log table and its indexes. Every statement
// uses IF NOT EXISTS for idempotency.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + TableName + ` (
			page_id     INTEGER NOT NULL CHECK (page_id >= 0),
			template_id INTEGER NOT NULL CHECK (template_id >= 0),
			created     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_most_viewed_views_page_id ON ` + TableName + `(page_id)`,
		`CREATE INDEX IF NOT EXISTS idx_most_viewed_views_created ON ` + TableName + `(created)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
