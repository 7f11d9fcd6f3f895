package storage

import "database/sql"

// migrateV002 adds a covering index for category-filtered rankings.
func migrateV002(tx *sql.Tx) error {
	_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_most_viewed_views_created_template
		ON ` + TableName + `(created, template_id, page_id)`)
	return err
}
