package database

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect/sql"
)

// CreateGINIndexes creates full-text search GIN indexes for PostgreSQL.
// These indexes enable efficient full-text search over the searchable text
// extract and error messages recorded on each execution log (§3 ExecutionLog).
func CreateGINIndexes(ctx context.Context, driver *sql.Driver) error {
	db := driver.DB()

	_, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_execution_logs_searchable_text_gin
		ON execution_logs USING gin(to_tsvector('english', searchable_text_extract))`)
	if err != nil {
		return fmt.Errorf("failed to create searchable_text_extract GIN index: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_execution_logs_error_message_gin
		ON execution_logs USING gin(to_tsvector('english', COALESCE(error_message, '')))`)
	if err != nil {
		return fmt.Errorf("failed to create error_message GIN index: %w", err)
	}

	return nil
}
