package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
)

// The schema sticks to the subset of DDL understood by both MySQL and SQLite.
//
//go:embed schema.sql
var schema string

// Migrate creates any missing table. Statements are run one by one because
// the MySQL driver rejects multi-statement Exec without multiStatements=true.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
