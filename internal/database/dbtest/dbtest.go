// Package dbtest opens throwaway in-memory SQLite databases carrying the
// production schema and seat layout.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/beach-seat-reservation/internal/database"
)

const (
	BeachID   = "4gZNmQXk"
	BeachName = "Lido 1"
)

var seq atomic.Int64

// Open returns a migrated and provisioned database that is closed when the
// test ends. Every call gets its own private database.
func Open(t testing.TB) *sql.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:dbtest%d?mode=memory&cache=shared", seq.Add(1))
	db, err := database.OpenSQLite(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, database.Migrate(ctx, db))
	require.NoError(t, database.ProvisionBeach(ctx, db, BeachID, BeachName))
	return db
}
