package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Layout of the single venue: rows A–J, places 1–15 in each row.
var (
	LayoutRows       = []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"}
	LayoutRowLength  = 15
	LayoutSeatsTotal = len(LayoutRows) * LayoutRowLength
)

// ProvisionBeach inserts the venue and its seats unless they already exist.
// Seats are provisioned once and never changed afterwards.
func ProvisionBeach(ctx context.Context, db *sql.DB, beachID, name string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("provision: begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var n int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM beaches WHERE id = ?", beachID).Scan(&n); err != nil {
		return fmt.Errorf("provision: lookup beach: %w", err)
	}
	if n > 0 {
		return nil
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO beaches (id, name) VALUES (?, ?)", beachID, name); err != nil {
		return fmt.Errorf("provision: insert beach: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO seats (beach_id, row_label, seat_index) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("provision: prepare: %w", err)
	}
	defer stmt.Close()

	for _, row := range LayoutRows {
		for i := 1; i <= LayoutRowLength; i++ {
			if _, err := stmt.ExecContext(ctx, beachID, row, i); err != nil {
				return fmt.Errorf("provision: seat %s%d: %w", row, i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("provision: commit: %w", err)
	}
	committed = true
	return nil
}
