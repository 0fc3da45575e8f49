package repository_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/beach-seat-reservation/internal/database/dbtest"
	"github.com/iliyamo/beach-seat-reservation/internal/model"
	"github.com/iliyamo/beach-seat-reservation/internal/repository"
)

func seat(row string, index int) model.SeatKey {
	return model.SeatKey{BeachID: dbtest.BeachID, Row: row, Index: index}
}

func TestListSeatsOrdering(t *testing.T) {
	t.Parallel()

	repo := repository.NewSeatRepo(dbtest.Open(t))
	ctx := context.Background()
	require.NoError(t, repo.MarkOccupied(ctx, seat("J", 1), "2024-06-02"))
	require.NoError(t, repo.MarkOccupied(ctx, seat("J", 1), "2024-06-01"))

	seats, err := repo.ListSeats(ctx, dbtest.BeachID)
	require.NoError(t, err)
	require.Len(t, seats, 150)

	assert.Equal(t, seat("J", 1), seats[0].SeatKey)
	assert.Equal(t, []string{"2024-06-01", "2024-06-02"}, seats[0].Reservations)
	assert.Equal(t, seat("J", 2), seats[1].SeatKey)
	assert.Empty(t, seats[1].Reservations)
	assert.Equal(t, seat("I", 1), seats[15].SeatKey)
	assert.Equal(t, seat("A", 15), seats[149].SeatKey)
}

func TestMarkAndClearAreIdempotent(t *testing.T) {
	t.Parallel()

	repo := repository.NewSeatRepo(dbtest.Open(t))
	ctx := context.Background()
	key := seat("C", 7)

	require.NoError(t, repo.MarkOccupied(ctx, key, "2024-07-01"))
	require.NoError(t, repo.MarkOccupied(ctx, key, "2024-07-01"))

	n, err := repo.OccupancyForDate(ctx, dbtest.BeachID, "2024-07-01")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, repo.ClearOccupied(ctx, key, "2024-07-01"))
	require.NoError(t, repo.ClearOccupied(ctx, key, "2024-07-01"))
	require.NoError(t, repo.ClearOccupied(ctx, key, "2030-01-01"))

	n, err = repo.OccupancyForDate(ctx, dbtest.BeachID, "2024-07-01")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOccupancyBetween(t *testing.T) {
	t.Parallel()

	repo := repository.NewSeatRepo(dbtest.Open(t))
	ctx := context.Background()
	require.NoError(t, repo.MarkOccupied(ctx, seat("A", 1), "2024-05-27"))
	require.NoError(t, repo.MarkOccupied(ctx, seat("A", 2), "2024-05-27"))
	require.NoError(t, repo.MarkOccupied(ctx, seat("B", 2), "2024-05-29"))
	require.NoError(t, repo.MarkOccupied(ctx, seat("B", 3), "2024-06-30"))

	counts, err := repo.OccupancyBetween(ctx, dbtest.BeachID, "2024-05-27", "2024-06-30")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"2024-05-27": 2, "2024-05-29": 1}, counts)
}

func TestExists(t *testing.T) {
	t.Parallel()

	repo := repository.NewSeatRepo(dbtest.Open(t))
	ctx := context.Background()

	ok, err := repo.Exists(ctx, seat("J", 15))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(ctx, seat("K", 1))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResetAllOccupancyDropsBookingsToo(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	seats := repository.NewSeatRepo(db)
	bookings := repository.NewBookingRepo(db)
	ctx := context.Background()

	b := sampleBooking("b-1", "u-1", seat("D", 4), "2024-08-10")
	require.NoError(t, repository.InTx(ctx, db, func(tx *sql.Tx) error {
		if err := bookings.InsertTx(ctx, tx, b); err != nil {
			return err
		}
		return seats.MarkOccupiedTx(ctx, tx, b.Key(), b.Date)
	}))
	require.NoError(t, seats.MarkOccupied(ctx, seat("E", 1), "2024-08-11"))

	cleared, err := seats.ResetAllOccupancy(ctx, dbtest.BeachID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, cleared)

	list, err := bookings.ListForUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func sampleBooking(id, userID string, key model.SeatKey, date string) model.Booking {
	return model.Booking{
		ID:          id,
		BeachID:     key.BeachID,
		UserID:      userID,
		UserName:    "Mario",
		UserSurname: "Rossi",
		Row:         key.Row,
		Index:       key.Index,
		Date:        date,
		Chairs:      2,
		Price:       15,
		Receipt:     "00:11",
		CreatedAt:   time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}
