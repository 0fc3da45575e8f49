package model

import "fmt"

// SeatKey identifies a physical place on the beach. Row is a letter (A–J),
// Index the position inside the row (1–15).
type SeatKey struct {
	BeachID string `json:"beachId"`
	Row     string `json:"row"`
	Index   int    `json:"index"`
}

func (k SeatKey) String() string { return fmt.Sprintf("%s/%s%d", k.BeachID, k.Row, k.Index) }

// Seat is a place together with the dates (YYYY-MM-DD) on which it is taken.
type Seat struct {
	SeatKey
	Reservations []string `json:"reservations"`
}

// IsReserved reports whether the seat is taken on date.
func (s Seat) IsReserved(date string) bool {
	for _, d := range s.Reservations {
		if d == date {
			return true
		}
	}
	return false
}

// SeatRow groups the seats sharing a row letter, in index order.
type SeatRow struct {
	Row   string `json:"row"`
	Label string `json:"label"`
	Seats []Seat `json:"seats"`
}
