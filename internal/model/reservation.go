package model

import "time"

// Booking mirrors the bookings table. At most one row exists per seat and date.
type Booking struct {
	ID          string
	BeachID     string
	UserID      string
	UserName    string
	UserSurname string
	Row         string
	Index       int
	Date        string
	Chairs      int
	Price       int
	Receipt     string
	PaymentRef  string
	CreatedAt   time.Time
}

func (b Booking) Key() SeatKey { return SeatKey{BeachID: b.BeachID, Row: b.Row, Index: b.Index} }

// BookingView is the display projection of a booking. Internal ids of the
// user and beach are replaced by their display names.
type BookingView struct {
	ID          string    `json:"id"`
	UserName    string    `json:"userName"`
	UserSurname string    `json:"userSurname"`
	BeachName   string    `json:"beachName"`
	Date        string    `json:"date"`
	PlaceRow    string    `json:"placeRow"`
	PlaceIndex  int       `json:"placeIndex"`
	Chairs      int       `json:"chairs"`
	Price       int       `json:"price"`
	Added       time.Time `json:"added"`
	QRData      string    `json:"qrData"`
}

// View projects b for display under beachName.
func (b Booking) View(beachName string) BookingView {
	return BookingView{
		ID:          b.ID,
		UserName:    b.UserName,
		UserSurname: b.UserSurname,
		BeachName:   beachName,
		Date:        b.Date,
		PlaceRow:    b.Row,
		PlaceIndex:  b.Index,
		Chairs:      b.Chairs,
		Price:       b.Price,
		Added:       b.CreatedAt,
		QRData:      b.Receipt,
	}
}

// ReceiptPayload is the plaintext sealed into a booking receipt.
type ReceiptPayload struct {
	ID          string    `json:"id"`
	BeachID     string    `json:"beachId"`
	UserID      string    `json:"userId"`
	UserName    string    `json:"userName"`
	UserSurname string    `json:"userSurname"`
	Date        string    `json:"date"`
	PlaceRow    string    `json:"placeRow"`
	PlaceIndex  int       `json:"placeIndex"`
	Chairs      int       `json:"chairs"`
	Price       int       `json:"price"`
	Added       time.Time `json:"added"`
}

// Draft is a seat selection that has not been paid for yet.
type Draft struct {
	Row    string `json:"row"`
	Index  int    `json:"index"`
	Date   string `json:"date"`
	Chairs int    `json:"chairs"`
}
