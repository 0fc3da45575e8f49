package model

import "time"

const (
	RoleCustomer = "CUSTOMER"
	RoleAdmin    = "ADMIN"
)

// Account mirrors the users table.
type Account struct {
	ID           string
	Name         string
	Surname      string
	Email        string
	Tel          string
	PasswordHash string
	Role         string
	// ResetToken is empty when no password reset is outstanding.
	ResetToken     string
	ResetExpiresAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Customer is the identity snapshot handed to the booking flow.
type Customer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Email   string `json:"email"`
	Tel     string `json:"tel"`
	Role    string `json:"role"`
}

func (a Account) Customer() Customer {
	return Customer{ID: a.ID, Name: a.Name, Surname: a.Surname, Email: a.Email, Tel: a.Tel, Role: a.Role}
}

// ResetToken is returned when a password reset is requested.
type ResetToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
