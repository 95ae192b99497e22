package models

import "time"

// User is a participant of the exchange.
type User struct {
	ID          int64     `db:"id" json:"id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Strikes     int       `db:"strikes" json:"strikes"`
	Paused      bool      `db:"paused" json:"paused"`
	Banned      bool      `db:"banned" json:"banned"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// NewUser creates a new User with no strikes.
func NewUser(id int64, displayName string) *User {
	now := time.Now()
	return &User{
		ID:          id,
		DisplayName: displayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
