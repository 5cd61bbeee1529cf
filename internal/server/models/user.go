package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered member account.
type User struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	ChurchID string    `json:"church_id"`

	// Salt and PasswordHash hold the argon2id verification material and
	// never leave the server.
	Salt         []byte    `json:"-"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
