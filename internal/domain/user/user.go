package user

import (
	"errors"
	"time"
)

// User is an account held by the local identity backend. The hosted
// backend keeps accounts on the provider side and never builds one.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	DisplayName  string    `json:"displayName"`
	Disabled     bool      `json:"disabled"`
	CreatedAt    time.Time `json:"createdAt"`
	// tokens issued before ValidSince are treated as revoked
	ValidSince time.Time `json:"validSince"`
}

var (
	ErrNotFound         = errors.New("user not found")
	ErrEmailAlreadyUsed = errors.New("email already in use")
)
