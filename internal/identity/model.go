package identity

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("user not found")
	ErrExists   = errors.New("user exists")
	// ErrInvalidProfile is returned when registration data fails validation.
	ErrInvalidProfile = errors.New("invalid profile")
	ErrInvalidPIN     = errors.New("invalid transaction PIN")
	// ErrPINNotSet is returned when a purchase is attempted before a PIN was configured.
	ErrPINNotSet = errors.New("transaction PIN not set")
)

// User is a wallet owner profile. Identity itself (login, tokens) is managed elsewhere;
// ID is the subject of the bearer token.
type User struct {
	ID                   string
	Email                string
	FirstName            string
	LastName             string
	Phone                string
	NotificationsEnabled bool
	PINHash              []byte
	CreatedAt            time.Time
	DeletedAt            *time.Time
}

// DisplayName is the name used in notifications.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// HasPIN reports whether a transaction PIN was configured.
func (u User) HasPIN() bool {
	return len(u.PINHash) > 0
}
