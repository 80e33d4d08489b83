// Package users provides lookup of user accounts and their social graph.
// Weight and gender feed the BAC estimate; phone/messenger identities drive
// notification delivery; the untappd link feeds the checkin aggregator.
package users

import (
	"context"

	"github.com/barflyapp/barfly-data/internal/bac"
)

// User is a registered account.
type User struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	PhoneNumber *string    `json:"phone_number,omitempty"`
	MessengerID *string    `json:"messenger_id,omitempty"`
	WeightLbs   float64    `json:"weight_lbs"`
	Gender      bac.Gender `json:"gender"`

	// Untappd link. Username may be set without a token (scrape-only link).
	UntappdUsername *string `json:"untappd_username,omitempty"`
	UntappdToken    *string `json:"-"`
}

// HasUntappdLink reports whether the user linked an Untappd account.
func (u *User) HasUntappdLink() bool {
	return u.UntappdUsername != nil && *u.UntappdUsername != ""
}

// Store is the read surface the monitoring and notification layers need.
type Store interface {
	// GetByID returns apperr.ErrNotFound when the user does not exist.
	GetByID(ctx context.Context, id string) (*User, error)
	GetByPhone(ctx context.Context, phone string) (*User, error)
	GetByMessenger(ctx context.Context, messengerID string) (*User, error)

	// Followers returns the users following userID at call time.
	Followers(ctx context.Context, userID string) ([]User, error)
}
