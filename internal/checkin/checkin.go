// Package checkin provides drink-event storage and the external checkin
// provider abstraction. Locally recorded drinks and drinks fetched from a
// linked Untappd account land in the same store, so re-aggregating a window
// after a restart is idempotent.
package checkin

import (
	"context"
	"time"
)

// Checkin is a single drink event.
type Checkin struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	DrankAt  time.Time `json:"drank_at"`
	Name     string    `json:"name"`
	Producer *string   `json:"producer,omitempty"`
	ABV      float64   `json:"abv"`     // fraction, e.g. 0.05
	SizeOz   float64   `json:"size_oz"` // fluid ounces
	Rating   *float64  `json:"rating,omitempty"`
	Style    *string   `json:"style,omitempty"`
}

// Store persists drink events.
type Store interface {
	Insert(ctx context.Context, c *Checkin) error

	// InsertBatch writes all events or none. Callers gate watermark
	// advancement on its success.
	InsertBatch(ctx context.Context, events []Checkin) error

	// ListWindow returns events with from <= drank_at <= to, ascending.
	ListWindow(ctx context.Context, userID string, from, to time.Time) ([]Checkin, error)

	// ListSince returns events at or after since, newest first.
	ListSince(ctx context.Context, userID string, since time.Time) ([]Checkin, error)
}

// Link identifies a user's external checkin account. AccessToken is empty
// for scrape-only links.
type Link struct {
	Username    string
	AccessToken string
}

// Provider fetches drink events from an external source. Implementations
// never fail the caller: network and parse errors are logged and degrade to
// an empty result. Events strictly before since are never returned; order
// is unspecified.
type Provider interface {
	Fetch(ctx context.Context, link *Link, since time.Time) []Checkin
}

// NoneProvider is the provider used when no external source is configured.
type NoneProvider struct{}

func (NoneProvider) Fetch(ctx context.Context, link *Link, since time.Time) []Checkin {
	return nil
}
