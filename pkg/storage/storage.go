package storage

import (
	"context"
	"time"
)

// ImageRecord holds the photo metadata we persist. Exactly one of Sol and
// EarthDate is set: the addressing field of the query that fetched it.
type ImageRecord struct {
	Rover      string
	Sol        *int
	EarthDate  string
	Camera     string
	ExternalID int64
	ImageURL   string
	Page       int
	FetchedAt  time.Time
}

// Filter selects cached records. Every set field must match; an empty Camera
// matches any camera, including records without one.
type Filter struct {
	Rover     string
	Sol       *int
	EarthDate string
	Camera    string
	Page      int
}

// Repository defines persistence operations for cached photos.
type Repository interface {
	// Lookup returns the records matching f in insertion order. No match is an
	// empty result, not an error.
	Lookup(ctx context.Context, f Filter) ([]ImageRecord, error)
	// InsertMany appends records without de-duplication and reports how many
	// were written.
	InsertMany(ctx context.Context, records []ImageRecord) (int, error)
}

// Store is a Repository bound to a live backend connection.
type Store interface {
	Repository
	EnsureSchema(ctx context.Context) error
	Close() error
}

// Matches reports whether r satisfies f. Backends that cannot express the
// filter natively use it; tests use it to check fixtures.
func (f Filter) Matches(r ImageRecord) bool {
	if r.Rover != f.Rover || r.Page != f.Page {
		return false
	}
	if f.Sol != nil {
		if r.Sol == nil || *r.Sol != *f.Sol {
			return false
		}
	} else if r.EarthDate != f.EarthDate {
		return false
	}
	if f.Camera != "" && r.Camera != f.Camera {
		return false
	}
	return true
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}
