package sessions

import "context"

// Store is the session persistence contract. Implementations must
// serialize updates to the same session id so that history-append order
// matches call-arrival order, and must not block operations on
// different ids against each other.
type Store interface {
	// CreateSession creates a session with a fresh unique id. metadata,
	// if non-nil, seeds the session's free-form context map.
	CreateSession(ctx context.Context, userID string, metadata map[string]any) (*Session, error)

	// GetSession returns the session or a not-found error.
	GetSession(ctx context.Context, id string) (*Session, error)

	// UpdateSession applies a context patch and/or appends a turn. The
	// updated timestamp is refreshed only when something actually mutated.
	UpdateSession(ctx context.Context, id string, req UpdateRequest) (*Session, error)

	// DeleteSession removes a session. Deleting an already-deleted id is
	// a no-op; deleting an id that never existed is a not-found error.
	// Deleted ids are never reissued.
	DeleteSession(ctx context.Context, id string) error

	// Capture stores an immutable record independent of any session.
	Capture(ctx context.Context, data any, kind string, metadata map[string]any) (*Capture, error)

	// ListCaptures returns captures, optionally filtered by kind,
	// ordered by captured-at ascending.
	ListCaptures(ctx context.Context, kind string) ([]Capture, error)

	Close() error
}
