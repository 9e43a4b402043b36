// Package history persists run events and projects them into run summaries.
package history

import (
	"context"
	"time"
)

// Store persists and retrieves run events.
type Store interface {
	// Append adds a new event to the store.
	Append(ctx context.Context, e *Event) error

	// ByRun retrieves all events for a specific run, oldest first.
	ByRun(ctx context.Context, runID string) ([]*Event, error)

	// Range retrieves events within a time range, oldest first.
	Range(ctx context.Context, start, end time.Time) ([]*Event, error)

	// Close closes the store and releases resources.
	Close() error
}
