package processedevent

import "time"

// Event records that a processor event's effects were committed.
// Rows are kept for the configured retention window.
type Event struct {
	EventID        string    `db:"event_id"`
	EventType      string    `db:"event_type"`
	EventCreatedAt time.Time `db:"event_created_at"`
	ProcessedAt    time.Time `db:"processed_at"`
}
