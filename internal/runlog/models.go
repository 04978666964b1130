package runlog

import "time"

// Event is an immutable, append-only run history record.
//
// Invariants:
// - Events are never updated or deleted.
// - run_id is required; every event belongs to exactly one backfill run.
// - Run history is best-effort; do not block the sync flow on logging failures.
//
// Storage recommendation (Postgres):
// - Table backfill_events with an INSERT-only policy.
// - Optional: partition by time for retention.

type Event struct {
	ID    string `json:"id" db:"id"`
	RunID string `json:"run_id" db:"run_id"`

	// Type indicates where in the run lifecycle the event was emitted.
	Type EventType `json:"type" db:"type"`

	// Mode is the run mode the operator requested (calls or relink).
	Mode string `json:"mode,omitempty" db:"mode"`
	// Status carries the terminal state for run_finished events.
	Status string `json:"status,omitempty" db:"status"`

	// Covered period. For chunk_completed events this is the chunk range,
	// for run events the full requested range.
	From time.Time `json:"from" db:"range_from"`
	To   time.Time `json:"to" db:"range_to"`

	// Counter snapshot at emission time.
	Total     int `json:"total" db:"total"`
	Done      int `json:"done" db:"done"`
	Created   int `json:"created" db:"created"`
	Updated   int `json:"updated" db:"updated"`
	NoMatch   int `json:"no_match" db:"no_match"`
	Ambiguous int `json:"ambiguous" db:"ambiguous"`
	Errors    int `json:"errors" db:"errors"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeRunStarted     EventType = "run_started"
	EventTypeChunkCompleted EventType = "chunk_completed"
	EventTypeRunFinished    EventType = "run_finished"
)
