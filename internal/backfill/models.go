package backfill

import (
	"errors"
	"fmt"
	"time"
)

type Mode string

const (
	// ModeCalls replays the telephony history: fetch calls, resolve
	// against activities, upsert target records.
	ModeCalls Mode = "calls"
	// ModeRelink re-resolves existing target records that miss (or need
	// to refresh) their activity link. No new records are created.
	ModeRelink Mode = "relink"
)

type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCanceled  State = "canceled"
	StateFailed    State = "failed"
)

// Terminal reports whether the state ends a run.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCanceled || s == StateFailed
}

var (
	ErrAlreadyRunning = errors.New("backfill: a run is already in progress")
	ErrNotRunning     = errors.New("backfill: no run in progress")
)

// Request describes one backfill run.
type Request struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	// ChunkDays overrides the configured chunk size when > 0.
	ChunkDays int  `json:"chunk_days,omitempty"`
	Mode      Mode `json:"mode,omitempty"`

	// OnlyMissingLink restricts relink runs to records without an
	// activity link. Ignored in calls mode.
	OnlyMissingLink bool `json:"only_missing_link,omitempty"`
}

func (r *Request) Validate() error {
	if r.From.IsZero() || r.To.IsZero() {
		return fmt.Errorf("backfill: from and to are required")
	}
	if r.To.Before(r.From) {
		return fmt.Errorf("backfill: to precedes from")
	}
	if r.Mode == "" {
		r.Mode = ModeCalls
	}
	if r.Mode != ModeCalls && r.Mode != ModeRelink {
		return fmt.Errorf("backfill: unknown mode %q", r.Mode)
	}
	return nil
}

// Counters is the running tally of one backfill run.
type Counters struct {
	Total     int `json:"total"`
	Done      int `json:"done"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	NoMatch   int `json:"no_match"`
	Ambiguous int `json:"ambiguous"`
	Errors    int `json:"errors"`
}

// Percent of processed items. Zero totals read as 0 while running and
// 100 once the run ends.
func (c Counters) Percent(terminal bool) int {
	if c.Total <= 0 {
		if terminal {
			return 100
		}
		return 0
	}
	return c.Done * 100 / c.Total
}

// Snapshot is the externally visible run state.
type Snapshot struct {
	RunID string `json:"run_id,omitempty"`
	State State  `json:"state"`
	Mode  Mode   `json:"mode,omitempty"`

	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`

	Chunk  int `json:"chunk,omitempty"`
	Chunks int `json:"chunks,omitempty"`

	Counters Counters `json:"counters"`
	Percent  int      `json:"percent"`

	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`

	// Reason carries the failure cause for failed runs.
	Reason string `json:"reason,omitempty"`
}
