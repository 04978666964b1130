package runlog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for run history.
//
// It MUST be append-only for writes.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
	ListRuns(ctx context.Context, limit int) ([]Event, error)
}

// Service records backfill run history.
//
// Callers should treat run logging as best-effort: a failed append is
// logged by the caller and the run proceeds.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("runlog: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("runlog: repository not configured")
	}
	if e.RunID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// ListRuns returns the most recent run_finished events, newest first.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]Event, error) {
	if s.repo == nil {
		return nil, errors.New("runlog: repository not configured")
	}
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListRuns(ctx, limit)
}
