package runlog

import (
	"context"
	"database/sql"

	"callsync/pkg/utils"
)

// PostgresRepo persists run history in the backfill_events table.
//
// Expected schema (INSERT-only policy recommended):
//
//	CREATE TABLE backfill_events (
//	    id         UUID PRIMARY KEY,
//	    run_id     UUID NOT NULL,
//	    type       TEXT NOT NULL,
//	    mode       TEXT NOT NULL DEFAULT '',
//	    status     TEXT NOT NULL DEFAULT '',
//	    range_from TIMESTAMPTZ,
//	    range_to   TIMESTAMPTZ,
//	    total      INT NOT NULL DEFAULT 0,
//	    done       INT NOT NULL DEFAULT 0,
//	    created    INT NOT NULL DEFAULT 0,
//	    updated    INT NOT NULL DEFAULT 0,
//	    no_match   INT NOT NULL DEFAULT 0,
//	    ambiguous  INT NOT NULL DEFAULT 0,
//	    errors     INT NOT NULL DEFAULT 0,
//	    message    TEXT NOT NULL DEFAULT '',
//	    created_at TIMESTAMPTZ NOT NULL
//	);

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO backfill_events (
				id, run_id, type, mode, status,
				range_from, range_to,
				total, done, created, updated, no_match, ambiguous, errors,
				message, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
			e.ID, e.RunID, string(e.Type), e.Mode, e.Status,
			e.From, e.To,
			e.Total, e.Done, e.Created, e.Updated, e.NoMatch, e.Ambiguous, e.Errors,
			e.Message, e.CreatedAt,
		)
		return err
	})
}

func (r *PostgresRepo) ListRuns(ctx context.Context, limit int) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, run_id, type, mode, status,
		       range_from, range_to,
		       total, done, created, updated, no_match, ambiguous, errors,
		       message, created_at
		FROM backfill_events
		WHERE type = $1
		ORDER BY created_at DESC
		LIMIT $2`, string(EventTypeRunFinished), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var typ string
		if err := rows.Scan(
			&e.ID, &e.RunID, &typ, &e.Mode, &e.Status,
			&e.From, &e.To,
			&e.Total, &e.Done, &e.Created, &e.Updated, &e.NoMatch, &e.Ambiguous, &e.Errors,
			&e.Message, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.Type = EventType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}
