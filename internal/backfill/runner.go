package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"callsync/internal/activity"
	"callsync/internal/match"
	"callsync/internal/runlog"
	"callsync/internal/target"
	"callsync/internal/telephony"
)

// CallSource lists telephony calls for a period.
type CallSource interface {
	ListCalls(ctx context.Context, from, to time.Time) ([]telephony.CallRecord, error)
}

// ActivitySource lists call activities for a period, optionally scoped to
// a set of owner user ids.
type ActivitySource interface {
	ListCallActivities(ctx context.Context, from, to time.Time, userIDs []string) ([]activity.Record, error)
}

// RecordSource lists existing target records for relink runs.
type RecordSource interface {
	ListByPeriod(ctx context.Context, from, to time.Time, onlyMissingLink bool) ([]target.Record, error)
}

// Sink applies one resolved item to the target store.
type Sink interface {
	UpsertCall(ctx context.Context, call telephony.CallRecord, res match.Result) (target.UpsertResult, error)
	ApplyMatch(ctx context.Context, rec target.Record, res match.Result) (target.UpsertResult, error)
}

type Options struct {
	// ChunkDays is the default chunk size when the request carries none.
	ChunkDays int
	// ProgressStride logs a progress line every N processed items.
	ProgressStride int
	KeyPolicy      match.KeyPolicy
}

func (o Options) withDefaults() Options {
	out := o
	if out.ChunkDays < 1 {
		out.ChunkDays = 7
	}
	if out.ProgressStride < 1 {
		out.ProgressStride = 10
	}
	return out
}

// Runner drives one backfill run at a time. A second Start while a run is
// in progress returns ErrAlreadyRunning; the optional Locker extends that
// guarantee across processes.
type Runner struct {
	calls    CallSource
	acts     ActivitySource
	records  RecordSource
	sink     Sink
	resolver *match.Resolver
	runs     *runlog.Service
	lock     Locker
	log      *slog.Logger
	opts     Options
	clock    func() time.Time

	mu     sync.Mutex
	state  State
	snap   Snapshot
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRunner(calls CallSource, acts ActivitySource, records RecordSource, sink Sink, resolver *match.Resolver, runs *runlog.Service, lock Locker, log *slog.Logger, opts Options) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		calls:    calls,
		acts:     acts,
		records:  records,
		sink:     sink,
		resolver: resolver,
		runs:     runs,
		lock:     lock,
		log:      log,
		opts:     opts.withDefaults(),
		clock:    time.Now,
		state:    StateIdle,
	}
}

// Start validates the request and launches the run in the background.
// The returned run id identifies it in progress snapshots and run history.
func (r *Runner) Start(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if req.ChunkDays < 1 {
		req.ChunkDays = r.opts.ChunkDays
	}

	r.mu.Lock()
	if r.state == StateRunning {
		r.mu.Unlock()
		return "", ErrAlreadyRunning
	}
	if r.lock != nil {
		ok, err := r.lock.Acquire(ctx)
		if err != nil {
			r.mu.Unlock()
			return "", fmt.Errorf("backfill: acquire run lock: %w", err)
		}
		if !ok {
			r.mu.Unlock()
			return "", ErrAlreadyRunning
		}
	}

	runID := uuid.NewString()
	// The run outlives the HTTP request that started it.
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done
	r.state = StateRunning
	r.snap = Snapshot{
		RunID:     runID,
		State:     StateRunning,
		Mode:      req.Mode,
		From:      req.From,
		To:        req.To,
		StartedAt: r.clock().UTC(),
	}
	r.mu.Unlock()

	go r.run(runCtx, runID, req, done)
	return runID, nil
}

// Cancel requests cooperative termination of the current run. The run
// reaches the canceled state at the next chunk or item boundary.
func (r *Runner) Cancel() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRunning {
		return ErrNotRunning
	}
	if r.cancel != nil {
		r.cancel()
	}
	return nil
}

// Progress returns a copy of the current run state.
func (r *Runner) Progress() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := r.snap
	snap.State = r.state
	snap.Percent = snap.Counters.Percent(r.state.Terminal())
	return snap
}

// Done reports completion of the current run; used by graceful shutdown
// to wait for a canceled run to wind down.
func (r *Runner) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return r.done
}

func (r *Runner) run(ctx context.Context, runID string, req Request, done chan struct{}) {
	// The run closes only its own channel. The terminal state is visible
	// before the history append returns, so a new Start may have replaced
	// r.done by the time this defer fires.
	defer func() {
		if r.lock != nil {
			if err := r.lock.Release(context.Background()); err != nil {
				r.log.Warn("backfill run lock release failed", "run_id", runID, "err", err)
			}
		}
		close(done)
	}()

	chunks := SplitChunks(req.From, req.To, req.ChunkDays)
	r.mu.Lock()
	r.snap.Chunks = len(chunks)
	r.mu.Unlock()

	r.log.Info("backfill started",
		"run_id", runID, "mode", req.Mode,
		"from", req.From.Format("2006-01-02"), "to", req.To.Format("2006-01-02"),
		"chunks", len(chunks))
	r.appendEvent(runlog.Event{
		RunID: runID, Type: runlog.EventTypeRunStarted,
		Mode: string(req.Mode), From: req.From, To: req.To,
		Message: fmt.Sprintf("%d chunks of %d days", len(chunks), req.ChunkDays),
	})

	var runErr error
	for i, ch := range chunks {
		if ctx.Err() != nil {
			break
		}
		r.mu.Lock()
		r.snap.Chunk = i + 1
		r.mu.Unlock()

		if err := r.processChunk(ctx, req, ch); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			runErr = err
			break
		}

		c := r.Progress().Counters
		r.appendEvent(runlog.Event{
			RunID: runID, Type: runlog.EventTypeChunkCompleted,
			Mode: string(req.Mode), From: ch.From, To: ch.To,
			Total: c.Total, Done: c.Done, Created: c.Created, Updated: c.Updated,
			NoMatch: c.NoMatch, Ambiguous: c.Ambiguous, Errors: c.Errors,
		})
	}

	state := StateCompleted
	reason := ""
	switch {
	case ctx.Err() != nil:
		state = StateCanceled
	case runErr != nil:
		state = StateFailed
		reason = runErr.Error()
	}

	r.mu.Lock()
	r.state = state
	r.snap.State = state
	r.snap.Reason = reason
	r.snap.FinishedAt = r.clock().UTC()
	c := r.snap.Counters
	r.mu.Unlock()

	r.log.Info("backfill finished",
		"run_id", runID, "state", state, "reason", reason,
		"total", c.Total, "done", c.Done, "created", c.Created, "updated", c.Updated,
		"no_match", c.NoMatch, "ambiguous", c.Ambiguous, "errors", c.Errors)
	r.appendEvent(runlog.Event{
		RunID: runID, Type: runlog.EventTypeRunFinished,
		Mode: string(req.Mode), Status: string(state),
		From: req.From, To: req.To,
		Total: c.Total, Done: c.Done, Created: c.Created, Updated: c.Updated,
		NoMatch: c.NoMatch, Ambiguous: c.Ambiguous, Errors: c.Errors,
		Message: reason,
	})
}

func (r *Runner) processChunk(ctx context.Context, req Request, ch Chunk) error {
	if req.Mode == ModeRelink {
		return r.processRelinkChunk(ctx, req, ch)
	}
	return r.processCallsChunk(ctx, ch)
}

func (r *Runner) processCallsChunk(ctx context.Context, ch Chunk) error {
	calls, err := r.calls.ListCalls(ctx, ch.From, ch.To)
	if err != nil {
		return fmt.Errorf("backfill: list calls for chunk %s: %w", ch.From.Format("2006-01-02"), err)
	}
	r.addTotal(len(calls))
	if len(calls) == 0 {
		return nil
	}

	ix, err := r.buildIndex(ctx, ch, callUserIDs(calls))
	if err != nil {
		return err
	}

	for _, call := range calls {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res := r.resolver.Resolve(match.Source{
			UserID:    call.UserID,
			Phone:     call.Phone,
			At:        call.StartedAt,
			Direction: call.Direction,
		}, ix)
		out, err := r.sink.UpsertCall(ctx, call, res)
		r.tally(res, out, err, call.CallID)
	}
	return nil
}

func (r *Runner) processRelinkChunk(ctx context.Context, req Request, ch Chunk) error {
	recs, err := r.records.ListByPeriod(ctx, ch.From, ch.To, req.OnlyMissingLink)
	if err != nil {
		return fmt.Errorf("backfill: list records for chunk %s: %w", ch.From.Format("2006-01-02"), err)
	}
	r.addTotal(len(recs))
	if len(recs) == 0 {
		return nil
	}

	ix, err := r.buildIndex(ctx, ch, recordUserIDs(recs))
	if err != nil {
		return err
	}

	for _, rec := range recs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res := r.resolver.Resolve(match.Source{
			UserID:    rec.UserID,
			Phone:     rec.Phone,
			At:        rec.CallStartedAt,
			Direction: telephony.ParseDirection(rec.Direction),
		}, ix)
		if !res.Matched() {
			r.tally(res, target.UpsertResult{}, nil, rec.CallID)
			continue
		}
		out, err := r.sink.ApplyMatch(ctx, rec, res)
		r.tally(res, out, err, rec.CallID)
	}
	return nil
}

// buildIndex fetches activities over the chunk widened by the match window
// on both sides, so boundary calls still see their candidates.
func (r *Runner) buildIndex(ctx context.Context, ch Chunk, userIDs []string) (*match.Index, error) {
	from := ch.From.Add(-r.resolver.Window())
	to := ch.To.Add(r.resolver.Window())
	acts, err := r.acts.ListCallActivities(ctx, from, to, userIDs)
	if err != nil {
		return nil, fmt.Errorf("backfill: list activities for chunk %s: %w", ch.From.Format("2006-01-02"), err)
	}
	return match.BuildIndex(acts, r.opts.KeyPolicy), nil
}

func (r *Runner) addTotal(n int) {
	r.mu.Lock()
	r.snap.Counters.Total += n
	r.mu.Unlock()
}

// tally updates counters for one processed item. Item errors are counted
// and logged, never fatal.
func (r *Runner) tally(res match.Result, out target.UpsertResult, err error, itemID string) {
	r.mu.Lock()
	c := &r.snap.Counters
	c.Done++
	switch {
	case err != nil:
		c.Errors++
	case out.Mode == target.Created:
		c.Created++
	case out.Mode == target.Updated:
		c.Updated++
	}
	if err == nil {
		if !res.Matched() {
			c.NoMatch++
		}
		if res.Ambiguous {
			c.Ambiguous++
		}
	}
	done, total := c.Done, c.Total
	r.mu.Unlock()

	if err != nil {
		r.log.Warn("backfill item failed", "item", itemID, "err", err)
	}
	if done%r.opts.ProgressStride == 0 || done == total {
		pct := 0
		if total > 0 {
			pct = done * 100 / total
		}
		r.log.Info("backfill progress", "done", done, "total", total, "percent", pct)
	}
}

func (r *Runner) appendEvent(e runlog.Event) {
	if r.runs == nil {
		return
	}
	// Run history is best-effort; appends use a fresh context so terminal
	// events survive cancellation.
	if err := r.runs.Append(context.Background(), e); err != nil {
		r.log.Warn("run history append failed", "run_id", e.RunID, "type", e.Type, "err", err)
	}
}

func callUserIDs(calls []telephony.CallRecord) []string {
	return distinct(len(calls), func(i int) string { return calls[i].UserID })
}

func recordUserIDs(recs []target.Record) []string {
	return distinct(len(recs), func(i int) string { return recs[i].UserID })
}

func distinct(n int, at func(int) string) []string {
	seen := make(map[string]struct{}, n)
	var out []string
	for i := 0; i < n; i++ {
		v := at(i)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
