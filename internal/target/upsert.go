package target

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"callsync/internal/crm"
	"callsync/internal/match"
	"callsync/internal/telephony"
)

// Raw disposition text is capped before persisting; portal text fields
// reject longer payloads.
const maxDispositionRawLen = 5000

type UpsertMode string

const (
	Created UpsertMode = "created"
	Updated UpsertMode = "updated"
)

type UpsertResult struct {
	Mode UpsertMode `json:"mode"`
	ID   int        `json:"id"`
}

// LabelResolver maps a canonical token onto a portal list-field value.
// Supplied by the configuration layer; a nil resolver stores the token.
type LabelResolver interface {
	Resolve(text string) (string, bool)
}

// DispositionWriter is the best-effort side channel stamping the resolved
// disposition back onto the source activity.
type DispositionWriter interface {
	WriteDisposition(ctx context.Context, activityID, label string) error
}

type UpserterOptions struct {
	// VerifySave re-fetches the written record and compares a field
	// subset; mismatches are logged, never propagated.
	VerifySave bool
	// WriteBackDisposition enables the activity side channel.
	WriteBackDisposition bool

	DirectionLabels   LabelResolver
	DispositionLabels LabelResolver
}

// Upserter guarantees at most one target record per dedup key and never
// erases previously written link data on a failed resolution.
type Upserter struct {
	store  Store
	codes  FieldCodes
	writer DispositionWriter
	log    *slog.Logger
	clock  func() time.Time
	opts   UpserterOptions
}

func NewUpserter(store Store, codes FieldCodes, writer DispositionWriter, log *slog.Logger, opts UpserterOptions) *Upserter {
	if log == nil {
		log = slog.Default()
	}
	return &Upserter{
		store:  store,
		codes:  codes,
		writer: writer,
		log:    log,
		clock:  time.Now,
		opts:   opts,
	}
}

// WithClock fixes the timestamp source; tests only.
func (u *Upserter) WithClock(clock func() time.Time) *Upserter {
	u.clock = clock
	return u
}

// UpsertCall writes one call into the target store, dedup-keyed by call id.
// Link and disposition fields enter the patch only when res carries a match.
func (u *Upserter) UpsertCall(ctx context.Context, call telephony.CallRecord, res match.Result) (UpsertResult, error) {
	if call.CallID == "" {
		return UpsertResult{}, fmt.Errorf("target: call without an id")
	}

	existing, err := u.findOne(ctx, call.CallID)
	if err != nil {
		return UpsertResult{}, err
	}

	now := u.clock().UTC()
	fields := u.callFields(call, now, existing == nil)
	u.mergeMatchFields(fields, res)

	var out UpsertResult
	if existing == nil {
		id, err := u.store.Create(ctx, fields)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("target: create for call %s: %w", call.CallID, err)
		}
		out = UpsertResult{Mode: Created, ID: id}
	} else {
		if err := u.store.Update(ctx, existing.ID, fields); err != nil {
			return UpsertResult{}, fmt.Errorf("target: update %d for call %s: %w", existing.ID, call.CallID, err)
		}
		out = UpsertResult{Mode: Updated, ID: existing.ID}
	}

	u.verifySaved(ctx, out.ID, call.CallID, res)
	u.writeBack(ctx, res)
	return out, nil
}

// ApplyMatch patches an existing target record with a resolution outcome.
// Callers must only invoke it with an actual match; a no-match must leave
// the stored record untouched.
func (u *Upserter) ApplyMatch(ctx context.Context, rec Record, res match.Result) (UpsertResult, error) {
	if rec.ID <= 0 {
		return UpsertResult{}, fmt.Errorf("target: record without an id")
	}
	if !res.Matched() {
		return UpsertResult{}, fmt.Errorf("target: refusing to apply an empty resolution to record %d", rec.ID)
	}

	now := u.clock().UTC()
	fields := map[string]any{
		u.codes.SyncedAt:  crm.FormatPortalTime(now),
		u.codes.UpdatedAt: crm.FormatPortalTime(now),
	}
	u.mergeMatchFields(fields, res)

	if err := u.store.Update(ctx, rec.ID, fields); err != nil {
		return UpsertResult{}, fmt.Errorf("target: update %d: %w", rec.ID, err)
	}

	out := UpsertResult{Mode: Updated, ID: rec.ID}
	u.verifySaved(ctx, rec.ID, rec.CallID, res)
	u.writeBack(ctx, res)
	return out, nil
}

// findOne tolerates duplicate dedup keys: it deterministically uses the
// lowest id and warns. It never merges or deletes the extras.
func (u *Upserter) findOne(ctx context.Context, key string) (*Record, error) {
	found, err := u.store.FindByDedupKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("target: find by dedup key %s: %w", key, err)
	}
	if len(found) == 0 {
		return nil, nil
	}
	if len(found) > 1 {
		u.log.Warn("duplicate dedup key in target store, using lowest id",
			"dedup_key", key, "count", len(found), "id", found[0].ID)
	}
	return &found[0], nil
}

func (u *Upserter) callFields(call telephony.CallRecord, now time.Time, isCreate bool) map[string]any {
	fields := map[string]any{
		u.codes.TelephonyCallID: call.CallID,
		u.codes.DedupKey:        call.CallID,
		u.codes.Phone:           call.Phone,
		u.codes.StatusCode:      call.StatusCode,
		u.codes.Duration:        call.DurationSeconds,
		u.codes.Answered:        answeredFlag(call.Answered),
		u.codes.SyncedAt:        crm.FormatPortalTime(now),
		u.codes.UpdatedAt:       crm.FormatPortalTime(now),
	}
	if isCreate {
		fields[u.codes.CreatedAt] = crm.FormatPortalTime(now)
	}
	if call.UserID != "" {
		fields[u.codes.UserID] = call.UserID
	}
	if call.UserName != "" {
		fields[u.codes.UserName] = call.UserName
	}
	if call.RawStart != "" {
		fields[u.codes.CallStartedAt] = call.RawStart
	}
	if call.Direction != "" && call.Direction != telephony.DirectionUnknown {
		fields[u.codes.Direction] = u.resolveLabel(u.opts.DirectionLabels, string(call.Direction))
	}
	return fields
}

// mergeMatchFields adds link/disposition fields only for values the
// resolution actually produced; absence never erases stored data.
func (u *Upserter) mergeMatchFields(fields map[string]any, res match.Result) {
	if !res.Matched() {
		return
	}
	fields[u.codes.ActivityID] = res.ActivityID
	if res.OwnerTypeID != "" {
		fields[u.codes.EntityTypeID] = res.OwnerTypeID
	}
	if res.OwnerID != "" {
		fields[u.codes.EntityID] = res.OwnerID
	}
	if res.Disposition != "" {
		fields[u.codes.Disposition] = u.resolveLabel(u.opts.DispositionLabels, res.Disposition)
	}
	if res.DispositionRaw != "" {
		raw := res.DispositionRaw
		if len(raw) > maxDispositionRawLen {
			raw = raw[:maxDispositionRawLen]
		}
		fields[u.codes.DispositionRaw] = raw
	}
}

func (u *Upserter) resolveLabel(r LabelResolver, token string) string {
	if r == nil {
		return token
	}
	if v, ok := r.Resolve(token); ok {
		return v
	}
	return token
}

func (u *Upserter) verifySaved(ctx context.Context, id int, callID string, res match.Result) {
	if !u.opts.VerifySave {
		return
	}
	saved, err := u.store.Get(ctx, id)
	if err != nil {
		u.log.Warn("verify-save fetch failed", "id", id, "call_id", callID, "err", err)
		return
	}
	if callID != "" && saved.DedupKey != callID {
		u.log.Warn("verify-save dedup key mismatch",
			"id", id, "call_id", callID, "stored", saved.DedupKey)
	}
	if res.Matched() && saved.ActivityID != res.ActivityID {
		u.log.Warn("verify-save activity link mismatch",
			"id", id, "expected", res.ActivityID, "stored", saved.ActivityID)
	}
}

func (u *Upserter) writeBack(ctx context.Context, res match.Result) {
	if !u.opts.WriteBackDisposition || u.writer == nil {
		return
	}
	if !res.Matched() || res.Disposition == "" {
		return
	}
	if err := u.writer.WriteDisposition(ctx, res.ActivityID, res.Disposition); err != nil {
		u.log.Warn("disposition write-back failed", "activity_id", res.ActivityID, "err", err)
	}
}

func answeredFlag(answered bool) string {
	if answered {
		return "Y"
	}
	return "N"
}
