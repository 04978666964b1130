package target

import (
	"context"
	"strings"
	"testing"
	"time"

	"callsync/internal/match"
	"callsync/internal/telephony"
)

var upsertT0 = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func testCall() telephony.CallRecord {
	return telephony.CallRecord{
		CallID:          "ext-1001",
		StartedAt:       upsertT0,
		RawStart:        "2026-03-10 14:00:00",
		DurationSeconds: 95,
		Direction:       telephony.DirectionOutbound,
		Phone:           "+15550001111",
		UserID:          "42",
		UserName:        "Dana Ortiz",
		StatusCode:      "200",
		Answered:        true,
	}
}

func matchedResult() match.Result {
	return match.Result{
		ActivityID:     "A77",
		Disposition:    "FOLLOW-UP",
		DispositionRaw: "[DISPOSITION] FOLLOW-UP",
		OwnerTypeID:    "2",
		OwnerID:        "555",
	}
}

func newTestUpserter(store Store, writer DispositionWriter, opts UpserterOptions) *Upserter {
	u := NewUpserter(store, DefaultFieldCodes(), writer, nil, opts)
	return u.WithClock(func() time.Time { return upsertT0.Add(time.Hour) })
}

type recordingWriter struct {
	activityID string
	label      string
	calls      int
	err        error
}

func (w *recordingWriter) WriteDisposition(ctx context.Context, activityID, label string) error {
	w.calls++
	w.activityID = activityID
	w.label = label
	return w.err
}

func TestUpsertCall_CreatesThenUpdatesSameRecord(t *testing.T) {
	store := NewMemoryStore(DefaultFieldCodes())
	u := newTestUpserter(store, nil, UpserterOptions{})

	first, err := u.UpsertCall(context.Background(), testCall(), matchedResult())
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if first.Mode != Created {
		t.Fatalf("expected created, got %s", first.Mode)
	}

	second, err := u.UpsertCall(context.Background(), testCall(), matchedResult())
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if second.Mode != Updated {
		t.Fatalf("expected updated, got %s", second.Mode)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same record, got %d and %d", first.ID, second.ID)
	}
	if store.Len() != 1 {
		t.Fatalf("expected exactly one stored record, got %d", store.Len())
	}
}

func TestUpsertCall_WritesCallAndLinkFields(t *testing.T) {
	store := NewMemoryStore(DefaultFieldCodes())
	u := newTestUpserter(store, nil, UpserterOptions{})
	codes := DefaultFieldCodes()

	out, err := u.UpsertCall(context.Background(), testCall(), matchedResult())
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	fields := store.Fields(out.ID)
	if fields[codes.DedupKey] != "ext-1001" {
		t.Fatalf("unexpected dedup key: %v", fields[codes.DedupKey])
	}
	if fields[codes.ActivityID] != "A77" {
		t.Fatalf("unexpected activity link: %v", fields[codes.ActivityID])
	}
	if fields[codes.Disposition] != "FOLLOW-UP" {
		t.Fatalf("unexpected disposition: %v", fields[codes.Disposition])
	}
	if fields[codes.Answered] != "Y" {
		t.Fatalf("unexpected answered flag: %v", fields[codes.Answered])
	}
	if fields[codes.CallStartedAt] != "2026-03-10 14:00:00" {
		t.Fatalf("expected raw start preserved, got %v", fields[codes.CallStartedAt])
	}
	if fields[codes.CreatedAt] == nil || fields[codes.SyncedAt] == nil {
		t.Fatalf("expected timestamps to be stamped: %v", fields)
	}
}

func TestUpsertCall_NoMatchKeepsExistingLink(t *testing.T) {
	store := NewMemoryStore(DefaultFieldCodes())
	u := newTestUpserter(store, nil, UpserterOptions{})
	codes := DefaultFieldCodes()

	first, err := u.UpsertCall(context.Background(), testCall(), matchedResult())
	if err != nil {
		t.Fatalf("linked upsert failed: %v", err)
	}

	// Re-run the same call with an empty resolution; the stored link and
	// disposition must survive.
	if _, err := u.UpsertCall(context.Background(), testCall(), match.Result{}); err != nil {
		t.Fatalf("no-match upsert failed: %v", err)
	}

	fields := store.Fields(first.ID)
	if fields[codes.ActivityID] != "A77" {
		t.Fatalf("no-match upsert erased the activity link: %v", fields[codes.ActivityID])
	}
	if fields[codes.Disposition] != "FOLLOW-UP" {
		t.Fatalf("no-match upsert erased the disposition: %v", fields[codes.Disposition])
	}
}

func TestUpsertCall_UpdateOnlyOnCreatedAt(t *testing.T) {
	store := NewMemoryStore(DefaultFieldCodes())
	u := newTestUpserter(store, nil, UpserterOptions{})
	codes := DefaultFieldCodes()

	first, err := u.UpsertCall(context.Background(), testCall(), match.Result{})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	createdAt := store.Fields(first.ID)[codes.CreatedAt]

	u.WithClock(func() time.Time { return upsertT0.Add(2 * time.Hour) })
	if _, err := u.UpsertCall(context.Background(), testCall(), match.Result{}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	fields := store.Fields(first.ID)
	if fields[codes.CreatedAt] != createdAt {
		t.Fatalf("update rewrote created-at: %v vs %v", fields[codes.CreatedAt], createdAt)
	}
	if fields[codes.UpdatedAt] == createdAt {
		t.Fatalf("expected updated-at to advance past %v", createdAt)
	}
}

func TestUpsertCall_DuplicateDedupKeysUseLowestID(t *testing.T) {
	codes := DefaultFieldCodes()
	store := NewMemoryStore(codes)
	// Two pre-existing rows sharing the dedup key simulate a historical
	// double write.
	idA, _ := store.Create(context.Background(), map[string]any{codes.DedupKey: "ext-1001"})
	idB, _ := store.Create(context.Background(), map[string]any{codes.DedupKey: "ext-1001"})

	u := newTestUpserter(store, nil, UpserterOptions{})
	out, err := u.UpsertCall(context.Background(), testCall(), match.Result{})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if out.Mode != Updated || out.ID != idA {
		t.Fatalf("expected update of record %d, got %s %d", idA, out.Mode, out.ID)
	}
	if store.Fields(idB)[codes.Phone] != nil {
		t.Fatalf("duplicate record %d must not be touched", idB)
	}
}

func TestUpsertCall_TruncatesRawDisposition(t *testing.T) {
	store := NewMemoryStore(DefaultFieldCodes())
	u := newTestUpserter(store, nil, UpserterOptions{})
	codes := DefaultFieldCodes()

	res := matchedResult()
	res.DispositionRaw = strings.Repeat("x", maxDispositionRawLen+500)

	out, err := u.UpsertCall(context.Background(), testCall(), res)
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	raw, _ := store.Fields(out.ID)[codes.DispositionRaw].(string)
	if len(raw) != maxDispositionRawLen {
		t.Fatalf("expected raw disposition capped at %d, got %d", maxDispositionRawLen, len(raw))
	}
}

func TestUpsertCall_LabelResolversMapTokens(t *testing.T) {
	store := NewMemoryStore(DefaultFieldCodes())
	codes := DefaultFieldCodes()
	u := newTestUpserter(store, nil, UpserterOptions{
		DirectionLabels:   staticLabels{"OUTBOUND": "101"},
		DispositionLabels: staticLabels{"FOLLOW-UP": "207"},
	})

	out, err := u.UpsertCall(context.Background(), testCall(), matchedResult())
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	fields := store.Fields(out.ID)
	if fields[codes.Direction] != "101" {
		t.Fatalf("direction not mapped: %v", fields[codes.Direction])
	}
	if fields[codes.Disposition] != "207" {
		t.Fatalf("disposition not mapped: %v", fields[codes.Disposition])
	}

	// Unmapped tokens fall through unchanged.
	call := testCall()
	call.CallID = "ext-1002"
	call.Direction = telephony.DirectionInbound
	out, err = u.UpsertCall(context.Background(), call, match.Result{})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if got := store.Fields(out.ID)[codes.Direction]; got != string(telephony.DirectionInbound) {
		t.Fatalf("expected raw token for unmapped direction, got %v", got)
	}
}

type staticLabels map[string]string

func (m staticLabels) Resolve(text string) (string, bool) {
	v, ok := m[text]
	return v, ok
}

func TestUpsertCall_WriteBackDisposition(t *testing.T) {
	store := NewMemoryStore(DefaultFieldCodes())
	writer := &recordingWriter{}
	u := newTestUpserter(store, writer, UpserterOptions{WriteBackDisposition: true})

	if _, err := u.UpsertCall(context.Background(), testCall(), matchedResult()); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if writer.calls != 1 || writer.activityID != "A77" || writer.label != "FOLLOW-UP" {
		t.Fatalf("unexpected write-back: %+v", writer)
	}

	// No match means no write-back.
	call := testCall()
	call.CallID = "ext-1002"
	if _, err := u.UpsertCall(context.Background(), call, match.Result{}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if writer.calls != 1 {
		t.Fatalf("write-back fired without a match")
	}
}

func TestUpsertCall_RejectsEmptyCallID(t *testing.T) {
	u := newTestUpserter(NewMemoryStore(DefaultFieldCodes()), nil, UpserterOptions{})
	if _, err := u.UpsertCall(context.Background(), telephony.CallRecord{}, match.Result{}); err == nil {
		t.Fatalf("expected error for call without an id")
	}
}

func TestApplyMatch_PatchesLinkOnly(t *testing.T) {
	codes := DefaultFieldCodes()
	store := NewMemoryStore(codes)
	id, _ := store.Create(context.Background(), map[string]any{
		codes.DedupKey: "ext-1001",
		codes.Phone:    "+15550001111",
	})

	u := newTestUpserter(store, nil, UpserterOptions{})
	out, err := u.ApplyMatch(context.Background(), Record{ID: id, CallID: "ext-1001"}, matchedResult())
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if out.Mode != Updated || out.ID != id {
		t.Fatalf("unexpected result: %+v", out)
	}

	fields := store.Fields(id)
	if fields[codes.ActivityID] != "A77" {
		t.Fatalf("activity link not written: %v", fields[codes.ActivityID])
	}
	if fields[codes.Phone] != "+15550001111" {
		t.Fatalf("apply-match clobbered unrelated field: %v", fields[codes.Phone])
	}
}

func TestApplyMatch_RejectsEmptyResolution(t *testing.T) {
	u := newTestUpserter(NewMemoryStore(DefaultFieldCodes()), nil, UpserterOptions{})
	if _, err := u.ApplyMatch(context.Background(), Record{ID: 1}, match.Result{}); err == nil {
		t.Fatalf("expected error for empty resolution")
	}
}
