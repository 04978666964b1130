package match

import (
	"testing"
	"time"

	"callsync/internal/activity"
	"callsync/internal/telephony"
)

func TestBuildIndex_SkipsUnusableRecords(t *testing.T) {
	ix := BuildIndex([]activity.Record{
		{ID: "no-time", UserID: "U1"},
		{ID: "no-user", StartedAt: t0},
		act("ok", "U1", t0, telephony.DirectionUnknown, "", ""),
	}, KeyByUser)

	if ix.Len() != 1 {
		t.Fatalf("expected 1 indexed entry, got %d", ix.Len())
	}
	if got := ix.Bucket("U1"); len(got) != 1 || got[0].ID != "ok" {
		t.Fatalf("unexpected bucket: %+v", got)
	}
}

func TestBuildIndex_SortsByTimestampStable(t *testing.T) {
	ix := BuildIndex([]activity.Record{
		act("late", "U1", t0.Add(time.Hour), telephony.DirectionUnknown, "", ""),
		act("tie-first", "U1", t0, telephony.DirectionUnknown, "", ""),
		act("tie-second", "U1", t0, telephony.DirectionUnknown, "", ""),
		act("early", "U1", t0.Add(-time.Hour), telephony.DirectionUnknown, "", ""),
	}, KeyByUser)

	bucket := ix.Bucket("U1")
	want := []string{"early", "tie-first", "tie-second", "late"}
	if len(bucket) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(bucket))
	}
	for i, w := range want {
		if bucket[i].ID != w {
			t.Fatalf("position %d: expected %q, got %q", i, w, bucket[i].ID)
		}
	}
}

func TestBuildIndex_PhonePolicyKeysAndFallback(t *testing.T) {
	ix := BuildIndex([]activity.Record{
		act("A1", "U1", t0, telephony.DirectionUnknown, "+15550001111", ""),
		act("A2", "U2", t0, telephony.DirectionUnknown, "", ""), // no phone, dropped
	}, KeyByPhone)

	if ix.Len() != 1 {
		t.Fatalf("expected 1 entry under phone policy, got %d", ix.Len())
	}
	if got := ix.Bucket("+15550001111"); len(got) != 1 {
		t.Fatalf("expected phone bucket, got %+v", got)
	}

	// Unknown policies fall back to the user key.
	ix = BuildIndex([]activity.Record{act("A1", "U1", t0, telephony.DirectionUnknown, "", "")}, KeyPolicy("bogus"))
	if ix.Policy() != KeyByUser {
		t.Fatalf("expected fallback to user policy, got %s", ix.Policy())
	}
}
