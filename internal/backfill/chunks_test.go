package backfill

import (
	"testing"
	"time"
)

func day(d int) time.Time {
	return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
}

func TestSplitChunks_TenDaysIntoSeven(t *testing.T) {
	chunks := SplitChunks(day(1), day(10), 7)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}

	if !chunks[0].From.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("first chunk start: %v", chunks[0].From)
	}
	if !chunks[0].To.Equal(time.Date(2026, 3, 7, 23, 59, 59, 0, time.UTC)) {
		t.Fatalf("first chunk end: %v", chunks[0].To)
	}
	if !chunks[1].From.Equal(time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("second chunk start: %v", chunks[1].From)
	}
	if !chunks[1].To.Equal(time.Date(2026, 3, 10, 23, 59, 59, 0, time.UTC)) {
		t.Fatalf("second chunk end: %v", chunks[1].To)
	}
}

func TestSplitChunks_WidensIntradayTimestamps(t *testing.T) {
	from := time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC)
	to := time.Date(2026, 3, 5, 16, 0, 0, 0, time.UTC)

	chunks := SplitChunks(from, to, 7)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].From.Hour() != 0 || chunks[0].From.Minute() != 0 {
		t.Fatalf("chunk must start at midnight, got %v", chunks[0].From)
	}
	if chunks[0].To.Hour() != 23 || chunks[0].To.Second() != 59 {
		t.Fatalf("chunk must end at 23:59:59, got %v", chunks[0].To)
	}
}

func TestSplitChunks_MinimumOneDay(t *testing.T) {
	chunks := SplitChunks(day(1), day(3), 0)
	if len(chunks) != 3 {
		t.Fatalf("expected one chunk per day, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if !ch.From.Equal(day(i + 1)) {
			t.Fatalf("chunk %d start: %v", i, ch.From)
		}
	}
}

func TestSplitChunks_ReversedRangeYieldsNothing(t *testing.T) {
	if chunks := SplitChunks(day(10), day(1), 7); chunks != nil {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}

func TestSplitChunks_CoversEveryDayExactlyOnce(t *testing.T) {
	chunks := SplitChunks(day(1), day(30), 7)
	if len(chunks) != 5 {
		t.Fatalf("expected 5 chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		gap := chunks[i].From.Sub(chunks[i-1].To)
		if gap != time.Second {
			t.Fatalf("chunks %d and %d not adjacent: gap %v", i-1, i, gap)
		}
	}
	if !chunks[4].To.Equal(time.Date(2026, 3, 30, 23, 59, 59, 0, time.UTC)) {
		t.Fatalf("last chunk not clipped: %v", chunks[4].To)
	}
}
