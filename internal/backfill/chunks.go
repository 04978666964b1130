package backfill

import "time"

// Chunk is one day-aligned slice of the requested period.
type Chunk struct {
	From time.Time
	To   time.Time
}

// SplitChunks cuts [from, to] into chunks of at most days calendar days.
// Each chunk starts at 00:00:00 and ends at 23:59:59; the last chunk is
// clipped to the requested end day. Timestamps inside from/to are widened
// to full days, matching how operators think about backfill ranges.
func SplitChunks(from, to time.Time, days int) []Chunk {
	if days < 1 {
		days = 1
	}
	start := dayStart(from)
	end := dayEnd(to)
	if end.Before(start) {
		return nil
	}

	var out []Chunk
	for cur := start; !cur.After(end); {
		chunkEnd := dayEnd(cur.AddDate(0, 0, days-1))
		if chunkEnd.After(end) {
			chunkEnd = end
		}
		out = append(out, Chunk{From: cur, To: chunkEnd})
		cur = dayStart(chunkEnd.AddDate(0, 0, 1))
	}
	return out
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func dayEnd(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}
