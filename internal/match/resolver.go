package match

import (
	"sort"
	"time"

	"callsync/internal/telephony"
)

// MinWindow is the smallest usable match window; zero or negative configured
// windows are clamped here to avoid pathological empty windows.
const MinWindow = time.Minute

const maxCandidateSummaries = 5

// Source is the record being matched: a call, or a target row that is
// missing its activity link.
type Source struct {
	UserID    string
	Phone     string // normalized
	At        time.Time
	Direction telephony.Direction
}

// Candidate summarizes one in-window activity for audit logging.
type Candidate struct {
	ID         string              `json:"id"`
	At         time.Time           `json:"at"`
	Delta      time.Duration       `json:"delta"`
	PhoneMatch bool                `json:"phone_match"`
	Direction  telephony.Direction `json:"direction"`
}

// Result of one resolution. A zero ActivityID means no match; that is an
// outcome, not an error.
type Result struct {
	ActivityID     string
	Disposition    string
	DispositionRaw string
	OwnerTypeID    string
	OwnerID        string

	// Ambiguous is set whenever more than one candidate fell inside the
	// window, regardless of how clearly the best one won.
	Ambiguous  bool
	Candidates []Candidate
}

func (r Result) Matched() bool { return r.ActivityID != "" }

// Resolver finds the best in-window activity for a source record.
type Resolver struct {
	extractor *Extractor
	window    time.Duration
}

func NewResolver(extractor *Extractor, window time.Duration) *Resolver {
	if window < MinWindow {
		window = MinWindow
	}
	if extractor == nil {
		extractor = NewExtractor("", nil)
	}
	return &Resolver{extractor: extractor, window: window}
}

func (r *Resolver) Window() time.Duration { return r.window }

// Resolve picks the best candidate in [src.At - window, src.At + window],
// both bounds inclusive. Ordering: phone match first, then smallest absolute
// time delta, then original fetch order.
func (r *Resolver) Resolve(src Source, ix *Index) Result {
	if src.At.IsZero() || ix == nil {
		return Result{}
	}

	key := src.UserID
	if ix.Policy() == KeyByPhone {
		key = src.Phone
	}
	bucket := ix.Bucket(key)
	if len(bucket) == 0 {
		return Result{}
	}

	from := src.At.Add(-r.window)
	to := src.At.Add(r.window)

	candidates := make([]Entry, 0, 4)
	for _, e := range bucket {
		if e.At.Before(from) || e.At.After(to) {
			continue
		}
		if !src.Direction.Compatible(e.Direction) {
			continue
		}
		candidates = append(candidates, e)
	}
	if len(candidates) == 0 {
		return Result{}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		am := phoneMatches(src.Phone, candidates[a].Phone)
		bm := phoneMatches(src.Phone, candidates[b].Phone)
		if am != bm {
			return am
		}
		return absDelta(src.At, candidates[a].At) < absDelta(src.At, candidates[b].At)
	})

	best := candidates[0]
	label, raw := r.extractor.Extract(best.Text)

	out := Result{
		ActivityID:     best.ID,
		Disposition:    label,
		DispositionRaw: raw,
		OwnerTypeID:    best.OwnerTypeID,
		OwnerID:        best.OwnerID,
		Ambiguous:      len(candidates) > 1,
	}

	n := len(candidates)
	if n > maxCandidateSummaries {
		n = maxCandidateSummaries
	}
	out.Candidates = make([]Candidate, 0, n)
	for _, c := range candidates[:n] {
		out.Candidates = append(out.Candidates, Candidate{
			ID:         c.ID,
			At:         c.At,
			Delta:      absDelta(src.At, c.At),
			PhoneMatch: phoneMatches(src.Phone, c.Phone),
			Direction:  c.Direction,
		})
	}
	return out
}

func phoneMatches(a, b string) bool {
	return a != "" && a == b
}

func absDelta(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}
