package match

import (
	"sort"
	"time"

	"callsync/internal/activity"
	"callsync/internal/telephony"
)

// KeyPolicy selects the bucket key of the activity index. Owner-user is the
// default; phone indexing silently drops matches when normalization differs
// between the two record streams, so it is opt-in.
type KeyPolicy string

const (
	KeyByUser  KeyPolicy = "user"
	KeyByPhone KeyPolicy = "phone"
)

// Entry is one indexed activity, reduced to the fields resolution needs.
type Entry struct {
	ID          string
	At          time.Time
	Direction   telephony.Direction
	Phone       string
	Text        string
	OwnerTypeID string
	OwnerID     string

	// seq is the original fetch position; it breaks timestamp ties so
	// resolution stays deterministic.
	seq int
}

// Index buckets activities by the policy key, each bucket sorted ascending
// by timestamp (stable, fetch order preserved on ties).
type Index struct {
	policy  KeyPolicy
	buckets map[string][]Entry
	size    int
}

// BuildIndex drops activities without a parseable timestamp or bucket key.
func BuildIndex(recs []activity.Record, policy KeyPolicy) *Index {
	if policy != KeyByPhone {
		policy = KeyByUser
	}

	ix := &Index{policy: policy, buckets: make(map[string][]Entry)}
	for i, rec := range recs {
		if rec.StartedAt.IsZero() {
			continue
		}
		key := rec.UserID
		if policy == KeyByPhone {
			key = rec.Phone
		}
		if key == "" {
			continue
		}
		ix.buckets[key] = append(ix.buckets[key], Entry{
			ID:          rec.ID,
			At:          rec.StartedAt,
			Direction:   rec.Direction,
			Phone:       rec.Phone,
			Text:        rec.ResultText(),
			OwnerTypeID: rec.OwnerTypeID,
			OwnerID:     rec.OwnerID,
			seq:         i,
		})
		ix.size++
	}

	for key := range ix.buckets {
		bucket := ix.buckets[key]
		sort.SliceStable(bucket, func(a, b int) bool {
			return bucket[a].At.Before(bucket[b].At)
		})
	}
	return ix
}

func (ix *Index) Policy() KeyPolicy { return ix.policy }

func (ix *Index) Len() int { return ix.size }

// Bucket returns the sorted entries for a key, nil when absent.
func (ix *Index) Bucket(key string) []Entry {
	if ix == nil || key == "" {
		return nil
	}
	return ix.buckets[key]
}
