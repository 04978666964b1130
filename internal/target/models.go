package target

import (
	"time"

	"callsync/internal/crm"
)

// FieldCodes maps logical target-entity fields onto the portal's custom
// field codes. The codes are portal-specific; these defaults match the
// entity this service was built against and are overridable at wiring time.
type FieldCodes struct {
	TelephonyCallID string
	ActivityID      string
	DedupKey        string
	UserID          string
	UserName        string
	Direction       string
	Phone           string
	StatusCode      string
	CallStartedAt   string
	Duration        string
	Answered        string
	Disposition     string
	DispositionRaw  string
	EntityTypeID    string
	EntityID        string
	CreatedAt       string
	UpdatedAt       string
	SyncedAt        string
}

func DefaultFieldCodes() FieldCodes {
	return FieldCodes{
		TelephonyCallID: "ufCrm12_1769103594",
		ActivityID:      "ufCrm12_1769103691",
		DedupKey:        "ufCrm12_1769103795",
		UserID:          "ufCrm12_1769103861",
		UserName:        "ufCrm12_1769103932",
		Direction:       "ufCrm12_1769103994",
		Phone:           "ufCrm12_1769104069",
		StatusCode:      "ufCrm12_1769104141",
		CallStartedAt:   "ufCrm12_1769104245",
		Duration:        "ufCrm12_1769104293",
		Answered:        "ufCrm12_1769104391",
		Disposition:     "ufCrm12_1769104508",
		DispositionRaw:  "ufCrm12_1769104556",
		EntityTypeID:    "ufCrm12_1769104880",
		EntityID:        "ufCrm12_1769104915",
		CreatedAt:       "ufCrm12_1769104953",
		UpdatedAt:       "ufCrm12_1769104996",
		SyncedAt:        "ufCrm12_1769105024",
	}
}

// Record is the reconciled target entity. It is owned exclusively by the
// upsert engine: no other component writes it.
type Record struct {
	ID int `json:"id"`

	DedupKey   string `json:"dedup_key"`
	CallID     string `json:"call_id"`
	ActivityID string `json:"activity_id,omitempty"`

	EntityTypeID string `json:"entity_type_id,omitempty"`
	EntityID     string `json:"entity_id,omitempty"`

	UserID   string `json:"user_id,omitempty"`
	UserName string `json:"user_name,omitempty"`

	Phone     string `json:"phone,omitempty"`
	Direction string `json:"direction,omitempty"`

	DurationSeconds int  `json:"duration_seconds"`
	Answered        bool `json:"answered"`

	Disposition    string `json:"disposition,omitempty"`
	DispositionRaw string `json:"disposition_raw,omitempty"`

	CallStartedAt time.Time `json:"call_started_at"`
	RawCallStart  string    `json:"raw_call_start,omitempty"`
}

// HasActivityLink reports whether the record already points at an activity.
func (r Record) HasActivityLink() bool { return r.ActivityID != "" }

// recordFromRaw maps a duck-typed item row onto a Record using codes.
func recordFromRaw(item map[string]any, codes FieldCodes) Record {
	rec := Record{
		ID:             crm.FieldInt(item, "id", "ID", "Id"),
		DedupKey:       crm.FieldString(item, codes.DedupKey),
		CallID:         crm.FieldString(item, codes.TelephonyCallID),
		ActivityID:     crm.FieldString(item, codes.ActivityID),
		EntityTypeID:   crm.FieldString(item, codes.EntityTypeID),
		EntityID:       crm.FieldString(item, codes.EntityID),
		UserID:         crm.FieldString(item, codes.UserID),
		UserName:       crm.FieldString(item, codes.UserName),
		Direction:      crm.FieldString(item, codes.Direction),
		Disposition:    crm.FieldString(item, codes.Disposition),
		DispositionRaw: crm.FieldString(item, codes.DispositionRaw),
		RawCallStart:   crm.FieldString(item, codes.CallStartedAt),
	}
	rec.Phone = crm.NormalizePhone(crm.FieldString(item, codes.Phone))
	rec.DurationSeconds = crm.FieldInt(item, codes.Duration)
	rec.Answered = crm.FieldString(item, codes.Answered) == "Y"
	if ts, ok := crm.ParsePortalTime(rec.RawCallStart); ok {
		rec.CallStartedAt = ts
	}
	return rec
}
