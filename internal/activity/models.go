package activity

import (
	"time"

	"callsync/internal/crm"
	"callsync/internal/telephony"
)

// Record is one CRM call activity. Immutable once fetched; the only write
// this system performs against activities is the best-effort disposition
// stamp in Provider.WriteDisposition.
type Record struct {
	ID string `json:"id"`

	StartedAt time.Time `json:"started_at"`
	RawStart  string    `json:"raw_start,omitempty"`

	// UserID is the responsible (owning) user.
	UserID string `json:"user_id,omitempty"`

	Direction telephony.Direction `json:"direction"`

	// Phone is normalized; activities frequently carry none.
	Phone string `json:"phone,omitempty"`

	Description string `json:"description,omitempty"`
	Result      string `json:"result,omitempty"`

	// OwnerTypeID/OwnerID point at the CRM object the activity hangs off.
	OwnerTypeID string `json:"owner_type_id,omitempty"`
	OwnerID     string `json:"owner_id,omitempty"`
}

// ResultText is the free text the disposition extractor scans:
// the explicit result when present, the description otherwise.
func (r Record) ResultText() string {
	if r.Result != "" {
		return r.Result
	}
	return r.Description
}

func directionFromCode(d int) telephony.Direction {
	switch d {
	case 1:
		return telephony.DirectionOutbound
	case 2:
		return telephony.DirectionInbound
	default:
		return telephony.DirectionUnknown
	}
}

// FromRaw maps a duck-typed activity row onto a Record.
func FromRaw(item map[string]any) Record {
	rec := Record{
		ID:          crm.FieldString(item, "ID"),
		RawStart:    crm.FieldString(item, "START_TIME", "CREATED", "LAST_UPDATED", "END_TIME"),
		UserID:      crm.FieldString(item, "RESPONSIBLE_ID"),
		Description: crm.FieldString(item, "DESCRIPTION"),
		Result:      crm.FieldString(item, "RESULT"),
		OwnerTypeID: crm.FieldString(item, "OWNER_TYPE_ID"),
		OwnerID:     crm.FieldString(item, "OWNER_ID"),
	}

	if ts, ok := crm.ParsePortalTime(rec.RawStart); ok {
		rec.StartedAt = ts
	}

	rec.Direction = directionFromCode(crm.FieldInt(item, "DIRECTION"))
	rec.Phone = crm.NormalizePhone(phoneFromRaw(item))

	return rec
}

// phoneFromRaw probes the communication bindings first, then the loose
// phone aliases some portal versions return.
func phoneFromRaw(item map[string]any) string {
	if comms, ok := item["COMMUNICATIONS"].([]any); ok && len(comms) > 0 {
		if first, ok := comms[0].(map[string]any); ok {
			if v := crm.FieldString(first, "VALUE", "VALUE_ORIGINAL"); v != "" {
				return v
			}
		}
	}
	return crm.FieldString(item, "PHONE_NUMBER", "CALL_PHONE_NUMBER", "CALL_FROM", "CALL_TO", "COMMUNICATION")
}
