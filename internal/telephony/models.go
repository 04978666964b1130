package telephony

import "time"

// Direction of a call or a call activity.
type Direction string

const (
	DirectionOutbound          Direction = "OUTBOUND"
	DirectionInbound           Direction = "INBOUND"
	DirectionInboundRedirected Direction = "INBOUND_REDIRECTED"
	DirectionUnknown           Direction = "UNKNOWN"
)

// DirectionFromCallType maps the telephony CALL_TYPE code.
func DirectionFromCallType(t int) Direction {
	switch t {
	case 1:
		return DirectionOutbound
	case 2:
		return DirectionInbound
	case 3:
		return DirectionInboundRedirected
	default:
		return DirectionUnknown
	}
}

// ParseDirection maps a stored direction label back onto a Direction.
// Anything unrecognized (an empty string, a portal enum id) degrades to
// unknown, which matches any direction.
func ParseDirection(s string) Direction {
	switch Direction(s) {
	case DirectionOutbound, DirectionInbound, DirectionInboundRedirected:
		return Direction(s)
	default:
		return DirectionUnknown
	}
}

// canonical collapses redirected inbound onto inbound; activity records
// only ever carry outbound/inbound/unknown.
func (d Direction) canonical() Direction {
	if d == DirectionInboundRedirected {
		return DirectionInbound
	}
	return d
}

// Compatible reports whether two directions may describe the same call.
// An unknown (or absent) direction on either side matches anything.
func (d Direction) Compatible(o Direction) bool {
	if d == "" || d == DirectionUnknown || o == "" || o == DirectionUnknown {
		return true
	}
	return d.canonical() == o.canonical()
}

// CallRecord is one telephony statistics row. Immutable once fetched;
// sourced only from the telephony listing, never written back.
type CallRecord struct {
	CallID string `json:"call_id"`

	StartedAt time.Time `json:"started_at"`
	// RawStart keeps the portal string for records whose timestamp failed
	// to parse; such records are skipped by the resolver, not dropped here.
	RawStart string `json:"raw_start,omitempty"`

	DurationSeconds int       `json:"duration_seconds"`
	Direction       Direction `json:"direction"`

	PhoneRaw string `json:"phone_raw,omitempty"`
	// Phone is the normalized form (digits plus leading +).
	Phone string `json:"phone,omitempty"`

	UserID   string `json:"user_id,omitempty"`
	UserName string `json:"user_name,omitempty"`

	StatusCode string `json:"status_code,omitempty"`
	Answered   bool   `json:"answered"`
}
