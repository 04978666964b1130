package crm

import (
	"strconv"
	"strings"
	"time"
)

// Portal datetimes arrive either as "2006-01-02 15:04:05",
// as the same with a T separator, or as RFC3339 with an offset.
var portalTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParsePortalTime parses a portal datetime string. The zero time plus false
// signals an unparseable or empty value; callers skip such records.
func ParsePortalTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range portalTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatPortalTime renders a timestamp in the filter format the portal
// accepts (space separator, no offset).
func FormatPortalTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// NormalizePhone strips everything except digits and a leading plus,
// the same canonical form used on both sides of a phone comparison.
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	var b strings.Builder
	for i, r := range raw {
		if r >= '0' && r <= '9' || (r == '+' && i == 0) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FieldString returns the first non-empty value among keys, stringified.
// Raw items are duck-typed maps; numbers may arrive as float64 or string.
func FieldString(item map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := item[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case int:
			return strconv.Itoa(t)
		case bool:
			return strconv.FormatBool(t)
		}
	}
	return ""
}

// FieldInt parses the first present key as an integer, 0 when absent.
func FieldInt(item map[string]any, keys ...string) int {
	for _, k := range keys {
		v, ok := item[k]
		if !ok || v == nil {
			continue
		}
		if n, ok := asInt(v); ok {
			return n
		}
	}
	return 0
}
