package telephony

import (
	"context"
	"log/slog"
	"time"

	"callsync/internal/crm"
)

const listMethod = "voximplant.statistic.get"

// Lister is the slice of the fetch client this provider needs.
type Lister interface {
	FetchAll(ctx context.Context, method string, params map[string]any) ([]map[string]any, error)
}

// Provider reads call statistics from the telephony subsystem.
type Provider struct {
	client Lister
	log    *slog.Logger
}

func NewProvider(client Lister, log *slog.Logger) *Provider {
	if log == nil {
		log = slog.Default()
	}
	return &Provider{client: client, log: log}
}

// ListCalls fetches all calls whose start date falls inside [from, to].
func (p *Provider) ListCalls(ctx context.Context, from, to time.Time) ([]CallRecord, error) {
	rows, err := p.client.FetchAll(ctx, listMethod, map[string]any{
		"FILTER": map[string]any{
			">=CALL_START_DATE": crm.FormatPortalTime(from),
			"<=CALL_START_DATE": crm.FormatPortalTime(to),
		},
		"SORT":  "CALL_START_DATE",
		"ORDER": "ASC",
	})
	if err != nil {
		return nil, err
	}

	out := make([]CallRecord, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		rec := CallFromRaw(row)
		if rec.CallID == "" {
			skipped++
			continue
		}
		out = append(out, rec)
	}
	if skipped > 0 {
		p.log.Warn("calls without an id skipped", "count", skipped)
	}
	return out, nil
}

// CallFromRaw maps a duck-typed statistics row onto a CallRecord,
// probing the field aliases seen across portal versions.
func CallFromRaw(item map[string]any) CallRecord {
	rec := CallRecord{
		CallID:     crm.FieldString(item, "CALL_ID", "ID"),
		RawStart:   crm.FieldString(item, "CALL_START_DATE", "CALL_START_DATE_FORMATTED", "CALL_START_DATE_SHORT"),
		StatusCode: crm.FieldString(item, "CALL_STATUS_CODE", "CALL_FAILED_CODE"),
		UserID:     crm.FieldString(item, "PORTAL_USER_ID"),
		UserName:   crm.FieldString(item, "PORTAL_USER_NAME"),
	}

	if ts, ok := crm.ParsePortalTime(rec.RawStart); ok {
		rec.StartedAt = ts
	}

	rec.PhoneRaw = crm.FieldString(item, "PHONE_NUMBER", "CALL_PHONE_NUMBER", "PHONE", "CALL_FROM", "CALL_TO")
	rec.Phone = crm.NormalizePhone(rec.PhoneRaw)

	rec.Direction = DirectionFromCallType(crm.FieldInt(item, "CALL_TYPE"))
	rec.DurationSeconds = crm.FieldInt(item, "CALL_DURATION")
	rec.Answered = rec.DurationSeconds > 0

	return rec
}
