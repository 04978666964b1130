package activity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"callsync/internal/crm"
)

const (
	listMethod   = "crm.activity.list"
	updateMethod = "crm.activity.update"

	// TYPE_ID of call activities.
	callTypeID = 2
)

// Client is the slice of the fetch client this provider needs.
type Client interface {
	FetchAll(ctx context.Context, method string, params map[string]any) ([]map[string]any, error)
	Call(ctx context.Context, method string, params map[string]any) (crm.Envelope, error)
}

// Provider reads call activities and stamps resolved dispositions back.
type Provider struct {
	client Client
	log    *slog.Logger

	// ResultPrefix is the marker prepended when writing a disposition
	// back onto an activity, e.g. "[DISPOSITION]".
	ResultPrefix string
}

func NewProvider(client Client, log *slog.Logger, resultPrefix string) *Provider {
	if log == nil {
		log = slog.Default()
	}
	return &Provider{client: client, log: log, ResultPrefix: resultPrefix}
}

// ListCallActivities fetches call activities started inside [from, to],
// optionally restricted to a set of responsible users.
func (p *Provider) ListCallActivities(ctx context.Context, from, to time.Time, userIDs []string) ([]Record, error) {
	filter := map[string]any{
		">=START_TIME": crm.FormatPortalTime(from),
		"<=START_TIME": crm.FormatPortalTime(to),
		"TYPE_ID":      callTypeID,
	}
	if len(userIDs) > 0 {
		filter["RESPONSIBLE_ID"] = userIDs
	}

	rows, err := p.client.FetchAll(ctx, listMethod, map[string]any{
		"filter": filter,
		"select": []string{
			"ID", "TYPE_ID", "DIRECTION", "START_TIME", "END_TIME",
			"CREATED", "LAST_UPDATED", "RESPONSIBLE_ID", "DESCRIPTION",
			"RESULT", "OWNER_TYPE_ID", "OWNER_ID", "COMMUNICATIONS",
		},
		"order": map[string]any{"START_TIME": "ASC"},
	})
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := FromRaw(row)
		if rec.ID == "" {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// WriteDisposition stamps a resolved disposition onto the source activity.
// Best-effort side channel: callers log failures and move on.
func (p *Provider) WriteDisposition(ctx context.Context, activityID, label string) error {
	if activityID == "" || label == "" {
		return fmt.Errorf("activity: id and label are required")
	}

	result := label
	if p.ResultPrefix != "" {
		result = strings.TrimSpace(p.ResultPrefix + " " + label)
	}

	_, err := p.client.Call(ctx, updateMethod, map[string]any{
		"id": activityID,
		"fields": map[string]any{
			"RESULT": result,
		},
	})
	if err != nil {
		return fmt.Errorf("activity: write disposition to %s: %w", activityID, err)
	}
	return nil
}
