package telephony

import (
	"context"
	"testing"
	"time"
)

type fakeLister struct {
	rows   []map[string]any
	method string
	params map[string]any
}

func (f *fakeLister) FetchAll(ctx context.Context, method string, params map[string]any) ([]map[string]any, error) {
	f.method = method
	f.params = params
	return f.rows, nil
}

func TestListCalls_MapsRowsAndSkipsMissingIDs(t *testing.T) {
	lister := &fakeLister{rows: []map[string]any{
		{
			"CALL_ID":          "A1",
			"CALL_START_DATE":  "2024-03-05 14:30:00",
			"CALL_TYPE":        float64(1),
			"CALL_DURATION":    float64(42),
			"PHONE_NUMBER":     "+1 (555) 123-4567",
			"PORTAL_USER_ID":   float64(7),
			"PORTAL_USER_NAME": "Dana",
			"CALL_STATUS_CODE": "200",
		},
		{"CALL_START_DATE": "2024-03-05 15:00:00"}, // no id
	}}

	p := NewProvider(lister, nil)
	calls, err := p.ListCalls(context.Background(),
		time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 5, 23, 59, 59, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if lister.method != "voximplant.statistic.get" {
		t.Fatalf("unexpected method %q", lister.method)
	}
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}

	c := calls[0]
	if c.CallID != "A1" || c.UserID != "7" || c.UserName != "Dana" {
		t.Fatalf("unexpected identity mapping: %+v", c)
	}
	if c.Direction != DirectionOutbound {
		t.Fatalf("expected outbound, got %s", c.Direction)
	}
	if c.Phone != "+15551234567" {
		t.Fatalf("unexpected phone %q", c.Phone)
	}
	if !c.Answered || c.DurationSeconds != 42 {
		t.Fatalf("unexpected duration/answered: %+v", c)
	}
	if c.StartedAt.IsZero() {
		t.Fatalf("expected parsed start time")
	}
}

func TestCallFromRaw_PhoneAndDateFallbacks(t *testing.T) {
	rec := CallFromRaw(map[string]any{
		"ID":                        "9",
		"CALL_START_DATE_FORMATTED": "2024-03-05T10:00:00",
		"CALL_FROM":                 "555-0001",
		"CALL_TYPE":                 float64(3),
	})
	if rec.CallID != "9" {
		t.Fatalf("expected ID fallback, got %q", rec.CallID)
	}
	if rec.Phone != "5550001" {
		t.Fatalf("expected CALL_FROM fallback, got %q", rec.Phone)
	}
	if rec.Direction != DirectionInboundRedirected {
		t.Fatalf("expected redirected inbound, got %s", rec.Direction)
	}
	if rec.Answered {
		t.Fatalf("zero duration must not be answered")
	}
}

func TestDirectionCompatibility(t *testing.T) {
	cases := []struct {
		a, b Direction
		want bool
	}{
		{DirectionOutbound, DirectionOutbound, true},
		{DirectionOutbound, DirectionInbound, false},
		{DirectionInboundRedirected, DirectionInbound, true},
		{DirectionUnknown, DirectionOutbound, true},
		{"", DirectionInbound, true},
	}
	for _, tc := range cases {
		if got := tc.a.Compatible(tc.b); got != tc.want {
			t.Fatalf("Compatible(%s, %s) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}
