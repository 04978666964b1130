package crm

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParsePage_BareArray(t *testing.T) {
	p, err := ParsePage("m", Envelope{Result: json.RawMessage(`[{"ID":"1"},{"ID":"2"}]`)})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(p.Items) != 2 || p.Next != nil || p.More {
		t.Fatalf("unexpected page: %+v", p)
	}
}

func TestParsePage_NestedItemsAndCursor(t *testing.T) {
	cases := []struct {
		name string
		env  Envelope
		next int
	}{
		{
			name: "envelope next",
			env:  Envelope{Result: json.RawMessage(`[{"ID":"1"}]`), Next: intPtr(50)},
			next: 50,
		},
		{
			name: "items wrapper with next",
			env:  Envelope{Result: json.RawMessage(`{"items":[{"ID":"1"}],"next":50}`)},
			next: 50,
		},
		{
			name: "single result wrapper",
			env:  Envelope{Result: json.RawMessage(`{"result":{"items":[{"ID":"1"}],"next":50}}`)},
			next: 50,
		},
		{
			name: "string cursor",
			env:  Envelope{Result: json.RawMessage(`{"items":[{"ID":"1"}],"next":"50"}`)},
			next: 50,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := ParsePage("m", tc.env)
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if len(p.Items) != 1 {
				t.Fatalf("expected 1 item, got %d", len(p.Items))
			}
			if p.Next == nil || *p.Next != tc.next {
				t.Fatalf("expected next %d, got %v", tc.next, p.Next)
			}
		})
	}
}

func TestParsePage_MoreFlagWithoutCursor(t *testing.T) {
	p, err := ParsePage("m", Envelope{Result: json.RawMessage(`{"items":[{"ID":"1"}],"more":true}`)})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if p.Next != nil || !p.More {
		t.Fatalf("expected more without cursor, got %+v", p)
	}
}

func TestParsePage_EmptyResultTerminates(t *testing.T) {
	p, err := ParsePage("m", Envelope{})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(p.Items) != 0 || p.Next != nil || p.More {
		t.Fatalf("expected empty terminal page, got %+v", p)
	}
}

func TestParsePage_UnknownShapeIsMalformed(t *testing.T) {
	_, err := ParsePage("m", Envelope{Result: json.RawMessage(`{"fields":{"a":1}}`)})
	var ce *CallError
	if !errors.As(err, &ce) || ce.Kind != KindMalformed {
		t.Fatalf("expected malformed CallError, got %v", err)
	}
}
