package crm

import (
	"encoding/json"
	"fmt"
	"math"
)

// Page is the canonical form of one listing response. No component outside
// this package ever sees the raw envelope shapes.
type Page struct {
	Items []map[string]any
	// Next is the explicit offset of the following page, nil when absent.
	Next *int
	// More is set when the response only carried a "more available" flag
	// without a concrete cursor. The fetch loop terminates in that case
	// instead of spinning.
	More bool
}

// ParsePage normalizes the known result shapes:
// a bare array, {items: [...]}, {result: [...]}, {result: {items: [...]}},
// with the next cursor at the envelope level or nested under one or two
// result wrappers.
func ParsePage(method string, env Envelope) (Page, error) {
	var body any
	if len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, &body); err != nil {
			return Page{}, &CallError{Kind: KindMalformed, Method: method, Message: fmt.Sprintf("decode result: %v", err)}
		}
	}

	items, ok := extractItems(body)
	if !ok && body != nil {
		return Page{}, &CallError{Kind: KindMalformed, Method: method, Message: "result carries no item list"}
	}

	p := Page{Items: items, Next: env.Next}
	if p.Next == nil {
		p.Next = extractNext(body, 0)
	}
	if p.Next == nil {
		p.More = extractMore(body, 0)
	}
	return p, nil
}

func extractItems(v any) ([]map[string]any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, e := range t {
			if m, ok := e.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out, true
	case map[string]any:
		if raw, ok := t["items"]; ok {
			if arr, ok := raw.([]any); ok {
				return extractItems(arr)
			}
		}
		if raw, ok := t["result"]; ok {
			return extractItems(raw)
		}
		return nil, false
	default:
		return nil, false
	}
}

// extractNext digs at most two wrapper levels, mirroring the shapes the
// portal is known to return.
func extractNext(v any, depth int) *int {
	m, ok := v.(map[string]any)
	if !ok || depth > 2 {
		return nil
	}
	if raw, ok := m["next"]; ok {
		if n, ok := asInt(raw); ok {
			return &n
		}
	}
	if inner, ok := m["result"]; ok {
		return extractNext(inner, depth+1)
	}
	return nil
}

func extractMore(v any, depth int) bool {
	m, ok := v.(map[string]any)
	if !ok || depth > 2 {
		return false
	}
	if raw, ok := m["more"]; ok {
		if b, ok := raw.(bool); ok {
			return b
		}
	}
	if inner, ok := m["result"]; ok {
		return extractMore(inner, depth+1)
	}
	return false
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int(t), true
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	case string:
		var n int
		if _, err := fmt.Sscanf(t, "%d", &n); err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
