package target

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"callsync/internal/crm"
)

// Store is the target-entity write surface. Implementations must return
// FindByDedupKey results ordered by ascending id.
type Store interface {
	FindByDedupKey(ctx context.Context, key string) ([]Record, error)
	ListByPeriod(ctx context.Context, from, to time.Time, onlyMissingLink bool) ([]Record, error)
	Create(ctx context.Context, fields map[string]any) (int, error)
	Update(ctx context.Context, id int, fields map[string]any) error
	Get(ctx context.Context, id int) (Record, error)
}

// Client is the slice of the fetch client the remote store needs.
type Client interface {
	FetchAll(ctx context.Context, method string, params map[string]any) ([]map[string]any, error)
	Call(ctx context.Context, method string, params map[string]any) (crm.Envelope, error)
}

// ItemStore is the portal-backed Store over the crm.item.* methods.
type ItemStore struct {
	client       Client
	entityTypeID int
	codes        FieldCodes
	log          *slog.Logger
}

func NewItemStore(client Client, entityTypeID int, codes FieldCodes, log *slog.Logger) *ItemStore {
	if log == nil {
		log = slog.Default()
	}
	return &ItemStore{client: client, entityTypeID: entityTypeID, codes: codes, log: log}
}

func (s *ItemStore) FindByDedupKey(ctx context.Context, key string) ([]Record, error) {
	if key == "" {
		return nil, fmt.Errorf("target: dedup key is required")
	}

	env, err := s.client.Call(ctx, "crm.item.list", map[string]any{
		"entityTypeId": s.entityTypeID,
		"filter":       map[string]any{s.codes.DedupKey: key},
		"select": []string{
			"id", s.codes.DedupKey, s.codes.TelephonyCallID,
			s.codes.ActivityID, s.codes.Disposition,
		},
		"order": map[string]any{"id": "ASC"},
	})
	if err != nil {
		return nil, err
	}

	page, err := crm.ParsePage("crm.item.list", env)
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(page.Items))
	for _, item := range page.Items {
		rec := recordFromRaw(item, s.codes)
		if rec.ID == 0 {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (s *ItemStore) ListByPeriod(ctx context.Context, from, to time.Time, onlyMissingLink bool) ([]Record, error) {
	filter := map[string]any{
		">=" + s.codes.CallStartedAt: crm.FormatPortalTime(from),
		"<=" + s.codes.CallStartedAt: crm.FormatPortalTime(to),
	}
	if onlyMissingLink {
		filter["="+s.codes.ActivityID] = false
	}

	rows, err := s.client.FetchAll(ctx, "crm.item.list", map[string]any{
		"entityTypeId": s.entityTypeID,
		"filter":       filter,
		"select": []string{
			"id", s.codes.TelephonyCallID, s.codes.ActivityID,
			s.codes.UserID, s.codes.Phone, s.codes.CallStartedAt,
			s.codes.Direction, s.codes.DispositionRaw,
			s.codes.EntityTypeID, s.codes.EntityID,
		},
		"order": map[string]any{"id": "ASC"},
	})
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(rows))
	for _, item := range rows {
		rec := recordFromRaw(item, s.codes)
		if rec.ID == 0 {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *ItemStore) Create(ctx context.Context, fields map[string]any) (int, error) {
	env, err := s.client.Call(ctx, "crm.item.add", map[string]any{
		"entityTypeId": s.entityTypeID,
		"fields":       fields,
	})
	if err != nil {
		return 0, err
	}
	item, err := itemFromEnvelope("crm.item.add", env)
	if err != nil {
		return 0, err
	}
	id := crm.FieldInt(item, "id", "ID", "Id")
	if id == 0 {
		return 0, &crm.CallError{Kind: crm.KindMalformed, Method: "crm.item.add", Message: "created item carries no id"}
	}
	return id, nil
}

func (s *ItemStore) Update(ctx context.Context, id int, fields map[string]any) error {
	if id <= 0 {
		return fmt.Errorf("target: invalid id %d for update", id)
	}
	_, err := s.client.Call(ctx, "crm.item.update", map[string]any{
		"entityTypeId": s.entityTypeID,
		"id":           id,
		"fields":       fields,
	})
	return err
}

func (s *ItemStore) Get(ctx context.Context, id int) (Record, error) {
	if id <= 0 {
		return Record{}, fmt.Errorf("target: invalid id %d for get", id)
	}
	env, err := s.client.Call(ctx, "crm.item.get", map[string]any{
		"entityTypeId": s.entityTypeID,
		"id":           id,
	})
	if err != nil {
		return Record{}, err
	}
	item, err := itemFromEnvelope("crm.item.get", env)
	if err != nil {
		return Record{}, err
	}
	rec := recordFromRaw(item, s.codes)
	if rec.ID == 0 {
		rec.ID = id
	}
	return rec, nil
}

// itemFromEnvelope unwraps {result: {item: {...}}} responses; some portal
// versions skip the item wrapper.
func itemFromEnvelope(method string, env crm.Envelope) (map[string]any, error) {
	if len(env.Result) == 0 {
		return nil, &crm.CallError{Kind: crm.KindMalformed, Method: method, Message: "empty result"}
	}
	var body map[string]any
	if err := json.Unmarshal(env.Result, &body); err != nil {
		return nil, &crm.CallError{Kind: crm.KindMalformed, Method: method, Message: fmt.Sprintf("decode result: %v", err)}
	}
	if inner, ok := body["item"].(map[string]any); ok {
		return inner, nil
	}
	return body, nil
}
