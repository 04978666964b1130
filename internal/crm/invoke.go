package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Envelope is the raw REST response wrapper returned by the portal.
// Result keeps its original shape; ParsePage normalizes it.
type Envelope struct {
	Result json.RawMessage `json:"result"`
	Next   *int            `json:"next,omitempty"`
	Total  int             `json:"total,omitempty"`

	ErrorCode        string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Invoker performs a single remote method call.
//
// Rules:
// - No portal HTTP calls outside this boundary.
// - Failures must come back as *CallError so callers can classify them.
type Invoker interface {
	Invoke(ctx context.Context, method string, params map[string]any) (Envelope, error)
}

// RESTInvoker calls the portal inbound-webhook REST endpoint:
// POST {portal}/rest/{token}/{method}.json with a JSON params body.
type RESTInvoker struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewRESTInvoker(portalURL, token string, client *http.Client) *RESTInvoker {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &RESTInvoker{
		baseURL: strings.TrimRight(portalURL, "/"),
		token:   strings.Trim(token, "/"),
		client:  client,
	}
}

// Portal error codes that indicate throttling rather than a broken request.
var transientPortalCodes = map[string]bool{
	"QUERY_LIMIT_EXCEEDED":  true,
	"OPERATION_TIME_LIMIT":  true,
	"ERROR_NETWORK":         true,
	"INTERNAL_SERVER_ERROR": true,
	"TOO_MANY_REQUESTS":     true,
}

func (r *RESTInvoker) Invoke(ctx context.Context, method string, params map[string]any) (Envelope, error) {
	if method == "" {
		return Envelope{}, &CallError{Kind: KindBusiness, Method: method, Message: "method is required"}
	}
	if params == nil {
		params = map[string]any{}
	}

	body, err := json.Marshal(params)
	if err != nil {
		return Envelope{}, &CallError{Kind: KindBusiness, Method: method, Message: fmt.Sprintf("encode params: %v", err)}
	}

	url := fmt.Sprintf("%s/rest/%s/%s.json", r.baseURL, r.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Envelope{}, &CallError{Kind: KindBusiness, Method: method, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Envelope{}, classifyTransportErr(method, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusGatewayTimeout,
		resp.StatusCode == http.StatusTooManyRequests:
		return Envelope{}, &CallError{Kind: KindTransient, Method: method, Message: fmt.Sprintf("http %d", resp.StatusCode)}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return Envelope{}, classifyTransportErr(method, err)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, &CallError{Kind: KindMalformed, Method: method, Message: fmt.Sprintf("decode response: %v", err)}
	}

	if env.ErrorCode != "" {
		kind := KindBusiness
		if transientPortalCodes[env.ErrorCode] {
			kind = KindTransient
		}
		msg := env.ErrorDescription
		if msg == "" {
			msg = env.ErrorCode
		}
		return Envelope{}, &CallError{Kind: kind, Method: method, Message: msg}
	}

	return env, nil
}

func classifyTransportErr(method string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &CallError{Kind: KindTimeout, Method: method, Message: "call timed out"}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &CallError{Kind: KindTimeout, Method: method, Message: "call timed out"}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &CallError{Kind: KindTransient, Method: method, Message: err.Error()}
}
