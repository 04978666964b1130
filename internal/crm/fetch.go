package crm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// FetchOptions is the budget applied to one whole listing.
// Zero or negative timeouts fall back to the portal-safe defaults observed
// in production. PageDelay and MaxRetries default only when negative: an
// explicit zero disables the inter-page pause or the retries.
type FetchOptions struct {
	PageTimeout    time.Duration // single page call
	OverallTimeout time.Duration // whole listing, all retries included
	PageDelay      time.Duration // pause between pages (rate limits)
	MaxRetries     int           // transient retries per page
	RetryBase      time.Duration // linear backoff base: attempt * base
}

func (o FetchOptions) withDefaults() FetchOptions {
	out := o
	if out.PageTimeout <= 0 {
		out.PageTimeout = 120 * time.Second
	}
	if out.OverallTimeout <= 0 {
		out.OverallTimeout = 900 * time.Second
	}
	if out.PageDelay < 0 {
		out.PageDelay = 150 * time.Millisecond
	}
	if out.MaxRetries < 0 {
		out.MaxRetries = 3
	}
	if out.RetryBase <= 0 {
		out.RetryBase = 400 * time.Millisecond
	}
	return out
}

// Client drives offset pagination over an Invoker. It is purely functional
// given a method and params; the only side effects are the remote calls.
type Client struct {
	inv  Invoker
	log  *slog.Logger
	opts FetchOptions
}

func NewClient(inv Invoker, log *slog.Logger, opts FetchOptions) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{inv: inv, log: log, opts: opts.withDefaults()}
}

// Call performs a single non-paginated method call with the page timeout.
func (c *Client) Call(ctx context.Context, method string, params map[string]any) (Envelope, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.opts.PageTimeout)
	defer cancel()
	return c.inv.Invoke(callCtx, method, params)
}

// FetchAll materializes a full paginated result set for method/params.
//
// Termination guards, in order:
//   - no next cursor and no more-flag: done
//   - more-flag without a concrete cursor: stop instead of spinning
//   - next cursor equal to the current one: stop (API inconsistency)
//   - aggregate budget exceeded: ErrDeadline
func (c *Client) FetchAll(ctx context.Context, method string, params map[string]any) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.OverallTimeout)
	defer cancel()

	cursor := 0
	if raw, ok := params["start"]; ok {
		if n, ok := asInt(raw); ok {
			cursor = n
		}
	}

	var out []map[string]any
	for {
		page, err := c.fetchPage(ctx, method, params, cursor)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
				return nil, ErrDeadline
			}
			return nil, err
		}

		out = append(out, page.Items...)

		if page.Next == nil {
			if page.More {
				c.log.Warn("more items reported without a cursor, stopping fetch",
					"method", method, "start", cursor, "items", len(out))
			}
			return out, nil
		}
		if *page.Next == cursor {
			c.log.Warn("next cursor did not advance, stopping fetch",
				"method", method, "start", cursor)
			return out, nil
		}
		cursor = *page.Next

		if err := sleepCtx(ctx, c.opts.PageDelay); err != nil {
			return nil, ErrDeadline
		}
	}
}

// fetchPage retries the same page on transient failures with linear backoff.
func (c *Client) fetchPage(ctx context.Context, method string, params map[string]any, cursor int) (Page, error) {
	pageParams := make(map[string]any, len(params)+1)
	for k, v := range params {
		pageParams[k] = v
	}
	pageParams["start"] = cursor

	// BackOff implementations are stateful; always build a fresh one.
	bo := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{base: c.opts.RetryBase}, uint64(c.opts.MaxRetries)),
		ctx,
	)

	var page Page
	attempt := 0
	op := func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, c.opts.PageTimeout)
		defer cancel()

		env, err := c.inv.Invoke(callCtx, method, pageParams)
		if err != nil {
			if Retryable(err) {
				c.log.Warn("page call failed, retrying",
					"method", method, "start", cursor, "attempt", attempt, "err", err)
				return err
			}
			return backoff.Permanent(err)
		}

		p, err := ParsePage(method, env)
		if err != nil {
			return backoff.Permanent(err)
		}
		page = p
		return nil
	}

	if err := backoff.Retry(op, bo); err != nil {
		return Page{}, err
	}
	return page, nil
}

// linearBackOff waits attempt * base between retries of the same page.
type linearBackOff struct {
	base    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.base
}

func (b *linearBackOff) Reset() { b.attempt = 0 }

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
