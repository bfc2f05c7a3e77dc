// Package browser wraps a single rendering-browser tab behind a small
// capability interface so the extraction pipeline can be driven by rod in
// production and by an in-memory fake in tests.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ysmood/gson"
)

// ErrWaitTimeout is returned by Poll when the condition did not hold before
// the timeout elapsed.
var ErrWaitTimeout = errors.New("browser: wait timed out")

// Element is a handle to one DOM node.
type Element interface {
	// Click scrolls the node into view and dispatches a programmatic click.
	Click(ctx context.Context) error

	// Attribute returns the attribute value, or nil when it is absent.
	Attribute(ctx context.Context, name string) (*string, error)
}

// Page is the subset of a browser tab the extraction pipeline needs.
// Every method honours ctx cancellation and deadline.
type Page interface {
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error

	// Reload reloads the current document and waits for the load event.
	Reload(ctx context.Context) error

	// Eval runs a JS function expression (e.g. `() => 1`) and returns its value.
	Eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error)

	// Elements returns all nodes currently matching selector. It never waits;
	// an empty slice means no match.
	Elements(ctx context.Context, selector string) ([]Element, error)

	// HTML returns the serialized document.
	HTML(ctx context.Context) (string, error)
}

// Session owns the browser process and its single tab.
type Session interface {
	Page() Page
	Close() error
}

// Condition reports whether the awaited DOM state holds. A returned error is
// treated as "not yet" and remembered for the timeout message.
type Condition func(ctx context.Context) (bool, error)

// Poll evaluates cond immediately and then every interval until it holds,
// timeout elapses or ctx is done. cond receives a context that ends with the
// timeout, so a browser call that never answers is abandoned too. It returns
// nil once cond holds, an error wrapping ErrWaitTimeout on timeout, or
// ctx.Err() when the parent context ends first.
func Poll(ctx context.Context, interval, timeout time.Duration, cond Condition) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		ok, err := cond(wctx)
		if ok {
			return nil
		}
		if err != nil && wctx.Err() == nil {
			lastErr = err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		select {
		case <-wctx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if lastErr != nil {
				return fmt.Errorf("%w after %s: %v", ErrWaitTimeout, timeout, lastErr)
			}
			return fmt.Errorf("%w after %s", ErrWaitTimeout, timeout)
		case <-ticker.C:
		}
	}
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
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
