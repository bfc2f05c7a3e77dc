package browser

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ysmood/gson"
)

func TestPoll_ImmediateSuccess(t *testing.T) {
	var calls int32
	err := Poll(context.Background(), time.Millisecond, time.Second, func(context.Context) (bool, error) {
		atomic.AddInt32(&calls, 1)
		return true, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("condition evaluated %d times, want 1", calls)
	}
}

func TestPoll_EventualSuccess(t *testing.T) {
	var calls int32
	err := Poll(context.Background(), time.Millisecond, time.Second, func(context.Context) (bool, error) {
		return atomic.AddInt32(&calls, 1) >= 3, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("condition evaluated %d times, want 3", calls)
	}
}

func TestPoll_Timeout(t *testing.T) {
	errMissing := errors.New("node missing")
	err := Poll(context.Background(), time.Millisecond, 20*time.Millisecond, func(context.Context) (bool, error) {
		return false, errMissing
	})
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("expected ErrWaitTimeout, got %v", err)
	}
}

func TestPoll_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Poll(ctx, time.Millisecond, time.Second, func(context.Context) (bool, error) {
		return false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrWaitTimeout) {
		t.Error("cancellation must not be reported as a wait timeout")
	}
}

func TestPoll_BoundsBlockedCondition(t *testing.T) {
	done := make(chan error, 1)
	go func() {
		done <- Poll(context.Background(), time.Millisecond, 20*time.Millisecond, func(ctx context.Context) (bool, error) {
			<-ctx.Done()
			return false, ctx.Err()
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, ErrWaitTimeout) {
			t.Errorf("expected ErrWaitTimeout, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("a condition blocked on its context must end with the timeout")
	}
}

// stuckPage never answers until its context ends.
type stuckPage struct{}

func (stuckPage) Navigate(ctx context.Context, _ string) error { <-ctx.Done(); return ctx.Err() }
func (stuckPage) Reload(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }
func (stuckPage) Eval(ctx context.Context, _ string, _ ...interface{}) (gson.JSON, error) {
	<-ctx.Done()
	return gson.New(nil), ctx.Err()
}
func (stuckPage) Elements(ctx context.Context, _ string) ([]Element, error) {
	return []Element{stuckElement{}}, nil
}
func (stuckPage) HTML(ctx context.Context) (string, error) { <-ctx.Done(); return "", ctx.Err() }

type stuckElement struct{}

func (stuckElement) Click(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }
func (stuckElement) Attribute(ctx context.Context, _ string) (*string, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestWithCallTimeout(t *testing.T) {
	page := WithCallTimeout(stuckPage{}, 10*time.Millisecond)
	ctx := context.Background()

	if _, err := page.Eval(ctx, "() => 1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Eval: expected DeadlineExceeded, got %v", err)
	}
	if _, err := page.HTML(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("HTML: expected DeadlineExceeded, got %v", err)
	}
	els, err := page.Elements(ctx, "button")
	if err != nil || len(els) != 1 {
		t.Fatalf("Elements: %v, %d", err, len(els))
	}
	if err := els[0].Click(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Click: expected DeadlineExceeded, got %v", err)
	}
	if _, err := els[0].Attribute(ctx, "aria-hidden"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Attribute: expected DeadlineExceeded, got %v", err)
	}

	if WithCallTimeout(stuckPage{}, 0) != (stuckPage{}) {
		t.Error("a zero timeout should return the page unchanged")
	}
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestIsAdHost(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"doubleclick.net", true},
		{"stats.g.doubleclick.net", true},
		{"PAGEAD2.GOOGLESYNDICATION.COM", true},
		{"sg.finance.yahoo.com", false},
		{"net", false},
	}
	for _, tt := range tests {
		if got := isAdHost(tt.host); got != tt.want {
			t.Errorf("isAdHost(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}
