package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunFetchesImmediatelyThenOnInterval(t *testing.T) {
	var n int32
	p := New(5*time.Millisecond, func(context.Context) (int32, error) {
		return atomic.AddInt32(&n, 1), nil
	})

	var seen []int32
	err := p.Run(context.Background(), func(v int32, err error) bool {
		seen = append(seen, v)
		return len(seen) < 3
	})
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("err=%v, want ErrStopped", err)
	}
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Fatalf("seen=%v", seen)
	}
}

func TestRunReportsErrorsWithoutStopping(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	p := New(time.Millisecond, func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", boom
		}
		return "ok", nil
	})

	var errs []error
	_ = p.Run(context.Background(), func(v string, err error) bool {
		errs = append(errs, err)
		return v != "ok"
	})
	if len(errs) != 2 || !errors.Is(errs[0], boom) || errs[1] != nil {
		t.Fatalf("errs=%v", errs)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := New(time.Hour, func(context.Context) (int, error) { return 1, nil })

	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx, func(int, error) bool { return true })
	}()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err=%v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunDropsResultAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := New(time.Hour, func(context.Context) (int, error) {
		cancel()
		return 1, nil
	})
	handled := false
	err := p.Run(ctx, func(int, error) bool { handled = true; return true })
	if handled {
		t.Fatalf("result delivered after cancellation")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
}

func TestRunRejectsZeroInterval(t *testing.T) {
	p := New(0, func(context.Context) (int, error) { return 0, nil })
	if err := p.Run(context.Background(), func(int, error) bool { return true }); err == nil {
		t.Fatal("expected error for zero interval")
	}
}
