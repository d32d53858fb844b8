// Package poller runs a fetch on a fixed interval until its context ends.
package poller

import (
	"context"
	"errors"
	"time"
)

// ErrStopped is returned by Run when the handler asked to stop.
var ErrStopped = errors.New("poller stopped")

// Poller fetches once immediately and then every Interval. There is no
// backoff, jitter or retry: a failed fetch is reported once and the next
// tick tries again.
type Poller[T any] struct {
	Interval time.Duration
	Fetch    func(ctx context.Context) (T, error)
}

// New 创建轮询器
func New[T any](interval time.Duration, fetch func(ctx context.Context) (T, error)) *Poller[T] {
	return &Poller[T]{Interval: interval, Fetch: fetch}
}

// Run polls until ctx is done or handle returns false. It returns ctx.Err()
// on cancellation and ErrStopped when the handler stops it.
func (p *Poller[T]) Run(ctx context.Context, handle func(T, error) bool) error {
	if p.Interval <= 0 {
		return errors.New("poller: interval must be positive")
	}
	if !p.tick(ctx, handle) {
		return p.stopReason(ctx)
	}

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !p.tick(ctx, handle) {
				return p.stopReason(ctx)
			}
		}
	}
}

func (p *Poller[T]) tick(ctx context.Context, handle func(T, error) bool) bool {
	if ctx.Err() != nil {
		return false
	}
	v, err := p.Fetch(ctx)
	if ctx.Err() != nil {
		// Results that arrive after cancellation are dropped.
		return false
	}
	return handle(v, err)
}

func (p *Poller[T]) stopReason(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrStopped
}
