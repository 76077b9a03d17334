package probe

import (
	"context"
	"time"

	"github.com/hamed0406/socdash/internal/domain"
)

// RetryChecker re-runs a failing check up to Attempts times. It is an outer
// loop around the prober; a single probe never retries on its own.
type RetryChecker struct {
	Inner    Checker
	Attempts int
	Backoff  time.Duration
}

func (r *RetryChecker) Check(ctx context.Context, svc domain.Service) Result {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var last Result
	for i := 0; i < attempts; i++ {
		last = r.Inner.Check(ctx, svc)
		if last.OK {
			return last
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return last
		case <-time.After(r.Backoff):
		}
	}
	if attempts > 1 && last.Detail != nil && last.Detail.Error != "" {
		// copy so the inner checker's detail is not mutated
		d := *last.Detail
		d.Error += " (after retries)"
		last.Detail = &d
	}
	return last
}
