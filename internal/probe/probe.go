package probe

import (
	"context"

	"github.com/hamed0406/socdash/internal/domain"
)

// Result is the outcome of a single reachability attempt.
//
// LatencyMS is set only when a connection (or response) completed.
// Detail carries protocol specific data such as the HTTP status code.
type Result struct {
	OK        bool
	LatencyMS *int64
	Detail    *domain.Detail
}

// Checker performs one check against a service. Implementations never panic
// on network errors and never return an error: failures are Result{OK: false}.
type Checker interface {
	Check(ctx context.Context, svc domain.Service) Result
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context, svc domain.Service) Result

func (f CheckerFunc) Check(ctx context.Context, svc domain.Service) Result { return f(ctx, svc) }

func failed(err error) Result {
	if err == nil {
		return Result{OK: false}
	}
	return Result{OK: false, Detail: &domain.Detail{Error: err.Error()}}
}

func ms(v int64) *int64 { return &v }
