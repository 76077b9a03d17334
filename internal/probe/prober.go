package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/hamed0406/socdash/internal/domain"
)

// DefaultTimeout matches the one second connect timeout of the dashboard.
const DefaultTimeout = time.Second

// Prober is the single probe entry point. It dispatches on the service kind,
// bounds every attempt by Timeout and turns a panicking checker into a
// failed result.
type Prober struct {
	TCP     Checker
	HTTP    Checker
	Timeout time.Duration
}

func NewProber(timeout time.Duration, forceTLS bool) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{
		TCP:     NewTCPChecker(),
		HTTP:    NewHTTPChecker(forceTLS),
		Timeout: timeout,
	}
}

func (p *Prober) Check(ctx context.Context, svc domain.Service) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = failed(fmt.Errorf("probe panic: %v", r))
		}
	}()

	cctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	switch svc.EffectiveKind() {
	case domain.KindTCP:
		return p.TCP.Check(cctx, svc)
	case domain.KindHTTP:
		return p.HTTP.Check(cctx, svc)
	default:
		return failed(fmt.Errorf("unsupported kind %q", svc.Kind))
	}
}
