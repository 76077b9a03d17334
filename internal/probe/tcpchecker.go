package probe

import (
	"context"
	"net"
	"time"

	"github.com/hamed0406/socdash/internal/domain"
)

// TCPChecker succeeds when a TCP connection can be established.
type TCPChecker struct {
	Dialer *net.Dialer
}

func NewTCPChecker() *TCPChecker {
	return &TCPChecker{Dialer: &net.Dialer{}}
}

func (c *TCPChecker) Check(ctx context.Context, svc domain.Service) Result {
	start := time.Now()
	conn, err := c.Dialer.DialContext(ctx, "tcp", svc.Key())
	if err != nil {
		return failed(err)
	}
	latency := time.Since(start).Milliseconds()
	_ = conn.Close()
	return Result{OK: true, LatencyMS: ms(latency)}
}
