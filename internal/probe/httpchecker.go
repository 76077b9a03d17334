package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hamed0406/socdash/internal/domain"
)

// maxBodyPrefix is how much of the response body is read and discarded.
const maxBodyPrefix = 8 << 10

type HTTPChecker struct {
	Client *http.Client
	// ForceTLS probes every http service over https.
	ForceTLS bool
}

// NewHTTPChecker returns a checker that does not follow redirects, so a 3xx
// answer counts as reachable. Timeouts come from the caller's context.
func NewHTTPChecker(forceTLS bool) *HTTPChecker {
	return &HTTPChecker{
		Client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		ForceTLS: forceTLS,
	}
}

func (h *HTTPChecker) Check(ctx context.Context, svc domain.Service) Result {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.targetURL(svc), nil)
	if err != nil {
		return failed(err)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return failed(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyPrefix))
	latency := time.Since(start).Milliseconds()

	detail := &domain.Detail{HTTPCode: resp.StatusCode}
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		detail.Error = fmt.Sprintf("unexpected status %s", resp.Status)
		return Result{OK: false, Detail: detail}
	}
	return Result{OK: true, LatencyMS: ms(latency), Detail: detail}
}

func (h *HTTPChecker) targetURL(svc domain.Service) string {
	scheme := "http"
	if svc.TLS || h.ForceTLS {
		scheme = "https"
	}
	path := svc.Path
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := url.URL{Scheme: scheme, Host: svc.Key()}
	// path may carry a query string, so it is appended rather than set on u.Path
	return u.String() + path
}
