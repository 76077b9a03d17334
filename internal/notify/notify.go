package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/hamed0406/socdash/internal/domain"
)

// Notifier delivers a written alert to an outside channel.
type Notifier interface {
	Send(ctx context.Context, a domain.Alert) error
}

// Multi fans an alert out to every non-nil notifier and combines the errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, a domain.Alert) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.Send(ctx, a))
	}
	return err
}

// Format renders the title and body text for an alert.
func Format(a domain.Alert) (title, text string) {
	if a.Source == domain.SourceShipper {
		return "🟣 Log match", a.Summary
	}

	switch a.Status {
	case domain.StatusDown:
		title = "🔴 Service DOWN"
	case domain.StatusDegraded:
		title = "🟠 Service DEGRADED"
	default:
		title = "🟢 Service UP"
	}

	httpTxt := "n/a"
	reason := "-"
	if a.Detail != nil {
		if a.Detail.HTTPCode != 0 {
			httpTxt = fmt.Sprintf("%d", a.Detail.HTTPCode)
		}
		if a.Detail.Error != "" {
			reason = a.Detail.Error
		}
		if a.Detail.DNS != "" {
			reason += " (dns: " + a.Detail.DNS + ")"
		}
	}
	latencyTxt := "n/a"
	if a.LatencyMS != nil {
		latencyTxt = fmt.Sprintf("%d ms", *a.LatencyMS)
	}

	text = fmt.Sprintf(
		"Service: %s (%s:%d)\nHTTP: %s\nLatency: %s\nReason: %s\nChecked: %s",
		a.Service, a.Host, a.Port, httpTxt, latencyTxt, reason, a.Time.Format(time.RFC3339),
	)
	return title, text
}
