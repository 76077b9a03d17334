package repo

import (
	"context"

	"github.com/hamed0406/socdash/internal/domain"
)

// Ports (interfaces). The engine works against these; any backend can sit behind them.

// ServiceSource yields the configured service descriptors in list order.
// A missing or unreadable list is reported as an empty slice, not an error.
type ServiceSource interface {
	ListServices(ctx context.Context) ([]domain.Service, error)
}

// StateStore holds the per-key state map. SaveState fully replaces it.
type StateStore interface {
	LoadState(ctx context.Context) (domain.State, error)
	SaveState(ctx context.Context, st domain.State) error
}

// AlertLog is the append-only alert history plus its bounded recent view.
// RecentAlerts returns at most limit alerts, oldest first.
type AlertLog interface {
	AppendAlerts(ctx context.Context, alerts []domain.Alert) error
	RecentAlerts(ctx context.Context, limit int) ([]domain.Alert, error)
}

// Store is a backend that persists both state and alerts.
type Store interface {
	StateStore
	AlertLog
}

// Tail returns the last n items of list, or all of it when n <= 0.
func Tail(list []domain.Alert, n int) []domain.Alert {
	if n <= 0 || n >= len(list) {
		out := make([]domain.Alert, len(list))
		copy(out, list)
		return out
	}
	out := make([]domain.Alert, n)
	copy(out, list[len(list)-n:])
	return out
}
