package memory

import (
	"context"
	"sync"

	"github.com/hamed0406/socdash/internal/domain"
	"github.com/hamed0406/socdash/internal/repo"
)

// Store keeps services, state and alerts in process memory.
type Store struct {
	mu       sync.RWMutex
	services []domain.Service
	state    domain.State
	log      []domain.Alert
	recent   []domain.Alert

	// FailSave makes SaveState and AppendAlerts fail, for tests.
	FailSave error
}

func New(services ...domain.Service) *Store {
	return &Store{
		services: services,
		state:    domain.State{},
		log:      make([]domain.Alert, 0, 128),
	}
}

// SetServices replaces the service list.
func (m *Store) SetServices(services []domain.Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services = append([]domain.Service(nil), services...)
}

func (m *Store) ListServices(ctx context.Context) ([]domain.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Service, len(m.services))
	copy(out, m.services)
	return out, nil
}

func (m *Store) LoadState(ctx context.Context) (domain.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(domain.State, len(m.state))
	for k, v := range m.state {
		out[k] = v
	}
	return out, nil
}

func (m *Store) SaveState(ctx context.Context, st domain.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSave != nil {
		return m.FailSave
	}
	next := make(domain.State, len(st))
	for k, v := range st {
		next[k] = v
	}
	m.state = next
	return nil
}

func (m *Store) AppendAlerts(ctx context.Context, alerts []domain.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSave != nil {
		return m.FailSave
	}
	m.log = append(m.log, alerts...)
	m.recent = domain.TrimRecent(append(m.recent, alerts...))
	return nil
}

func (m *Store) RecentAlerts(ctx context.Context, limit int) ([]domain.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return repo.Tail(m.recent, limit), nil
}

// Log returns the full alert history.
func (m *Store) Log() []domain.Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return repo.Tail(m.log, 0)
}
