package filestore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/hamed0406/socdash/internal/domain"
	"github.com/hamed0406/socdash/internal/repo"
)

const (
	StateFile  = "state.json"
	LogFile    = "alerts.jsonl"
	RecentFile = "recent_alerts.json"
)

// Store persists the state map, the append-only alert log and the recent
// alerts view as files in one directory. Writers are serialized by the
// engine; readers go straight to disk and see the last renamed file.
type Store struct {
	dir    string
	logger *zap.Logger

	mu          sync.Mutex // guards recentDirty and log appends
	recentDirty bool

	// write replaces a JSON file atomically.
	write func(path string, v any) error
}

var _ repo.Store = (*Store)(nil)

// Open prepares dir and rebuilds the recent view from the log so it is a
// suffix of it even after an interrupted write.
func Open(dir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}
	s := &Store{dir: dir, logger: logger, write: writeJSONAtomic}
	if err := s.rebuildRecent(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) path(name string) string { return filepath.Join(s.dir, name) }

func (s *Store) LoadState(ctx context.Context) (domain.State, error) {
	st := domain.State{}
	if _, err := readJSON(s.path(StateFile), &st); err != nil {
		s.logger.Warn("state_load_error", zap.Error(err))
		return domain.State{}, nil
	}
	if st == nil {
		st = domain.State{}
	}
	return st, nil
}

func (s *Store) SaveState(ctx context.Context, st domain.State) error {
	return s.write(s.path(StateFile), st)
}

// AppendAlerts writes all alerts to the log in one write, then replaces the
// recent view. When the previous recent write failed or the recent file
// cannot be read, the view is rebuilt from the log instead.
func (s *Store) AppendAlerts(ctx context.Context, alerts []domain.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, a := range alerts {
		if err := enc.Encode(a); err != nil {
			return fmt.Errorf("encode alert: %w", err)
		}
	}

	f, err := os.OpenFile(s.path(LogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open alert log: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return fmt.Errorf("append alert log: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync alert log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close alert log: %w", err)
	}

	if s.recentDirty {
		return s.rebuildRecent()
	}

	recent, err := s.readRecent()
	if err != nil {
		s.logger.Warn("recent_load_error", zap.Error(err))
		return s.rebuildRecent()
	}
	recent = domain.TrimRecent(append(recent, alerts...))
	if err := s.write(s.path(RecentFile), recent); err != nil {
		s.recentDirty = true
		return err
	}
	return nil
}

func (s *Store) RecentAlerts(ctx context.Context, limit int) ([]domain.Alert, error) {
	recent, err := s.readRecent()
	if err != nil {
		s.logger.Warn("recent_load_error", zap.Error(err))
		return []domain.Alert{}, nil
	}
	return repo.Tail(recent, limit), nil
}

func (s *Store) readRecent() ([]domain.Alert, error) {
	var recent []domain.Alert
	if _, err := readJSON(s.path(RecentFile), &recent); err != nil {
		return nil, err
	}
	return recent, nil
}

// rebuildRecent scans the log once and keeps its last RecentLimit records.
func (s *Store) rebuildRecent() error {
	f, err := os.Open(s.path(LogFile))
	if err != nil {
		if os.IsNotExist(err) {
			s.recentDirty = false
			return nil
		}
		return fmt.Errorf("open alert log: %w", err)
	}
	defer f.Close()

	ring := make([]domain.Alert, 0, domain.RecentLimit)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64<<10), 4<<20)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var a domain.Alert
		if err := json.Unmarshal(line, &a); err != nil {
			s.logger.Warn("alert_log_bad_line", zap.Error(err))
			continue
		}
		if len(ring) == domain.RecentLimit {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, a)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scan alert log: %w", err)
	}

	if err := s.write(s.path(RecentFile), ring); err != nil {
		s.recentDirty = true
		return err
	}
	s.recentDirty = false
	return nil
}
