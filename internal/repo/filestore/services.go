package filestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/hamed0406/socdash/internal/domain"
)

// ServiceFile reads the service list from a JSON or YAML file on every call,
// so edits are picked up on the next cycle without a restart.
type ServiceFile struct {
	Path   string
	Logger *zap.Logger
}

func NewServiceFile(path string, logger *zap.Logger) *ServiceFile {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ServiceFile{Path: path, Logger: logger}
}

// ListServices never fails: a missing or corrupt file is an empty list, and
// invalid entries are skipped.
func (f *ServiceFile) ListServices(ctx context.Context) ([]domain.Service, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			f.Logger.Warn("services_read_error", zap.String("path", f.Path), zap.Error(err))
		}
		return []domain.Service{}, nil
	}

	var raw []domain.Service
	switch strings.ToLower(filepath.Ext(f.Path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		f.Logger.Warn("services_parse_error", zap.String("path", f.Path), zap.Error(err))
		return []domain.Service{}, nil
	}

	out := make([]domain.Service, 0, len(raw))
	for i, s := range raw {
		if err := s.Validate(); err != nil {
			f.Logger.Warn("service_invalid",
				zap.Int("index", i),
				zap.String("name", s.Name),
				zap.Error(err),
			)
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
