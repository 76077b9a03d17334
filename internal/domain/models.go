package domain

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Kind selects how a service is probed.
type Kind string

const (
	KindTCP  Kind = "tcp"
	KindHTTP Kind = "http"
)

// Service is one configured endpoint to probe.
type Service struct {
	Name string `json:"name" yaml:"name"`
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
	Kind Kind   `json:"kind,omitempty" yaml:"kind"`
	Path string `json:"path,omitempty" yaml:"path"` // http only, defaults to "/"
	TLS  bool   `json:"tls,omitempty" yaml:"tls"`   // http only
}

// Key identifies the service in the state map ("host:port").
func (s Service) Key() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// EffectiveKind returns the kind, defaulting to tcp.
func (s Service) EffectiveKind() Kind {
	if s.Kind == "" {
		return KindTCP
	}
	return Kind(strings.ToLower(string(s.Kind)))
}

// DisplayName falls back to the key when no name was configured.
func (s Service) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Key()
}

var (
	ErrMissingHost = errors.New("service host is required")
	ErrBadPort     = errors.New("service port must be in 1-65535")
	ErrBadKind     = errors.New("service kind must be tcp or http")
)

func (s Service) Validate() error {
	if strings.TrimSpace(s.Host) == "" {
		return ErrMissingHost
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("%w: got %d", ErrBadPort, s.Port)
	}
	switch s.EffectiveKind() {
	case KindTCP, KindHTTP:
	default:
		return fmt.Errorf("%w: got %q", ErrBadKind, s.Kind)
	}
	return nil
}

type Status string

const (
	StatusUp       Status = "UP"
	StatusDegraded Status = "DEGRADED"
	StatusDown     Status = "DOWN"
)

// StateEntry is the last known result for one service key.
type StateEntry struct {
	Status    Status    `json:"status"`
	LastCheck time.Time `json:"last_check"`
	LatencyMS *int64    `json:"latency_ms"`
}

// State maps "host:port" to its entry.
type State map[string]StateEntry

// Detail carries protocol specific information about a probe.
type Detail struct {
	HTTPCode int    `json:"http_code,omitempty"`
	Error    string `json:"error,omitempty"`
	DNS      string `json:"dns,omitempty"`
}

const (
	SourceChecker = "checker"
	SourceShipper = "shipper"
)

// Alert is an immutable record of a status transition or an ingested event.
type Alert struct {
	ID        string    `json:"id"`
	Time      time.Time `json:"time"`
	Source    string    `json:"source"`
	Service   string    `json:"service,omitempty"`
	Host      string    `json:"host,omitempty"`
	Port      int       `json:"port,omitempty"`
	Status    Status    `json:"status,omitempty"`
	LatencyMS *int64    `json:"latency_ms,omitempty"`
	Detail    *Detail   `json:"detail,omitempty"`
	Summary   string    `json:"summary,omitempty"`
}

// RecentLimit bounds the recent alerts view.
const RecentLimit = 500

// TrimRecent keeps the newest RecentLimit alerts, evicting oldest first.
func TrimRecent(list []Alert) []Alert {
	if len(list) <= RecentLimit {
		return list
	}
	out := make([]Alert, RecentLimit)
	copy(out, list[len(list)-RecentLimit:])
	return out
}
