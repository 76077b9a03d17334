package httpapi

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hamed0406/socdash/internal/domain"
)

const (
	streamWriteTimeout = 5 * time.Second
	streamPingInterval = 30 * time.Second
	streamBuffer       = 32
)

// Hub fans newly written alerts out to websocket subscribers. It implements
// notify.Notifier so the engine can feed it like any other channel. A slow
// subscriber loses alerts rather than blocking a cycle.
type Hub struct {
	mu   sync.Mutex
	subs map[chan domain.Alert]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan domain.Alert]struct{})}
}

func (h *Hub) Send(_ context.Context, a domain.Alert) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- a:
		default:
		}
	}
	return nil
}

func (h *Hub) subscribe() chan domain.Alert {
	ch := make(chan domain.Alert, streamBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan domain.Alert) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

// Subscribers reports the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// newUpgrader accepts same-host origins, plus any listed origin. An empty
// list or "*" accepts everything, matching the CORS policy.
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowAll := len(allowedOrigins) == 0
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
	}
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowAll {
				return true
			}
			for _, o := range allowedOrigins {
				if strings.EqualFold(o, origin) {
					return true
				}
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			return strings.EqualFold(strings.TrimSpace(r.Host), u.Host)
		},
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Debug("stream_upgrade_failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ch := s.Hub.subscribe()
	defer s.Hub.unsubscribe(ch)
	s.Logger.Info("stream_connected", zap.String("remote", r.RemoteAddr))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case a := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(a); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				return
			}
		case <-done:
			s.Logger.Info("stream_closed", zap.String("remote", r.RemoteAddr))
			return
		}
	}
}
