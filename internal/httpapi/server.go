package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hamed0406/socdash/internal/domain"
	"github.com/hamed0406/socdash/internal/engine"
	apimw "github.com/hamed0406/socdash/internal/httpapi/middleware"
)

const (
	defaultAlertLimit = 100
	maxIngestBytes    = 64 << 10
)

// Engine is what the HTTP layer needs from the checker engine.
type Engine interface {
	RunCycle(ctx context.Context, trigger engine.Trigger) (engine.CycleResult, error)
	ListServices(ctx context.Context) ([]domain.Service, error)
	State(ctx context.Context) (domain.State, error)
	RecentAlerts(ctx context.Context, limit int) ([]domain.Alert, error)
	Ingest(ctx context.Context, a domain.Alert) (domain.Alert, error)
}

type Server struct {
	Logger *zap.Logger
	Engine Engine
	Hub    *Hub

	upgrader websocket.Upgrader
}

func NewServer(l *zap.Logger, e Engine, hub *Hub) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	if hub == nil {
		hub = NewHub()
	}
	return &Server{Logger: l, Engine: e, Hub: hub}
}

// Router wires the routes. Reads need a public or admin key, writes an admin
// key; each group has its own per-IP rate limit.
func (s *Server) Router(keys apimw.Keys, allowedOrigins []string, publicRPM, publicBurst, adminRPM, adminBurst int) http.Handler {
	s.upgrader = newUpgrader(allowedOrigins)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(corsHandler(allowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(publicRPM, publicBurst))
		r.Use(apimw.RequireAny(keys))
		r.Get("/api/services", s.handleServices)
		r.Get("/api/state", s.handleState)
		r.Get("/api/alerts", s.handleAlerts)
		r.Get("/api/alerts/stream", s.handleStream)
	})

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(adminRPM, adminBurst))
		r.Use(apimw.RequireAdmin(keys))
		r.Post("/api/check", s.handleCheck)
		r.Post("/ingest", s.handleIngest)
	})

	return r
}

func corsHandler(allowedOrigins []string) func(http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		return cors.AllowAll().Handler
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	})
}

// serviceView is a descriptor joined with its current state entry.
type serviceView struct {
	domain.Service
	Key   string             `json:"key"`
	State *domain.StateEntry `json:"state"`
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.Engine.ListServices(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list services failed")
		return
	}
	state, err := s.Engine.State(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load state failed")
		return
	}
	out := make([]serviceView, 0, len(services))
	for _, svc := range services {
		v := serviceView{Service: svc, Key: svc.Key()}
		if e, ok := state[v.Key]; ok {
			v.State = &e
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	state, err := s.Engine.State(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load state failed")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleAlerts returns recent alerts, newest first unless order=asc.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"), defaultAlertLimit, domain.RecentLimit)
	alerts, err := s.Engine.RecentAlerts(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load alerts failed")
		return
	}
	if !strings.EqualFold(r.URL.Query().Get("order"), "asc") {
		for i, j := 0, len(alerts)-1; i < j; i, j = i+1, j-1 {
			alerts[i], alerts[j] = alerts[j], alerts[i]
		}
	}
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// handleCheck runs one cycle synchronously. The cycle is detached from the
// request so a disconnecting client cannot abort it halfway.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	res, err := s.Engine.RunCycle(context.WithoutCancel(r.Context()), engine.TriggerManual)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type ingestPayload struct {
	Summary string        `json:"summary"`
	Service string        `json:"service,omitempty"`
	Host    string        `json:"host,omitempty"`
	Status  domain.Status `json:"status,omitempty"`
}

// handleIngest accepts a shipper alert either as a form field "summary"
// (holding a JSON object or plain text) or as a JSON body.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxIngestBytes)

	var p ingestPayload
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		body, err := io.ReadAll(r.Body)
		if err != nil || json.Unmarshal(body, &p) != nil {
			writeError(w, http.StatusBadRequest, "bad payload")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "bad form")
			return
		}
		raw := r.PostFormValue("summary")
		if err := json.Unmarshal([]byte(raw), &p); err != nil || p.Summary == "" {
			p = ingestPayload{Summary: raw}
		}
	}

	p.Summary = strings.TrimSpace(p.Summary)
	if p.Summary == "" {
		writeError(w, http.StatusBadRequest, "summary required")
		return
	}

	a, err := s.Engine.Ingest(r.Context(), domain.Alert{
		Source:  domain.SourceShipper,
		Service: p.Service,
		Host:    p.Host,
		Status:  p.Status,
		Summary: p.Summary,
	})
	if err != nil {
		s.Logger.Error("ingest_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "ingest failed")
		return
	}
	s.Logger.Debug("ingest_ok", zap.String("alert_id", a.ID))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseLimit falls back to def on anything unparsable and clamps to ceiling.
func parseLimit(raw string, def, ceiling int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return def
	}
	if n > ceiling {
		return ceiling
	}
	return n
}
