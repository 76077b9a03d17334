package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hamed0406/socdash/internal/domain"
	"github.com/hamed0406/socdash/internal/engine"
	apimw "github.com/hamed0406/socdash/internal/httpapi/middleware"
	"github.com/hamed0406/socdash/internal/probe"
	"github.com/hamed0406/socdash/internal/repo/memory"
)

// ---- test helpers ----

var (
	sshSvc = domain.Service{Name: "SSH", Host: "10.0.0.1", Port: 22}
	webSvc = domain.Service{Name: "Web", Host: "10.0.0.1", Port: 80, Kind: domain.KindHTTP}
)

// fakeChecker reports SSH down and everything else up in 12ms.
type fakeChecker struct{}

func (fakeChecker) Check(_ context.Context, svc domain.Service) probe.Result {
	if svc.Key() == sshSvc.Key() {
		return probe.Result{OK: false, Detail: &domain.Detail{Error: "connection refused"}}
	}
	ms := int64(12)
	return probe.Result{OK: true, LatencyMS: &ms, Detail: &domain.Detail{HTTPCode: 200}}
}

type testEnv struct {
	ts    *httptest.Server
	store *memory.Store
	hub   *Hub
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	store := memory.New(sshSvc, webSvc)
	hub := NewHub()
	eng := engine.New(zap.NewNop(), store, store, fakeChecker{}, hub, 2)
	srv := NewServer(zap.NewNop(), eng, hub)

	keys := apimw.Keys{
		Public: []string{"pub_test"},
		Admin:  []string{"adm_test"},
	}
	// very high rate limits to avoid flakiness in tests
	ts := httptest.NewServer(srv.Router(keys, nil, 10_000, 10_000, 10_000, 10_000))
	t.Cleanup(ts.Close)
	return &testEnv{ts: ts, store: store, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path, key, contentType, body string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(method, e.ts.URL+path, strings.NewReader(body))
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

// ---- tests ----

func TestHealthzAndMetricsArePublic(t *testing.T) {
	env := setup(t)
	if resp := env.do(t, http.MethodGet, "/healthz", "", "", ""); resp.StatusCode != 200 {
		t.Fatalf("healthz = %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodGet, "/metrics", "", "", ""); resp.StatusCode != 200 {
		t.Fatalf("metrics = %d", resp.StatusCode)
	}
}

func TestCheck_RunsCycleAndReportsCounts(t *testing.T) {
	env := setup(t)

	resp := env.do(t, http.MethodPost, "/api/check", "adm_test", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	res := decode[engine.CycleResult](t, resp)
	if res.Emitted != 2 || res.Checked != 2 {
		t.Fatalf("first check = %+v", res)
	}

	res = decode[engine.CycleResult](t, env.do(t, http.MethodPost, "/api/check", "adm_test", "", ""))
	if res.Emitted != 0 || res.Checked != 2 {
		t.Fatalf("second check = %+v", res)
	}
}

func TestCheck_RequiresAdmin(t *testing.T) {
	env := setup(t)
	if resp := env.do(t, http.MethodPost, "/api/check", "pub_test", "", ""); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("public key: want 403, got %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodGet, "/api/state", "", "", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no key: want 401, got %d", resp.StatusCode)
	}
}

func TestCheck_PersistenceFailureIs500(t *testing.T) {
	env := setup(t)
	env.store.FailSave = errors.New("disk full")

	resp := env.do(t, http.MethodPost, "/api/check", "adm_test", "", "")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", resp.StatusCode)
	}
	body := decode[map[string]string](t, resp)
	if !strings.Contains(body["error"], "disk full") {
		t.Fatalf("error body = %+v", body)
	}
}

func TestServicesAndState(t *testing.T) {
	env := setup(t)

	list := decode[[]serviceView](t, env.do(t, http.MethodGet, "/api/services", "pub_test", "", ""))
	if len(list) != 2 || list[0].Name != "SSH" || list[0].State != nil {
		t.Fatalf("services before any cycle: %+v", list)
	}

	env.do(t, http.MethodPost, "/api/check", "adm_test", "", "")

	list = decode[[]serviceView](t, env.do(t, http.MethodGet, "/api/services", "pub_test", "", ""))
	if list[0].State == nil || list[0].State.Status != domain.StatusDown {
		t.Fatalf("ssh state = %+v", list[0].State)
	}
	if list[1].Key != "10.0.0.1:80" || list[1].State.Status != domain.StatusUp {
		t.Fatalf("web view = %+v", list[1])
	}

	state := decode[domain.State](t, env.do(t, http.MethodGet, "/api/state", "pub_test", "", ""))
	if len(state) != 2 || state["10.0.0.1:22"].LatencyMS != nil {
		t.Fatalf("state = %+v", state)
	}
}

func TestAlerts_OrderAndLimit(t *testing.T) {
	env := setup(t)
	env.do(t, http.MethodPost, "/api/check", "adm_test", "", "")

	alerts := decode[[]domain.Alert](t, env.do(t, http.MethodGet, "/api/alerts", "pub_test", "", ""))
	if len(alerts) != 2 || alerts[0].Service != "Web" || alerts[1].Service != "SSH" {
		t.Fatalf("default order should be newest first: %+v", alerts)
	}

	alerts = decode[[]domain.Alert](t, env.do(t, http.MethodGet, "/api/alerts?order=asc&limit=1", "pub_test", "", ""))
	if len(alerts) != 1 || alerts[0].Service != "Web" {
		t.Fatalf("asc limit 1 should be the newest single alert: %+v", alerts)
	}
}

func TestIngest_FormAndJSON(t *testing.T) {
	env := setup(t)

	form := url.Values{"summary": {`{"summary":"Failed password for root","ts":"2024-01-01 00:00:00"}`}}
	resp := env.do(t, http.MethodPost, "/ingest", "adm_test", "application/x-www-form-urlencoded", form.Encode())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("form ingest = %d", resp.StatusCode)
	}

	form = url.Values{"summary": {"plain text line"}}
	env.do(t, http.MethodPost, "/ingest", "adm_test", "application/x-www-form-urlencoded", form.Encode())

	resp = env.do(t, http.MethodPost, "/ingest", "adm_test", "application/json", `{"summary":"sudo: invalid user","host":"web-1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("json ingest = %d", resp.StatusCode)
	}

	if resp := env.do(t, http.MethodPost, "/ingest", "adm_test", "application/json", `{"summary":"  "}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty summary = %d", resp.StatusCode)
	}

	log := env.store.Log()
	if len(log) != 3 {
		t.Fatalf("log has %d alerts, want 3", len(log))
	}
	if log[0].Summary != "Failed password for root" || log[1].Summary != "plain text line" || log[2].Host != "web-1" {
		t.Fatalf("unexpected summaries: %+v", log)
	}
	for _, a := range log {
		if a.Source != domain.SourceShipper || a.ID == "" {
			t.Fatalf("alert not stamped: %+v", a)
		}
	}
}

func TestStream_ReceivesNewAlerts(t *testing.T) {
	env := setup(t)

	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/api/alerts/stream?api_key=pub_test"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for env.hub.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	env.do(t, http.MethodPost, "/ingest", "adm_test", "application/json", `{"summary":"brute force from 1.2.3.4"}`)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got domain.Alert
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Summary != "brute force from 1.2.3.4" || got.Source != domain.SourceShipper {
		t.Fatalf("streamed alert = %+v", got)
	}
}
