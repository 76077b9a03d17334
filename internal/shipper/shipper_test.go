package shipper

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMatcher(t *testing.T) {
	m := NewMatcher(nil)
	if kw, ok := m.Match("sshd[12]: FAILED PASSWORD for root from 1.2.3.4"); !ok || kw != "Failed password" {
		t.Fatalf("match = %q, %v", kw, ok)
	}
	if _, ok := m.Match("systemd: Started session 4"); ok {
		t.Fatal("benign line should not match")
	}

	m = NewMatcher([]string{" sudo ", ""})
	if _, ok := m.Match("Sudo: pam_unix session opened"); !ok {
		t.Fatal("custom keyword should match case-insensitively")
	}
	if _, ok := m.Match("Failed password"); ok {
		t.Fatal("custom list replaces the defaults")
	}
}

func TestChooseSource(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "secure")
	if err := os.WriteFile(present, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	src := ChooseSource([]string{filepath.Join(dir, "auth.log"), present}, 0, nil)
	f, ok := src.(*Follower)
	if !ok || f.Path != present {
		t.Fatalf("source = %#v", src)
	}

	if _, ok := ChooseSource([]string{filepath.Join(dir, "nope")}, 0, nil).(*Journal); !ok {
		t.Fatal("expected journal fallback")
	}
}

type lineSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *lineSink) add(l string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, l)
}

func (s *lineSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func appendTo(t *testing.T, path, s string) {
	t.Helper()
	fh, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer fh.Close()
	if _, err := fh.WriteString(s); err != nil {
		t.Fatal(err)
	}
}

func TestFollower_TailsFromEndAndHandlesRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.log")
	if err := os.WriteFile(path, []byte("old line\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	sink := &lineSink{}
	f := &Follower{Path: path, Poll: 10 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx, sink.add) }()

	time.Sleep(50 * time.Millisecond)
	appendTo(t, path, "first\r\nsec")
	time.Sleep(30 * time.Millisecond)
	appendTo(t, path, "ond\n")
	waitFor(t, func() bool { return len(sink.snapshot()) == 2 })

	// rotate: move away and create a fresh file
	if err := os.Rename(path, path+".1"); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("after rotate\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(sink.snapshot()) == 3 })

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}

	got := sink.snapshot()
	want := []string{"first", "second", "after rotate"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("lines = %q, want %q", got, want)
		}
	}
}

func TestFollower_FromStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secure")
	if err := os.WriteFile(path, []byte("a\nb\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	sink := &lineSink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = (&Follower{Path: path, Poll: 10 * time.Millisecond, FromStart: true}).Run(ctx, sink.add) }()
	waitFor(t, func() bool { return len(sink.snapshot()) == 2 })
}

func TestJournal_ReadsCommandOutput(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	sink := &lineSink{}
	j := &Journal{Command: []string{"/bin/sh", "-c", "printf 'one\\ntwo\\n'"}}
	if err := j.Run(context.Background(), sink.add); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := sink.snapshot(); len(got) != 2 || got[1] != "two" {
		t.Fatalf("lines = %q", got)
	}
}

func TestClient_PostsFormSummary(t *testing.T) {
	var gotKey, gotSummary string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		_ = r.ParseForm()
		gotSummary = r.PostFormValue("summary")
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "adm_key")
	c.Host = "web-1"
	at := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	if err := c.Send(context.Background(), "Failed password for root", at); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotKey != "adm_key" {
		t.Fatalf("api key = %q", gotKey)
	}
	var p ingestSummary
	if err := json.Unmarshal([]byte(gotSummary), &p); err != nil {
		t.Fatalf("summary is not JSON: %q", gotSummary)
	}
	if p.Summary != "Failed password for root" || p.TS != "2024-03-04 05:06:07" || p.Host != "web-1" {
		t.Fatalf("payload = %+v", p)
	}
}

func TestClient_Non2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()
	if err := NewClient(ts.URL, "").Send(context.Background(), "x", time.Now()); err == nil {
		t.Fatal("expected error")
	}
}

// --- shipper glue ---

type staticSource struct{ lines []string }

func (s staticSource) Name() string { return "static" }
func (s staticSource) Run(_ context.Context, emit func(string)) error {
	for _, l := range s.lines {
		emit(l)
	}
	return nil
}

type fakeSender struct {
	sent []string
	fail bool
}

func (f *fakeSender) Send(_ context.Context, line string, _ time.Time) error {
	if f.fail {
		return errors.New("connection refused")
	}
	f.sent = append(f.sent, line)
	return nil
}

func TestShipper_ForwardsOnlyMatches(t *testing.T) {
	src := staticSource{lines: []string{"boot ok", "Invalid user admin from 5.6.7.8", "cron ran"}}
	snd := &fakeSender{}
	if err := New(nil, src, NewMatcher(nil), snd).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(snd.sent) != 1 || snd.sent[0] != "Invalid user admin from 5.6.7.8" {
		t.Fatalf("sent = %q", snd.sent)
	}
}

func TestShipper_SendFailureLoggedAndSkipped(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	src := staticSource{lines: []string{"error: disk", "unauthorized access"}}
	if err := New(zap.New(core), src, NewMatcher(nil), &fakeSender{fail: true}).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := logs.FilterMessage("shipper_send_failed").Len(); n != 2 {
		t.Fatalf("send failures logged = %d, want 2", n)
	}
}
