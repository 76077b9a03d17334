package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const usage = `usage: socdash-cli [-api URL] [-key KEY] <command>

commands:
  check              run one checker cycle now (admin key)
  services           list services with their current status
  alerts [-n N]      show the most recent alerts, newest first
`

func main() {
	api := flag.String("api", envOr("API_BASE", "http://localhost:8080"), "dashboard base URL")
	key := flag.String("key", os.Getenv("SOC_API_KEY"), "API key")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	c := &client{base: strings.TrimRight(*api, "/"), key: *key, http: &http.Client{Timeout: 2 * time.Minute}}
	var err error
	switch flag.Arg(0) {
	case "check":
		err = c.check()
	case "services":
		err = c.services()
	case "alerts":
		fs := flag.NewFlagSet("alerts", flag.ExitOnError)
		n := fs.Int("n", 20, "number of alerts")
		_ = fs.Parse(flag.Args()[1:])
		err = c.alerts(*n)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

type client struct {
	base string
	key  string
	http *http.Client
}

func (c *client) do(method, path string, out any) error {
	req, err := http.NewRequest(method, c.base+path, nil)
	if err != nil {
		return err
	}
	if c.key != "" {
		req.Header.Set("X-API-Key", c.key)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contacting API: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API returned %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) check() error {
	var res struct {
		Emitted int `json:"emitted"`
		Checked int `json:"checked"`
	}
	if err := c.do(http.MethodPost, "/api/check", &res); err != nil {
		return err
	}
	fmt.Printf("checked %d services, %d new alerts\n", res.Checked, res.Emitted)
	return nil
}

func (c *client) services() error {
	var list []struct {
		Name  string `json:"name"`
		Key   string `json:"key"`
		Kind  string `json:"kind"`
		State *struct {
			Status    string    `json:"status"`
			LastCheck time.Time `json:"last_check"`
			LatencyMS *int64    `json:"latency_ms"`
		} `json:"state"`
	}
	if err := c.do(http.MethodGet, "/api/services", &list); err != nil {
		return err
	}
	for _, s := range list {
		status, latency, last := "UNKNOWN", "-", "-"
		if s.State != nil {
			status = s.State.Status
			last = s.State.LastCheck.Format(time.RFC3339)
			if s.State.LatencyMS != nil {
				latency = strconv.FormatInt(*s.State.LatencyMS, 10) + "ms"
			}
		}
		fmt.Printf("%-9s %-24s %-22s %-7s %s\n", status, s.Name, s.Key, latency, last)
	}
	return nil
}

func (c *client) alerts(n int) error {
	var list []struct {
		Time    time.Time `json:"time"`
		Source  string    `json:"source"`
		Status  string    `json:"status"`
		Summary string    `json:"summary"`
	}
	if err := c.do(http.MethodGet, "/api/alerts?limit="+strconv.Itoa(n), &list); err != nil {
		return err
	}
	for _, a := range list {
		status := a.Status
		if status == "" {
			status = "-"
		}
		fmt.Printf("%s  %-8s %-9s %s\n", a.Time.Format(time.RFC3339), a.Source, status, a.Summary)
	}
	return nil
}
