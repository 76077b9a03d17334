// cmd/preflight/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/hamed0406/socdash/internal/config"
	"github.com/hamed0406/socdash/internal/repo/filestore"
)

func main() {
	failed := false
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		failed = true
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg := config.FromEnv()

	if len(cfg.AdminAPIKeys) == 0 {
		warn("ADMIN_API_KEYS is empty (POST /api/check and /ingest are open).")
	}
	if len(cfg.PublicAPIKeys) == 0 {
		warn("PUBLIC_API_KEYS is empty (read routes are open unless admin keys are set).")
	}
	for name, v := range map[string]string{"ADMIN_API_KEYS": os.Getenv("ADMIN_API_KEYS"), "PUBLIC_API_KEYS": os.Getenv("PUBLIC_API_KEYS")} {
		if strings.Contains(v, " ") {
			warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}

	ok("API_ADDR=" + cfg.Addr)
	ok(fmt.Sprintf("CHECK_INTERVAL=%s PROBE_TIMEOUT=%s MAX_CONCURRENT_CHECKS=%d", cfg.CheckInterval, cfg.ProbeTimeout, cfg.MaxConcurrent))
	if cfg.CheckInterval == 0 {
		warn("CHECK_INTERVAL_MS=0 disables the background checker; only POST /api/check will run cycles.")
	}

	switch {
	case cfg.DatabaseURL != "":
		ok("DATABASE_URL present (postgres store)")
	case cfg.Store == "memory":
		warn("STORE=memory: state and alerts are lost on restart.")
	case cfg.Store != "file":
		fail("STORE must be file or memory, got " + cfg.Store)
	default:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			fail("DATA_DIR not writable: " + err.Error())
		} else {
			ok("DATA_DIR=" + cfg.DataDir)
		}
	}

	raw, err := os.ReadFile(cfg.ServicesFile)
	if err != nil {
		fail("SERVICES_FILE unreadable: " + err.Error())
	} else {
		services, _ := filestore.NewServiceFile(cfg.ServicesFile, zap.NewNop()).ListServices(context.Background())
		if len(services) == 0 && len(strings.TrimSpace(string(raw))) > 0 {
			fail("SERVICES_FILE has no valid services (check syntax, host and port)")
		} else {
			ok(fmt.Sprintf("SERVICES_FILE=%s (%d services)", cfg.ServicesFile, len(services)))
		}
	}

	if len(cfg.AllowedOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty; CORS allows every origin.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}

	if failed {
		os.Exit(1)
	}
	ok("preflight passed")
}
