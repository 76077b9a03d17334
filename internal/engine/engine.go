// Package engine runs checker cycles: probe every configured service,
// classify the outcomes, record status transitions as alerts and persist the
// refreshed state map.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/socdash/internal/domain"
	"github.com/hamed0406/socdash/internal/metrics"
	"github.com/hamed0406/socdash/internal/notify"
	"github.com/hamed0406/socdash/internal/probe"
	"github.com/hamed0406/socdash/internal/repo"
	"github.com/hamed0406/socdash/internal/telemetry"
)

type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// CycleResult is what one cycle reports back to its caller.
type CycleResult struct {
	Emitted int `json:"emitted"`
	Checked int `json:"checked"`
}

// Engine owns the cycle lock. Every cycle and every ingest write runs under
// it; reads go straight to the store.
type Engine struct {
	Logger      *zap.Logger
	Services    repo.ServiceSource
	Store       repo.Store
	Checker     probe.Checker
	Notifier    notify.Notifier
	Threshold   int64
	Concurrency int

	Now   func() time.Time
	NewID func() string

	mu sync.Mutex
}

func New(
	logger *zap.Logger,
	services repo.ServiceSource,
	store repo.Store,
	checker probe.Checker,
	notifier notify.Notifier,
	concurrency int,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{
		Logger:      logger,
		Services:    services,
		Store:       store,
		Checker:     checker,
		Notifier:    notifier,
		Threshold:   DefaultDegradedThresholdMS,
		Concurrency: concurrency,
		Now:         func() time.Time { return time.Now().UTC() },
		NewID:       uuid.NewString,
	}
}

type outcome struct {
	res    probe.Result
	status domain.Status
	at     time.Time
}

// RunCycle performs one full checker pass. Probe failures never fail the
// cycle; a persistence failure does, and nothing is notified in that case.
func (e *Engine) RunCycle(ctx context.Context, trigger Trigger) (CycleResult, error) {
	e.mu.Lock()
	start := time.Now()

	alerts, checked, err := e.cycle(ctx, trigger)

	e.mu.Unlock()

	metrics.RecordCycle(string(trigger), time.Since(start), err)
	if err != nil {
		e.Logger.Error("cycle_failed",
			zap.String("trigger", string(trigger)),
			zap.Int("checked", checked),
			zap.Error(err),
		)
		return CycleResult{Checked: checked}, err
	}

	e.Logger.Info("cycle_done",
		zap.String("trigger", string(trigger)),
		zap.Int("checked", checked),
		zap.Int("emitted", len(alerts)),
		zap.Duration("took", time.Since(start)),
	)
	e.notify(ctx, alerts)
	return CycleResult{Emitted: len(alerts), Checked: checked}, nil
}

func (e *Engine) cycle(ctx context.Context, trigger Trigger) (alerts []domain.Alert, checked int, err error) {
	services, err := e.Services.ListServices(ctx)
	if err != nil {
		e.Logger.Warn("services_load_error", zap.Error(err))
		services = nil
	}

	ctx, span := telemetry.StartCycleSpan(ctx, string(trigger), len(services))
	defer func() { telemetry.EndCycleSpan(span, len(alerts), err) }()

	prev, err := e.Store.LoadState(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("load state: %w", err)
	}

	outcomes := e.probeAll(ctx, services)

	next := make(domain.State, len(prev)+len(services))
	for k, v := range prev {
		next[k] = v
	}
	for i, svc := range services {
		o := outcomes[i]
		key := svc.Key()
		prior, seen := next[key]
		if !seen || prior.Status != o.status {
			alerts = append(alerts, e.newAlert(svc, o))
		}
		next[key] = domain.StateEntry{
			Status:    o.status,
			LastCheck: o.at,
			LatencyMS: o.res.LatencyMS,
		}
	}

	if len(alerts) > 0 {
		if err := e.Store.AppendAlerts(ctx, alerts); err != nil {
			return nil, len(services), fmt.Errorf("append alerts: %w", err)
		}
	}
	if err := e.Store.SaveState(ctx, next); err != nil {
		return nil, len(services), fmt.Errorf("save state: %w", err)
	}

	for _, a := range alerts {
		metrics.RecordAlert(a.Source, string(a.Status))
	}
	for _, svc := range services {
		metrics.SetServiceStatus(svc.Key(), string(next[svc.Key()].Status))
	}
	return alerts, len(services), nil
}

// probeAll probes services concurrently, bounded by Concurrency, and returns
// outcomes in descriptor order.
func (e *Engine) probeAll(ctx context.Context, services []domain.Service) []outcome {
	out := make([]outcome, len(services))
	sem := make(chan struct{}, e.Concurrency)
	var wg sync.WaitGroup

	for i := range services {
		sem <- struct{}{}
		wg.Add(1)
		go func(i int) {
			defer func() { <-sem }()
			defer wg.Done()
			out[i] = e.probeOne(ctx, services[i])
		}(i)
	}
	wg.Wait()
	return out
}

func (e *Engine) probeOne(ctx context.Context, svc domain.Service) (o outcome) {
	ctx, span := telemetry.StartProbeSpan(ctx, svc.DisplayName(), svc.Key(), string(svc.EffectiveKind()))
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.res = probe.Result{OK: false, Detail: &domain.Detail{Error: fmt.Sprintf("probe panic: %v", r)}}
			o.status = domain.StatusDown
			o.at = e.Now()
		}
		metrics.RecordProbe(string(svc.EffectiveKind()), string(o.status), time.Since(start))
		telemetry.EndProbeSpan(span, string(o.status))
	}()

	res := e.Checker.Check(ctx, svc)
	o = outcome{res: res, status: Classify(res.OK, res.LatencyMS, e.Threshold), at: e.Now()}
	if !res.OK {
		fields := []zap.Field{zap.String("service", svc.DisplayName()), zap.String("key", svc.Key())}
		if res.Detail != nil {
			fields = append(fields, zap.String("error", res.Detail.Error), zap.Int("http_code", res.Detail.HTTPCode))
		}
		e.Logger.Debug("probe_failed", fields...)
	}
	return o
}

func (e *Engine) newAlert(svc domain.Service, o outcome) domain.Alert {
	return domain.Alert{
		ID:        e.NewID(),
		Time:      o.at,
		Source:    domain.SourceChecker,
		Service:   svc.DisplayName(),
		Host:      svc.Host,
		Port:      svc.Port,
		Status:    o.status,
		LatencyMS: o.res.LatencyMS,
		Detail:    o.res.Detail,
		Summary:   fmt.Sprintf("%s (%s) is %s", svc.DisplayName(), svc.Key(), o.status),
	}
}

func (e *Engine) notify(ctx context.Context, alerts []domain.Alert) {
	if e.Notifier == nil {
		return
	}
	for _, a := range alerts {
		if err := e.Notifier.Send(ctx, a); err != nil {
			metrics.RecordNotifyFailure()
			e.Logger.Warn("notify_failed", zap.String("alert_id", a.ID), zap.Error(err))
		}
	}
}

// Ingest writes an externally produced alert (from the log shipper) into the
// same alert log, serialized with cycles.
func (e *Engine) Ingest(ctx context.Context, a domain.Alert) (domain.Alert, error) {
	if a.ID == "" {
		a.ID = e.NewID()
	}
	if a.Time.IsZero() {
		a.Time = e.Now()
	}
	if a.Source == "" {
		a.Source = domain.SourceShipper
	}

	e.mu.Lock()
	err := e.Store.AppendAlerts(ctx, []domain.Alert{a})
	e.mu.Unlock()
	if err != nil {
		return domain.Alert{}, fmt.Errorf("ingest: %w", err)
	}

	metrics.RecordAlert(a.Source, string(a.Status))
	e.Logger.Info("alert_ingested", zap.String("alert_id", a.ID), zap.String("source", a.Source))
	e.notify(ctx, []domain.Alert{a})
	return a, nil
}

// ListServices passes the configured descriptors through.
func (e *Engine) ListServices(ctx context.Context) ([]domain.Service, error) {
	return e.Services.ListServices(ctx)
}

// State returns the last persisted state map.
func (e *Engine) State(ctx context.Context) (domain.State, error) {
	return e.Store.LoadState(ctx)
}

// RecentAlerts returns up to limit alerts, oldest first.
func (e *Engine) RecentAlerts(ctx context.Context, limit int) ([]domain.Alert, error) {
	if limit <= 0 || limit > domain.RecentLimit {
		limit = domain.RecentLimit
	}
	return e.Store.RecentAlerts(ctx, limit)
}
