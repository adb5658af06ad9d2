// Package sched runs the timer-based daily ingestion cycle. It shares the
// Orchestrator with the HTTP trigger handlers, so both paths contend on the
// same per-provider locks instead of racing through separate state.
package sched

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/alert"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/ingest"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/model"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/quality"
)

// Config tunes the scheduler.
type Config struct {
	// Enabled turns the background cycle on.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// RunAt is the daily trigger time in UTC, "HH:MM".
	RunAt string `yaml:"run_at" mapstructure:"run_at"`
	// AlertLookbackDays is the window fed to the alert collector.
	AlertLookbackDays int `yaml:"alert_lookback_days" mapstructure:"alert_lookback_days"`
}

// Scheduler triggers the daily cycle: ingest all providers, run DQ rules
// for today, evaluate alert thresholds, dispatch events.
type Scheduler struct {
	cfg        Config
	orch       *ingest.Orchestrator
	dq         *quality.Engine
	collector  *alert.Collector
	thresholds *alert.ThresholdCache
	sender     alert.Sender
	now        func() time.Time
}

// New creates a Scheduler. All collaborators are injected; the scheduler
// owns no state of its own beyond the timer.
func New(cfg Config, orch *ingest.Orchestrator, dq *quality.Engine, col *alert.Collector, th *alert.ThresholdCache, sender alert.Sender) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		orch:       orch,
		dq:         dq,
		collector:  col,
		thresholds: th,
		sender:     sender,
		now:        time.Now,
	}
}

// Run blocks until ctx is cancelled, firing the daily cycle at the
// configured time.
func (s *Scheduler) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		zap.L().Info("sched: background scheduler disabled")
		<-ctx.Done()
		return
	}

	for {
		wait := s.untilNextRun()
		zap.L().Info("sched: next daily cycle scheduled",
			zap.Duration("in", wait),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		s.RunCycle(ctx)
	}
}

// RunCycle executes one full daily cycle immediately.
func (s *Scheduler) RunCycle(ctx context.Context) {
	log := zap.L()
	log.Info("sched: daily cycle starting")

	summaries := s.orch.Daily(ctx)
	for _, sum := range summaries {
		log.Info("sched: provider run finished",
			zap.String("provider", sum.Provider),
			zap.String("status", string(sum.Status)),
			zap.Int("rows_inserted", sum.RowsInserted),
		)
	}

	today := model.Day(s.now().UTC())
	if _, err := s.dq.RunRules(ctx, today, today); err != nil {
		log.Error("sched: dq run failed", zap.Error(err))
	}

	lookback := s.cfg.AlertLookbackDays
	if lookback <= 0 {
		lookback = 1
	}
	metrics, err := s.collector.Collect(ctx, lookback)
	if err != nil {
		log.Error("sched: metrics collection failed", zap.Error(err))
		return
	}

	events := alert.Evaluate(s.thresholds.Snapshot(), metrics)
	sent := alert.Dispatch(ctx, s.sender, events)
	log.Info("sched: daily cycle finished",
		zap.Int("alerts_raised", len(events)),
		zap.Int("alerts_sent", sent),
	)
}

// untilNextRun computes the wait until the next configured trigger. A bad
// RunAt value falls back to a 24h interval.
func (s *Scheduler) untilNextRun() time.Duration {
	at, err := time.Parse("15:04", s.cfg.RunAt)
	if err != nil {
		return 24 * time.Hour
	}

	now := s.now().UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
