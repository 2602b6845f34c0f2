package service

import (
	"context"
	"time"

	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/ringlink/internal/config"
	"github.com/mbeoliero/ringlink/internal/repository"
	"github.com/mbeoliero/ringlink/pkg/metrics"
)

// PollStats summarises one poll round
type PollStats struct {
	All       int `json:"all"`
	Terminal  int `json:"terminal"`
	Finalized int `json:"finalized"`
	Pending   int `json:"pending"`
	Failed    int `json:"failed"`
	Overdue   int `json:"overdue"`
}

// Poller periodically fetches detail records of recent unfinished calls,
// covering pushes the provider never delivered
type Poller struct {
	store      repository.Store
	reconciler *StatusReconciler
	rules      config.CallConfig
	now        func() time.Time
}

// NewPoller creates a new Poller
func NewPoller(store repository.Store, reconciler *StatusReconciler, rules config.CallConfig) *Poller {
	return &Poller{
		store:      store,
		reconciler: reconciler,
		rules:      rules,
		now:        time.Now,
	}
}

// Run polls every PollInterval until ctx is done
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.rules.PollInterval)
	defer ticker.Stop()
	log.Info("call poller started: interval=%v, lookback=%v", p.rules.PollInterval, p.rules.PollLookback)

	for {
		select {
		case <-ctx.Done():
			log.Info("call poller stopped")
			return
		case <-ticker.C:
			if _, err := p.RunOnce(ctx); err != nil {
				log.CtxError(ctx, "poll round failed: %v", err)
			}
		}
	}
}

// RunOnce polls sessions created within PollLookback, skipping the newest
// PollGrace which the provider cannot know yet
func (p *Poller) RunOnce(ctx context.Context) (*PollStats, error) {
	now := p.now()
	from := now.Add(-p.rules.PollLookback).UnixMilli()
	to := now.Add(-p.rules.PollGrace).UnixMilli()
	calls, err := p.store.ListCallsCreatedBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	stats := &PollStats{All: len(calls)}
	for _, call := range calls {
		if call.IsEnd() {
			stats.Terminal++
			metrics.RecordPoll("terminal")
			continue
		}
		out, err := p.reconciler.ApplyPoll(ctx, call)
		switch {
		case err != nil:
			stats.Failed++
			metrics.RecordPoll("failed")
		case out.Status.IsEnd():
			stats.Finalized++
			metrics.RecordPoll("finalized")
		default:
			stats.Pending++
			metrics.RecordPoll("pending")
			if now.Sub(time.UnixMilli(call.CreatedAt)) > p.rules.PollWindow {
				stats.Overdue++
				log.CtxWarn(ctx, "call still pending: call_id=%s, status=%d, created_at=%d",
					call.CallId, call.Status, call.CreatedAt)
			}
		}
	}

	log.CtxInfo(ctx, "poll round done: all=%d, terminal=%d, finalized=%d, pending=%d, failed=%d",
		stats.All, stats.Terminal, stats.Finalized, stats.Pending, stats.Failed)
	return stats, nil
}
