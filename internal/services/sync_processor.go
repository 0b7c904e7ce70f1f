package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// PendingSweeper mirrors entries whose event was lost or failed.
type PendingSweeper interface {
	ProcessPendingEntries(ctx context.Context) (synced int, err error)
}

// BudgetRefresher reloads budget records from their external source.
type BudgetRefresher interface {
	RefreshBudgets(ctx context.Context) (updated int, err error)
}

type SyncProcessorConfig struct {
	// PollInterval is how often pending entries are swept (default: 30s)
	PollInterval time.Duration

	// BudgetRefreshInterval is how often budgets are reloaded; zero disables it.
	BudgetRefreshInterval time.Duration
}

func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval:          30 * time.Second,
		BudgetRefreshInterval: 0,
	}
}

// SyncProcessor runs the periodic sweeps next to the event consumer.
type SyncProcessor struct {
	sweeper   PendingSweeper
	refresher BudgetRefresher
	config    SyncProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSyncProcessor builds a processor; refresher may be nil.
func NewSyncProcessor(sweeper PendingSweeper, refresher BudgetRefresher, config SyncProcessorConfig) *SyncProcessor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultSyncProcessorConfig().PollInterval
	}
	return &SyncProcessor{
		sweeper:   sweeper,
		refresher: refresher,
		config:    config,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	go p.runLoop(ctx, stopCh, doneCh)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"budget_refresh_interval", p.config.BudgetRefreshInterval)
	return nil
}

// Stop signals the loop and waits for it, bounded by ctx.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}
}

func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	poll := time.NewTicker(p.config.PollInterval)
	defer poll.Stop()

	var refreshC <-chan time.Time
	if p.refresher != nil && p.config.BudgetRefreshInterval > 0 {
		refresh := time.NewTicker(p.config.BudgetRefreshInterval)
		defer refresh.Stop()
		refreshC = refresh.C
	}

	p.sweep(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-poll.C:
			p.sweep(ctx)
		case <-refreshC:
			p.refresh(ctx)
		}
	}
}

func (p *SyncProcessor) sweep(ctx context.Context) {
	if p.sweeper == nil {
		return
	}
	n, err := p.sweeper.ProcessPendingEntries(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Pending entry sweep failed", "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "Pending entries synced", "count", n)
	}
}

func (p *SyncProcessor) refresh(ctx context.Context) {
	n, err := p.refresher.RefreshBudgets(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Budget refresh failed", "error", err)
		return
	}
	slog.InfoContext(ctx, "Budgets refreshed", "count", n)
}
