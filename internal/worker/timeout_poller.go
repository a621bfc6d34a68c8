package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/retailcore/pos-approval/internal/approval"
)

// TimeoutPoller sweeps pending approval requests and expires those whose
// deadline has passed. This is the authoritative timeout path; device-side
// countdowns are display only.
type TimeoutPoller struct {
	engine *approval.Engine
	logger *zap.Logger

	pollInterval time.Duration
	batchSize    int

	mu        sync.RWMutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewTimeoutPoller creates a timeout poller
func NewTimeoutPoller(engine *approval.Engine, pollInterval time.Duration, batchSize int, logger *zap.Logger) *TimeoutPoller {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &TimeoutPoller{
		engine:       engine,
		logger:       logger,
		pollInterval: pollInterval,
		batchSize:    batchSize,
	}
}

// Start starts the sweep loop
func (p *TimeoutPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isRunning {
		return fmt.Errorf("timeout poller is already running")
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.isRunning = true

	p.logger.Info("TimeoutPoller started",
		zap.Duration("poll_interval", p.pollInterval),
		zap.Int("batch_size", p.batchSize))

	go p.pollLoop()

	return nil
}

// Stop stops the sweep loop
func (p *TimeoutPoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isRunning {
		return
	}

	p.isRunning = false
	if p.cancel != nil {
		p.cancel()
	}

	p.logger.Info("TimeoutPoller stopped")
}

// Name returns the worker name for identification
func (p *TimeoutPoller) Name() string {
	return "TimeoutPoller"
}

func (p *TimeoutPoller) pollLoop() {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			expired, err := p.engine.ExpireDue(p.ctx, p.batchSize)
			if err != nil {
				p.logger.Error("Timeout sweep failed", zap.Error(err))
				continue
			}
			if expired > 0 {
				p.logger.Info("Expired pending requests", zap.Int("count", expired))
			}
		}
	}
}

// Verify interface compliance
var _ Worker = (*TimeoutPoller)(nil)
