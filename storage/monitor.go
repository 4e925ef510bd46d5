package storage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"portnavigator/models"
)

// Monitor periodically refreshes the storage statistics snapshot so
// dashboards can read it without recomputing on every render. Polling is
// cooperative: cancelling the context passed to Start stops both tickers
// and the goroutine, so nothing leaks when the consumer shuts down.
type Monitor struct {
	service       *Service
	logger        *zap.Logger
	statsInterval time.Duration
	cacheInterval time.Duration
	cacheInfoFn   func(context.Context)

	mu    sync.RWMutex
	stats models.StorageStats
	done  chan struct{}
}

// NewMonitor builds a monitor over the service. cacheInfoFn is invoked on
// the short cache-info interval and may be nil.
func NewMonitor(service *Service, logger *zap.Logger, statsInterval, cacheInterval time.Duration, cacheInfoFn func(context.Context)) *Monitor {
	if statsInterval <= 0 {
		statsInterval = 5 * time.Minute
	}
	if cacheInterval <= 0 {
		cacheInterval = 10 * time.Second
	}
	return &Monitor{
		service:       service,
		logger:        logger,
		statsInterval: statsInterval,
		cacheInterval: cacheInterval,
		cacheInfoFn:   cacheInfoFn,
	}
}

// Start refreshes once immediately and then polls until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	m.done = make(chan struct{})
	m.refresh(ctx)

	go func() {
		defer close(m.done)
		statsTicker := time.NewTicker(m.statsInterval)
		cacheTicker := time.NewTicker(m.cacheInterval)
		defer statsTicker.Stop()
		defer cacheTicker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-statsTicker.C:
				m.refresh(ctx)
			case <-cacheTicker.C:
				if m.cacheInfoFn != nil {
					m.cacheInfoFn(ctx)
				}
			}
		}
	}()
}

// Wait blocks until the monitor goroutine has exited after cancellation.
func (m *Monitor) Wait() {
	if m.done != nil {
		<-m.done
	}
}

func (m *Monitor) refresh(ctx context.Context) {
	stats, err := m.service.Stats(ctx)
	if err != nil {
		m.logger.Warn("stats refresh failed", zap.Error(err))
		return
	}
	m.mu.Lock()
	m.stats = stats
	m.mu.Unlock()
}

// Snapshot returns the last refreshed statistics.
func (m *Monitor) Snapshot() models.StorageStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}
