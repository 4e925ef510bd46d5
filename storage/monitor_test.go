package storage

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"portnavigator/models"
)

func TestMonitorRefreshesOnStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := newTestService(t)
	require.NoError(t, svc.AddRequest(ctx, testRequest("r1", "u1", models.StatusPending, time.Now())))

	m := NewMonitor(svc, zap.NewNop(), time.Hour, time.Hour, nil)
	m.Start(ctx)

	// Start performs one synchronous refresh before the tickers spin up.
	assert.Equal(t, 1, m.Snapshot().Counts["requests"])

	cancel()
	m.Wait()
}

func TestMonitorStopsCleanly(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())

	svc := New(Config{DataDir: t.TempDir()}, zap.NewNop())
	require.NoError(t, svc.Initialize(ctx))

	var cachePolls atomic.Int64
	m := NewMonitor(svc, zap.NewNop(), time.Hour, 5*time.Millisecond, func(context.Context) {
		cachePolls.Add(1)
	})
	m.Start(ctx)

	assert.Eventually(t, func() bool {
		return cachePolls.Load() > 0
	}, time.Second, 5*time.Millisecond, "cache-info polling never fired")

	cancel()
	m.Wait()
	require.NoError(t, svc.Close())

	// No further polls once the context is cancelled.
	settled := cachePolls.Load()
	time.Sleep(25 * time.Millisecond)
	assert.Equal(t, settled, cachePolls.Load())
}

func TestMonitorDefaultIntervals(t *testing.T) {
	m := NewMonitor(nil, zap.NewNop(), 0, 0, nil)
	assert.Equal(t, 5*time.Minute, m.statsInterval)
	assert.Equal(t, 10*time.Second, m.cacheInterval)
}
