// Package upstream watches the configured submission service.
package upstream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/parisxmas/fsdash/internal/metrics"
	"github.com/parisxmas/fsdash/pkg/fsclient"
	"go.uber.org/zap"
)

// Prober is the part of the API client the monitor needs.
type Prober interface {
	Health(ctx context.Context) (*fsclient.Health, error)
}

// Snapshot is the result of the latest probe.
type Snapshot struct {
	Up        bool
	Health    *fsclient.Health
	Err       error
	CheckedAt time.Time
}

// Monitor pings /health on a fixed interval, keeps the last result and
// publishes it as the fsdash_upstream_up gauge.
type Monitor struct {
	prober   Prober
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger

	mu   sync.RWMutex
	last Snapshot

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
}

func NewMonitor(prober Prober, interval time.Duration, log *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Monitor{
		prober:   prober,
		interval: interval,
		timeout:  5 * time.Second,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start probes once and then keeps probing in the background until Close.
func (m *Monitor) Start() {
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	go m.keepalive()
}

func (m *Monitor) keepalive() {
	defer close(m.done)
	m.Probe(context.Background())

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.Probe(context.Background())
		}
	}
}

// Probe runs one health check now and records it.
func (m *Monitor) Probe(ctx context.Context) Snapshot {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	h, err := m.prober.Health(ctx)
	snap := Snapshot{Up: err == nil, Health: h, Err: err, CheckedAt: time.Now()}

	m.mu.Lock()
	prev := m.last
	m.last = snap
	m.mu.Unlock()

	if snap.Up {
		metrics.UpstreamUp.Set(1)
	} else {
		metrics.UpstreamUp.Set(0)
	}
	switch {
	case prev.CheckedAt.IsZero() && snap.Up:
		m.log.Info("submission service reachable")
	case !snap.Up && (prev.Up || prev.CheckedAt.IsZero()):
		m.log.Warn("submission service unreachable", zap.Error(err))
	case snap.Up && !prev.Up:
		m.log.Info("submission service recovered", zap.Duration("down_for", snap.CheckedAt.Sub(prev.CheckedAt)))
	}
	return snap
}

// Last returns the most recent probe result. CheckedAt is zero before the
// first probe.
func (m *Monitor) Last() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Close stops background probing and waits for it to exit.
func (m *Monitor) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
	if !m.started.Load() {
		return
	}
	select {
	case <-m.done:
	case <-time.After(m.timeout + time.Second):
	}
}
