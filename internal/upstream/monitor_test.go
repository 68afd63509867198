package upstream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/parisxmas/fsdash/internal/metrics"
	"github.com/parisxmas/fsdash/pkg/fsclient"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeProber struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeProber) Health(context.Context) (*fsclient.Health, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &fsclient.Health{Status: 200}, nil
}

func (f *fakeProber) set(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeProber) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestProbe_TracksState(t *testing.T) {
	p := &fakeProber{}
	m := NewMonitor(p, time.Hour, zaptest.NewLogger(t))
	assert.True(t, m.Last().CheckedAt.IsZero())

	snap := m.Probe(context.Background())
	assert.True(t, snap.Up)
	require.NotNil(t, snap.Health)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.UpstreamUp))

	p.set(errors.New("connection refused"))
	snap = m.Probe(context.Background())
	assert.False(t, snap.Up)
	assert.Error(t, snap.Err)
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.UpstreamUp))
	assert.Equal(t, snap, m.Last())
}

func TestMonitor_BackgroundLoop(t *testing.T) {
	p := &fakeProber{}
	m := NewMonitor(p, 10*time.Millisecond, zaptest.NewLogger(t))
	m.Start()

	assert.Eventually(t, func() bool { return p.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
	m.Close()
	m.Close()

	n := p.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, p.count(), "no probes after Close")
}
