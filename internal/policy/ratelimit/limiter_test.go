package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingObserver) ObserveRateLimitDelay(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
}

func TestLimiterWaitDelaysSameHost(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	// 10 requests per second means one token every 100ms after the burst.
	l := New(Config{RPS: 10, Burst: 1}, obs)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://imdb.com/title/tt1/"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://imdb.com/title/tt2/"))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Len(t, obs.delays, 1)
}

func TestLimiterHostsAreIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 1, Burst: 1}, nil)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.example/"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.example/"))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiterDisabled(t *testing.T) {
	t.Parallel()

	l := New(Config{}, nil)
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(ctx, "https://imdb.com/"))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiterRespectsContext(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 0.1, Burst: 1}, nil)
	require.NoError(t, l.Wait(context.Background(), "https://imdb.com/"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(ctx, "https://imdb.com/"))
}
