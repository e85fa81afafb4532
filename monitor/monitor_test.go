package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixxel-company-limited/embosser-controller/dots"
)

const tick = 10 * time.Millisecond

// MockFetcher answers polls from a queue; the last entry repeats
type MockFetcher struct {
	mu      sync.Mutex
	answers []answer
	calls   atomic.Int32
}

type answer struct {
	page dots.Page
	err  error
	// gate, when set, blocks the poll until closed
	gate chan struct{}
}

func (m *MockFetcher) PrintedDots(ctx context.Context) (dots.Page, error) {
	m.calls.Add(1)
	m.mu.Lock()
	a := m.answers[0]
	if len(m.answers) > 1 {
		m.answers = m.answers[1:]
	}
	m.mu.Unlock()

	if a.gate != nil {
		select {
		case <-a.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return a.page, a.err
}

func struck(n int) dots.Page {
	p := make(dots.Page, n)
	for i := range p {
		p[i] = dots.DotInstruction{X: float64(i), Y: 0, Punch: true}
	}
	return p
}

func TestStartResetsSnapshot(t *testing.T) {
	f := &MockFetcher{answers: []answer{{page: struck(2)}}}
	m := New(f, time.Hour, zerolog.Nop())

	m.Start(context.Background(), 3)
	defer func() { m.Stop(); m.Wait() }()

	snap := m.Snapshot()
	assert.Equal(t, 3, snap.Page)
	assert.NotNil(t, snap.Dots)
	assert.Empty(t, snap.Dots)
	assert.True(t, m.Running())
}

func TestPollReplacesSnapshot(t *testing.T) {
	f := &MockFetcher{answers: []answer{{page: struck(3)}, {page: struck(1)}}}
	m := New(f, tick, zerolog.Nop())

	m.Start(context.Background(), 0)
	defer func() { m.Stop(); m.Wait() }()

	require.Eventually(t, func() bool {
		return len(m.Snapshot().Dots) == 1
	}, time.Second, tick, "later poll must replace, not merge")
}

func TestPollFailureKeepsSnapshot(t *testing.T) {
	f := &MockFetcher{answers: []answer{
		{page: struck(2)},
		{err: errors.New("connection refused")},
		{err: errors.New("connection refused")},
		{page: struck(4)},
	}}
	m := New(f, tick, zerolog.Nop())

	var updates atomic.Int32
	m.OnUpdate(func(Snapshot) { updates.Add(1) })

	m.Start(context.Background(), 0)
	defer func() { m.Stop(); m.Wait() }()

	require.Eventually(t, func() bool {
		return len(m.Snapshot().Dots) == 2
	}, time.Second, time.Millisecond)

	// Failed ticks leave the feed alone and polling continues on schedule
	require.Eventually(t, func() bool {
		return len(m.Snapshot().Dots) == 4
	}, time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, f.calls.Load(), int32(4))
	assert.GreaterOrEqual(t, updates.Load(), int32(2))
}

func TestStalePollDiscarded(t *testing.T) {
	gate := make(chan struct{})
	f := &MockFetcher{answers: []answer{{page: struck(5), gate: gate}, {page: dots.Page{}}}}
	m := New(f, tick, zerolog.Nop())

	m.Start(context.Background(), 0)
	require.Eventually(t, func() bool {
		return f.calls.Load() >= 1
	}, time.Second, time.Millisecond)

	// Switch page while the page 0 poll is still out
	f.mu.Lock()
	f.answers = []answer{{page: struck(1)}}
	f.mu.Unlock()
	m.Start(context.Background(), 1)
	close(gate)

	defer func() { m.Stop(); m.Wait() }()

	require.Eventually(t, func() bool {
		return len(m.Snapshot().Dots) == 1
	}, time.Second, time.Millisecond)
	snap := m.Snapshot()
	assert.Equal(t, 1, snap.Page)
	assert.NotEqual(t, 5, len(snap.Dots))
}

func TestStopDiscardsInFlightResult(t *testing.T) {
	gate := make(chan struct{})
	f := &MockFetcher{answers: []answer{{page: struck(5), gate: gate}}}
	m := New(f, tick, zerolog.Nop())

	var updates atomic.Int32
	m.OnUpdate(func(Snapshot) { updates.Add(1) })

	m.Start(context.Background(), 0)
	require.Eventually(t, func() bool {
		return f.calls.Load() >= 1
	}, time.Second, time.Millisecond)

	m.Stop()
	assert.False(t, m.Running())
	close(gate)
	m.Wait()

	assert.Empty(t, m.Snapshot().Dots)
	assert.Zero(t, updates.Load())
}

func TestStopEndsTicks(t *testing.T) {
	f := &MockFetcher{answers: []answer{{page: struck(1)}}}
	m := New(f, tick, zerolog.Nop())

	m.Start(context.Background(), 0)
	require.Eventually(t, func() bool {
		return f.calls.Load() >= 2
	}, time.Second, time.Millisecond)

	m.Stop()
	m.Wait()
	calls := f.calls.Load()

	time.Sleep(5 * tick)
	assert.Equal(t, calls, f.calls.Load())

	// Stop is idempotent
	m.Stop()
}

func TestContextCancelEndsLoop(t *testing.T) {
	f := &MockFetcher{answers: []answer{{page: struck(1)}}}
	m := New(f, tick, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx, 0)
	cancel()

	done := make(chan struct{})
	go func() {
		m.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not exit after context cancel")
	}
}

func TestReset(t *testing.T) {
	f := &MockFetcher{answers: []answer{{page: struck(2)}}}
	m := New(f, tick, zerolog.Nop())

	m.Start(context.Background(), 4)
	require.Eventually(t, func() bool {
		return len(m.Snapshot().Dots) == 2
	}, time.Second, time.Millisecond)

	m.Reset()
	m.Wait()
	assert.False(t, m.Running())
	assert.Empty(t, m.Snapshot().Dots)
}

func TestDefaultInterval(t *testing.T) {
	m := New(&MockFetcher{}, 0, zerolog.Nop())
	assert.Equal(t, DefaultInterval, m.interval)
}
