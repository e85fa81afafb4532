// Package monitor polls the gateway for the dots struck so far on the page in view
package monitor

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nixxel-company-limited/embosser-controller/dots"
)

// DefaultInterval is the poll period used when none is configured
const DefaultInterval = time.Second

// Fetcher returns the dots the device reports as struck on the current job
type Fetcher interface {
	PrintedDots(ctx context.Context) (dots.Page, error)
}

// Snapshot is the struck-dot feed for one page
type Snapshot struct {
	Page       int
	Generation uint64
	Dots       dots.Page
	UpdatedAt  time.Time
}

// Monitor runs at most one poll cycle at a time. Every Start and Stop bumps the
// generation; results fetched under an older generation are discarded
type Monitor struct {
	fetcher  Fetcher
	interval time.Duration
	logger   zerolog.Logger

	mu         sync.Mutex
	generation uint64
	running    bool
	stopCh     chan struct{}
	snapshot   Snapshot
	onUpdate   []func(Snapshot)
	wg         sync.WaitGroup
}

// New creates an idle monitor. A non-positive interval falls back to DefaultInterval
func New(fetcher Fetcher, interval time.Duration, logger zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		fetcher:  fetcher,
		interval: interval,
		logger:   logger.With().Str("component", "monitor").Logger(),
	}
}

// OnUpdate registers a callback run after each applied snapshot
func (m *Monitor) OnUpdate(fn func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = append(m.onUpdate, fn)
}

// Start cancels any running cycle, resets the snapshot to an empty feed for page
// and begins polling. Requests are issued on ctx, so cancelling ctx aborts the
// request in flight as well as the loop
func (m *Monitor) Start(ctx context.Context, page int) {
	m.mu.Lock()
	m.stopLocked()
	m.generation++
	gen := m.generation
	m.snapshot = Snapshot{Page: page, Generation: gen, Dots: dots.Page{}}
	stopCh := make(chan struct{})
	m.stopCh = stopCh
	m.running = true
	m.mu.Unlock()

	m.logger.Debug().Int("page", page).Uint64("generation", gen).Msg("poll cycle started")

	m.wg.Add(1)
	go m.loop(ctx, gen, page, stopCh)
}

// Stop cancels the running cycle. It returns without waiting for a request in
// flight; that request's result is discarded
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

// Reset stops polling and clears the snapshot
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
	m.snapshot = Snapshot{Page: m.snapshot.Page, Generation: m.generation, Dots: dots.Page{}}
}

func (m *Monitor) stopLocked() {
	if !m.running {
		return
	}
	m.generation++
	close(m.stopCh)
	m.stopCh = nil
	m.running = false
}

// Wait blocks until every loop goroutine has returned
func (m *Monitor) Wait() {
	m.wg.Wait()
}

// Running reports whether a cycle is active
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Snapshot returns a copy of the latest applied feed
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.snapshot
	s.Dots = s.Dots.Clone()
	return s
}

func (m *Monitor) loop(ctx context.Context, gen uint64, page int, stopCh <-chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.poll(ctx, gen, page)
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) poll(ctx context.Context, gen uint64, page int) {
	struck, err := m.fetcher.PrintedDots(ctx)
	if err != nil {
		m.logger.Debug().Err(err).Int("page", page).Msg("poll failed")
		return
	}

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		m.logger.Debug().Int("page", page).Uint64("generation", gen).Msg("stale poll discarded")
		return
	}
	m.snapshot = Snapshot{Page: page, Generation: gen, Dots: struck.Clone(), UpdatedAt: time.Now()}
	snap := m.snapshot
	callbacks := slices.Clone(m.onUpdate)
	m.mu.Unlock()

	for _, fn := range callbacks {
		s := snap
		s.Dots = snap.Dots.Clone()
		fn(s)
	}
}
