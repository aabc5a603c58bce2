// Package dedupe guards against checking the same event twice at once.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Guard tracks events whose diagnosis is in progress.
type Guard interface {
	// TryBegin marks id as in flight. It returns ErrInFlight when id is
	// already being checked and ErrFull when the guard is at capacity.
	TryBegin(ctx context.Context, id string) error

	// Done releases id. It must be called once for every successful
	// TryBegin, including when the job could not be queued.
	Done(ctx context.Context, id string)

	// Size returns the number of events in flight.
	Size() int64

	// Oldest returns how long the longest running check has been in flight.
	Oldest() time.Duration
}

type inMemoryGuard struct {
	mu      sync.Mutex
	started map[string]time.Time
	maxSize int // 0 or negative = unbounded
	size    atomic.Int64
	now     func() time.Time
}

// NewInMemoryGuard creates an in-process guard.
func NewInMemoryGuard(opts ...Option) Guard {
	g := &inMemoryGuard{
		maxSize: 50000,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.started = make(map[string]time.Time)
	return g
}

func (g *inMemoryGuard) TryBegin(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.started[id]; exists {
		return ErrInFlight
	}
	if g.maxSize > 0 && len(g.started) >= g.maxSize {
		return ErrFull
	}
	g.started[id] = g.now()
	g.size.Add(1)
	return nil
}

func (g *inMemoryGuard) Done(ctx context.Context, id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.started[id]; exists {
		delete(g.started, id)
		g.size.Add(-1)
	}
}

func (g *inMemoryGuard) Size() int64 {
	return g.size.Load()
}

func (g *inMemoryGuard) Oldest() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	var oldest time.Time
	for _, t := range g.started {
		if oldest.IsZero() || t.Before(oldest) {
			oldest = t
		}
	}
	if oldest.IsZero() {
		return 0
	}
	return g.now().Sub(oldest)
}
