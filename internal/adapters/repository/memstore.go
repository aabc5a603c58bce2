package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/mapcheck/pkg/metrics"
)

type entry struct {
	result    Result
	updatedAt time.Time
}

// MemoryStore is an in-memory Store with revision ordering and expiry.
type MemoryStore struct {
	mu            sync.RWMutex
	byKey         map[string]entry
	revisions     map[string]int64
	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time

	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewMemoryStore creates a store and starts its background sweeper, which
// stops when ctx is done or Close is called.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		byKey:         make(map[string]entry),
		revisions:     make(map[string]int64),
		ttl:           time.Hour,
		sweepInterval: 30 * time.Second,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.stopChan = make(chan struct{})
	s.startSweeper(ctx)
	return s
}

func (s *MemoryStore) startSweeper(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// Close stops the sweeper.
func (s *MemoryStore) Close() error {
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	return nil
}

func (s *MemoryStore) NextRevision(ctx context.Context, key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revisions[key]++
	return s.revisions[key]
}

func (s *MemoryStore) Put(ctx context.Context, r Result) (bool, error) {
	if r.EventID == "" {
		return false, ErrInvalidEventID
	}

	key := r.Key()
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.byKey[key]; ok && r.Revision < cur.result.Revision {
		metrics.RecordStaleResult()
		return false, nil
	}
	if r.Revision > s.revisions[key] {
		s.revisions[key] = r.Revision
	}
	s.byKey[key] = entry{result: r, updatedAt: s.now()}
	metrics.UpdateResultsStored(len(s.byKey))
	return true, nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) (Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.byKey[key]
	if !ok || s.expired(e) {
		return Result{}, ErrNotFound
	}
	return e.result, nil
}

func (s *MemoryStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKey)
}

// Sweep removes expired results and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.byKey {
		if s.expired(e) {
			delete(s.byKey, key)
			delete(s.revisions, key)
			removed++
		}
	}
	metrics.UpdateResultsStored(len(s.byKey))
	return removed
}

func (s *MemoryStore) expired(e entry) bool {
	return s.ttl > 0 && s.now().Sub(e.updatedAt) > s.ttl
}
