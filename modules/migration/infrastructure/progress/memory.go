package progress

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shipos/shipos/pkg/composables"
)

type memoryKey struct {
	tenantID uuid.UUID
	runID    uuid.UUID
}

type MemoryTracker struct {
	mu    sync.RWMutex
	runs  map[memoryKey]Snapshot
	clock func() time.Time
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{
		runs:  make(map[memoryKey]Snapshot),
		clock: time.Now,
	}
}

func (t *MemoryTracker) key(ctx context.Context, runID uuid.UUID) (memoryKey, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return memoryKey{}, err
	}
	return memoryKey{tenantID: tenantID, runID: runID}, nil
}

func (t *MemoryTracker) Start(ctx context.Context, runID uuid.UUID, totals map[string]int) error {
	k, err := t.key(ctx, runID)
	if err != nil {
		return err
	}
	now := t.clock()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prune(now)
	t.runs[k] = newSnapshot(runID, totals, now)
	return nil
}

// prune drops snapshots untouched for DefaultTTL. Callers hold mu.
func (t *MemoryTracker) prune(now time.Time) {
	cutoff := now.Add(-DefaultTTL)
	for k, s := range t.runs {
		if s.UpdatedAt.Before(cutoff) {
			delete(t.runs, k)
		}
	}
}

func (t *MemoryTracker) Advance(ctx context.Context, runID uuid.UUID, entity string, ok bool) error {
	return t.update(ctx, runID, func(s *Snapshot) { s.advance(entity, ok, t.clock()) })
}

func (t *MemoryTracker) Finish(ctx context.Context, runID uuid.UUID, status string) error {
	return t.update(ctx, runID, func(s *Snapshot) {
		s.Status = status
		s.UpdatedAt = t.clock()
	})
}

func (t *MemoryTracker) Get(ctx context.Context, runID uuid.UUID) (Snapshot, error) {
	k, err := t.key(ctx, runID)
	if err != nil {
		return Snapshot{}, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.runs[k]
	if !ok {
		return Snapshot{}, ErrProgressNotFound
	}
	return s.clone(), nil
}

func (t *MemoryTracker) update(ctx context.Context, runID uuid.UUID, fn func(*Snapshot)) error {
	k, err := t.key(ctx, runID)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.runs[k]
	if !ok {
		return ErrProgressNotFound
	}
	fn(&s)
	t.runs[k] = s
	return nil
}

func (s Snapshot) clone() Snapshot {
	entities := make(map[string]EntityProgress, len(s.Entities))
	for k, v := range s.Entities {
		entities[k] = v
	}
	s.Entities = entities
	return s
}
