// Package progress keeps the live per-entity counters of running migrations.
package progress

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrProgressNotFound = errors.New("migration progress not found")

const (
	EntityCustomers  = "customers"
	EntityPackages   = "packages"
	EntityMailPieces = "mailPieces"
	EntityInvoices   = "invoices"
)

type EntityProgress struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

type Snapshot struct {
	RunID     uuid.UUID                 `json:"runId"`
	Status    string                    `json:"status"`
	Entities  map[string]EntityProgress `json:"entities"`
	StartedAt time.Time                 `json:"startedAt"`
	UpdatedAt time.Time                 `json:"updatedAt"`
}

// Percent is the share of processed rows over all entities, 100 for an empty run.
func (s Snapshot) Percent() float64 {
	var total, done int
	for _, e := range s.Entities {
		total += e.Total
		done += e.Processed
	}
	if total == 0 {
		return 100
	}
	return float64(done) * 100 / float64(total)
}

// Tracker is scoped to the tenant in the context.
type Tracker interface {
	Start(ctx context.Context, runID uuid.UUID, totals map[string]int) error
	// Advance counts one processed row of entity. ok false also counts it as failed.
	Advance(ctx context.Context, runID uuid.UUID, entity string, ok bool) error
	Finish(ctx context.Context, runID uuid.UUID, status string) error
	Get(ctx context.Context, runID uuid.UUID) (Snapshot, error)
}

func newSnapshot(runID uuid.UUID, totals map[string]int, now time.Time) Snapshot {
	entities := make(map[string]EntityProgress, len(totals))
	for entity, total := range totals {
		entities[entity] = EntityProgress{Total: total}
	}
	return Snapshot{
		RunID:     runID,
		Status:    "migrating",
		Entities:  entities,
		StartedAt: now,
		UpdatedAt: now,
	}
}

func (s *Snapshot) advance(entity string, ok bool, now time.Time) {
	if s.Entities == nil {
		s.Entities = make(map[string]EntityProgress)
	}
	e := s.Entities[entity]
	e.Processed++
	if !ok {
		e.Failed++
	}
	s.Entities[entity] = e
	s.UpdatedAt = now
}
