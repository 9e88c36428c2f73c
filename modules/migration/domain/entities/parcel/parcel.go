// Package parcel is the package entity of the target store.
package parcel

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Package struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	CustomerID      uuid.UUID
	TrackingNumber  string
	Carrier         string
	Status          string
	PackageType     string
	Sender          string
	StorageLocation string
	Description     string
	Weight          *float64
	CheckedInAt     time.Time
	ReleasedAt      *time.Time
	SourceID        string
	MigrationID     *uuid.UUID
	CreatedAt       time.Time
}

type Repository interface {
	Create(ctx context.Context, p *Package) error
	// ExistingTrackingNumbers returns the lowercased numbers already stored.
	ExistingTrackingNumbers(ctx context.Context, numbers []string) (map[string]struct{}, error)
	Count(ctx context.Context) (int64, error)
}
