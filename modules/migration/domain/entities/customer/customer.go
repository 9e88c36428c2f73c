package customer

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const PlatformMigrated = "migrated"

type Customer struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	FirstName      string
	LastName       string
	BusinessName   string
	Email          string
	Phone          string
	PmbNumber      string
	Status         string
	Form1583Status string
	IDType         string
	IDNumber       string
	Address        string
	City           string
	State          string
	ZipCode        string
	Platform       string
	RenewalDate    *time.Time
	SourceID       string
	MigrationID    *uuid.UUID
	CreatedAt      time.Time
}

type Repository interface {
	Create(ctx context.Context, c *Customer) error
	// FindIDsByPMB returns ids keyed by lowercased PMB number.
	FindIDsByPMB(ctx context.Context, pmbs []string) (map[string]uuid.UUID, error)
	// ResolveRefs matches each ref against source_id, then lowercased
	// pmb_number. Unmatched refs are absent from the result.
	ResolveRefs(ctx context.Context, refs []string) (map[string]uuid.UUID, error)
	Count(ctx context.Context) (int64, error)
}
