package invoice

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Invoice struct {
	ID uuid.UUID
	// CustomerID is nil when the legacy customer could not be resolved.
	CustomerID    *uuid.UUID
	TenantID      uuid.UUID
	InvoiceNumber string
	Type          string
	Status        string
	Description   string
	Amount        decimal.Decimal
	IssuedAt      *time.Time
	SourceID      string
	MigrationID   *uuid.UUID
	CreatedAt     time.Time
}

type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	ExistingNumbers(ctx context.Context, numbers []string) (map[string]struct{}, error)
	Count(ctx context.Context) (int64, error)
}
