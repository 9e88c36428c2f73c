package mailpiece

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type MailPiece struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	CustomerID  uuid.UUID
	Type        string
	Sender      string
	Status      string
	Notes       string
	ReceivedAt  time.Time
	SourceID    string
	MigrationID *uuid.UUID
	CreatedAt   time.Time
}

type Repository interface {
	Create(ctx context.Context, m *MailPiece) error
	Count(ctx context.Context) (int64, error)
}
