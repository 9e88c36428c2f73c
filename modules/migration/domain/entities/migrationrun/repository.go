package migrationrun

import (
	"context"

	"github.com/google/uuid"
)

type FindParams struct {
	Status Status
	Limit  int
	Offset int
}

type Repository interface {
	Create(ctx context.Context, r Run) (Run, error)
	Update(ctx context.Context, r Run) error
	GetByID(ctx context.Context, id uuid.UUID) (Run, error)
	List(ctx context.Context, params *FindParams) ([]Run, error)
}
