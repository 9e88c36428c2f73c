package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/shipos/shipos/modules/migration/domain/entities/mailpiece"
	"github.com/shipos/shipos/pkg/composables"
)

type MailPieceRepository struct{}

func NewMailPieceRepository() mailpiece.Repository {
	return &MailPieceRepository{}
}

func (r *MailPieceRepository) Create(ctx context.Context, m *mailpiece.MailPiece) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	if m.TenantID == uuid.Nil {
		tenantID, err := composables.UseTenantID(ctx)
		if err != nil {
			return err
		}
		m.TenantID = tenantID
	}
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.ReceivedAt.IsZero() {
		m.ReceivedAt = now
	}

	row := toDBMailPiece(m)
	var id string
	err = tx.QueryRow(ctx, `
		INSERT INTO mail_pieces (
			tenant_id, customer_id, type, sender, status, notes, received_at, source_id, migration_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		row.TenantID,
		row.CustomerID,
		row.Type,
		row.Sender,
		row.Status,
		row.Notes,
		row.ReceivedAt,
		row.SourceID,
		row.MigrationID,
		row.CreatedAt,
	).Scan(&id)
	if err != nil {
		return wrapWriteError(err, "failed to create mail piece")
	}
	m.ID, err = uuid.Parse(id)
	return errors.Wrap(err, "invalid mail piece id")
}

func (r *MailPieceRepository) Count(ctx context.Context) (int64, error) {
	return countTenantRows(ctx, "mail_pieces")
}
