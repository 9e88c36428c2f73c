package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/shipos/shipos/modules/migration/domain/entities/invoice"
	"github.com/shipos/shipos/pkg/composables"
)

type InvoiceRepository struct {
	batchSize int
}

func NewInvoiceRepository(batchSize int) invoice.Repository {
	return &InvoiceRepository{batchSize: batchSize}
}

func (r *InvoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	if inv.TenantID == uuid.Nil {
		tenantID, err := composables.UseTenantID(ctx)
		if err != nil {
			return err
		}
		inv.TenantID = tenantID
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}

	row := toDBInvoice(inv)
	var id string
	err = tx.QueryRow(ctx, `
		INSERT INTO invoices (
			tenant_id, customer_id, invoice_number, type, status, description, amount,
			issued_at, source_id, migration_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		row.TenantID,
		row.CustomerID,
		row.InvoiceNumber,
		row.Type,
		row.Status,
		row.Description,
		row.Amount,
		row.IssuedAt,
		row.SourceID,
		row.MigrationID,
		row.CreatedAt,
	).Scan(&id)
	if err != nil {
		return wrapWriteError(err, "failed to create invoice")
	}
	inv.ID, err = uuid.Parse(id)
	return errors.Wrap(err, "invalid invoice id")
}

func (r *InvoiceRepository) ExistingNumbers(ctx context.Context, numbers []string) (map[string]struct{}, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	found, err := existingKeys(ctx, numbers, r.batchSize, func(ctx context.Context, c []string) (pgx.Rows, error) {
		return tx.Query(ctx, `
			SELECT lower(invoice_number) FROM invoices
			WHERE tenant_id = $1 AND lower(invoice_number) = ANY($2)`,
			tenantID, c,
		)
	})
	return found, errors.Wrap(err, "failed to query invoice numbers")
}

func (r *InvoiceRepository) Count(ctx context.Context) (int64, error) {
	return countTenantRows(ctx, "invoices")
}
