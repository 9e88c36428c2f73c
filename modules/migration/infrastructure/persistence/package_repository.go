package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/shipos/shipos/modules/migration/domain/entities/parcel"
	"github.com/shipos/shipos/pkg/composables"
)

type PackageRepository struct {
	batchSize int
}

func NewPackageRepository(batchSize int) parcel.Repository {
	return &PackageRepository{batchSize: batchSize}
}

func (r *PackageRepository) Create(ctx context.Context, p *parcel.Package) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	if p.TenantID == uuid.Nil {
		tenantID, err := composables.UseTenantID(ctx)
		if err != nil {
			return err
		}
		p.TenantID = tenantID
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.CheckedInAt.IsZero() {
		p.CheckedInAt = now
	}

	row := toDBPackage(p)
	var id string
	err = tx.QueryRow(ctx, `
		INSERT INTO packages (
			tenant_id, customer_id, tracking_number, carrier, status, package_type, sender,
			storage_location, description, weight, checked_in_at, released_at, source_id,
			migration_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`,
		row.TenantID,
		row.CustomerID,
		row.TrackingNumber,
		row.Carrier,
		row.Status,
		row.PackageType,
		row.Sender,
		row.StorageLocation,
		row.Description,
		row.Weight,
		row.CheckedInAt,
		row.ReleasedAt,
		row.SourceID,
		row.MigrationID,
		row.CreatedAt,
	).Scan(&id)
	if err != nil {
		return wrapWriteError(err, "failed to create package")
	}
	p.ID, err = uuid.Parse(id)
	return errors.Wrap(err, "invalid package id")
}

func (r *PackageRepository) ExistingTrackingNumbers(ctx context.Context, numbers []string) (map[string]struct{}, error) {
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
			SELECT lower(tracking_number) FROM packages
			WHERE tenant_id = $1 AND lower(tracking_number) = ANY($2)`,
			tenantID, c,
		)
	})
	return found, errors.Wrap(err, "failed to query tracking numbers")
}

func (r *PackageRepository) Count(ctx context.Context) (int64, error) {
	return countTenantRows(ctx, "packages")
}
