package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pkg/errors"

	"github.com/shipos/shipos/modules/migration/domain/entities/customer"
	"github.com/shipos/shipos/pkg/composables"
)

type CustomerRepository struct {
	batchSize int
}

func NewCustomerRepository(batchSize int) customer.Repository {
	return &CustomerRepository{batchSize: batchSize}
}

func (r *CustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	if c.TenantID == uuid.Nil {
		tenantID, err := composables.UseTenantID(ctx)
		if err != nil {
			return err
		}
		c.TenantID = tenantID
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	row := toDBCustomer(c)
	var id string
	err = tx.QueryRow(ctx, `
		INSERT INTO customers (
			tenant_id, first_name, last_name, business_name, email, phone, pmb_number,
			status, form1583_status, id_type, id_number, address, city, state, zip_code,
			platform, renewal_date, source_id, migration_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING id`,
		row.TenantID,
		row.FirstName,
		row.LastName,
		row.BusinessName,
		row.Email,
		row.Phone,
		row.PmbNumber,
		row.Status,
		row.Form1583Status,
		row.IDType,
		row.IDNumber,
		row.Address,
		row.City,
		row.State,
		row.ZipCode,
		row.Platform,
		row.RenewalDate,
		row.SourceID,
		row.MigrationID,
		row.CreatedAt,
	).Scan(&id)
	if err != nil {
		return wrapWriteError(err, "failed to create customer")
	}
	c.ID, err = uuid.Parse(id)
	return errors.Wrap(err, "invalid customer id")
}

func (r *CustomerRepository) FindIDsByPMB(ctx context.Context, pmbs []string) (map[string]uuid.UUID, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]uuid.UUID)
	for _, c := range chunk(distinct(pmbs, true), r.batchSize) {
		rows, err := tx.Query(ctx, `
			SELECT id, lower(pmb_number) FROM customers
			WHERE tenant_id = $1 AND lower(pmb_number) = ANY($2)`,
			tenantID, c,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to query customers by pmb")
		}
		if err := scanIDPairs(rows, func(id uuid.UUID, key string) {
			out[key] = id
		}); err != nil {
			return nil, errors.Wrap(err, "failed to scan customers by pmb")
		}
	}
	return out, nil
}

func (r *CustomerRepository) ResolveRefs(ctx context.Context, refs []string) (map[string]uuid.UUID, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]uuid.UUID)
	for _, c := range chunk(distinct(refs, false), r.batchSize) {
		lowered := make([]string, len(c))
		for i, ref := range c {
			lowered[i] = strings.ToLower(ref)
		}
		rows, err := tx.Query(ctx, `
			SELECT id, COALESCE(source_id, ''), lower(pmb_number) FROM customers
			WHERE tenant_id = $1 AND (source_id = ANY($2) OR lower(pmb_number) = ANY($3))`,
			tenantID, c, lowered,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to resolve customer references")
		}
		bySource := make(map[string]uuid.UUID)
		byPMB := make(map[string]uuid.UUID)
		if err := scanRefRows(rows, bySource, byPMB); err != nil {
			return nil, errors.Wrap(err, "failed to scan customer references")
		}
		for _, ref := range c {
			if id, ok := bySource[ref]; ok {
				out[ref] = id
			} else if id, ok := byPMB[strings.ToLower(ref)]; ok {
				out[ref] = id
			}
		}
	}
	return out, nil
}

func (r *CustomerRepository) Count(ctx context.Context) (int64, error) {
	return countTenantRows(ctx, "customers")
}

func scanIDPairs(rows pgx.Rows, fn func(id uuid.UUID, key string)) error {
	defer rows.Close()
	for rows.Next() {
		var (
			id  pgtype.UUID
			key string
		)
		if err := rows.Scan(&id, &key); err != nil {
			return err
		}
		fn(uuid.UUID(id.Bytes), key)
	}
	return rows.Err()
}

func scanRefRows(rows pgx.Rows, bySource, byPMB map[string]uuid.UUID) error {
	defer rows.Close()
	for rows.Next() {
		var (
			id       pgtype.UUID
			sourceID string
			pmb      string
		)
		if err := rows.Scan(&id, &sourceID, &pmb); err != nil {
			return err
		}
		if sourceID != "" {
			bySource[sourceID] = uuid.UUID(id.Bytes)
		}
		byPMB[pmb] = uuid.UUID(id.Bytes)
	}
	return rows.Err()
}

var countableTables = map[string]struct{}{
	"customers":   {},
	"packages":    {},
	"mail_pieces": {},
	"invoices":    {},
}

func countTenantRows(ctx context.Context, table string) (int64, error) {
	if _, ok := countableTables[table]; !ok {
		return 0, errors.Errorf("unknown table %q", table)
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get transaction")
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := tx.QueryRow(ctx, "SELECT COUNT(*) FROM "+table+" WHERE tenant_id = $1", tenantID).Scan(&count); err != nil {
		return 0, errors.Wrapf(err, "failed to count %s", table)
	}
	return count, nil
}
