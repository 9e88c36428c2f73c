package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/shipos/shipos/modules/migration/domain/entities/migrationrun"
	"github.com/shipos/shipos/modules/migration/infrastructure/persistence/models"
	"github.com/shipos/shipos/pkg/composables"
	"github.com/shipos/shipos/pkg/repo"
)

const migrationRunColumns = `
	id, tenant_id, source_file, source_system, status, started_at, completed_at,
	source_customers, source_packages, source_mail_pieces, source_invoices,
	migrated_customers, migrated_packages, migrated_mail_pieces, migrated_invoices,
	error_log`

type MigrationRunRepository struct{}

func NewMigrationRunRepository() migrationrun.Repository {
	return &MigrationRunRepository{}
}

func (r *MigrationRunRepository) Create(ctx context.Context, run migrationrun.Run) (migrationrun.Run, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return migrationrun.Run{}, errors.Wrap(err, "failed to get transaction")
	}
	row, err := toDBMigrationRun(run)
	if err != nil {
		return migrationrun.Run{}, err
	}

	var out models.MigrationRun
	err = scanMigrationRun(tx.QueryRow(ctx, `
		INSERT INTO migration_runs (
			id, tenant_id, source_file, source_system, status, started_at,
			source_customers, source_packages, source_mail_pieces, source_invoices
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING`+migrationRunColumns,
		row.ID,
		row.TenantID,
		row.SourceFile,
		row.SourceSystem,
		row.Status,
		row.StartedAt,
		row.SourceCustomers,
		row.SourcePackages,
		row.SourceMailPieces,
		row.SourceInvoices,
	), &out)
	if err != nil {
		return migrationrun.Run{}, wrapWriteError(err, "failed to create migration run")
	}
	return toDomainMigrationRun(&out)
}

func (r *MigrationRunRepository) Update(ctx context.Context, run migrationrun.Run) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	row, err := toDBMigrationRun(run)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
		UPDATE migration_runs SET
			status = $3,
			completed_at = $4,
			migrated_customers = $5,
			migrated_packages = $6,
			migrated_mail_pieces = $7,
			migrated_invoices = $8,
			error_log = $9
		WHERE id = $1 AND tenant_id = $2`,
		row.ID,
		row.TenantID,
		row.Status,
		row.CompletedAt,
		row.MigratedCustomers,
		row.MigratedPackages,
		row.MigratedMailPieces,
		row.MigratedInvoices,
		row.ErrorLog,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update migration run")
	}
	if tag.RowsAffected() == 0 {
		return migrationrun.ErrNotFound
	}
	return nil
}

func (r *MigrationRunRepository) GetByID(ctx context.Context, id uuid.UUID) (migrationrun.Run, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return migrationrun.Run{}, errors.Wrap(err, "failed to get transaction")
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return migrationrun.Run{}, err
	}

	var row models.MigrationRun
	err = scanMigrationRun(tx.QueryRow(ctx,
		`SELECT`+migrationRunColumns+` FROM migration_runs WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	), &row)
	if errors.Is(err, pgx.ErrNoRows) {
		return migrationrun.Run{}, migrationrun.ErrNotFound
	}
	if err != nil {
		return migrationrun.Run{}, errors.Wrap(err, "failed to get migration run")
	}
	return toDomainMigrationRun(&row)
}

func (r *MigrationRunRepository) List(ctx context.Context, params *migrationrun.FindParams) ([]migrationrun.Run, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	where := []string{"tenant_id = $1"}
	args := []any{tenantID}
	if params != nil && params.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, string(params.Status))
	}
	query := `SELECT` + migrationRunColumns + ` FROM migration_runs
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY started_at DESC`
	if params != nil {
		query += " " + repo.FormatLimitOffset(params.Limit, params.Offset)
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query migration runs")
	}
	defer rows.Close()

	var out []migrationrun.Run
	for rows.Next() {
		var row models.MigrationRun
		if err := scanMigrationRun(rows, &row); err != nil {
			return nil, errors.Wrap(err, "failed to scan migration run")
		}
		run, err := toDomainMigrationRun(&row)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating migration runs")
	}
	return out, nil
}

func scanMigrationRun(row pgx.Row, dst *models.MigrationRun) error {
	return row.Scan(
		&dst.ID,
		&dst.TenantID,
		&dst.SourceFile,
		&dst.SourceSystem,
		&dst.Status,
		&dst.StartedAt,
		&dst.CompletedAt,
		&dst.SourceCustomers,
		&dst.SourcePackages,
		&dst.SourceMailPieces,
		&dst.SourceInvoices,
		&dst.MigratedCustomers,
		&dst.MigratedPackages,
		&dst.MigratedMailPieces,
		&dst.MigratedInvoices,
		&dst.ErrorLog,
	)
}
