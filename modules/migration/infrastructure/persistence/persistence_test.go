package persistence

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/shipos/shipos/modules/migration/domain/entities/customer"
	"github.com/shipos/shipos/modules/migration/domain/entities/invoice"
	"github.com/shipos/shipos/modules/migration/domain/entities/migrationrun"
	"github.com/shipos/shipos/modules/migration/domain/entities/parcel"
	"github.com/shipos/shipos/pkg/composables"
	"github.com/shipos/shipos/pkg/constants"
)

func tenantCtx(tenantID uuid.UUID, tx *stubTx) context.Context {
	return context.WithValue(composables.WithTenantID(context.Background(), tenantID), constants.TxKey, tx)
}

func TestCustomerRepository_Create_StampsTenantAndReturnsID(t *testing.T) {
	tenantID := uuid.New()
	migrationID := uuid.New()
	newID := uuid.New()

	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Contains(t, sql, "INSERT INTO customers")
			require.Len(t, args, 20)
			require.Equal(t, tenantID.String(), args[0])
			require.Equal(t, "PMB-0012", args[6])
			require.Equal(t, "migrated", args[15])
			require.Equal(t, pgtype.Text{String: "C-1", Valid: true}, args[17])
			require.Equal(t, pgtype.UUID{Bytes: migrationID, Valid: true}, args[18])
			return stubRow{scan: func(dest ...any) error {
				*dest[0].(*string) = newID.String()
				return nil
			}}
		},
	}

	c := &customer.Customer{
		PmbNumber:   "PMB-0012",
		Platform:    customer.PlatformMigrated,
		SourceID:    "C-1",
		MigrationID: &migrationID,
	}
	err := NewCustomerRepository(0).Create(tenantCtx(tenantID, tx), c)
	require.NoError(t, err)
	require.Equal(t, newID, c.ID)
	require.Equal(t, tenantID, c.TenantID)
	require.False(t, c.CreatedAt.IsZero())
}

func TestCustomerRepository_Create_UniqueViolationIsDuplicate(t *testing.T) {
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return stubRow{scan: func(dest ...any) error {
				return &pgconn.PgError{Code: "23505", ConstraintName: "customers_tenant_pmb_key"}
			}}
		},
	}

	err := NewCustomerRepository(0).Create(tenantCtx(uuid.New(), tx), &customer.Customer{PmbNumber: "1"})
	require.ErrorIs(t, err, ErrDuplicate)
	require.Contains(t, err.Error(), "customers_tenant_pmb_key")
}

func TestCustomerRepository_FindIDsByPMB_ChunksDistinctKeys(t *testing.T) {
	tenantID := uuid.New()
	known := uuid.New()
	var chunks [][]string

	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			require.Contains(t, sql, "lower(pmb_number) = ANY($2)")
			require.Equal(t, tenantID, args[0])
			c := args[1].([]string)
			chunks = append(chunks, c)
			var data [][]any
			for _, k := range c {
				if k == "pmb-2" {
					data = append(data, []any{pgtype.UUID{Bytes: known, Valid: true}, k})
				}
			}
			return &stubRows{data: data}, nil
		},
	}

	found, err := NewCustomerRepository(2).FindIDsByPMB(tenantCtx(tenantID, tx), []string{"PMB-1", "pmb-1", "PMB-2", " ", "PMB-3"})
	require.NoError(t, err)
	require.Equal(t, [][]string{{"pmb-1", "pmb-2"}, {"pmb-3"}}, chunks)
	require.Equal(t, map[string]uuid.UUID{"pmb-2": known}, found)
}

func TestCustomerRepository_ResolveRefs_PrefersSourceID(t *testing.T) {
	bySource := uuid.New()
	byPMB := uuid.New()

	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			require.Equal(t, []string{"42", "PMB-7"}, args[1])
			require.Equal(t, []string{"42", "pmb-7"}, args[2])
			return &stubRows{data: [][]any{
				{pgtype.UUID{Bytes: byPMB, Valid: true}, "", "42"},
				{pgtype.UUID{Bytes: bySource, Valid: true}, "42", "pmb-0042"},
				{pgtype.UUID{Bytes: byPMB, Valid: true}, "", "pmb-7"},
			}}, nil
		},
	}

	got, err := NewCustomerRepository(0).ResolveRefs(tenantCtx(uuid.New(), tx), []string{"42", "PMB-7", "42"})
	require.NoError(t, err)
	require.Equal(t, bySource, got["42"])
	require.Equal(t, byPMB, got["PMB-7"])
}

func TestCustomerRepository_Count(t *testing.T) {
	tenantID := uuid.New()
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Equal(t, "SELECT COUNT(*) FROM customers WHERE tenant_id = $1", sql)
			require.Equal(t, tenantID, args[0])
			return stubRow{scan: func(dest ...any) error {
				*dest[0].(*int64) = 4
				return nil
			}}
		},
	}
	n, err := NewCustomerRepository(0).Count(tenantCtx(tenantID, tx))
	require.NoError(t, err)
	require.Equal(t, int64(4), n)
}

func TestPackageRepository_ExistingTrackingNumbers(t *testing.T) {
	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			require.Contains(t, sql, "FROM packages")
			require.Equal(t, []string{"1z999", "9400"}, args[1])
			return &stubRows{data: [][]any{{"1z999"}}}, nil
		},
	}
	got, err := NewPackageRepository(0).ExistingTrackingNumbers(tenantCtx(uuid.New(), tx), []string{"1Z999", "9400", ""})
	require.NoError(t, err)
	require.Equal(t, map[string]struct{}{"1z999": {}}, got)
}

func TestPackageRepository_Create_NullableColumns(t *testing.T) {
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Contains(t, sql, "INSERT INTO packages")
			require.Equal(t, pgtype.Float8{}, args[9])
			require.Equal(t, pgtype.Timestamptz{}, args[11])
			require.Equal(t, pgtype.UUID{}, args[13])
			return stubRow{scan: func(dest ...any) error {
				*dest[0].(*string) = uuid.NewString()
				return nil
			}}
		},
	}
	p := &parcel.Package{CustomerID: uuid.New(), TrackingNumber: "1Z"}
	require.NoError(t, NewPackageRepository(0).Create(tenantCtx(uuid.New(), tx), p))
	require.NotEqual(t, uuid.Nil, p.ID)
	require.False(t, p.CheckedInAt.IsZero())
}

func TestInvoiceRepository_Create_RoundsAmountAndAllowsNoCustomer(t *testing.T) {
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Equal(t, pgtype.UUID{}, args[1])
			require.Equal(t, "12.35", args[6].(decimal.Decimal).StringFixed(2))
			return stubRow{scan: func(dest ...any) error {
				*dest[0].(*string) = uuid.NewString()
				return nil
			}}
		},
	}
	inv := &invoice.Invoice{InvoiceNumber: "INV-1", Amount: decimal.RequireFromString("12.345")}
	require.NoError(t, NewInvoiceRepository(0).Create(tenantCtx(uuid.New(), tx), inv))
}

func TestMigrationRunRepository_CreateAndGet(t *testing.T) {
	tenantID := uuid.New()
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	run := migrationrun.New(tenantID, "export.csv", "postalmate", migrationrun.Counts{Customers: 3}, start)

	runRow := func() []any {
		return []any{
			run.ID().String(), tenantID.String(), "export.csv", "postalmate", "migrating", start,
			pgtype.Timestamptz{}, int32(3), int32(0), int32(0), int32(0),
			int32(0), int32(0), int32(0), int32(0), []byte(nil),
		}
	}
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			if len(args) == 10 {
				require.Contains(t, sql, "INSERT INTO migration_runs")
				require.Equal(t, int32(3), args[6])
			} else {
				require.Contains(t, sql, "FROM migration_runs WHERE id = $1")
			}
			rows := &stubRows{data: [][]any{runRow()}}
			rows.Next()
			return rows
		},
	}
	ctx := tenantCtx(tenantID, tx)
	repo := NewMigrationRunRepository()

	created, err := repo.Create(ctx, run)
	require.NoError(t, err)
	require.Equal(t, run.ID(), created.ID())
	require.Equal(t, migrationrun.StatusMigrating, created.Status())
	require.Nil(t, created.CompletedAt())

	got, err := repo.GetByID(ctx, run.ID())
	require.NoError(t, err)
	require.Equal(t, 3, got.Source().Customers)
}

func TestMigrationRunRepository_GetByID_NotFound(t *testing.T) {
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return stubRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
		},
	}
	_, err := NewMigrationRunRepository().GetByID(tenantCtx(uuid.New(), tx), uuid.New())
	require.ErrorIs(t, err, migrationrun.ErrNotFound)
}

func TestMigrationRunRepository_Update_WritesErrorLog(t *testing.T) {
	tenantID := uuid.New()
	run := migrationrun.New(tenantID, "", "pmtools", migrationrun.Counts{}, time.Now())
	failed, err := run.Fail(migrationrun.Counts{Customers: 1}, []migrationrun.EntityError{
		{Entity: "run", Message: "context canceled"},
	}, time.Now())
	require.NoError(t, err)

	tx := &stubTx{
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			require.Contains(t, sql, "UPDATE migration_runs")
			require.Equal(t, "failed", args[2])
			require.Equal(t, int32(1), args[4])
			require.Contains(t, string(args[8].([]byte)), `"context canceled"`)
			return pgconn.NewCommandTag("UPDATE 1"), nil
		},
	}
	require.NoError(t, NewMigrationRunRepository().Update(tenantCtx(tenantID, tx), failed))

	tx.execFunc = func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}
	require.ErrorIs(t, NewMigrationRunRepository().Update(tenantCtx(tenantID, tx), failed), migrationrun.ErrNotFound)
}

func TestMigrationRunRepository_List_FiltersStatus(t *testing.T) {
	tenantID := uuid.New()
	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			require.Contains(t, sql, "status = $2")
			require.Contains(t, sql, "LIMIT 5")
			require.Equal(t, []any{tenantID, "migrating"}, args)
			return &stubRows{}, nil
		},
	}
	runs, err := NewMigrationRunRepository().List(tenantCtx(tenantID, tx), &migrationrun.FindParams{
		Status: migrationrun.StatusMigrating,
		Limit:  5,
	})
	require.NoError(t, err)
	require.Empty(t, runs)
}

func TestChunk(t *testing.T) {
	keys := make([]string, 0, 1001)
	for i := 0; i < 1001; i++ {
		keys = append(keys, fmt.Sprintf("K%d", i))
	}
	chunks := chunk(distinct(keys, true), 0)
	require.Len(t, chunks, 3)
	require.Len(t, chunks[0], DefaultLookupBatch)
	require.Len(t, chunks[2], 1)
	require.Equal(t, "k0", chunks[0][0])
}

type stubTx struct {
	queryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *stubTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("copy not implemented")
}

func (s *stubTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	var results pgx.BatchResults
	return results
}

func (s *stubTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	if s.execFunc == nil {
		return pgconn.CommandTag{}, nil
	}
	return s.execFunc(ctx, sql, arguments...)
}

func (s *stubTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if s.queryFunc == nil {
		return nil, errors.New("query not implemented")
	}
	return s.queryFunc(ctx, sql, args...)
}

func (s *stubTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if s.queryRowFunc == nil {
		return stubRow{scan: func(dest ...any) error { return errors.New("query row not implemented") }}
	}
	return s.queryRowFunc(ctx, sql, args...)
}

type stubRows struct {
	data [][]any
	idx  int
	err  error
}

func (r *stubRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	if r.idx == 0 || r.idx > len(r.data) {
		return errors.New("no current row to scan")
	}
	row := r.data[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("destination length %d does not match row length %d", len(dest), len(row))
	}
	for i, target := range dest {
		switch v := target.(type) {
		case *string:
			*v = row[i].(string)
		case *int32:
			*v = row[i].(int32)
		case *time.Time:
			*v = row[i].(time.Time)
		case *pgtype.UUID:
			*v = row[i].(pgtype.UUID)
		case *pgtype.Timestamptz:
			*v = row[i].(pgtype.Timestamptz)
		case *[]byte:
			*v = row[i].([]byte)
		default:
			return fmt.Errorf("unsupported scan target %T", target)
		}
	}
	return nil
}

func (r *stubRows) Values() ([]any, error) {
	if r.idx == 0 || r.idx > len(r.data) {
		return nil, errors.New("no current row")
	}
	return r.data[r.idx-1], nil
}

func (r *stubRows) RawValues() [][]byte { return nil }
func (r *stubRows) Err() error          { return r.err }
func (r *stubRows) Close()              {}
func (r *stubRows) CommandTag() pgconn.CommandTag {
	return pgconn.CommandTag{}
}
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }

type stubRow struct {
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error {
	if r.scan == nil {
		return errors.New("scan not implemented")
	}
	return r.scan(dest...)
}
