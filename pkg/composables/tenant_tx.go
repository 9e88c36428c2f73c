package composables

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/shipos/shipos/pkg/constants"
)

// InTenantTx reuses a transaction already present in ctx, otherwise it opens one on the pool.
func InTenantTx(ctx context.Context, fn func(context.Context) error) error {
	if existing, ok := ctx.Value(constants.TxKey).(pgx.Tx); ok && existing != nil {
		if err := ApplyTenantRLS(ctx, existing); err != nil {
			return err
		}
		return fn(ctx)
	}

	pool, err := UsePool(ctx)
	if err != nil {
		return err
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	return runInTx(ctx, tx, fn)
}
