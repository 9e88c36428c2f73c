package services

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/shipos/shipos/modules/migration/domain/entities/migrationrun"
	"github.com/shipos/shipos/modules/migration/infrastructure/progress"
	"github.com/shipos/shipos/pkg/eventbus"
)

var errUniqueViolation = errors.New("failed to create customer: record already exists")

type tenantScopeKey struct{}

func inTenantScope(ctx context.Context) bool {
	v, _ := ctx.Value(tenantScopeKey{}).(bool)
	return v
}

// scopedCustomers only sees stored rows inside a tenant transaction, the way
// row level security hides them from a bare pool connection.
type scopedCustomers struct {
	*mockCustomerRepo
	outside int
}

func (r *scopedCustomers) FindIDsByPMB(ctx context.Context, pmbs []string) (map[string]uuid.UUID, error) {
	if !inTenantScope(ctx) {
		r.outside++
		return map[string]uuid.UUID{}, nil
	}
	return r.mockCustomerRepo.FindIDsByPMB(ctx, pmbs)
}

func (r *scopedCustomers) ResolveRefs(ctx context.Context, refs []string) (map[string]uuid.UUID, error) {
	if !inTenantScope(ctx) {
		r.outside++
		return map[string]uuid.UUID{}, nil
	}
	return r.mockCustomerRepo.ResolveRefs(ctx, refs)
}

type scopedPackages struct {
	*mockPackageRepo
	outside int
}

func (r *scopedPackages) ExistingTrackingNumbers(ctx context.Context, numbers []string) (map[string]struct{}, error) {
	if !inTenantScope(ctx) {
		r.outside++
		return map[string]struct{}{}, nil
	}
	return r.mockPackageRepo.ExistingTrackingNumbers(ctx, numbers)
}

type scopedRuns struct {
	*mockRunRepo
	outside int
}

func (r *scopedRuns) GetByID(ctx context.Context, id uuid.UUID) (migrationrun.Run, error) {
	if !inTenantScope(ctx) {
		r.outside++
		return migrationrun.Run{}, migrationrun.ErrNotFound
	}
	return r.mockRunRepo.GetByID(ctx, id)
}

func (r *scopedRuns) List(ctx context.Context, params *migrationrun.FindParams) ([]migrationrun.Run, error) {
	if !inTenantScope(ctx) {
		r.outside++
		return nil, nil
	}
	return r.mockRunRepo.List(ctx, params)
}

func newScopedService() (*MigrationService, *scopedRuns, *scopedCustomers, *scopedPackages) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	runs := &scopedRuns{mockRunRepo: newMockRunRepo()}
	customers := &scopedCustomers{mockCustomerRepo: newMockCustomerRepo()}
	packages := &scopedPackages{mockPackageRepo: newMockPackageRepo()}
	svc := NewMigrationService(Repositories{
		Runs:       runs,
		Customers:  customers,
		Packages:   packages,
		MailPieces: &mockMailRepo{},
		Invoices:   &mockInvoiceRepo{existing: map[string]struct{}{}},
	}, progress.NewMemoryTracker(), eventbus.NewEventPublisher(logger), WithTxFunc(func(ctx context.Context, fn func(context.Context) error) error {
		return fn(context.WithValue(ctx, tenantScopeKey{}, true))
	}))
	return svc, runs, customers, packages
}

func TestExecute_StoreLookupsRunInTenantTx(t *testing.T) {
	svc, runs, customers, packages := newScopedService()
	stored := uuid.New()
	customers.byPMB["12"] = stored
	customers.createErr["12"] = errUniqueViolation
	packages.existing["1z2"] = struct{}{}
	ctx := testCtx()

	resp, err := svc.Run(ctx, Request{
		Mode:   ModeExecute,
		Source: "FIRSTNAME,LASTNAME,EMAIL,BOX_NUM\nJane,Doe,jane@x.com,12",
		Preset: "postalmate",
	})
	require.NoError(t, err)
	res := resp.Execute.Results
	require.Equal(t, 1, res.Existing.Customers)
	require.Zero(t, res.Customers)
	require.Empty(t, res.Errors)

	resp, err = svc.Run(ctx, Request{
		Mode:   ModeExecute,
		Source: "tracking_number,carrier,customer_pmb\n1Z1,ups,12\n1Z2,ups,12",
		Preset: "generic_packages",
	})
	require.NoError(t, err)
	res = resp.Execute.Results
	require.Empty(t, res.Errors)
	require.Equal(t, 1, res.Packages)
	require.Equal(t, 1, res.Existing.Packages)
	require.Equal(t, stored, packages.created[0].CustomerID)

	run, err := svc.GetRun(ctx, resp.Execute.MigrationID)
	require.NoError(t, err)
	require.Equal(t, migrationrun.StatusCompleted, run.Status())

	all, err := svc.ListRuns(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.Zero(t, customers.outside)
	require.Zero(t, packages.outside)
	require.Zero(t, runs.outside)
}

func TestPreparePMTools_LookupRunsInTenantTx(t *testing.T) {
	svc, _, customers, _ := newScopedService()
	customers.byPMB["pmb-0012"] = uuid.New()

	plan, err := svc.PreparePMTools(testCtx(), pmFiles())
	require.NoError(t, err)
	require.Equal(t, 1, plan.Checks.Customers.Duplicates)
	require.Zero(t, customers.outside)
}
