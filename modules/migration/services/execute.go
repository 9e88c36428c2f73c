package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/shipos/shipos/modules/migration/domain/dataset"
	"github.com/shipos/shipos/modules/migration/domain/entities/migrationrun"
	"github.com/shipos/shipos/modules/migration/infrastructure/progress"
	"github.com/shipos/shipos/pkg/composables"
)

const (
	entityCustomer  = "customer"
	entityPackage   = "package"
	entityMailPiece = "mailPiece"
	entityInvoice   = "invoice"
	entityRun       = "run"
)

// execution is the state of one execute-mode run. ids maps legacy customer
// references to target ids and is never shared between runs.
type execution struct {
	svc      *MigrationService
	ds       dataset.Dataset
	tenantID uuid.UUID
	run      migrationrun.Run
	log      *logrus.Entry

	ids     map[string]uuid.UUID
	results Results
	errLog  []migrationrun.EntityError
}

// Execute persists plan in dependency order. Row failures are collected in
// the results; any other failure marks the run failed and comes back as a
// *RunError next to the partial results.
func (s *MigrationService) Execute(ctx context.Context, plan Plan) (*ExecuteResponse, error) {
	if plan.Dataset.Len() == 0 {
		return nil, ErrNoValidRows
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer().Start(ctx, "migration.execute")
	defer span.End()

	started := s.now()
	ds := plan.Dataset
	stats := ds.Stats()
	run := migrationrun.New(tenantID, ds.SourceFile, ds.SourceSystem, migrationrun.Counts{
		Customers:  stats.Customers,
		Packages:   stats.Packages,
		MailPieces: stats.MailPieces,
		Invoices:   stats.Billing,
	}, started)

	log := composables.UseLogger(ctx).WithFields(logrus.Fields{
		"migration-id":  run.ID().String(),
		"tenant-id":     tenantID.String(),
		"source-system": ds.SourceSystem,
	})

	created, err := inTxResult(ctx, s.inTx, func(txCtx context.Context) (migrationrun.Run, error) {
		return s.runs.Create(txCtx, run)
	})
	if err != nil {
		getMetrics().runsTotal.WithLabelValues(string(migrationrun.StatusFailed)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "create run")
		log.WithError(err).Error("failed to create migration run")
		return nil, &RunError{Err: err}
	}
	span.SetAttributes(attribute.String("migration.id", created.ID().String()))

	if err := s.tracker.Start(ctx, created.ID(), map[string]int{
		progress.EntityCustomers:  stats.Customers,
		progress.EntityPackages:   stats.Packages,
		progress.EntityMailPieces: stats.MailPieces,
		progress.EntityInvoices:   stats.Billing,
	}); err != nil {
		log.WithError(err).Warn("failed to start progress tracking")
	}

	ex := &execution{
		svc:      s,
		ds:       ds,
		tenantID: tenantID,
		run:      created,
		log:      log,
		ids:      make(map[string]uuid.UUID),
		results:  Results{Errors: []RowError{}, Notes: []string{}},
	}
	log.Info("migration started")
	runErr := ex.stages(ctx)

	resp, finishErr := ex.finish(ctx, runErr)
	resp.Validation = plan.Validation
	getMetrics().runDuration.Observe(s.now().Sub(started).Seconds())

	if runErr == nil {
		runErr = finishErr
	}
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		return resp, &RunError{MigrationID: created.ID(), Err: runErr}
	}
	return resp, nil
}

func (ex *execution) stages(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"customers", ex.migrateCustomers},
		{"resolve", ex.resolveCustomerRefs},
		{"packages", ex.migratePackages},
		{"mail_pieces", ex.migrateMailPieces},
		{"invoices", ex.migrateInvoices},
	}
	for _, step := range steps {
		stageCtx, span := tracer().Start(ctx, "migration."+step.name)
		err := step.fn(stageCtx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}
	return nil
}

// finish writes the terminal state of the run. It runs on a context detached
// from cancellation so an aborted request still closes the run.
func (ex *execution) finish(ctx context.Context, runErr error) (*ExecuteResponse, error) {
	s := ex.svc
	detached := context.WithoutCancel(ctx)
	migrated := migrationrun.Counts{
		Customers:  ex.results.Customers,
		Packages:   ex.results.Packages,
		MailPieces: ex.results.MailPieces,
		Invoices:   ex.results.Invoices,
	}

	var (
		final migrationrun.Run
		err   error
	)
	if runErr != nil {
		errLog := append(ex.errLog, migrationrun.EntityError{
			Entity:    entityRun,
			Message:   runErr.Error(),
			Timestamp: s.now().UTC(),
		})
		final, err = ex.run.Fail(migrated, errLog, s.now())
	} else {
		final, err = ex.run.Complete(migrated, ex.errLog, s.now())
	}
	if err == nil {
		err = s.inTx(detached, func(txCtx context.Context) error {
			return s.runs.Update(txCtx, final)
		})
	}
	status := final.Status()
	if err != nil {
		ex.log.WithError(err).Error("failed to record migration run outcome")
		status = migrationrun.StatusFailed
	}

	if tErr := s.tracker.Finish(detached, ex.run.ID(), string(status)); tErr != nil {
		ex.log.WithError(tErr).Warn("failed to finish progress tracking")
	}
	getMetrics().runsTotal.WithLabelValues(string(status)).Inc()

	entry := ex.log.WithFields(logrus.Fields{
		"status":      status,
		"customers":   ex.results.Customers,
		"packages":    ex.results.Packages,
		"mail-pieces": ex.results.MailPieces,
		"invoices":    ex.results.Invoices,
		"row-errors":  len(ex.results.Errors),
	})
	if runErr != nil {
		entry.WithError(runErr).Error("migration failed")
	} else {
		entry.Info("migration finished")
	}

	if s.publisher != nil {
		s.publisher.Publish(&RunFinishedEvent{
			TenantID: ex.tenantID,
			RunID:    ex.run.ID(),
			Status:   status,
			Results:  ex.results,
		})
	}

	return &ExecuteResponse{
		Mode:        ModeExecute,
		MigrationID: ex.run.ID(),
		Results:     ex.results,
	}, err
}

func (ex *execution) rowFailed(entity, trackerEntity string, item dataset.Item, msg string) {
	ex.results.Errors = append(ex.results.Errors, RowError{
		Entity:   entity,
		SourceID: item.SourceID,
		Row:      item.Row,
		Message:  msg,
	})
	ex.errLog = append(ex.errLog, migrationrun.EntityError{
		Entity:    entity,
		SourceID:  item.SourceID,
		Row:       item.Row,
		Message:   msg,
		Timestamp: ex.svc.now().UTC(),
	})
	ex.log.WithFields(logrus.Fields{"entity": entity, "source-id": item.SourceID}).Warn(msg)
	ex.advance(trackerEntity, entity, "failed")
}

func (ex *execution) advance(trackerEntity, entity, result string) {
	getMetrics().rowsTotal.WithLabelValues(entity, result).Inc()
	ctx := composables.WithTenantID(context.Background(), ex.tenantID)
	if err := ex.svc.tracker.Advance(ctx, ex.run.ID(), trackerEntity, result != "failed"); err != nil {
		ex.log.WithError(err).Debug("failed to advance progress")
	}
}

func (ex *execution) migrateCustomers(ctx context.Context) error {
	if len(ex.ds.Customers) == 0 {
		return nil
	}
	pmbs := make([]string, len(ex.ds.Customers))
	for i, item := range ex.ds.Customers {
		pmbs[i] = ex.customerPMB(item)
	}
	existing, err := inTxResult(ctx, ex.svc.inTx, func(txCtx context.Context) (map[string]uuid.UUID, error) {
		return ex.svc.customers.FindIDsByPMB(txCtx, pmbs)
	})
	if err != nil {
		return err
	}

	for i, item := range ex.ds.Customers {
		if err := ctx.Err(); err != nil {
			return err
		}
		pmb := pmbs[i]
		key := strings.ToLower(pmb)
		if id, ok := existing[key]; ok {
			ex.ids[item.SourceID] = id
			ex.results.Existing.Customers++
			ex.results.Notes = append(ex.results.Notes, fmt.Sprintf("Customer %s already exists — skipped", pmb))
			ex.advance(progress.EntityCustomers, entityCustomer, "existing")
			continue
		}

		c := newCustomer(item, pmb, ex.tenantID, ex.run.ID())
		if err := ex.svc.inTx(ctx, func(txCtx context.Context) error {
			return ex.svc.customers.Create(txCtx, c)
		}); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			ex.rowFailed(entityCustomer, progress.EntityCustomers, item, err.Error())
			continue
		}
		ex.ids[item.SourceID] = c.ID
		existing[key] = c.ID
		ex.results.Customers++
		ex.advance(progress.EntityCustomers, entityCustomer, "created")
	}
	return nil
}

func (ex *execution) customerPMB(item dataset.Item) string {
	if pmb := item.Fields.String("pmbNumber"); pmb != "" {
		return pmb
	}
	return generatedNumber(ex.run.ShortID(), item.Row)
}

// resolveCustomerRefs looks up, in one batch, the customer references of
// dependants that this run did not create or match.
func (ex *execution) resolveCustomerRefs(ctx context.Context) error {
	var refs []string
	for _, group := range [][]dataset.Item{ex.ds.Packages, ex.ds.MailPieces, ex.ds.Invoices} {
		for _, item := range group {
			if item.CustomerRef == "" {
				continue
			}
			if _, ok := ex.ids[item.CustomerRef]; !ok {
				refs = append(refs, item.CustomerRef)
			}
		}
	}
	if len(refs) == 0 {
		return nil
	}
	found, err := inTxResult(ctx, ex.svc.inTx, func(txCtx context.Context) (map[string]uuid.UUID, error) {
		return ex.svc.customers.ResolveRefs(txCtx, refs)
	})
	if err != nil {
		return err
	}
	for ref, id := range found {
		ex.ids[ref] = id
	}
	return nil
}

func (ex *execution) customerID(item dataset.Item) (uuid.UUID, bool) {
	if item.CustomerRef == "" {
		return uuid.Nil, false
	}
	id, ok := ex.ids[item.CustomerRef]
	return id, ok
}

func customerNotFound(item dataset.Item) string {
	ref := item.CustomerRef
	if ref == "" {
		ref = "(none)"
	}
	return fmt.Sprintf("Customer %s not found — skipped", ref)
}

func (ex *execution) migratePackages(ctx context.Context) error {
	if len(ex.ds.Packages) == 0 {
		return nil
	}
	numbers := make([]string, 0, len(ex.ds.Packages))
	for _, item := range ex.ds.Packages {
		numbers = append(numbers, item.Fields.String("trackingNumber"))
	}
	existing, err := inTxResult(ctx, ex.svc.inTx, func(txCtx context.Context) (map[string]struct{}, error) {
		return ex.svc.packages.ExistingTrackingNumbers(txCtx, numbers)
	})
	if err != nil {
		return err
	}

	for _, item := range ex.ds.Packages {
		if err := ctx.Err(); err != nil {
			return err
		}
		customerID, ok := ex.customerID(item)
		if !ok {
			ex.rowFailed(entityPackage, progress.EntityPackages, item, customerNotFound(item))
			continue
		}
		key := strings.ToLower(item.Fields.String("trackingNumber"))
		if _, dup := existing[key]; dup && key != "" {
			ex.results.Existing.Packages++
			ex.advance(progress.EntityPackages, entityPackage, "existing")
			continue
		}

		p := newPackage(item, customerID, ex.tenantID, ex.run.ID())
		if err := ex.svc.inTx(ctx, func(txCtx context.Context) error {
			return ex.svc.packages.Create(txCtx, p)
		}); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			ex.rowFailed(entityPackage, progress.EntityPackages, item, err.Error())
			continue
		}
		if key != "" {
			existing[key] = struct{}{}
		}
		ex.results.Packages++
		ex.advance(progress.EntityPackages, entityPackage, "created")
	}
	return nil
}

func (ex *execution) migrateMailPieces(ctx context.Context) error {
	for _, item := range ex.ds.MailPieces {
		if err := ctx.Err(); err != nil {
			return err
		}
		customerID, ok := ex.customerID(item)
		if !ok {
			ex.rowFailed(entityMailPiece, progress.EntityMailPieces, item, customerNotFound(item))
			continue
		}
		m := newMailPiece(item, customerID, ex.tenantID, ex.run.ID())
		if err := ex.svc.inTx(ctx, func(txCtx context.Context) error {
			return ex.svc.mailPieces.Create(txCtx, m)
		}); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			ex.rowFailed(entityMailPiece, progress.EntityMailPieces, item, err.Error())
			continue
		}
		ex.results.MailPieces++
		ex.advance(progress.EntityMailPieces, entityMailPiece, "created")
	}
	return nil
}

func (ex *execution) migrateInvoices(ctx context.Context) error {
	if len(ex.ds.Invoices) == 0 {
		return nil
	}
	numbers := make([]string, len(ex.ds.Invoices))
	for i, item := range ex.ds.Invoices {
		numbers[i] = item.Fields.String("invoiceNumber")
		if numbers[i] == "" {
			numbers[i] = generatedNumber(ex.run.ShortID(), item.Row)
		}
	}
	existing, err := inTxResult(ctx, ex.svc.inTx, func(txCtx context.Context) (map[string]struct{}, error) {
		return ex.svc.invoices.ExistingNumbers(txCtx, numbers)
	})
	if err != nil {
		return err
	}

	for i, item := range ex.ds.Invoices {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := strings.ToLower(numbers[i])
		if _, dup := existing[key]; dup {
			ex.results.Existing.Invoices++
			ex.advance(progress.EntityInvoices, entityInvoice, "existing")
			continue
		}

		// An invoice keeps its audit value without a customer link.
		var customerID *uuid.UUID
		if id, ok := ex.customerID(item); ok {
			customerID = &id
		}
		inv, err := newInvoice(item, numbers[i], customerID, ex.tenantID, ex.run.ID())
		if err != nil {
			ex.rowFailed(entityInvoice, progress.EntityInvoices, item, err.Error())
			continue
		}
		if err := ex.svc.inTx(ctx, func(txCtx context.Context) error {
			return ex.svc.invoices.Create(txCtx, inv)
		}); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			ex.rowFailed(entityInvoice, progress.EntityInvoices, item, err.Error())
			continue
		}
		existing[key] = struct{}{}
		ex.results.Invoices++
		ex.advance(progress.EntityInvoices, entityInvoice, "created")
	}
	return nil
}

// inTxResult runs fn through inTx so reads see the same tenant scope as writes.
func inTxResult[T any](ctx context.Context, inTx TxFunc, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := inTx(ctx, func(txCtx context.Context) error {
		var innerErr error
		out, innerErr = fn(txCtx)
		return innerErr
	})
	return out, err
}
