package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/shipos/shipos/modules/migration"
	"github.com/shipos/shipos/modules/migration/handlers"
	"github.com/shipos/shipos/modules/migration/infrastructure/persistence"
	"github.com/shipos/shipos/modules/migration/infrastructure/progress"
	"github.com/shipos/shipos/modules/migration/services"
	"github.com/shipos/shipos/pkg/composables"
	"github.com/shipos/shipos/pkg/configuration"
	"github.com/shipos/shipos/pkg/eventbus"
)

// session is the per-command database binding. A dry-run of a single preset
// never opens one.
type session struct {
	ctx     context.Context
	svc     *services.MigrationService
	pool    *pgxpool.Pool
	cleanup func()
}

func (s *session) Close() {
	if s.cleanup != nil {
		s.cleanup()
	}
}

func parseTenant(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, withCode(exitUsage, fmt.Errorf("invalid --tenant %q", raw))
	}
	return id, nil
}

func connectDB(ctx context.Context) (*pgxpool.Pool, error) {
	conf := configuration.Use()
	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(connectCtx, conf.Database.Opts)
	if err != nil {
		return nil, withCode(exitDB, fmt.Errorf("connect db: %w", err))
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, withCode(exitDB, fmt.Errorf("ping db: %w", err))
	}
	return pool, nil
}

func newService(logger logrus.FieldLogger, opts *migration.ModuleOptions) *services.MigrationService {
	batch := opts.LookupBatchSize
	if batch <= 0 {
		batch = persistence.DefaultLookupBatch
	}
	tracker := opts.Tracker
	if tracker == nil {
		tracker = progress.NewMemoryTracker()
	}
	bus := eventbus.NewEventPublisher(logger)
	handlers.RegisterRunEventHandlers(bus, logger)

	svcOpts := []services.Option{}
	if opts.StaleAfter > 0 {
		svcOpts = append(svcOpts, services.WithStaleAfter(opts.StaleAfter))
	}
	return services.NewMigrationService(services.Repositories{
		Runs:       persistence.NewMigrationRunRepository(),
		Customers:  persistence.NewCustomerRepository(batch),
		Packages:   persistence.NewPackageRepository(batch),
		MailPieces: persistence.NewMailPieceRepository(),
		Invoices:   persistence.NewInvoiceRepository(batch),
	}, tracker, bus, svcOpts...)
}

// openSession connects to the configured database and scopes ctx to tenant.
func openSession(ctx context.Context, tenant uuid.UUID) (*session, error) {
	conf := configuration.Use()
	pool, err := connectDB(ctx)
	if err != nil {
		return nil, err
	}
	logger := conf.Logger()
	ctx = composables.WithPool(ctx, pool)
	ctx = composables.WithTenantID(ctx, tenant)
	ctx = composables.WithLogger(ctx, logger.WithField("tenant-id", tenant.String()))
	return &session{
		ctx:     ctx,
		svc:     newService(logger, migration.OptionsFromConfig(conf)),
		pool:    pool,
		cleanup: pool.Close,
	}, nil
}

// offlineSession serves commands that never touch the database.
func offlineSession(ctx context.Context, tenant uuid.UUID) *session {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	ctx = composables.WithTenantID(ctx, tenant)
	ctx = composables.WithLogger(ctx, logrus.NewEntry(logger))
	return &session{
		ctx: ctx,
		svc: newService(logger, &migration.ModuleOptions{}),
	}
}
