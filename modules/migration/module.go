package migration

import (
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/shipos/shipos/modules/migration/handlers"
	"github.com/shipos/shipos/modules/migration/infrastructure/persistence"
	"github.com/shipos/shipos/modules/migration/infrastructure/progress"
	"github.com/shipos/shipos/modules/migration/presentation/controllers"
	"github.com/shipos/shipos/modules/migration/services"
	"github.com/shipos/shipos/pkg/application"
	"github.com/shipos/shipos/pkg/configuration"
)

type ModuleOptions struct {
	LookupBatchSize int
	StaleAfter      time.Duration
	TenantHeader    string
	MaxBodySize     int64
	// Defaults to an in-process tracker.
	Tracker progress.Tracker
	Logger  logrus.FieldLogger
}

// OptionsFromConfig builds module options from the environment, including
// the redis-backed progress tracker when PROGRESS_STORE=redis.
func OptionsFromConfig(conf *configuration.Configuration) *ModuleOptions {
	opts := &ModuleOptions{
		LookupBatchSize: conf.Migration.LookupBatchSize,
		StaleAfter:      conf.Migration.StaleAfter,
		TenantHeader:    conf.TenantHeader,
		MaxBodySize:     conf.MaxUploadSize,
		Logger:          conf.Logger(),
	}
	if conf.Redis.ProgressStore == "redis" {
		client := redis.NewClient(&redis.Options{Addr: conf.Redis.URL})
		opts.Tracker = progress.NewRedisTracker(client, conf.Redis.ProgressTTL)
	}
	return opts
}

func NewModule(opts *ModuleOptions) application.Module {
	if opts == nil {
		opts = &ModuleOptions{}
	}
	return &Module{options: opts}
}

type Module struct {
	options *ModuleOptions
}

func (m *Module) Register(app application.Application) error {
	opts := m.options
	batch := opts.LookupBatchSize
	if batch <= 0 {
		batch = persistence.DefaultLookupBatch
	}
	tracker := opts.Tracker
	if tracker == nil {
		tracker = progress.NewMemoryTracker()
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	app.Migrations().RegisterSchema(persistence.SchemaFS())

	serviceOpts := []services.Option{}
	if opts.StaleAfter > 0 {
		serviceOpts = append(serviceOpts, services.WithStaleAfter(opts.StaleAfter))
	}
	app.RegisterServices(
		services.NewMigrationService(services.Repositories{
			Runs:       persistence.NewMigrationRunRepository(),
			Customers:  persistence.NewCustomerRepository(batch),
			Packages:   persistence.NewPackageRepository(batch),
			MailPieces: persistence.NewMailPieceRepository(),
			Invoices:   persistence.NewInvoiceRepository(batch),
		}, tracker, app.EventPublisher(), serviceOpts...),
	)

	app.RegisterControllers(
		controllers.NewMigrationAPIController(app, controllers.ControllerOptions{
			TenantHeader: opts.TenantHeader,
			MaxBodySize:  opts.MaxBodySize,
		}),
	)

	handlers.RegisterRunEventHandlers(app.EventPublisher(), log)
	return nil
}

func (m *Module) Name() string {
	return "migration"
}
