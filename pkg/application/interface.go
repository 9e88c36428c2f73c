package application

import (
	"context"
	"database/sql"
	"io/fs"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pressly/goose/v3"

	"github.com/shipos/shipos/pkg/eventbus"
)

type Controller interface {
	Register(r *mux.Router)
	Key() string
}

type Module interface {
	Name() string
	Register(app Application) error
}

// MigrationManager applies the embedded goose schemas registered by modules.
type MigrationManager interface {
	RegisterSchema(fsys ...fs.FS)
	Run(ctx context.Context, db *sql.DB) ([]*goose.MigrationResult, error)
	Version(ctx context.Context, db *sql.DB) (int64, error)
}

type Application interface {
	DB() *pgxpool.Pool
	EventPublisher() eventbus.EventBus
	Controllers() []Controller
	Middleware() []mux.MiddlewareFunc
	Migrations() MigrationManager
	RegisterControllers(controllers ...Controller)
	RegisterMiddleware(middleware ...mux.MiddlewareFunc)
	RegisterServices(services ...interface{})
	Service(service interface{}) interface{}
}
