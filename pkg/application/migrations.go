package application

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

var ErrNoSchemas = errors.New("application: no migration schemas registered")

func NewMigrationManager() MigrationManager {
	return &migrationManager{}
}

type migrationManager struct {
	schemas []fs.FS
}

func (m *migrationManager) RegisterSchema(fsys ...fs.FS) {
	m.schemas = append(m.schemas, fsys...)
}

// Run applies every pending migration of each registered schema in
// registration order.
func (m *migrationManager) Run(ctx context.Context, db *sql.DB) ([]*goose.MigrationResult, error) {
	if len(m.schemas) == 0 {
		return nil, ErrNoSchemas
	}
	var results []*goose.MigrationResult
	for i, fsys := range m.schemas {
		provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
		if err != nil {
			return results, fmt.Errorf("schema %d: %w", i, err)
		}
		applied, err := provider.Up(ctx)
		results = append(results, applied...)
		if err != nil {
			return results, fmt.Errorf("schema %d: %w", i, err)
		}
	}
	return results, nil
}

// Version reports the highest applied goose version, 0 on a fresh database.
func (m *migrationManager) Version(ctx context.Context, db *sql.DB) (int64, error) {
	var version int64
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version_id), 0) FROM goose_db_version WHERE is_applied`,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}
