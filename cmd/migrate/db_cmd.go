package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/shipos/shipos/modules/migration/infrastructure/persistence"
	"github.com/shipos/shipos/pkg/application"
	"github.com/shipos/shipos/pkg/configuration"
)

type schemaStatus struct {
	Current int64 `json:"current"`
	Latest  int64 `json:"latest"`
	Pending bool  `json:"pending"`
}

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the migration schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openSQL()
			if err != nil {
				return err
			}
			defer db.Close()
			applied, err := schemaUp(cmd.Context(), db)
			if err != nil {
				return withCode(exitDBWrite, err)
			}
			versions := make([]int64, 0, len(applied))
			for _, r := range applied {
				versions = append(versions, r.Source.Version)
			}
			return writeJSONLine(cmd.OutOrStdout(), map[string]any{"applied": versions})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the applied and latest schema versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openSQL()
			if err != nil {
				return err
			}
			defer db.Close()
			st, err := readSchemaStatus(cmd.Context(), db)
			if err != nil {
				return withCode(exitDB, err)
			}
			return writeJSONLine(cmd.OutOrStdout(), st)
		},
	})
	return cmd
}

func openSQL() (*sql.DB, error) {
	db, err := sql.Open("postgres", configuration.Use().Database.Opts)
	if err != nil {
		return nil, withCode(exitDB, fmt.Errorf("open db: %w", err))
	}
	return db, nil
}

func schemaManager() application.MigrationManager {
	m := application.NewMigrationManager()
	m.RegisterSchema(persistence.SchemaFS())
	return m
}

func schemaUp(ctx context.Context, db *sql.DB) ([]*goose.MigrationResult, error) {
	return schemaManager().Run(ctx, db)
}

func readSchemaStatus(ctx context.Context, db *sql.DB) (schemaStatus, error) {
	latest, err := latestSchemaVersion(persistence.SchemaFS())
	if err != nil {
		return schemaStatus{}, err
	}
	current, err := schemaManager().Version(ctx, db)
	if err != nil {
		return schemaStatus{}, err
	}
	return schemaStatus{Current: current, Latest: latest, Pending: current < latest}, nil
}

func latestSchemaVersion(fsys fs.FS) (int64, error) {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return 0, err
	}
	var latest int64
	for _, name := range names {
		v, err := goose.NumericComponent(name)
		if err != nil {
			return 0, fmt.Errorf("schema file %s: %w", name, err)
		}
		latest = max(latest, v)
	}
	return latest, nil
}
