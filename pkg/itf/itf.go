// Package itf sets up throwaway postgres databases for integration tests.
package itf

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"

	"github.com/shipos/shipos/pkg/application"
	"github.com/shipos/shipos/pkg/composables"
	"github.com/shipos/shipos/pkg/configuration"
	"github.com/shipos/shipos/pkg/eventbus"
)

// PostgreSQL truncates identifiers longer than this.
const maxDBNameLength = 63

var unsafeDBChars = regexp.MustCompile(`[^a-z0-9_]+`)

type Environment struct {
	Ctx      context.Context
	Pool     *pgxpool.Pool
	App      application.Application
	TenantID uuid.UUID
	Logger   *logrus.Logger
}

// Service is a shorthand for App.Service.
func (e *Environment) Service(service interface{}) interface{} {
	return e.App.Service(service)
}

// WithTenant returns the environment context scoped to another tenant.
func (e *Environment) WithTenant(tenantID uuid.UUID) context.Context {
	return composables.WithTenantID(e.Ctx, tenantID)
}

// RequirePostgres skips tb when the configured database is unreachable.
// On CI an unreachable database fails the test instead.
func RequirePostgres(tb testing.TB) {
	tb.Helper()
	if CanDialPostgres() {
		return
	}
	if strings.TrimSpace(os.Getenv("CI")) != "" || strings.EqualFold(strings.TrimSpace(os.Getenv("GITHUB_ACTIONS")), "true") {
		tb.Fatalf("postgres is not reachable (DB_HOST/DB_PORT)")
	}
	tb.Skip("postgres is not reachable; skipping integration test")
}

func CanDialPostgres() bool {
	host := envOr("DB_HOST", "localhost")
	port := envOr("DB_PORT", "5432")
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, port), 250*time.Millisecond)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// DbOpts is the connection string of database name on the configured server.
func DbOpts(name string) string {
	c := configuration.Use()
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		c.Database.Host, c.Database.Port, c.Database.User, sanitizeDBName(name), c.Database.Password,
	)
}

func sanitizeDBName(name string) string {
	s := strings.Trim(unsafeDBChars.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if s == "" {
		s = "test_db"
	}
	if len(s) <= maxDBNameLength {
		return s
	}
	sum := fmt.Sprintf("%x", sha256.Sum256([]byte(name)))[:8]
	return s[:maxDBNameLength-len(sum)-1] + "_" + sum
}

// CreateDB drops and recreates database name.
func CreateDB(ctx context.Context, name string) error {
	conn, err := pgx.Connect(ctx, DbOpts("postgres"))
	if err != nil {
		return fmt.Errorf("connect admin database: %w", err)
	}
	defer conn.Close(ctx)

	ident := pgx.Identifier{sanitizeDBName(name)}.Sanitize()
	if _, err := conn.Exec(ctx, "DROP DATABASE IF EXISTS "+ident+" WITH (FORCE)"); err != nil {
		return fmt.Errorf("drop database: %w", err)
	}
	if _, err := conn.Exec(ctx, "CREATE DATABASE "+ident); err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	return nil
}

func NewPool(ctx context.Context, dbOpts string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dbOpts)
	if err != nil {
		return nil, err
	}
	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnIdleTime = 30 * time.Second
	return pgxpool.NewWithConfig(ctx, config)
}

// New creates a database named after tb, registers modules, applies their
// schemas and returns a context carrying the pool, a fresh tenant and a
// quiet logger.
func New(tb testing.TB, modules ...application.Module) *Environment {
	tb.Helper()
	RequirePostgres(tb)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := CreateDB(ctx, tb.Name()); err != nil {
		tb.Fatal(err)
	}
	pool, err := NewPool(ctx, DbOpts(tb.Name()))
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(pool.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
	})
	for _, m := range modules {
		if err := m.Register(app); err != nil {
			tb.Fatalf("register module %s: %v", m.Name(), err)
		}
	}
	if len(modules) > 0 {
		db := stdlib.OpenDBFromPool(pool)
		defer db.Close()
		if _, err := app.Migrations().Run(ctx, db); err != nil {
			tb.Fatal(err)
		}
	}

	tenantID := uuid.New()
	envCtx := composables.WithPool(context.Background(), pool)
	envCtx = composables.WithTenantID(envCtx, tenantID)
	envCtx = composables.WithLogger(envCtx, logrus.NewEntry(logger))
	return &Environment{
		Ctx:      envCtx,
		Pool:     pool,
		App:      app,
		TenantID: tenantID,
		Logger:   logger,
	}
}
