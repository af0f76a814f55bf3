package docstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/goliatone/academia"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/extra/bunotel"
	"github.com/uptrace/bun/migrate"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationsFS returns the SQL migrations for the document tables.
func MigrationsFS() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// DBOption configures Open.
type DBOption func(*dbConfig)

type dbConfig struct {
	debug  bool
	traces bool
	name   string
}

// WithQueryDebug prints every query.
func WithQueryDebug(enabled bool) DBOption {
	return func(c *dbConfig) {
		c.debug = enabled
	}
}

// WithQueryTracing records an otel span per query.
func WithQueryTracing(enabled bool) DBOption {
	return func(c *dbConfig) {
		c.traces = enabled
	}
}

// Open connects to the SQLite database at dsn.
func Open(dsn string, opts ...DBOption) (*bun.DB, error) {
	cfg := dbConfig{name: "academia"}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// a single connection keeps in-memory databases alive and serializes writes
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if cfg.debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	if cfg.traces {
		db.AddQueryHook(bunotel.NewQueryHook(bunotel.WithDBName(cfg.name)))
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return db, nil
}

// Migrator applies the document migrations plus any extra sources, such as
// the identity accounts table.
type Migrator struct {
	db     *bun.DB
	logger academia.Logger
	fsys   []fs.FS
}

// NewMigrator creates a migrator for db. Extra sources are discovered after
// the document migrations.
func NewMigrator(db *bun.DB, logger academia.Logger, extra ...fs.FS) *Migrator {
	_, logger = academia.ResolveLogger("academia.migrate", nil, logger)
	return &Migrator{
		db:     db,
		logger: logger,
		fsys:   append([]fs.FS{MigrationsFS()}, extra...),
	}
}

func (m *Migrator) migrator() (*migrate.Migrator, error) {
	migrations := migrate.NewMigrations()
	for _, fsys := range m.fsys {
		if err := migrations.Discover(fsys); err != nil {
			return nil, fmt.Errorf("discover migrations: %w", err)
		}
	}
	return migrate.NewMigrator(m.db, migrations), nil
}

// Up applies every pending migration.
func (m *Migrator) Up(ctx context.Context) error {
	migrator, err := m.migrator()
	if err != nil {
		return err
	}
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if err := migrator.Lock(ctx); err != nil {
		return fmt.Errorf("lock migrations: %w", err)
	}
	defer migrator.Unlock(ctx) //nolint:errcheck

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if group.IsZero() {
		m.logger.Info("no new migrations to run")
		return nil
	}
	m.logger.Info("migrated", "group", group.String())
	return nil
}

// Down rolls back the last migration group.
func (m *Migrator) Down(ctx context.Context) error {
	migrator, err := m.migrator()
	if err != nil {
		return err
	}
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if err := migrator.Lock(ctx); err != nil {
		return fmt.Errorf("lock migrations: %w", err)
	}
	defer migrator.Unlock(ctx) //nolint:errcheck

	group, err := migrator.Rollback(ctx)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	if group.IsZero() {
		m.logger.Info("no groups to roll back")
		return nil
	}
	m.logger.Info("rolled back", "group", group.String())
	return nil
}

// Status returns applied and pending migration names.
func (m *Migrator) Status(ctx context.Context) (applied, pending []string, err error) {
	migrator, err := m.migrator()
	if err != nil {
		return nil, nil, err
	}
	if err := migrator.Init(ctx); err != nil {
		return nil, nil, fmt.Errorf("init migrations: %w", err)
	}
	ms, err := migrator.MigrationsWithStatus(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("migration status: %w", err)
	}
	for _, mg := range ms.Applied() {
		applied = append(applied, mg.Name)
	}
	for _, mg := range ms.Unapplied() {
		pending = append(pending, mg.Name)
	}
	return applied, pending, nil
}
