package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goliatone/academia"
	"github.com/goliatone/academia/config"
	"github.com/goliatone/academia/docstore"
	"github.com/goliatone/academia/identity"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// app holds what every command shares: configuration, logging and the
// migrated database.
type app struct {
	cfg    *config.Config
	logs   *academia.SlogProvider
	logger academia.Logger
	db     *bun.DB
	docs   *docstore.Store
}

func newLogProvider(cfg *config.Config, w io.Writer) *academia.SlogProvider {
	if cfg.Log.Format == "json" {
		return academia.NewJSONLogger(w, cfg.SlogLevel())
	}
	return academia.NewTextLogger(w, cfg.SlogLevel())
}

// openApp loads the configuration and opens the database. Migrations are
// applied when migrate is true.
func openApp(ctx context.Context, migrate bool) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return openAppWith(ctx, cfg, os.Stderr, migrate)
}

func openAppWith(ctx context.Context, cfg *config.Config, logOut io.Writer, migrate bool) (*app, error) {
	logs := newLogProvider(cfg, logOut)
	a := &app{
		cfg:    cfg,
		logs:   logs,
		logger: logs.GetLogger("academia"),
	}

	db, err := docstore.Open(cfg.Persistence.DSN,
		docstore.WithQueryDebug(cfg.Persistence.Debug),
		docstore.WithQueryTracing(cfg.Persistence.Trace),
	)
	if err != nil {
		return nil, err
	}
	a.db = db

	if migrate {
		if err := a.migrator().Up(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	rules, err := docstore.NewRules(cfg.RuleOverrides())
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("access rules: %w", err)
	}

	a.docs, err = docstore.New(docstore.NewRepositoryManager(db),
		docstore.WithLogger(logs.GetLogger("academia.docstore")),
		docstore.WithRules(rules),
	)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) migrator() *docstore.Migrator {
	return docstore.NewMigrator(a.db, a.logs.GetLogger("academia.migrate"), identity.MigrationsFS())
}

func (a *app) identity(opts ...identity.Option) (*identity.Service, error) {
	base := []identity.Option{
		identity.WithLogger(a.logs.GetLogger("academia.identity")),
		identity.WithActivitySink(academia.LoggingActivitySink(a.logs.GetLogger("academia.activity"))),
	}
	return identity.NewService(a.db, a.cfg, append(base, opts...)...)
}

func (a *app) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// setupTracing installs a tracer provider that writes spans to w. It
// returns a no-op shutdown when tracing is disabled.
func setupTracing(ctx context.Context, cfg *config.Config, w io.Writer) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Telemetry.Tracing {
		return noop, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return noop, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(attribute.String("service.name", cfg.Telemetry.ServiceName)),
	)
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}
