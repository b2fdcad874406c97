package main

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-command/dispatcher"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	ledgerbun "github.com/goliatone/go-tablebook/adapters/ledger/bun"
	storefs "github.com/goliatone/go-tablebook/adapters/store/fs"
	"github.com/goliatone/go-tablebook/command"
	"github.com/goliatone/go-tablebook/config"
	"github.com/goliatone/go-tablebook/consolidate"
	"github.com/goliatone/go-tablebook/export"
	"github.com/goliatone/go-tablebook/pipeline"
	"github.com/goliatone/go-tablebook/query"
	exportsql "github.com/goliatone/go-tablebook/sources/sql"
)

// app holds the wired collaborators for one CLI invocation.
type app struct {
	cfg    config.Config
	logger export.Logger

	source       *lazySource
	ledger       *ledgerbun.Ledger
	ledgerDB     *bun.DB
	exporter     *export.Exporter
	consolidator *consolidate.Consolidator
	pipeline     *pipeline.Pipeline

	registry      *gcmd.Registry
	subscriptions []dispatcher.Subscription
}

func newApp(ctx context.Context, cfg config.Config, logger export.Logger) (*app, error) {
	format, err := cfg.FlatFileOptions()
	if err != nil {
		return nil, err
	}
	exportPolicy, err := cfg.ExportPolicy()
	if err != nil {
		return nil, err
	}
	opts, err := cfg.ConsolidateOptions()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		source:   &lazySource{cfg: cfg.Source, registry: exportsql.DefaultRegistry()},
		registry: gcmd.NewRegistry(),
	}
	store := storefs.NewStore(cfg.Dir)

	a.exporter = export.NewExporter(a.source, store)
	a.exporter.Filter = cfg.TableFilter()
	a.exporter.Format = format
	a.exporter.Policy = exportPolicy
	a.exporter.Logger = logger

	a.consolidator = consolidate.NewConsolidator(store, opts)
	a.consolidator.Logger = logger

	a.pipeline = &pipeline.Pipeline{
		Dir:          cfg.Dir,
		Store:        store,
		Connector:    a.source,
		Tables:       cfg.Source.Tables,
		TableFilter:  a.exporter.Filter,
		Format:       format,
		ExportPolicy: exportPolicy,
		SkipExport:   cfg.SkipExport,
		Consolidate:  opts,
		Logger:       logger,
	}

	if cfg.Ledger.Enabled {
		if err := a.openLedger(ctx); err != nil {
			return nil, err
		}
		a.pipeline.Recorder = a.ledger
	}

	if err := a.register(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openLedger(ctx context.Context) error {
	sqldb, err := sql.Open(sqliteshim.ShimName, a.cfg.Ledger.Path)
	if err != nil {
		return export.NewError(export.KindConnection, "open ledger failed", err)
	}
	a.ledgerDB = bun.NewDB(sqldb, sqlitedialect.New())
	a.ledger = ledgerbun.NewLedger(a.ledgerDB)
	if err := a.ledger.EnsureSchema(ctx); err != nil {
		_ = a.ledgerDB.Close()
		return export.NewError(export.KindConnection, "prepare ledger failed", err)
	}
	return nil
}

func (a *app) register() error {
	subs, err := command.Register(a.registry, command.Handlers{
		Exporter:     a.exporter,
		Consolidator: a.consolidator,
		Pipeline:     a.pipeline,
	})
	a.subscriptions = append(a.subscriptions, subs...)
	if err != nil {
		return err
	}
	if a.ledger == nil {
		return nil
	}
	subs, err = query.Register(a.registry, a.ledger)
	a.subscriptions = append(a.subscriptions, subs...)
	return err
}

// Close unsubscribes the handlers and releases the databases.
func (a *app) Close() error {
	for _, sub := range a.subscriptions {
		sub.Unsubscribe()
	}
	a.subscriptions = nil

	var firstErr error
	if err := a.source.Close(); err != nil {
		firstErr = err
	}
	if a.ledgerDB != nil {
		if err := a.ledgerDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// lazySource opens the configured database on first Connect, so commands
// that never export do not need a reachable database.
type lazySource struct {
	cfg      config.SourceConfig
	registry *exportsql.Registry

	mu     sync.Mutex
	db     *sql.DB
	source *exportsql.Source
}

var _ export.Connector = (*lazySource)(nil)

func (s *lazySource) Connect(ctx context.Context) (export.Session, error) {
	source, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	return source.Connect(ctx)
}

func (s *lazySource) open(ctx context.Context) (*exportsql.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source != nil {
		return s.source, nil
	}

	if err := (config.Config{Source: s.cfg}).ValidateSource(); err != nil {
		return nil, err
	}
	dialect, ok := s.registry.Resolve(s.cfg.Dialect)
	if !ok {
		return nil, export.NewError(export.KindValidation,
			fmt.Sprintf("unknown dialect %q, known: %v", s.cfg.Dialect, s.registry.Names()), nil)
	}
	driver := dialect.Driver
	if s.cfg.Driver != "" {
		driver = s.cfg.Driver
	}

	db, err := exportsql.Open(ctx, driver, s.cfg.DSN)
	if err != nil {
		return nil, err
	}
	s.db = db
	s.source = exportsql.NewSource(db, dialect)
	return s.source, nil
}

func (s *lazySource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.source = nil
	return err
}
