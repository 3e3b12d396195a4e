package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/matthewbaird/backoffice/internal/adminapi"
	"github.com/matthewbaird/backoffice/internal/config"
	"github.com/matthewbaird/backoffice/internal/crud"
	"github.com/matthewbaird/backoffice/internal/crud/memory"
	"github.com/matthewbaird/backoffice/internal/crud/restclient"
	"github.com/matthewbaird/backoffice/internal/crud/sqlstore"
	"github.com/matthewbaird/backoffice/internal/entities"
	"github.com/matthewbaird/backoffice/internal/eventbus"
	"github.com/matthewbaird/backoffice/internal/logging"
	"github.com/matthewbaird/backoffice/internal/querycache"
	"github.com/matthewbaird/backoffice/internal/registry"
	"github.com/matthewbaird/backoffice/internal/relation"
	"github.com/matthewbaird/backoffice/internal/render"
	"github.com/matthewbaird/backoffice/internal/schema"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging())
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackend()

	defs, err := entities.Load(cfg.SchemaDir)
	if err != nil {
		return fmt.Errorf("loading entities: %w", err)
	}

	bus := eventbus.New(0, logger)
	reg := registry.New()
	n, err := entities.Register(reg, defs, entities.Options{
		Backend: backend,
		Cache:   querycache.New(),
		Bus:     bus,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("registering entities: %w", err)
	}
	logger.Info("entities registered", zap.Int("count", n), zap.String("backend", cfg.Backend))

	var fetcher relation.Fetcher = &relation.ServiceFetcher{Lookup: reg.Service}
	if cfg.APIBaseURL != "" {
		fetcher = &relation.HTTPFetcher{BaseURL: cfg.APIBaseURL, Token: cfg.APIToken}
	}
	resolver := relation.NewResolver(fetcher, relation.WithTTL(cfg.RelationCacheTTL), relation.WithLogger(logger))
	hub := adminapi.NewHub(logger)

	bus.Subscribe("log", eventbus.NewLogConsumer(logger))
	bus.Subscribe("relations", resolver)
	bus.Subscribe("live", hub)
	bus.Start(ctx)
	defer bus.Stop()

	if cfg.Seed && cfg.Backend != config.BackendREST {
		if err := entities.Seed(ctx, reg); err != nil {
			return fmt.Errorf("seeding: %w", err)
		}
	}

	srv := adminapi.New(adminapi.Config{
		Registry:  reg,
		Resolver:  resolver,
		Formatter: render.NewFormatter(cfg.Locale, cfg.DateLayout),
		Hub:       hub,
		Logger:    logger,
	})
	return adminapi.Run(ctx, cfg.Addr(), srv.Routes(), logger)
}

// openBackend returns the constructor of each entity's CRUD service and a
// function releasing the shared resources.
func openBackend(ctx context.Context, cfg config.Config) (entities.Backend, func(), error) {
	parentKey := func(def *schema.Definition) string {
		if def.Parent == nil {
			return ""
		}
		return def.Parent.Key
	}

	switch cfg.Backend {
	case config.BackendMemory:
		return func(def *schema.Definition) (crud.Service, error) {
			return memory.New(def.Path, memory.WithParentKey(parentKey(def))), nil
		}, func() {}, nil

	case config.BackendREST:
		var opts []restclient.Option
		if cfg.APIToken != "" {
			opts = append(opts, restclient.WithToken(cfg.APIToken))
		}
		return func(def *schema.Definition) (crud.Service, error) {
			return restclient.New(cfg.APIBaseURL, def.Path, opts...), nil
		}, func() {}, nil

	default:
		store, err := sqlstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return func(def *schema.Definition) (crud.Service, error) {
			return store.Collection(def.Path, parentKey(def)), nil
		}, func() { store.Close() }, nil
	}
}
