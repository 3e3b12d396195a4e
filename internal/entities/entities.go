// Package entities declares the built-in administrable entities and
// registers them, with their controllers, into a registry.
package entities

import (
	"context"
	_ "embed"
	"fmt"

	"go.uber.org/zap"

	"github.com/matthewbaird/backoffice/internal/controller"
	"github.com/matthewbaird/backoffice/internal/crud"
	"github.com/matthewbaird/backoffice/internal/eventbus"
	"github.com/matthewbaird/backoffice/internal/logging"
	"github.com/matthewbaird/backoffice/internal/querycache"
	"github.com/matthewbaird/backoffice/internal/registry"
	"github.com/matthewbaird/backoffice/internal/schema"
)

//go:embed schema/cinema.cue
var builtin []byte

// Builtin returns the built-in entity definitions.
func Builtin() ([]*schema.Definition, error) {
	root, err := schema.CompileCUE(builtin)
	if err != nil {
		return nil, err
	}
	return schema.Definitions(root)
}

// Load returns the built-in definitions followed by those found in dir.
// An empty dir loads the built-ins only.
func Load(dir string) ([]*schema.Definition, error) {
	defs, err := Builtin()
	if err != nil {
		return nil, fmt.Errorf("built-in entities: %w", err)
	}
	if dir == "" {
		return defs, nil
	}
	root, err := schema.LoadCUEDir(dir)
	if err != nil {
		return nil, err
	}
	extra, err := schema.Definitions(root)
	if err != nil {
		return nil, fmt.Errorf("entities in %s: %w", dir, err)
	}
	return append(defs, extra...), nil
}

// Backend supplies the CRUD service of a definition.
type Backend func(def *schema.Definition) (crud.Service, error)

// Options configures Register.
type Options struct {
	Backend    Backend
	Cache      *querycache.Cache
	Bus        eventbus.Publisher
	Logger     *zap.Logger
	Introspect schema.Options
}

// Register builds a controller per definition and registers it. Entities
// nested under a parent are kept out of the menu. It returns how many
// definitions were added; a path already present is skipped.
func Register(reg *registry.Registry, defs []*schema.Definition, opts Options) (int, error) {
	if opts.Backend == nil {
		return 0, fmt.Errorf("entities: no backend")
	}
	if opts.Cache == nil {
		opts.Cache = querycache.New()
	}
	log := logging.OrNop(opts.Logger)

	added := 0
	for _, def := range defs {
		if _, exists := reg.Lookup(def.Path); exists {
			log.Warn("entity already registered, skipping", zap.String("path", def.Path), zap.String("schema", def.Name))
			continue
		}
		svc, err := opts.Backend(def)
		if err != nil {
			return added, fmt.Errorf("backend for %s: %w", def.Path, err)
		}
		cfg := def.Config(opts.Introspect)
		ctrl := controller.New(cfg, svc, controller.Options{
			Entity: def.Path,
			Cache:  opts.Cache,
			Bus:    opts.Bus,
			Logger: log,
		})
		if reg.Register(registry.RegisteredEntity{
			Path:       def.Path,
			Config:     cfg,
			Icon:       def.Icon,
			MenuOrder:  def.MenuOrder,
			Hidden:     cfg.Parent != nil,
			Controller: ctrl,
		}) {
			added++
			log.Debug("registered entity", zap.String("path", def.Path), zap.Int("fields", len(cfg.Fields)))
		}
	}
	return added, nil
}

// Seed creates demo items through the registered controllers when the
// categories collection is empty.
func Seed(ctx context.Context, reg *registry.Registry) error {
	cats, ok := reg.Lookup("categories")
	if !ok {
		return nil
	}
	existing, err := cats.Controller.List(ctx, crud.Filters{crud.FilterLimit: 1})
	if err != nil {
		return fmt.Errorf("checking categories: %w", err)
	}
	if len(existing.Data) > 0 {
		return nil
	}

	catIDs := map[string]string{}
	for _, name := range []string{"Drame", "Comédie", "Science-fiction"} {
		rec, err := cats.Controller.Create(ctx, crud.Record{"name": name})
		if err != nil {
			return fmt.Errorf("seeding category %s: %w", name, err)
		}
		catIDs[name] = crud.IDOf(rec)
	}

	movies, ok := reg.Lookup("movies")
	if !ok {
		return nil
	}
	dune, err := movies.Controller.Create(ctx, crud.Record{
		"title":       "Dune",
		"status":      "published",
		"categoryId":  catIDs["Science-fiction"],
		"releaseDate": "2021-09-15",
		"duration":    155,
		"price":       9.5,
		"tags":        "épique,désert",
		"featured":    true,
	})
	if err != nil {
		return fmt.Errorf("seeding movies: %w", err)
	}
	if _, err := movies.Controller.Create(ctx, crud.Record{
		"title":      "Le Dîner de cons",
		"status":     "draft",
		"categoryId": catIDs["Comédie"],
		"duration":   80,
	}); err != nil {
		return fmt.Errorf("seeding movies: %w", err)
	}

	sessions, ok := reg.Lookup("sessions")
	if !ok {
		return nil
	}
	scoped := sessions.Controller.WithParent(crud.IDOf(dune))
	for _, start := range []string{"14:00", "20:30"} {
		if _, err := scoped.Create(ctx, crud.Record{
			"date":     "2024-03-01",
			"startAt":  start,
			"room":     "A",
			"capacity": 120,
		}); err != nil {
			return fmt.Errorf("seeding sessions: %w", err)
		}
	}
	return nil
}
