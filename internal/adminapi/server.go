// Package adminapi exposes the back-office engine over HTTP: generated
// entity configuration, rendered rows, item CRUD, relation options,
// navigation and a live invalidation stream.
package adminapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/matthewbaird/backoffice/internal/breadcrumb"
	"github.com/matthewbaird/backoffice/internal/logging"
	"github.com/matthewbaird/backoffice/internal/registry"
	"github.com/matthewbaird/backoffice/internal/relation"
	"github.com/matthewbaird/backoffice/internal/render"
)

// Config holds the server dependencies. Registry is required.
type Config struct {
	Registry  *registry.Registry
	Resolver  *relation.Resolver
	Formatter *render.Formatter
	Evaluator *render.Evaluator
	Hub       *Hub
	Labels    breadcrumb.Labels
	Logger    *zap.Logger
}

// Server serves the admin API.
type Server struct {
	reg       *registry.Registry
	resolver  *relation.Resolver
	formatter *render.Formatter
	eval      *render.Evaluator
	hub       *Hub
	labels    breadcrumb.Labels
	log       *zap.Logger
}

// New creates a server. A nil Resolver reads relations from the registry.
func New(cfg Config) *Server {
	s := &Server{
		reg:       cfg.Registry,
		resolver:  cfg.Resolver,
		formatter: cfg.Formatter,
		eval:      cfg.Evaluator,
		hub:       cfg.Hub,
		labels:    cfg.Labels,
		log:       logging.OrNop(cfg.Logger).Named("adminapi"),
	}
	if s.reg == nil {
		s.reg = registry.New()
	}
	if s.resolver == nil {
		s.resolver = relation.NewResolver(&relation.ServiceFetcher{Lookup: s.reg.Service}, relation.WithLogger(s.log))
	}
	if s.formatter == nil {
		s.formatter = render.NewFormatter("en", "")
	}
	if s.eval == nil {
		s.eval = render.NewEvaluator()
	}
	return s
}

// Routes returns the HTTP handler with every route and middleware.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, Logging(s.log), Recovery(s.log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Get("/menu", s.menu)
		r.Get("/breadcrumbs", s.breadcrumbs)
		if s.hub != nil {
			r.Get("/live", s.hub.ServeHTTP)
		}
		r.Route("/{entity}", func(r chi.Router) {
			r.Get("/config", s.config)
			r.Get("/pending", s.pending)
			r.Get("/options/{field}", s.options)
			s.mountItems(r)
			r.Route("/parents/{parentID}", s.mountItems)
		})
	})

	// Plain collection contract, the one relation pickers and the REST
	// adapter speak.
	r.Route("/api/{entity}", func(r chi.Router) {
		r.Get("/", s.listItems)
		r.Post("/", s.createRaw)
		r.Patch("/{id}", s.updateRaw)
		r.Delete("/{id}", s.deleteItem)
	})
	return r
}

func (s *Server) mountItems(r chi.Router) {
	r.Get("/rows", s.rows)
	r.Get("/items", s.listItems)
	r.Post("/items", s.createItem)
	r.Patch("/items/{id}", s.updateItem)
	r.Delete("/items/{id}", s.deleteItem)
	r.Post("/bulk/{action}", s.bulk)
}

// Run serves h on addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, addr string, h http.Handler, logger *zap.Logger) error {
	logger = logging.OrNop(logger)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("server stopped")
	return nil
}
