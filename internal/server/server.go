// Package server exposes the lead-intake and trust administration HTTP
// API. Scoring semantics live in internal/trust; handlers only decode,
// delegate, and encode.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/carebridge/leadtrust/internal/config"
	"github.com/carebridge/leadtrust/internal/monitoring"
	"github.com/carebridge/leadtrust/internal/store"
	"github.com/carebridge/leadtrust/internal/trust"
)

// Server wires the trust service and store behind a chi router.
type Server struct {
	svc       *trust.Service
	store     store.Store
	cfg       config.ServerConfig
	limiter   *rate.Limiter
	collector *monitoring.Collector
}

// New creates a Server with a shared token-bucket limiter sized from
// the config.
func New(svc *trust.Service, st store.Store, cfg config.ServerConfig) *Server {
	return &Server{
		svc:       svc,
		store:     st,
		cfg:       cfg,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
		collector: monitoring.NewCollector(st, monitoring.DefaultWindow),
	}
}

// Router builds the HTTP handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Actor"},
		MaxAge:         300,
	}))
	r.Use(s.rateLimit)

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/leads", func(r chi.Router) {
		r.Post("/", s.handleCreateLead)
		r.Get("/", s.handleListLeads)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetLead)
			r.Patch("/status", s.handleChangeStatus)
			r.Get("/history", s.handleListStatusChanges)
			r.Post("/notes", s.handleAddNote)
			r.Get("/notes", s.handleListNotes)
			r.Post("/recalc", s.handleRecalc)
			r.Put("/override", s.handleSetOverride)
			r.Delete("/override", s.handleClearOverride)
			r.Get("/events", s.handleListEvents)
		})
	})

	r.Route("/rules", func(r chi.Router) {
		r.Get("/", s.handleListRules)
		r.Patch("/{code}", s.handleUpdateRule)
	})

	return r
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", s.cfg.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}
