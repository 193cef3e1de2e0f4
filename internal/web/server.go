// Package web exposes the core boundary operations over HTTP.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/face-finder/internal/config"
	"github.com/kozaktomas/face-finder/internal/fileops"
	"github.com/kozaktomas/face-finder/internal/indexer"
	"github.com/kozaktomas/face-finder/internal/search"
	"github.com/kozaktomas/face-finder/internal/store"
	"github.com/kozaktomas/face-finder/internal/web/handlers"
)

// Server represents the web server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
}

// NewServer creates a new web server wired to the core components.
func NewServer(st store.Store, pipeline *indexer.Pipeline, engine *search.Engine, operator *fileops.Operator, searchCfg config.SearchConfig, port int, host string) *Server {
	r := chi.NewRouter()

	s := &Server{router: r}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(5 * time.Minute))

	s.setupRoutes(st, pipeline, engine, operator, searchCfg)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // Long timeout for large batches
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes(st store.Store, pipeline *indexer.Pipeline, engine *search.Engine, operator *fileops.Operator, searchCfg config.SearchConfig) {
	indexingHandler := handlers.NewIndexingHandler(pipeline)
	searchHandler := handlers.NewSearchHandler(engine, searchCfg)
	filesHandler := handlers.NewFilesHandler(operator)
	statsHandler := handlers.NewStatsHandler(st)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/index", indexingHandler.Start)
		r.Get("/index/{id}", indexingHandler.Progress)
		r.Delete("/index/{id}", indexingHandler.Cancel)

		r.Post("/search", searchHandler.Search)

		r.Post("/files", filesHandler.Apply)

		r.Get("/stats", statsHandler.Stats)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
