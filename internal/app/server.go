package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/verdicta-io/verdicta/internal/api/handlers"
	"github.com/verdicta-io/verdicta/internal/config"
	"github.com/verdicta-io/verdicta/internal/core/queue"
	"github.com/verdicta-io/verdicta/internal/core/search"
	"github.com/verdicta-io/verdicta/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, docs *services.DocumentService, engine *search.Engine, q queue.Queue) *Server {
	docHandler := handlers.NewDocumentHandler(docs)
	searchHandler := handlers.NewSearchHandler(engine)
	queueHandler := handlers.NewQueueHandler(q)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		api.Post("/documents/upload", docHandler.UploadDocument)
		api.Post("/documents/{document_id}/enqueue", docHandler.EnqueueDocument)
		api.Post("/documents/{document_id}/reprocess", docHandler.ReprocessDocument)
		api.Get("/documents/{document_id}/status", docHandler.GetDocumentStatus)
		api.Post("/documents/enqueue-pending", docHandler.EnqueuePending)

		api.Post("/search", searchHandler.Search)

		api.Get("/queue/jobs/{job_id}", queueHandler.GetJob)
		api.Get("/queue/stats", queueHandler.GetStats)
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv}
}

// Start runs the HTTP server.
func (s *Server) Start() {
	log.Printf("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
