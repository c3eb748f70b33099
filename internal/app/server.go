package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/docforge/docforge/internal/api/handlers"
	appMiddleware "github.com/docforge/docforge/internal/api/middlewares"
	"github.com/docforge/docforge/internal/config"
	"github.com/docforge/docforge/internal/core"
	"github.com/docforge/docforge/internal/core/ingestion"
	"github.com/docforge/docforge/internal/logger"
	"github.com/docforge/docforge/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer builds and wires all routes.
func NewServer(
	cfg *config.Config,
	log *logger.Logger,
	db core.DbClient,
	users *services.UserService,
	documents *services.DocumentService,
	jobs *services.JobService,
	placement *services.PlacementService,
	pipeline *ingestion.Pipeline,
	runner ingestion.Runner,
	embedder *ingestion.Embedder,
) *Server {
	authHandler := handlers.NewAuthHandler(users, cfg.JWTSecret, log)
	docHandler := handlers.NewDocumentHandler(db, users, documents, jobs, placement, runner, embedder, log)
	jobHandler := handlers.NewJobHandler(jobs, pipeline, log)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(5 * time.Minute))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/signup", authHandler.Signup)
		api.Post("/login", authHandler.Login)

		// Relay intake, only where a local pipeline drains the queue. A node
		// that forwards uploads elsewhere must not accept jobs itself.
		if cfg.UploadServerURL == "" {
			api.With(appMiddleware.InternalToken(cfg.JWTSecret)).
				Post("/internal/jobs", jobHandler.SubmitRelayed)
		}

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWT(cfg.JWTSecret))

			protected.Post("/documents/upload", docHandler.Upload)
			protected.Get("/documents", docHandler.List)
			protected.Post("/documents/folder", docHandler.CreateFolder)
			protected.Patch("/documents/{id}/rename", docHandler.Rename)
			protected.Patch("/documents/{id}/move", docHandler.Move)
			protected.Patch("/documents/{id}/trash", docHandler.SetTrashed)
			protected.Delete("/documents/{id}", docHandler.Delete)

			protected.Get("/jobs/{id}", jobHandler.Status)
			protected.Post("/jobs/{id}/retry", jobHandler.Retry)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv, log: log}
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.log.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}
