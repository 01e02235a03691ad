// Package server exposes the processing pipeline over HTTP: single-file
// upload, semantic search, and corpus statistics.
package server

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/PabloZV/ml-document-system/internal/common"
	"github.com/PabloZV/ml-document-system/internal/pipeline"
	"github.com/PabloZV/ml-document-system/internal/repository"
)

type Server struct {
	pipeline *pipeline.Pipeline
	catalog  *repository.Catalog // optional, stats fallback
	logger   *slog.Logger
}

func New(p *pipeline.Pipeline, catalog *repository.Catalog, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{pipeline: p, catalog: catalog, logger: logger}
}

// App builds the fiber application with routes and middleware attached.
func (s *Server) App(cfg common.ServerConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:             cfg.BodyLimit,
		DisableStartupMessage: true,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "*",
	}))

	s.Register(app)
	return app
}

// Register attaches the API routes to any fiber router.
func (s *Server) Register(app fiber.Router) {
	api := app.Group("/api")
	api.Post("/process/", s.handleProcess)
	api.Get("/search/", s.handleSearch)
	api.Get("/stats/", s.handleStats)
}

func errorJSON(c *fiber.Ctx, status int, kind, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   kind,
		"message": message,
	})
}
