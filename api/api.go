package api

import (
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Server is the API server for browsing membench run results
type Server struct {
	config Config
	store  *Store
	logger *zap.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The store is injected to allow sharing with other components (e.g.,
// the MCP tools). A non-nil mcpHandler is mounted at /mcp.
func NewServer(config Config, store *Store, mcpHandler http.Handler, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		store:  store,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)

	v1 := app.Group("/api/v1")
	v1.Get("/runs", s.handleListRuns)
	v1.Get("/runs/:id", s.handleGetRun)

	if mcpHandler != nil {
		app.All("/mcp", adaptor.HTTPHandler(mcpHandler))
	}

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
