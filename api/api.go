package api

import (
	"fmt"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"

	"github.com/papercomputeco/ispoc/pkg/storage"
	"github.com/papercomputeco/ispoc/proxy/worker"
)

const defaultCORSOrigins = "*"

// Server is the API server for recording and exporting feedback and query logs.
type Server struct {
	config     Config
	driver     storage.Driver
	workerPool *worker.Pool
	logger     *zap.Logger
	app        *fiber.App
}

// NewServer creates a new API server.
// The driver is injected to allow sharing with other components
// (e.g., the proxy when both run in one process).
func NewServer(config Config, driver storage.Driver, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.CORSOrigins == "" {
		config.CORSOrigins = defaultCORSOrigins
	}
	if config.AdminToken == "" {
		logger.Warn("no admin token configured, admin routes will reject every request")
	}

	// Turn events are published off the request path. Records themselves are
	// written synchronously so clients learn about storage failures.
	wp, err := worker.NewPool(&worker.Config{
		Driver:     driver,
		Publisher:  config.Publisher,
		NumWorkers: 1,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: config.CORSOrigins,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, X-Requested-With, Content-Type, Accept, Authorization",
	}))

	s := &Server{
		config:     config,
		driver:     driver,
		workerPool: wp,
		logger:     logger,
		app:        app,
	}

	app.Get("/ping", s.handlePing)

	api := app.Group("/api")
	api.Get("/test", s.handleTest)
	api.Post("/feedback", s.handleFeedback)
	api.All("/feedback", handleMethodNotAllowed)
	api.Post("/log", s.handleQueryLog)
	api.All("/log", handleMethodNotAllowed)

	admin := api.Group("/admin")
	admin.Get("/feedback", s.requireAdmin, s.handleAdminFeedback)
	admin.All("/feedback", handleMethodNotAllowed)
	admin.Get("/logs", s.requireAdmin, s.handleAdminLogs)
	admin.All("/logs", handleMethodNotAllowed)
	admin.Post("/clear-logs", s.requireAdmin, s.handleClearQueryLogs)
	admin.All("/clear-logs", handleMethodNotAllowed)

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the API server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting API server",
		zap.String("listen", listener.Addr().String()),
	)
	return s.app.Listener(listener)
}

// Shutdown gracefully shuts down the API server and drains pending events.
func (s *Server) Shutdown() error {
	err := s.app.Shutdown()
	s.workerPool.Close()
	return err
}
