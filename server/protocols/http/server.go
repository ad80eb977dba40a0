package http

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gear6io/dataagent/pkg/errors"
	"github.com/gear6io/dataagent/server/agent"
	"github.com/gear6io/dataagent/server/config"
	"github.com/gear6io/dataagent/server/registry"
	"github.com/gear6io/dataagent/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
)

const (
	shutdownTimeout = 30 * time.Second
	requestIDKey    = "requestid"
)

// Server is the REST front end over the source registry and the agent tools
type Server struct {
	registry *registry.Registry
	tools    *agent.Toolset
	app      *fiber.App
	address  string
	port     int
	logger   zerolog.Logger
	wg       sync.WaitGroup
}

// NewServer creates the HTTP server and its routes. Nothing listens until
// Start.
func NewServer(cfg *config.Config, reg *registry.Registry, tools *agent.Toolset, logger zerolog.Logger) *Server {
	s := &Server{
		registry: reg,
		tools:    tools,
		address:  cfg.GetHTTPAddress(),
		port:     cfg.GetHTTPPort(),
		logger:   logger.With().Str("component", "http-server").Logger(),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "dataagent",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
		ReadTimeout:           time.Minute,
		WriteTimeout:          time.Minute,
	})
	s.app.Use(requestid.New(requestid.Config{
		Generator:  utils.GenerateULIDString,
		ContextKey: requestIDKey,
	}))
	s.app.Use(s.accessLog)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/health", s.handleHealth)

	sources := s.app.Group("/data-sources")
	sources.Get("/", s.handleListSources)
	sources.Get("/info", s.handleDescribeSources)
	sources.Post("/", s.handleRegisterSource)
	sources.Delete("/:name", s.handleRemoveSource)
	sources.Get("/:name/schema", s.handleSchema)
	sources.Post("/:name/fetch", s.handleFetch)

	ag := s.app.Group("/agent")
	ag.Post("/chart", s.handleChart)
	ag.Get("/tools", s.handleListTools)
	ag.Post("/tools/:name", s.handleCallTool)
}

// App exposes the fiber application, mainly for tests
func (s *Server) App() *fiber.App {
	return s.app
}

// Start binds the listener and serves in the background
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.address, s.port)
	s.logger.Info().Str("address", addr).Msg("Starting HTTP server")

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return errors.New(ErrListen, "failed to listen", err).AddContext("address", addr)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.app.Listener(ln); err != nil {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	s.logger.Info().Msg("HTTP server started successfully")
	return nil
}

// Stop drains in-flight requests and stops the server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping HTTP server")
	if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		s.logger.Error().Err(err).Msg("Error during HTTP server shutdown")
	}
	s.wg.Wait()
	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

// accessLog logs one line per request. Errors are rendered here so the
// logged status is the one sent.
func (s *Server) accessLog(c *fiber.Ctx) error {
	start := time.Now()
	chainErr := c.Next()
	if chainErr != nil {
		if err := c.App().ErrorHandler(c, chainErr); err != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	status := c.Response().StatusCode()
	event := s.logger.Info()
	switch {
	case status >= fiber.StatusInternalServerError:
		event = s.logger.Error().Err(chainErr)
	case status >= fiber.StatusBadRequest:
		event = s.logger.Warn().Err(chainErr)
	}
	event.
		Str("request_id", requestID(c)).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", status).
		Dur("duration", time.Since(start)).
		Msg("Request completed")
	return nil
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals(requestIDKey).(string)
	return id
}
