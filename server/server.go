package server

import (
	"context"
	"time"

	"github.com/gear6io/dataagent/pkg/errors"
	"github.com/gear6io/dataagent/server/agent"
	"github.com/gear6io/dataagent/server/chart"
	"github.com/gear6io/dataagent/server/config"
	"github.com/gear6io/dataagent/server/protocols/http"
	"github.com/gear6io/dataagent/server/registry"
	"github.com/rs/zerolog"
)

// Server owns the source registry, the chart pool, the agent tools and the
// HTTP front end
type Server struct {
	config     *config.Config
	logger     zerolog.Logger
	registry   *registry.Registry
	charts     *chart.Pool
	tools      *agent.Toolset
	httpServer *http.Server
	startTime  time.Time
}

// New wires the components together. Sources are not loaded until
// LoadSources or Start.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	if cfg == nil {
		cfg = config.LoadDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reg := registry.New(logger)
	engine := chart.NewEngine(cfg.GetChartOutputDir(), logger)
	pool := chart.NewPool(engine, cfg.Charts.MaxConcurrent, logger)
	tools := agent.New(reg, pool, logger)

	return &Server{
		config:     cfg,
		logger:     logger.With().Str("component", "server").Logger(),
		registry:   reg,
		charts:     pool,
		tools:      tools,
		httpServer: http.NewServer(cfg, reg, tools, logger),
		startTime:  time.Now(),
	}, nil
}

// LoadSources registers every source in the configured sources file and
// returns the registry's confirmations. Bad entries are logged and skipped.
func (s *Server) LoadSources(ctx context.Context) ([]string, error) {
	path := s.config.GetSourcesFile()
	configs, err := config.LoadSourcesFile(path)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("path", path).Int("entries", len(configs)).Msg("Loading data sources")
	msgs := s.registry.RegisterAll(ctx, configs)
	s.logger.Info().Strs("sources", s.registry.List()).Msgf("%d data source(s) loaded", len(s.registry.List()))
	return msgs, nil
}

// Start loads the sources and starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info().Str("version", config.Version).Msg("Starting data agent server...")

	if _, err := s.LoadSources(ctx); err != nil {
		return errors.AsError(err, errors.CommonInternal)
	}
	if err := s.httpServer.Start(ctx); err != nil {
		return err
	}

	s.logger.Info().
		Str("http_address", s.config.GetHTTPAddress()).
		Int("http_port", s.config.GetHTTPPort()).
		Str("chart_output_dir", s.config.GetChartOutputDir()).
		Msg("Data agent ready")
	return nil
}

// Shutdown stops the HTTP server, then closes every source
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("Shutting down server...")

	if err := s.httpServer.Stop(); err != nil {
		s.logger.Error().Err(err).Msg("Error stopping HTTP server")
	}
	if err := s.registry.Close(); err != nil {
		s.logger.Error().Err(err).Msg("Error closing data sources")
		return err
	}

	s.logger.Info().Msg("Graceful shutdown completed")
	return nil
}

// Registry returns the source registry
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Tools returns the agent toolset
func (s *Server) Tools() *agent.Toolset {
	return s.tools
}

// Charts returns the bounded chart renderer
func (s *Server) Charts() chart.Renderer {
	return s.charts
}

// GetUptime returns the server uptime
func (s *Server) GetUptime() time.Duration {
	return time.Since(s.startTime)
}

// GetStatus returns the server status
func (s *Server) GetStatus() map[string]interface{} {
	return map[string]interface{}{
		"uptime":     s.GetUptime().String(),
		"start_time": s.startTime,
		"version":    config.Version,
		"sources":    s.registry.List(),
		"http_port":  s.config.GetHTTPPort(),
	}
}
