package http

import (
	"bytes"
	"encoding/json"

	"github.com/gear6io/dataagent/pkg/errors"
	"github.com/gear6io/dataagent/server/config"
	"github.com/gear6io/dataagent/server/types"
	"github.com/gofiber/fiber/v2"
)

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":       "healthy",
		"version":      config.Version,
		"data_sources": s.registry.List(),
	})
}

func (s *Server) handleListSources(c *fiber.Ctx) error {
	return c.JSON(s.registry.List())
}

func (s *Server) handleDescribeSources(c *fiber.Ctx) error {
	return c.JSON(s.registry.Describe())
}

func (s *Server) handleRegisterSource(c *fiber.Ctx) error {
	var cfg types.SourceConfig
	if err := decodeBody(c.Body(), &cfg); err != nil {
		return err
	}
	kind, err := types.ParseSourceType(string(cfg.Type))
	if err != nil {
		return err
	}
	cfg.Type = kind
	if cfg.Config == nil {
		cfg.Config = map[string]any{}
	}

	msg, err := s.registry.Register(c.UserContext(), cfg)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": msg})
}

func (s *Server) handleRemoveSource(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": s.registry.Unregister(c.Params("name"))})
}

func (s *Server) handleSchema(c *fiber.Ctx) error {
	schema, err := s.registry.GetSchema(c.UserContext(), c.Params("name"))
	if err != nil {
		return err
	}
	return c.JSON(schema)
}

func (s *Server) handleFetch(c *fiber.Ctx) error {
	q, err := types.DecodeQuery(c.Body())
	if err != nil {
		return err
	}
	result, err := s.registry.FetchData(c.UserContext(), c.Params("name"), q)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (s *Server) handleChart(c *fiber.Ctx) error {
	var req types.ChartRequest
	if err := decodeBody(c.Body(), &req); err != nil {
		return err
	}
	result, err := s.tools.Chart(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (s *Server) handleListTools(c *fiber.Ctx) error {
	return c.JSON(s.tools.Tools())
}

func (s *Server) handleCallTool(c *fiber.Ctx) error {
	// fasthttp reuses the body buffer once the handler returns
	args := json.RawMessage(bytes.Clone(c.Body()))
	out, err := s.tools.Call(c.UserContext(), c.Params("name"), args)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// decodeBody decodes a JSON request body keeping numbers exact
func decodeBody(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(ErrInvalidBody, err, "Invalid JSON body")
	}
	return nil
}
