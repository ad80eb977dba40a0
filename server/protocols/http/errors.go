package http

import (
	stderrors "errors"

	"github.com/gear6io/dataagent/pkg/errors"
	"github.com/gear6io/dataagent/server/agent"
	"github.com/gear6io/dataagent/server/types"
	"github.com/gofiber/fiber/v2"
)

// HTTP-specific error codes
var (
	ErrInvalidBody = errors.MustNewCode("http.invalid_body")
	ErrListen      = errors.MustNewCode("http.listen_failed")
)

// errorBody is the JSON shape of every failed response
type errorBody struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

var statusByCode = []struct {
	code   errors.Code
	status int
}{
	{types.ErrSourceNotFound, fiber.StatusNotFound},
	{agent.ErrToolNotFound, fiber.StatusNotFound},
	{agent.ErrNoData, fiber.StatusNotFound},
	{types.ErrSourceValidation, fiber.StatusBadRequest},
	{types.ErrChartInvalid, fiber.StatusBadRequest},
	{types.ErrTransformInvalid, fiber.StatusBadRequest},
	{agent.ErrInvalidArguments, fiber.StatusBadRequest},
	{ErrInvalidBody, fiber.StatusBadRequest},
	{errors.CommonTimeout, fiber.StatusGatewayTimeout},
	{types.ErrFetchFailed, fiber.StatusInternalServerError},
}

// StatusFor maps an error onto an HTTP status; uncoded errors are 500
func StatusFor(err error) int {
	var fe *fiber.Error
	if stderrors.As(err, &fe) {
		return fe.Code
	}
	for _, m := range statusByCode {
		if errors.Is(err, m.code) {
			return m.status
		}
	}
	return fiber.StatusInternalServerError
}

// handleError renders err as {"error": {...}}
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status := StatusFor(err)

	var coded *errors.Error
	var fe *fiber.Error
	switch {
	case stderrors.As(err, &fe):
		code := errors.CommonInvalidInput
		if fe.Code == fiber.StatusNotFound {
			code = errors.CommonNotFound
		}
		coded = errors.New(code, fe.Message, nil)
	case stderrors.As(err, &coded):
	default:
		coded = errors.New(errors.CommonInternal, err.Error(), nil)
	}

	return c.Status(status).JSON(fiber.Map{"error": errorBody{
		Code:      coded.Code.String(),
		Message:   coded.Error(),
		Context:   coded.Context,
		RequestID: requestID(c),
	}})
}
