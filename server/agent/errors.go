package agent

import "github.com/gear6io/dataagent/pkg/errors"

// Agent-specific error codes
var (
	ErrToolNotFound     = errors.MustNewCode("agent.tool_not_found")
	ErrInvalidArguments = errors.MustNewCode("agent.invalid_arguments")
	ErrNoData           = errors.MustNewCode("agent.no_data")
)
