// Package sources builds source drivers from declarative configs.
package sources

import (
	"github.com/gear6io/dataagent/server/sources/file"
	"github.com/gear6io/dataagent/server/sources/httpapi"
	"github.com/gear6io/dataagent/server/sources/sqlsource"
	"github.com/gear6io/dataagent/server/types"
	"github.com/rs/zerolog"
)

// New creates the driver for cfg. It does not call Validate. The driver
// logs through a child of logger tagged with the source name.
func New(cfg types.SourceConfig, logger zerolog.Logger) (types.Source, error) {
	config := cfg.Config
	if config == nil {
		config = map[string]any{}
	}
	log := logger.With().
		Str("component", "source").
		Str("source", cfg.Name).
		Str("type", cfg.Type.String()).
		Logger()

	var (
		src types.Source
		err error
	)
	switch cfg.Type {
	case types.SourceCSV, types.SourceJSON:
		src, err = asSource(file.New(cfg.Name, cfg.Type, config, file.WithLogger(log)))
	case types.SourceRESTAPI:
		src, err = asSource(httpapi.New(cfg.Name, config, httpapi.WithLogger(log)))
	case types.SourceSQL:
		src, err = asSource(sqlsource.New(cfg.Name, config, sqlsource.WithLogger(log)))
	default:
		return nil, types.NewValidation(cfg.Name, "Unsupported source type: %s", cfg.Type).
			AddContext("source_type", string(cfg.Type))
	}
	return src, err
}

// asSource keeps a failed constructor's nil pointer from becoming a non-nil
// interface value
func asSource(s types.Source, err error) (types.Source, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
