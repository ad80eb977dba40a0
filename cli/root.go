package cli

import (
	"context"
	"os"

	"github.com/gear6io/dataagent/server"
	"github.com/gear6io/dataagent/server/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// options are the persistent flags shared by every subcommand
type options struct {
	configFile  string
	sourcesFile string
	logLevel    string
	json        bool
	verbose     bool
}

// NewRootCommand builds the dataagent command tree
func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "dataagent",
		Short: "Query, transform and chart tabular data sources",
		Long: `dataagent registers tabular data sources (CSV/JSON files, REST APIs and
SQL tables) from a sources file and lets you inspect, query, aggregate and
chart them, or serve them over HTTP for an agent.

Sources are read from the file named by --sources, the SOURCES_CONFIG
environment variable, or the sources.file setting of the config file.`,
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configFile, "config", "c", config.DEFAULT_CONFIG_FILE, "server configuration file")
	pf.StringVarP(&opts.sourcesFile, "sources", "s", "", "sources file (overrides the configuration)")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.BoolVar(&opts.json, "json", false, "print JSON even when stdout is a terminal")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(
		newServeCmd(opts),
		newSourcesCmd(opts),
		newSchemaCmd(opts),
		newFetchCmd(opts),
		newChartCmd(opts),
		newAggregateCmd(opts),
		newToolsCmd(opts),
		newCallCmd(opts),
	)
	return cmd
}

// Execute runs the root command
func Execute() error {
	return ExecuteWithContext(context.Background())
}

// ExecuteWithContext runs the root command with ctx available to subcommands
func ExecuteWithContext(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// loadConfig reads .env, the config file when present, environment
// overrides and finally command-line flags
func (o *options) loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFiles(); err != nil {
		return nil, err
	}

	cfg := config.LoadDefaultConfig()
	if _, err := os.Stat(o.configFile); err == nil {
		if cfg, err = config.LoadConfig(o.configFile); err != nil {
			return nil, err
		}
	} else {
		cfg.ApplyEnv(os.Getenv)
	}

	if o.sourcesFile != "" {
		cfg.Sources.File = o.sourcesFile
	}
	switch {
	case o.logLevel != "":
		cfg.Log.Level = o.logLevel
	case o.verbose:
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// open builds the components and loads the sources without starting the
// HTTP listener. One-shot commands log warnings only, to stderr, unless a
// level is given.
func (o *options) open(cmd *cobra.Command) (*server.Server, zerolog.Logger, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if o.logLevel == "" && !o.verbose {
		cfg.Log.Level = "warn"
	}

	logger, err := config.SetupLoggerTo(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	srv, err := server.New(cfg, logger)
	if err != nil {
		return nil, logger, err
	}
	if _, err := srv.LoadSources(cmd.Context()); err != nil {
		return nil, logger, err
	}
	return srv, logger, nil
}

func closeSources(srv *server.Server, logger zerolog.Logger) {
	if err := srv.Registry().Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close data sources")
	}
}
