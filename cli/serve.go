package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gear6io/dataagent/server"
	"github.com/gear6io/dataagent/server/config"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *options) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the data sources and agent tools over HTTP",
		Long: `Load the sources file and serve the REST API:

  GET    /health
  GET    /data-sources            GET /data-sources/info
  POST   /data-sources            DELETE /data-sources/:name
  GET    /data-sources/:name/schema
  POST   /data-sources/:name/fetch
  POST   /agent/chart
  GET    /agent/tools             POST /agent/tools/:name

Examples:
  dataagent serve
  dataagent serve --port 9000 --sources ./sources.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.HTTPPort = port
			}

			logger, err := config.SetupLogger(cfg)
			if err != nil {
				return err
			}
			srv, err := server.New(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := srv.Start(ctx); err != nil {
				_ = srv.Shutdown()
				return err
			}
			<-ctx.Done()
			logger.Info().Msg("Shutdown signal received")
			return srv.Shutdown()
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", config.HTTP_SERVER_PORT, "HTTP port")
	return cmd
}
