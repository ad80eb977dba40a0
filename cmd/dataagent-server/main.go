package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gear6io/dataagent/server"
	"github.com/gear6io/dataagent/server/config"
)

func main() {
	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	// Load server configuration first
	cfg, cfgErr := config.LoadConfig(config.DEFAULT_CONFIG_FILE)
	if cfgErr != nil {
		cfg = config.LoadDefaultConfig()
		cfg.ApplyEnv(os.Getenv)
	}

	// Initialize logger with configuration
	logger, err := config.SetupLogger(cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to setup logger: %v", err))
	}
	if cfgErr != nil {
		logger.Info().Err(cfgErr).Msg("Using default configuration")
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create server")
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info().Msg("Shutting down data agent server...")
		cancel()
	}()

	if err := srv.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("Server failed")
		_ = srv.Shutdown()
		os.Exit(1)
	}

	// Wait for shutdown signal
	<-ctx.Done()

	if err := srv.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
	}

	logger.Info().Msg("Server stopped gracefully")
}
