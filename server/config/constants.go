package config

// Version is reported by the health endpoint and the CLI
const Version = "0.1.0"

// Network server constants
const (
	// HTTP Server Port - REST API for sources, charts and agent tools
	HTTP_SERVER_PORT = 2847

	// Default bind address
	DEFAULT_SERVER_ADDRESS = "0.0.0.0"

	// Localhost address for development
	LOCALHOST_ADDRESS = "127.0.0.1"
)

// File locations
const (
	DEFAULT_CONFIG_FILE      = "dataagent.yml"
	DEFAULT_SOURCES_FILE     = "./sources.yaml"
	DEFAULT_ENV_FILE         = ".env"
	DEFAULT_CHART_OUTPUT_DIR = "./output/charts"
)

// Chart rendering
const (
	DEFAULT_CHART_WORKERS = 4
)

// Environment variable names
const (
	ENV_LOG_LEVEL        = "LOG_LEVEL"
	ENV_LOG_FORMAT       = "LOG_FORMAT"
	ENV_SOURCES_CONFIG   = "SOURCES_CONFIG"
	ENV_CHART_OUTPUT_DIR = "CHART_OUTPUT_DIR"
	ENV_HTTP_PORT        = "DATAAGENT_HTTP_PORT"
)

// Port validation constants
const (
	MIN_PORT = 1
	MAX_PORT = 65535
)

// IsValidPort checks if a port number is within valid range
func IsValidPort(port int) bool {
	return port >= MIN_PORT && port <= MAX_PORT
}
