package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/gear6io/dataagent/pkg/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the server configuration
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Server  ServerConfig  `yaml:"server"`
	Sources SourcesConfig `yaml:"sources"`
	Charts  ChartsConfig  `yaml:"charts"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`      // "json" or "console"
	FilePath   string `yaml:"file_path"`   // Path to log file
	Console    bool   `yaml:"console"`     // Whether to log to stdout
	MaxSize    int    `yaml:"max_size"`    // Max file size in MB
	MaxBackups int    `yaml:"max_backups"` // Max number of backup files
	MaxAge     int    `yaml:"max_age"`     // Max age in days
	Cleanup    bool   `yaml:"cleanup"`     // Truncate log file on startup
}

// ServerConfig represents the HTTP service configuration
type ServerConfig struct {
	Address  string `yaml:"address"`
	HTTPPort int    `yaml:"http_port"`
}

// SourcesConfig points at the declarative sources document
type SourcesConfig struct {
	File string `yaml:"file"`
}

// ChartsConfig represents chart rendering configuration
type ChartsConfig struct {
	OutputDir     string `yaml:"output_dir"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// LoadDefaultConfig returns a default configuration
func LoadDefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			FilePath:   "",
			Console:    true,
			MaxSize:    100, // 100MB
			MaxBackups: 3,
			MaxAge:     7, // 7 days
			Cleanup:    false,
		},
		Server: ServerConfig{
			Address:  DEFAULT_SERVER_ADDRESS,
			HTTPPort: HTTP_SERVER_PORT,
		},
		Sources: SourcesConfig{
			File: DEFAULT_SOURCES_FILE,
		},
		Charts: ChartsConfig{
			OutputDir:     DEFAULT_CHART_OUTPUT_DIR,
			MaxConcurrent: DEFAULT_CHART_WORKERS,
		},
	}
}

// LoadConfig loads configuration from a file. Fields absent from the file keep
// their defaults; environment overrides are applied last.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.New(ErrConfigFileReadFailed, "failed to read config file", err).AddContext("path", filename)
	}

	config := LoadDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.New(ErrConfigFileParseFailed, "failed to parse config file", err).AddContext("path", filename)
	}

	config.ApplyEnv(os.Getenv)

	if err := config.Validate(); err != nil {
		return nil, errors.New(ErrConfigValidationFailed, "configuration validation failed", err)
	}

	return config, nil
}

// SaveConfig saves configuration to a file
func SaveConfig(config *Config, filename string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.New(ErrConfigFileMarshalFailed, "failed to marshal config", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return errors.New(ErrConfigFileWriteFailed, "failed to write config file", err)
	}

	return nil
}

// LoadEnvFiles loads KEY=VALUE pairs from the given dotenv files into the
// process environment without overriding variables that are already set.
// Missing files are ignored.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{DEFAULT_ENV_FILE}
	}

	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return errors.New(ErrEnvFileLoadFailed, "failed to load env file", err).AddContext("path", p)
		}
	}
	return nil
}

// ApplyEnv overrides configuration values from environment variables.
// getenv is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(ENV_LOG_LEVEL); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := getenv(ENV_LOG_FORMAT); v != "" {
		c.Log.Format = strings.ToLower(v)
	}
	if v := getenv(ENV_SOURCES_CONFIG); v != "" {
		c.Sources.File = v
	}
	if v := getenv(ENV_CHART_OUTPUT_DIR); v != "" {
		c.Charts.OutputDir = v
	}
	if v := getenv(ENV_HTTP_PORT); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.HTTPPort = port
		}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return errors.New(ErrLogValidationFailed, "log validation failed", err)
	}

	if err := c.Server.Validate(); err != nil {
		return errors.New(ErrServerValidationFailed, "server validation failed", err)
	}

	if c.Charts.MaxConcurrent < 0 {
		return errors.New(ErrChartWorkersInvalid, "charts.max_concurrent must not be negative", nil).
			AddContext("max_concurrent", strconv.Itoa(c.Charts.MaxConcurrent))
	}

	return nil
}

// Validate validates the logging configuration
func (l *LogConfig) Validate() error {
	switch l.Format {
	case "", "console", "json":
	default:
		return errors.New(ErrLogFormatInvalid, "log format must be 'console' or 'json'", nil).AddContext("format", l.Format)
	}
	return nil
}

// Validate validates the server configuration
func (s *ServerConfig) Validate() error {
	if !IsValidPort(s.HTTPPort) {
		return errors.New(ErrInvalidPort, "http_port out of range", nil).AddContext("port", strconv.Itoa(s.HTTPPort))
	}
	return nil
}

// GetHTTPPort returns the HTTP server port
func (c *Config) GetHTTPPort() int {
	return c.Server.HTTPPort
}

// GetHTTPAddress returns the HTTP server bind address
func (c *Config) GetHTTPAddress() string {
	if c.Server.Address == "" {
		return DEFAULT_SERVER_ADDRESS
	}
	return c.Server.Address
}

// GetSourcesFile returns the path of the declarative sources document
func (c *Config) GetSourcesFile() string {
	return c.Sources.File
}

// GetChartOutputDir returns where rendered charts are written; empty disables writing
func (c *Config) GetChartOutputDir() string {
	return c.Charts.OutputDir
}
