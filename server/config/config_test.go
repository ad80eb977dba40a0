package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/gear6io/dataagent/pkg/errors"
	"github.com/gear6io/dataagent/server/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := LoadDefaultConfig()

	assert.Equal(t, HTTP_SERVER_PORT, cfg.GetHTTPPort())
	assert.Equal(t, DEFAULT_SERVER_ADDRESS, cfg.GetHTTPAddress())
	assert.Equal(t, DEFAULT_SOURCES_FILE, cfg.GetSourcesFile())
	assert.Equal(t, DEFAULT_CHART_OUTPUT_DIR, cfg.GetChartOutputDir())
	assert.Equal(t, "info", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidation(t *testing.T) {
	cfg := LoadDefaultConfig()
	cfg.Server.HTTPPort = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPort))

	cfg = LoadDefaultConfig()
	cfg.Log.Format = "xml"
	err = cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLogFormatInvalid))

	cfg = LoadDefaultConfig()
	cfg.Charts.MaxConcurrent = -1
	assert.Error(t, cfg.Validate())
}

func clearEnv(t *testing.T) {
	for _, k := range []string{ENV_LOG_LEVEL, ENV_LOG_FORMAT, ENV_SOURCES_CONFIG, ENV_CHART_OUTPUT_DIR, ENV_HTTP_PORT} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "dataagent.yml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9001\nlog:\n  level: debug\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.GetHTTPPort())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, DEFAULT_SOURCES_FILE, cfg.GetSourcesFile())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigFileReadFailed))
}

func TestSaveAndLoadConfig(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "out.yml")
	cfg := LoadDefaultConfig()
	cfg.Charts.OutputDir = "/tmp/charts"
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/charts", loaded.GetChartOutputDir())
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		ENV_LOG_LEVEL:        "DEBUG",
		ENV_LOG_FORMAT:       "json",
		ENV_SOURCES_CONFIG:   "/etc/dataagent/sources.yaml",
		ENV_CHART_OUTPUT_DIR: "/var/charts",
		ENV_HTTP_PORT:        "8088",
	}
	cfg := LoadDefaultConfig()
	cfg.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "/etc/dataagent/sources.yaml", cfg.GetSourcesFile())
	assert.Equal(t, "/var/charts", cfg.GetChartOutputDir())
	assert.Equal(t, 8088, cfg.GetHTTPPort())
}

func TestApplyEnvIgnoresBadPort(t *testing.T) {
	cfg := LoadDefaultConfig()
	cfg.ApplyEnv(func(k string) string {
		if k == ENV_HTTP_PORT {
			return "not-a-port"
		}
		return ""
	})
	assert.Equal(t, HTTP_SERVER_PORT, cfg.GetHTTPPort())
}

func TestLoadEnvFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DATAAGENT_TEST_ONLY_KEY=from-dotenv\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("DATAAGENT_TEST_ONLY_KEY") })

	require.NoError(t, LoadEnvFiles(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "from-dotenv", os.Getenv("DATAAGENT_TEST_ONLY_KEY"))
}

func TestParseSourcesKeepsDocumentOrder(t *testing.T) {
	doc := `
sources:
  zeta:
    type: csv
    config:
      path: ./data/z.csv
    description: last letter
  alpha:
    type: sql
    config:
      connection_string: sqlite:///tmp/a.db
      table: metrics
  broken: just-a-string
`
	configs, err := ParseSources([]byte(doc))
	require.NoError(t, err)
	require.Len(t, configs, 3)

	assert.Equal(t, "zeta", configs[0].Name)
	assert.Equal(t, types.SourceCSV, configs[0].Type)
	assert.Equal(t, "./data/z.csv", configs[0].Config["path"])
	assert.Equal(t, "last letter", configs[0].Description)

	assert.Equal(t, "alpha", configs[1].Name)
	assert.Equal(t, types.SourceSQL, configs[1].Type)
	assert.Equal(t, "metrics", configs[1].Config["table"])

	assert.Equal(t, "broken", configs[2].Name)
	assert.Empty(t, configs[2].Type)
	assert.NotNil(t, configs[2].Config)
}

func TestParseSourcesEmptyAndMalformed(t *testing.T) {
	configs, err := ParseSources([]byte(""))
	require.NoError(t, err)
	assert.Empty(t, configs)

	configs, err = ParseSources([]byte("other: 1\n"))
	require.NoError(t, err)
	assert.Empty(t, configs)

	_, err = ParseSources([]byte("sources: [a, b]\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSourcesFileMalformed))

	_, err = ParseSources([]byte("sources: {a: [\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSourcesFileParseFailed))
}

func TestLoadSourcesFileMissing(t *testing.T) {
	configs, err := LoadSourcesFile(filepath.Join(t.TempDir(), "sources.yaml"))
	require.NoError(t, err)
	assert.Empty(t, configs)
}

func TestSetupLoggerJSON(t *testing.T) {
	cfg := LoadDefaultConfig()
	cfg.Log.Format = "json"
	cfg.Log.Level = "warn"

	var buf bytes.Buffer
	logger, err := setupLogger(cfg, &buf)
	require.NoError(t, err)

	logger.Info().Msg("hidden")
	logger.Warn().Str("source", "sales").Msg("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"source":"sales"`)
	assert.Contains(t, out, `"component":"dataagent"`)
}

func TestSetupLoggerWritesFile(t *testing.T) {
	cfg := LoadDefaultConfig()
	cfg.Log.Console = false
	cfg.Log.FilePath = filepath.Join(t.TempDir(), "logs", "dataagent.log")

	logger, err := setupLogger(cfg, &bytes.Buffer{})
	require.NoError(t, err)
	logger.Info().Msg("to file")

	data, err := os.ReadFile(cfg.Log.FilePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestIsBackupFile(t *testing.T) {
	assert.True(t, isBackupFile("app.log.2024-01-01-00-00-00", "app.log"))
	assert.False(t, isBackupFile("app.log", "app.log"))
	assert.False(t, isBackupFile("app.log.", "app.log"))
	assert.False(t, isBackupFile("other.log.1", "app.log"))
}
