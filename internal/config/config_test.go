package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, ProviderAzure, cfg.Source.Provider)
	assert.Equal(t, "30s", cfg.Source.Timeout)
	assert.Equal(t, 4, cfg.Source.Workers)
	assert.Equal(t, "https://dev.azure.com", cfg.Source.Azure.BaseURL)
	assert.Equal(t, "7.1-preview.1", cfg.Source.Azure.APIVersion)
	assert.Equal(t, "github.com", cfg.Source.GitHub.Host)
	assert.Equal(t, "MiBaseDatos", cfg.Generate.Database)
	assert.Equal(t, ".", cfg.Generate.OutputDir)
	assert.True(t, cfg.Generate.OnlyMarkdown)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "~/.cache/docs2ddl", cfg.Cache.Directory)
	assert.Equal(t, 100, cfg.Cache.MaxSizeMB)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.False(t, cfg.Logging.AddSource)
}

func TestDefaultConfigIgnoresEnvironment(t *testing.T) {
	t.Setenv("DOCS2DDL_DATABASE", "FROM_ENV")

	assert.Equal(t, "MiBaseDatos", DefaultConfig().Generate.Database)
}

func TestLoadConfigFromFile(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.json")

	testConfig := map[string]interface{}{
		"source": map[string]interface{}{
			"provider": "github",
			"github": map[string]interface{}{
				"owner": "octo-org",
			},
		},
		"generate": map[string]interface{}{
			"database":      "VENTAS_DB",
			"only_markdown": false,
		},
		"logging": map[string]interface{}{
			"level":  "debug",
			"format": "json",
			"output": "file",
			"file":   "/custom/log/path.log",
		},
	}

	data, err := json.MarshalIndent(testConfig, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(configPath, data, 0600))

	config := DefaultConfig()
	require.NoError(t, loadConfigFromFile(config, configPath))

	assert.Equal(t, ProviderGitHub, config.Source.Provider)
	assert.Equal(t, "octo-org", config.Source.GitHub.Owner)
	assert.Equal(t, "VENTAS_DB", config.Generate.Database)
	assert.False(t, config.Generate.OnlyMarkdown)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)
	assert.Equal(t, "file", config.Logging.Output)
	assert.Equal(t, "/custom/log/path.log", config.Logging.File)

	// keys absent from the file keep their defaults
	assert.Equal(t, "github.com", config.Source.GitHub.Host)
	assert.Equal(t, 100, config.Cache.MaxSizeMB)
	assert.True(t, config.Cache.Enabled)
}

func TestLoadConfigFromFileIgnoresTokens(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(configPath,
		[]byte(`{"source":{"azure":{"organization":"org","token":"secret"}}}`), 0600))

	config := DefaultConfig()
	require.NoError(t, loadConfigFromFile(config, configPath))

	assert.Equal(t, "org", config.Source.Azure.Organization)
	assert.Empty(t, config.Source.Azure.Token)
}

func TestLoadConfigFromFileInvalidJSON(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(configPath, []byte("invalid json"), 0600))

	config := DefaultConfig()
	err := loadConfigFromFile(config, configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadConfigFromFileMissing(t *testing.T) {
	config := DefaultConfig()
	err := loadConfigFromFile(config, filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestApplyEnvironmentOverrides(t *testing.T) {
	t.Setenv("DOCS2DDL_PROVIDER", "github")
	t.Setenv("DOCS2DDL_AZURE_TOKEN", "pat")
	t.Setenv("DOCS2DDL_CACHE_ENABLED", "false")
	t.Setenv("DOCS2DDL_SOURCE_WORKERS", "8")

	config := DefaultConfig()
	config.Generate.Database = "FROM_FILE"

	require.NoError(t, applyEnvironmentOverrides(config))

	assert.Equal(t, ProviderGitHub, config.Source.Provider)
	assert.Equal(t, "pat", config.Source.Azure.Token)
	assert.False(t, config.Cache.Enabled)
	assert.Equal(t, 8, config.Source.Workers)
	// unset variables do not reset values loaded earlier
	assert.Equal(t, "FROM_FILE", config.Generate.Database)
}

func TestApplyEnvironmentOverridesInvalidValue(t *testing.T) {
	t.Setenv("DOCS2DDL_SOURCE_WORKERS", "many")

	err := applyEnvironmentOverrides(DefaultConfig())
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("DOCS2DDL_AZURE_PROJECT=from-dotenv\nDOCS2DDL_DATABASE=DOTENV_DB\n"), 0600))

	t.Setenv("DOCS2DDL_DATABASE", "REAL_ENV")
	// registers cleanup for a variable godotenv is about to set
	t.Setenv("DOCS2DDL_AZURE_PROJECT", "")
	require.NoError(t, os.Unsetenv("DOCS2DDL_AZURE_PROJECT"))

	require.NoError(t, loadDotEnv(path))

	assert.Equal(t, "from-dotenv", os.Getenv("DOCS2DDL_AZURE_PROJECT"))
	assert.Equal(t, "REAL_ENV", os.Getenv("DOCS2DDL_DATABASE"))
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	assert.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestApplyFlagOverrides(t *testing.T) {
	config := DefaultConfig()

	overrides := map[string]interface{}{
		"provider":     "github",
		"log-level":    "warn",
		"cache-dir":    "/tmp/cache",
		"no-cache":     true,
		"database":     "DW",
		"out":          "/tmp/ddl",
		"history-path": "/tmp/history.db",
		"config":       "/ignored/here.json",
	}

	require.NoError(t, applyFlagOverrides(config, overrides))

	assert.Equal(t, ProviderGitHub, config.Source.Provider)
	assert.Equal(t, "warn", config.Logging.Level)
	assert.Equal(t, "/tmp/cache", config.Cache.Directory)
	assert.False(t, config.Cache.Enabled)
	assert.Equal(t, "DW", config.Generate.Database)
	assert.Equal(t, "/tmp/ddl", config.Generate.OutputDir)
	assert.Equal(t, "/tmp/history.db", config.History.Path)
}

func TestApplyFlagOverridesVerbose(t *testing.T) {
	config := DefaultConfig()
	require.NoError(t, applyFlagOverrides(config, map[string]interface{}{"verbose": true}))
	assert.Equal(t, "debug", config.Logging.Level)

	config = DefaultConfig()
	require.NoError(t, applyFlagOverrides(config, map[string]interface{}{"verbose": false, "database": ""}))
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "MiBaseDatos", config.Generate.Database)
}

func TestApplyFlagOverridesUnknownKey(t *testing.T) {
	err := applyFlagOverrides(DefaultConfig(), map[string]interface{}{"bogus": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown override: bogus")
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError string
	}{
		{
			name:   "defaults are valid",
			modify: func(*Config) {},
		},
		{
			name:        "invalid log level",
			modify:      func(c *Config) { c.Logging.Level = "loud" },
			expectError: "must be debug, info, warn, or error",
		},
		{
			name:        "invalid log format",
			modify:      func(c *Config) { c.Logging.Format = "xml" },
			expectError: "must be text or json",
		},
		{
			name:        "invalid log output",
			modify:      func(c *Config) { c.Logging.Output = "syslog" },
			expectError: "must be stdout, stderr, or file",
		},
		{
			name: "file output requires a path",
			modify: func(c *Config) {
				c.Logging.Output = "file"
				c.Logging.File = ""
			},
			expectError: "file: cannot be blank",
		},
		{
			name:        "unknown provider",
			modify:      func(c *Config) { c.Source.Provider = "gitlab" },
			expectError: "must be azure or github",
		},
		{
			name:        "bad timeout",
			modify:      func(c *Config) { c.Source.Timeout = "soon" },
			expectError: "must be a duration",
		},
		{
			name:        "zero workers",
			modify:      func(c *Config) { c.Source.Workers = 0 },
			expectError: "workers: must be at least 1",
		},
		{
			name:        "negative workers",
			modify:      func(c *Config) { c.Source.Workers = -2 },
			expectError: "workers",
		},
		{
			name:        "zero cache size",
			modify:      func(c *Config) { c.Cache.MaxSizeMB = 0 },
			expectError: "max_size_mb: must be at least 1",
		},
		{
			name:        "bad listing ttl",
			modify:      func(c *Config) { c.Cache.ListingTTL = "forever" },
			expectError: "listing_ttl",
		},
		{
			name:   "disabled cache needs no directory",
			modify: func(c *Config) { c.Cache.Enabled = false; c.Cache.Directory = "" },
		},
		{
			name:        "empty database",
			modify:      func(c *Config) { c.Generate.Database = "" },
			expectError: "database: cannot be blank",
		},
		{
			name:        "enabled history needs a path",
			modify:      func(c *Config) { c.History.Path = "" },
			expectError: "history",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)

			err := validateConfig(config)
			if tt.expectError == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestSourceConfigValidate(t *testing.T) {
	azure := DefaultConfig().Source
	err := azure.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "organization: cannot be blank")
	assert.Contains(t, err.Error(), "project: cannot be blank")
	assert.Contains(t, err.Error(), "token: cannot be blank")

	azure.Azure.Organization = "contoso"
	azure.Azure.Project = "datos"
	azure.Azure.Token = "pat"
	assert.NoError(t, azure.Validate())

	azure.Azure.BaseURL = "dev.azure.com"
	assert.Error(t, azure.Validate())

	github := DefaultConfig().Source
	github.Provider = ProviderGitHub
	assert.NoError(t, github.Validate())

	github.Provider = "svn"
	assert.Error(t, github.Validate())
}

func TestDurations(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 30*time.Second, cfg.Source.TimeoutDuration())
	assert.Equal(t, time.Hour, cfg.Cache.ListingTTLDuration())
	assert.Equal(t, time.Hour, cfg.Cache.CleanupFrequency())

	cfg.Cache.ListingTTL = "garbage"
	assert.Equal(t, time.Hour, cfg.Cache.ListingTTLDuration())

	cfg.Cache.ListingTTL = "15m"
	assert.Equal(t, 15*time.Minute, cfg.Cache.ListingTTLDuration())
}

func TestLoadConfigWithOverrides(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(configPath,
		[]byte(`{"generate":{"database":"FILE_DB","output_dir":"/from/file"},"logging":{"level":"warn"}}`), 0600))

	t.Chdir(dir)
	t.Setenv("DOCS2DDL_CONFIG", configPath)
	t.Setenv("DOCS2DDL_OUTPUT_DIR", "/from/env")

	cfg, err := LoadConfigWithOverrides(map[string]interface{}{"log-level": "error"})
	require.NoError(t, err)

	assert.Equal(t, "FILE_DB", cfg.Generate.Database)
	assert.Equal(t, "/from/env", cfg.Generate.OutputDir)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestLoadConfigWithOverridesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "custom.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"source":{"provider":"GitHub"}}`), 0600))

	t.Chdir(dir)
	t.Setenv("DOCS2DDL_CONFIG", filepath.Join(dir, "other.json"))

	cfg, err := LoadConfigWithOverrides(map[string]interface{}{"config": configPath})
	require.NoError(t, err)
	assert.Equal(t, ProviderGitHub, cfg.Source.Provider)
}

func TestLoadConfigWithOverridesInvalid(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("DOCS2DDL_CONFIG", filepath.Join(dir, "absent.json"))
	t.Setenv("DOCS2DDL_LOG_FORMAT", "yaml")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestSaveConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.json")
	t.Setenv("DOCS2DDL_CONFIG", configPath)

	cfg := DefaultConfig()
	cfg.Generate.Database = "SAVED"
	cfg.Source.Azure.Token = "never-written"

	require.NoError(t, SaveConfig(cfg))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "never-written")

	loaded := DefaultConfig()
	require.NoError(t, loadConfigFromFile(loaded, configPath))
	assert.Equal(t, "SAVED", loaded.Generate.Database)
	assert.Equal(t, configPath, cfg.Path())
}

func TestSaveConfigWritesLoadedFile(t *testing.T) {
	dir := t.TempDir()
	explicit := filepath.Join(dir, "explicit.json")
	require.NoError(t, os.WriteFile(explicit, []byte(`{"generate":{"database":"FIRST"}}`), 0600))

	t.Chdir(dir)
	t.Setenv("DOCS2DDL_CONFIG", filepath.Join(dir, "env.json"))

	cfg, err := LoadConfigWithOverrides(map[string]interface{}{"config": explicit})
	require.NoError(t, err)
	assert.Equal(t, explicit, cfg.File)

	cfg.Generate.Database = "SECOND"
	require.NoError(t, SaveConfig(cfg))

	data, err := os.ReadFile(explicit)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"database": "SECOND"`)
	assert.NoFileExists(t, filepath.Join(dir, "env.json"))
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("DOCS2DDL_CONFIG", "/etc/docs2ddl.json")

	assert.Equal(t, "/etc/docs2ddl.json", ResolveConfigPath(""))
	assert.Equal(t, "./x.json", ResolveConfigPath("./x.json"))
}

func TestExpandPath(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		input    string
		expected string
	}{
		{"~/test/path", filepath.Join(homeDir, "test/path")},
		{"~", homeDir},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"~user/path", "~user/path"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, expandPath(tt.input))
		})
	}
}

func TestExpandAllPaths(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.ExpandAllPaths()

	assert.Equal(t, filepath.Join(homeDir, ".cache/docs2ddl"), cfg.Cache.Directory)
	assert.Equal(t, filepath.Join(homeDir, ".config/docs2ddl/history.db"), cfg.History.Path)
	assert.Equal(t, filepath.Join(homeDir, ".config/docs2ddl/logs/app.log"), cfg.Logging.File)
	assert.Equal(t, ".", cfg.Generate.OutputDir)
}
