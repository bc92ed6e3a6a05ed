package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by the configuration
const EnvPrefix = "DOCS2DDL_"

// Supported document sources
const (
	ProviderAzure  = "azure"
	ProviderGitHub = "github"
)

// noDefaultsTag is a tag name no field carries, so environment overrides
// leave unset variables alone instead of re-applying defaults.
const noDefaultsTag = "envOverrideDefault"

// Config represents the application configuration
type Config struct {
	Source   SourceConfig   `json:"source"`
	Generate GenerateConfig `json:"generate"`
	Cache    CacheConfig    `json:"cache"`
	History  HistoryConfig  `json:"history"`
	Logging  LoggingConfig  `json:"logging"`

	// File is the configuration file this value was loaded from or saves to
	File string `json:"-"`
}

// SourceConfig selects and configures the remote repository host
type SourceConfig struct {
	Provider string       `json:"provider" env:"PROVIDER"       envDefault:"azure"` // azure, github
	Timeout  string       `json:"timeout"  env:"SOURCE_TIMEOUT" envDefault:"30s"`
	Workers  int          `json:"workers"  env:"SOURCE_WORKERS" envDefault:"4"`
	Azure    AzureConfig  `json:"azure"`
	GitHub   GitHubConfig `json:"github"`
}

// AzureConfig holds Azure DevOps connection settings.
// The token is only read from the environment and never written to disk.
type AzureConfig struct {
	Organization string `json:"organization" env:"AZURE_ORGANIZATION"`
	Project      string `json:"project"      env:"AZURE_PROJECT"`
	Token        string `json:"-"            env:"AZURE_TOKEN"`
	BaseURL      string `json:"base_url"     env:"AZURE_BASE_URL"    envDefault:"https://dev.azure.com"`
	APIVersion   string `json:"api_version"  env:"AZURE_API_VERSION" envDefault:"7.1-preview.1"`
}

// GitHubConfig holds GitHub connection settings. An empty token falls back
// to the GitHub CLI credentials.
type GitHubConfig struct {
	Owner string `json:"owner" env:"GITHUB_OWNER"`
	Host  string `json:"host"  env:"GITHUB_HOST"  envDefault:"github.com"`
	Token string `json:"-"     env:"GITHUB_TOKEN"`
}

// GenerateConfig holds defaults for DDL generation and document search
type GenerateConfig struct {
	Database     string `json:"database"      env:"DATABASE"      envDefault:"MiBaseDatos"`
	OutputDir    string `json:"output_dir"    env:"OUTPUT_DIR"    envDefault:"."`
	OnlyMarkdown bool   `json:"only_markdown" env:"ONLY_MARKDOWN" envDefault:"true"`
	FolderFilter string `json:"folder_filter" env:"FOLDER_FILTER"`
}

// CacheConfig represents caching of repository and file listings
type CacheConfig struct {
	Enabled     bool   `json:"enabled"           env:"CACHE_ENABLED"      envDefault:"true"`
	Directory   string `json:"directory"         env:"CACHE_DIR"          envDefault:"~/.cache/docs2ddl"`
	MaxSizeMB   int    `json:"max_size_mb"       env:"CACHE_MAX_SIZE_MB"  envDefault:"100"`
	ListingTTL  string `json:"listing_ttl"       env:"CACHE_LISTING_TTL"  envDefault:"1h"`
	CleanupFreq string `json:"cleanup_frequency" env:"CACHE_CLEANUP_FREQ" envDefault:"1h"`
}

// HistoryConfig represents the local generation history database
type HistoryConfig struct {
	Enabled bool   `json:"enabled" env:"HISTORY_ENABLED" envDefault:"true"`
	Path    string `json:"path"    env:"HISTORY_PATH"    envDefault:"~/.config/docs2ddl/history.db"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level     string `json:"level"      env:"LOG_LEVEL"      envDefault:"info"`                              // debug, info, warn, error
	Format    string `json:"format"     env:"LOG_FORMAT"     envDefault:"text"`                              // text, json
	Output    string `json:"output"     env:"LOG_OUTPUT"     envDefault:"stderr"`                            // stdout, stderr, file
	File      string `json:"file"       env:"LOG_FILE"       envDefault:"~/.config/docs2ddl/logs/app.log"` // log file path when output is file
	AddSource bool   `json:"add_source" env:"LOG_ADD_SOURCE" envDefault:"false"`                             // add source file and line info to logs
}

// DefaultConfig returns the configuration built from envDefault tags only
func DefaultConfig() *Config {
	cfg := &Config{}
	_ = env.ParseWithOptions(cfg, env.Options{Environment: map[string]string{}})

	return cfg
}

// LoadConfig loads configuration from file, .env and environment variables
func LoadConfig() (*Config, error) {
	return LoadConfigWithOverrides(nil)
}

// LoadConfigWithOverrides loads configuration with optional command-line flag overrides.
// Precedence, lowest first: defaults, config file, .env file, environment, flags.
func LoadConfigWithOverrides(flagOverrides map[string]interface{}) (*Config, error) {
	config := DefaultConfig()

	flagPath, _ := flagOverrides["config"].(string)
	configPath := ResolveConfigPath(flagPath)
	config.File = configPath

	if _, err := os.Stat(configPath); err == nil {
		if err := loadConfigFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	if err := applyEnvironmentOverrides(config); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if flagOverrides != nil {
		if err := applyFlagOverrides(config, flagOverrides); err != nil {
			return nil, fmt.Errorf("failed to apply flag overrides: %w", err)
		}
	}

	normalize(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	config.ExpandAllPaths()

	return config, nil
}

// loadConfigFromFile overlays the JSON file onto config; absent keys keep their value
func loadConfigFromFile(config *Config, configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadDotEnv exports variables from path without overriding the environment
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}

// applyEnvironmentOverrides sets every field whose DOCS2DDL_ variable is present
func applyEnvironmentOverrides(config *Config) error {
	return env.ParseWithOptions(config, env.Options{
		Prefix:              EnvPrefix,
		DefaultValueTagName: noDefaultsTag,
	})
}

// applyFlagOverrides applies command-line flag overrides to configuration
func applyFlagOverrides(config *Config, overrides map[string]interface{}) error {
	for key, value := range overrides {
		switch key {
		case "provider":
			if str, ok := value.(string); ok && str != "" {
				config.Source.Provider = str
			}
		case "log-level":
			if str, ok := value.(string); ok && str != "" {
				config.Logging.Level = str
			}
		case "verbose":
			if b, ok := value.(bool); ok && b {
				config.Logging.Level = "debug"
			}
		case "cache-dir":
			if str, ok := value.(string); ok && str != "" {
				config.Cache.Directory = str
			}
		case "no-cache":
			if b, ok := value.(bool); ok && b {
				config.Cache.Enabled = false
			}
		case "database":
			if str, ok := value.(string); ok && str != "" {
				config.Generate.Database = str
			}
		case "out":
			if str, ok := value.(string); ok && str != "" {
				config.Generate.OutputDir = str
			}
		case "history-path":
			if str, ok := value.(string); ok && str != "" {
				config.History.Path = str
			}
		case "config":
		default:
			return fmt.Errorf("unknown override: %s", key)
		}
	}

	return nil
}

func normalize(config *Config) {
	config.Source.Provider = strings.ToLower(strings.TrimSpace(config.Source.Provider))
	config.Logging.Level = strings.ToLower(config.Logging.Level)
	config.Logging.Format = strings.ToLower(config.Logging.Format)
	config.Logging.Output = strings.ToLower(config.Logging.Output)
	config.Source.Azure.BaseURL = strings.TrimRight(config.Source.Azure.BaseURL, "/")
}

var durationRule = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}

	if _, err := time.ParseDuration(s); err != nil {
		return validation.NewError("validation_duration", "must be a duration such as 30s or 1h")
	}

	return nil
})

// validateConfig validates the configuration for common errors
func validateConfig(config *Config) error {
	logging := &config.Logging
	if err := validation.ValidateStruct(logging,
		validation.Field(&logging.Level, validation.Required,
			validation.In("debug", "info", "warn", "error").Error("must be debug, info, warn, or error")),
		validation.Field(&logging.Format, validation.Required,
			validation.In("text", "json").Error("must be text or json")),
		validation.Field(&logging.Output, validation.Required,
			validation.In("stdout", "stderr", "file").Error("must be stdout, stderr, or file")),
		validation.Field(&logging.File, validation.When(logging.Output == "file", validation.Required)),
	); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	source := &config.Source
	if err := validation.ValidateStruct(source,
		validation.Field(&source.Provider, validation.Required,
			validation.In(ProviderAzure, ProviderGitHub).Error("must be azure or github")),
		validation.Field(&source.Timeout, durationRule),
		validation.Field(&source.Workers, validation.Required.Error("must be at least 1"), validation.Min(1)),
	); err != nil {
		return fmt.Errorf("source: %w", err)
	}

	cache := &config.Cache
	if err := validation.ValidateStruct(cache,
		validation.Field(&cache.Directory, validation.When(cache.Enabled, validation.Required)),
		validation.Field(&cache.MaxSizeMB, validation.Required.Error("must be at least 1"), validation.Min(1)),
		validation.Field(&cache.ListingTTL, durationRule),
		validation.Field(&cache.CleanupFreq, durationRule),
	); err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	gen := &config.Generate
	if err := validation.ValidateStruct(gen,
		validation.Field(&gen.Database, validation.Required),
	); err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	hist := &config.History
	if err := validation.ValidateStruct(hist,
		validation.Field(&hist.Path, validation.When(hist.Enabled, validation.Required)),
	); err != nil {
		return fmt.Errorf("history: %w", err)
	}

	return nil
}

var httpURL = regexp.MustCompile(`^https?://[^\s/]+`)

// Validate checks the settings the selected provider needs before any request is made
func (s SourceConfig) Validate() error {
	switch s.Provider {
	case ProviderAzure:
		azure := s.Azure
		err := validation.Errors{
			"organization": validation.Validate(azure.Organization, validation.Required),
			"project":      validation.Validate(azure.Project, validation.Required),
			"token":        validation.Validate(azure.Token, validation.Required),
			"base_url":     validation.Validate(azure.BaseURL, validation.Required, validation.Match(httpURL)),
			"api_version":  validation.Validate(azure.APIVersion, validation.Required),
		}.Filter()
		if err != nil {
			return fmt.Errorf("azure source: %w", err)
		}
	case ProviderGitHub:
		if err := validation.Validate(s.GitHub.Host, validation.Required); err != nil {
			return fmt.Errorf("github source: host: %w", err)
		}
	default:
		return fmt.Errorf("unknown provider %q (must be azure or github)", s.Provider)
	}

	return nil
}

// TimeoutDuration returns the parsed request timeout
func (s SourceConfig) TimeoutDuration() time.Duration {
	return parseDurationOr(s.Timeout, 30*time.Second)
}

// ListingTTLDuration returns the parsed listing TTL
func (c CacheConfig) ListingTTLDuration() time.Duration {
	return parseDurationOr(c.ListingTTL, time.Hour)
}

// CleanupFrequency returns the parsed cleanup interval
func (c CacheConfig) CleanupFrequency() time.Duration {
	return parseDurationOr(c.CleanupFreq, time.Hour)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}

	return d
}

// SaveConfig writes configuration to the file it was loaded from
func SaveConfig(config *Config) error {
	configPath := config.Path()

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Path returns the configuration file of config, defaulting to the
// $DOCS2DDL_CONFIG or home directory location
func (c *Config) Path() string {
	if c.File != "" {
		return c.File
	}

	return getConfigPath()
}

// ResolveConfigPath returns the --config flag value when set, otherwise the
// $DOCS2DDL_CONFIG or home directory location
func ResolveConfigPath(flagPath string) string {
	if flagPath != "" {
		return expandPath(flagPath)
	}

	return getConfigPath()
}

// getConfigPath returns the path to the configuration file
func getConfigPath() string {
	if configPath := os.Getenv(EnvPrefix + "CONFIG"); configPath != "" {
		return expandPath(configPath)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}

	return filepath.Join(homeDir, ".config", "docs2ddl", "config.json")
}

// expandPath expands ~ to home directory in file paths
func expandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}

	return path
}

// ExpandAllPaths expands all paths in the configuration
func (c *Config) ExpandAllPaths() {
	c.Cache.Directory = expandPath(c.Cache.Directory)
	c.History.Path = expandPath(c.History.Path)
	c.Logging.File = expandPath(c.Logging.File)
	c.Generate.OutputDir = expandPath(c.Generate.OutputDir)
}
