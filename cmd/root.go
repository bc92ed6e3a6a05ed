package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/docs2ddl/internal/config"
	"github.com/kyleking/docs2ddl/internal/errors"
	"github.com/kyleking/docs2ddl/internal/logging"
)

// Build information, set with -ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type contextKey string

const configKey contextKey = "config"

// globalFlags are forwarded to config.LoadConfigWithOverrides
var globalFlags = []string{"config", "log-level", "verbose", "provider", "cache-dir", "no-cache", "history-path"}

// RootCommand builds the docs2ddl command tree
func RootCommand() *cli.Command {
	return &cli.Command{
		Name:  "docs2ddl",
		Usage: "Generate Teradata DDL scripts from markdown table documentation",
		Description: `docs2ddl finds markdown documents describing tables in Azure DevOps or GitHub
repositories and turns their column tables into CREATE MULTISET TABLE scripts
with table and column comments.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Path to the JSON configuration file"},
			&cli.StringFlag{Name: "log-level", Usage: "Log level (debug, info, warn, error)"},
			&cli.BoolFlag{Name: "verbose", Usage: "Enable debug logging"},
			&cli.StringFlag{Name: "provider", Usage: "Repository host (azure, github)"},
			&cli.StringFlag{Name: "cache-dir", Usage: "Directory for the listing cache"},
			&cli.BoolFlag{Name: "no-cache", Usage: "Always list repositories and files from the host"},
			&cli.StringFlag{Name: "history-path", Usage: "Path to the generation history database"},
		},
		Before: setup,
		After: func(context.Context, *cli.Command) error {
			return logging.GetLogger().Close()
		},
		Commands: []*cli.Command{
			ReposCommand(),
			SearchCommand(),
			GenerateCommand(),
			InspectCommand(),
			ConvertCommand(),
			HistoryCommand(),
			CacheCommand(),
			ConfigCommand(),
		},
	}
}

// Execute runs the CLI with the process arguments
func Execute() error {
	ctx := context.Background()

	err := RootCommand().Run(ctx, os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", errors.UserMessage(err))
	}

	return err
}

// setup loads the configuration and initializes logging before any subcommand runs
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	overrides := make(map[string]interface{})

	for _, name := range globalFlags {
		if !cmd.IsSet(name) {
			continue
		}

		switch name {
		case "verbose", "no-cache":
			overrides[name] = cmd.Bool(name)
		default:
			overrides[name] = cmd.String(name)
		}
	}

	cfg, err := config.LoadConfigWithOverrides(overrides)
	if err != nil {
		path := config.ResolveConfigPath(cmd.String("config"))

		return ctx, errors.Wrap(err, errors.ErrTypeConfig, "invalid configuration").
			WithSuggestion(fmt.Sprintf("Check %s and the %s* environment variables", path, config.EnvPrefix))
	}

	if err := logging.InitializeLogger(cfg.Logging); err != nil {
		logging.SetupFallbackLogger()
		logging.Warnf("Falling back to stderr logging: %v", err)
	}

	logging.WithFields(map[string]interface{}{
		"provider": cfg.Source.Provider,
		"version":  version,
	}).Debug("Configuration loaded")

	return context.WithValue(ctx, configKey, cfg), nil
}

// getConfigFromContext returns the configuration stored by setup, or the
// defaults when the command runs without it
func getConfigFromContext(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok && cfg != nil {
		return cfg
	}

	return config.DefaultConfig()
}
