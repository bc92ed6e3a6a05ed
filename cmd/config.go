package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/docs2ddl/internal/config"
	"github.com/kyleking/docs2ddl/internal/errors"
)

func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:        "config",
		Usage:       "Display the active configuration",
		Description: `Show the current active configuration including all settings from file, environment variables, and command-line flags.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Print the configuration as JSON"},
			&cli.BoolFlag{Name: "save", Usage: "Write the active configuration to the config file"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runConfig(ctx, cmd.Bool("json"), cmd.Bool("save"))
		},
	}
}

func runConfig(ctx context.Context, asJSON, save bool) error {
	cfg := getConfigFromContext(ctx)

	if cfg == nil {
		return errors.NewConfigError("failed to load configuration", "")
	}

	if save {
		if err := config.SaveConfig(cfg); err != nil {
			return err
		}

		fmt.Printf("Configuration saved to %s\n", cfg.Path())

		return nil
	}

	if asJSON {
		jsonData, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}

		fmt.Println(string(jsonData))

		return nil
	}

	fmt.Println("====================")
	fmt.Println("Active Configuration:")

	fmt.Println("\nSource:")
	fmt.Printf("  Provider: %s\n", cfg.Source.Provider)
	fmt.Printf("  Timeout: %s\n", cfg.Source.Timeout)
	fmt.Printf("  Workers: %d\n", cfg.Source.Workers)

	switch cfg.Source.Provider {
	case config.ProviderAzure:
		fmt.Printf("  Organization: %s\n", cfg.Source.Azure.Organization)
		fmt.Printf("  Project: %s\n", cfg.Source.Azure.Project)
		fmt.Printf("  Base URL: %s\n", cfg.Source.Azure.BaseURL)
		fmt.Printf("  API Version: %s\n", cfg.Source.Azure.APIVersion)
		fmt.Printf("  Token: %s\n", maskSecret(cfg.Source.Azure.Token))
	case config.ProviderGitHub:
		fmt.Printf("  Owner: %s\n", valueOr(cfg.Source.GitHub.Owner, "@me"))
		fmt.Printf("  Host: %s\n", cfg.Source.GitHub.Host)
		fmt.Printf("  Token: %s\n", valueOr(maskSecret(cfg.Source.GitHub.Token), "(gh CLI credentials)"))
	}

	fmt.Println("\nGenerate:")
	fmt.Printf("  Database: %s\n", cfg.Generate.Database)
	fmt.Printf("  Output Directory: %s\n", cfg.Generate.OutputDir)
	fmt.Printf("  Only Markdown: %t\n", cfg.Generate.OnlyMarkdown)
	fmt.Printf("  Folder Filter: %s\n", valueOr(cfg.Generate.FolderFilter, "(none)"))

	fmt.Println("\nCache:")
	fmt.Printf("  Enabled: %t\n", cfg.Cache.Enabled)
	fmt.Printf("  Directory: %s\n", cfg.Cache.Directory)
	fmt.Printf("  Max Size: %d MB\n", cfg.Cache.MaxSizeMB)
	fmt.Printf("  Listing TTL: %s\n", cfg.Cache.ListingTTL)
	fmt.Printf("  Cleanup Frequency: %s\n", cfg.Cache.CleanupFreq)

	fmt.Println("\nHistory:")
	fmt.Printf("  Enabled: %t\n", cfg.History.Enabled)
	fmt.Printf("  Path: %s\n", cfg.History.Path)

	fmt.Println("\nLogging:")
	fmt.Printf("  Level: %s\n", cfg.Logging.Level)
	fmt.Printf("  Format: %s\n", cfg.Logging.Format)
	fmt.Printf("  Output: %s\n", cfg.Logging.Output)

	if cfg.Logging.Output == "file" {
		fmt.Printf("  File: %s\n", cfg.Logging.File)
	}

	fmt.Printf("  Add Source: %t\n", cfg.Logging.AddSource)

	return nil
}

// maskSecret keeps the last four characters of a credential
func maskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 4:
		return "****"
	default:
		return "****" + s[len(s)-4:]
	}
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}

	return s
}
