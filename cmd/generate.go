package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/docs2ddl/internal/ddl"
	"github.com/kyleking/docs2ddl/internal/errors"
	"github.com/kyleking/docs2ddl/internal/history"
	"github.com/kyleking/docs2ddl/internal/logging"
	"github.com/kyleking/docs2ddl/internal/source"
)

// generateOptions control what happens with each generated script
type generateOptions struct {
	Database   string
	OutputDir  string
	NoFile     bool
	ShowSource bool
}

// generateDeps are the collaborators of generate; nil fields are created
// from the configuration
type generateDeps struct {
	provider source.Provider
	store    history.Store
	input    io.Reader
}

func GenerateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Generate the DDL script for a documented table",
		Description: `Fetch a markdown document, detect its table name, description and column rows,
and print the Teradata CREATE TABLE script. The script is also written to
<TABLE>_DDL.sql in the output directory unless --no-file is set.

Select the document with --repo and --path, or with a keyword and --pick, --all,
or the interactive prompt.`,
		ArgsUsage: " [keyword]",
		Flags: append(selectionFlags(),
			&cli.StringFlag{Name: "database", Aliases: []string{"d"}, Usage: "Target database name"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Directory for the generated script"},
			&cli.BoolFlag{Name: "no-file", Usage: "Only print the script"},
			&cli.BoolFlag{Name: "show-source", Usage: "Print the source document before the script"},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := getConfigFromContext(ctx)

			opts := generateOptions{
				Database:   cfg.Generate.Database,
				OutputDir:  cfg.Generate.OutputDir,
				NoFile:     cmd.Bool("no-file"),
				ShowSource: cmd.Bool("show-source"),
			}

			if cmd.IsSet("database") {
				opts.Database = cmd.String("database")
			}

			if cmd.IsSet("out") {
				opts.OutputDir = cmd.String("out")
			}

			return runGenerate(ctx, selectionFromCommand(cmd), opts)
		},
	}
}

func runGenerate(ctx context.Context, sel selection, opts generateOptions) error {
	return runGenerateWithDeps(ctx, sel, opts, generateDeps{})
}

func runGenerateWithDeps(ctx context.Context, sel selection, opts generateOptions, deps generateDeps) error {
	if opts.Database == "" {
		return errors.NewConfigError("database name must not be empty", "database")
	}

	cfg := getConfigFromContext(ctx)

	// Initialize collaborators if not provided (for testing)
	if deps.provider == nil {
		provider, closer, err := initializeProvider(cfg)
		if err != nil {
			return err
		}

		defer closer()

		deps.provider = provider
	}

	if deps.store == nil && cfg.History.Enabled {
		store, err := initializeHistory(ctx, cfg)
		if err != nil {
			logging.WithError(err).Warn("Generation history disabled")
		} else {
			defer store.Close()

			deps.store = store
		}
	}

	if deps.input == nil {
		deps.input = os.Stdin
	}

	docs, err := resolveDocuments(ctx, deps.provider, cfg, sel, deps.input)
	if err != nil {
		return err
	}

	if len(docs) == 0 {
		fmt.Printf("Warning: no documents match %q.\n", sel.Keyword)
		return nil
	}

	var errs []error

	for i, doc := range docs {
		if len(docs) > 1 {
			if i > 0 {
				fmt.Println()
			}

			fmt.Printf("==> %s\n", doc.Label())
		}

		if err := generateDocument(ctx, deps, doc, opts); err != nil {
			if len(docs) == 1 {
				return err
			}

			logging.WithField("document", doc.Label()).WithError(err).Error("Generation failed")
			fmt.Printf("Error: %s\n", err)
			errs = append(errs, err)
		}
	}

	return stderrors.Join(errs...)
}

// generateDocument fetches one document, prints its script and records it
func generateDocument(ctx context.Context, deps generateDeps, doc source.Match, opts generateOptions) error {
	text, schema, err := loadSchema(ctx, deps.provider, doc)
	if err != nil {
		return err
	}

	if opts.ShowSource {
		fmt.Printf("%s\n\n", text)
	}

	fmt.Printf("Table: %s\n", schema.Table)

	script, err := ddl.Synthesize(opts.Database, schema)
	if errors.IsType(err, errors.ErrTypeNoColumns) {
		logging.WithField("document", doc.Label()).Warn("No column rows found")
		fmt.Println("Warning: no columns found in table format.")

		return nil
	}

	if err != nil {
		return err
	}

	fmt.Printf("\n%s\n", script.Text)

	var outputFile string

	if !opts.NoFile {
		outputFile, err = script.WriteFile(opts.OutputDir)
		if err != nil {
			return err
		}

		fmt.Printf("Saved %s\n", outputFile)
	}

	recordGeneration(ctx, deps, doc, script, outputFile)

	return nil
}

// loadSchema fetches a document and extracts its table schema
func loadSchema(ctx context.Context, provider source.Provider, doc source.Match) (string, ddl.TableSchema, error) {
	raw, err := provider.FetchDocument(ctx, doc.Repository, doc.Path)
	if err != nil {
		return "", ddl.TableSchema{}, err
	}

	text, err := source.NormalizeDocument(doc.Path, raw)
	if err != nil {
		return "", ddl.TableSchema{}, err
	}

	schema := ddl.Extract(text)

	logging.WithFields(map[string]interface{}{
		"document": doc.Label(),
		"table":    schema.Table,
		"columns":  len(schema.Columns),
	}).Debug("Extracted table schema")

	return text, schema, nil
}

func recordGeneration(ctx context.Context, deps generateDeps, doc source.Match, script ddl.Script, outputFile string) {
	if deps.store == nil {
		return
	}

	_, err := deps.store.Record(ctx, history.Record{
		Provider:     deps.provider.Name(),
		Repository:   doc.Repository.Name,
		Path:         doc.Path,
		DatabaseName: script.Database,
		TableName:    script.Table,
		ColumnCount:  script.ColumnCount(),
		ScriptSHA256: script.Checksum(),
		OutputFile:   outputFile,
	})
	if err != nil {
		logging.WithError(err).Warn("Failed to record generation")
	}
}
