package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/docs2ddl/internal/ddl"
	"github.com/kyleking/docs2ddl/internal/errors"
	"github.com/kyleking/docs2ddl/internal/logging"
	"github.com/kyleking/docs2ddl/internal/source"
)

func ConvertCommand() *cli.Command {
	return &cli.Command{
		Name:  "convert",
		Usage: "Generate the DDL script for a local document",
		Description: `Run the extractor and synthesizer on a local markdown (or HTML) file. No
repository host is contacted.`,
		ArgsUsage: " <file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "database", Aliases: []string{"d"}, Usage: "Target database name"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Directory for the generated script"},
			&cli.BoolFlag{Name: "no-file", Usage: "Only print the script"},
			&cli.BoolFlag{Name: "json", Usage: "Print the extracted schema as JSON instead of a script"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args()
			if args.Len() != 1 {
				return fmt.Errorf("expected exactly 1 argument, got %d", args.Len())
			}

			cfg := getConfigFromContext(ctx)

			opts := generateOptions{
				Database:  cfg.Generate.Database,
				OutputDir: cfg.Generate.OutputDir,
				NoFile:    cmd.Bool("no-file"),
			}

			if cmd.IsSet("database") {
				opts.Database = cmd.String("database")
			}

			if cmd.IsSet("out") {
				opts.OutputDir = cmd.String("out")
			}

			return runConvert(args.First(), opts, cmd.Bool("json"))
		},
	}
}

func runConvert(path string, opts generateOptions, asJSON bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, errors.ErrTypeFileSystem, "failed to read %s", path)
	}

	text, err := source.NormalizeDocument(path, string(raw))
	if err != nil {
		return err
	}

	schema := ddl.Extract(text)

	if asJSON {
		data, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal schema to JSON: %w", err)
		}

		fmt.Println(string(data))

		return nil
	}

	if opts.Database == "" {
		return errors.NewConfigError("database name must not be empty", "database")
	}

	fmt.Printf("Table: %s\n", schema.Table)

	script, err := ddl.Synthesize(opts.Database, schema)
	if errors.IsType(err, errors.ErrTypeNoColumns) {
		logging.WithField("file", path).Warn("No column rows found")
		fmt.Println("Warning: no columns found in table format.")

		return nil
	}

	if err != nil {
		return err
	}

	fmt.Printf("\n%s\n", script.Text)

	if !opts.NoFile {
		outputFile, err := script.WriteFile(opts.OutputDir)
		if err != nil {
			return err
		}

		fmt.Printf("Saved %s\n", outputFile)
	}

	return nil
}
