package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/docs2ddl/internal/ddl"
	"github.com/kyleking/docs2ddl/internal/source"
)

func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Show what would be extracted from a document",
		Description: `Fetch a document and print the detected table name, description and parsed
column rows without generating a script. Selection works as in generate.`,
		ArgsUsage: " [keyword]",
		Flags:     selectionFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runInspect(ctx, selectionFromCommand(cmd))
		},
	}
}

func runInspect(ctx context.Context, sel selection) error {
	return runInspectWithProvider(ctx, sel, nil, os.Stdin)
}

func runInspectWithProvider(ctx context.Context, sel selection, provider source.Provider, in io.Reader) error {
	cfg := getConfigFromContext(ctx)

	// Initialize provider if not provided (for testing)
	if provider == nil {
		var (
			closer func()
			err    error
		)

		provider, closer, err = initializeProvider(cfg)
		if err != nil {
			return err
		}

		defer closer()
	}

	docs, err := resolveDocuments(ctx, provider, cfg, sel, in)
	if err != nil {
		return err
	}

	if len(docs) == 0 {
		fmt.Printf("Warning: no documents match %q.\n", sel.Keyword)
		return nil
	}

	for i, doc := range docs {
		if i > 0 {
			fmt.Println()
		}

		_, schema, err := loadSchema(ctx, provider, doc)
		if err != nil {
			return err
		}

		fmt.Printf("Document: %s\n", doc.Label())

		if err := printSchema(schema); err != nil {
			return err
		}
	}

	return nil
}

// printSchema writes the extracted table name, description and columns
func printSchema(schema ddl.TableSchema) error {
	fmt.Printf("Table: %s\n", schema.Table)

	if schema.Description != "" {
		fmt.Printf("Description: %s\n", schema.Description)
	} else {
		fmt.Printf("Description: (none)\n")
	}

	if len(schema.Columns) == 0 {
		fmt.Println("Warning: no columns found in table format.")
		return nil
	}

	fmt.Printf("\nColumns (%d):\n", len(schema.Columns))

	rows := make([][]string, len(schema.Columns))
	for i, col := range schema.Columns {
		rows[i] = []string{strconv.Itoa(i + 1), col.Name, col.Type, col.Comment}
	}

	return renderTable(os.Stdout, []string{"#", "Name", "Type", "Comment"}, rows)
}
