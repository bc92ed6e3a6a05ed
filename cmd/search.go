package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/docs2ddl/internal/errors"
	"github.com/kyleking/docs2ddl/internal/source"
)

func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Find documents whose path contains a keyword",
		Description: `Search the file paths of the selected repositories (all by default) for a
case-insensitive keyword. Only markdown documents are considered unless --all-files is set.`,
		ArgsUsage: " <keyword>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "repo", Aliases: []string{"r"}, Usage: "Repository to search (repeatable)"},
			&cli.StringFlag{Name: "folder", Usage: "Only consider paths containing this folder"},
			&cli.BoolFlag{Name: "all-files", Usage: "Consider every file, not only markdown documents"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args()
			if args.Len() != 1 {
				return fmt.Errorf("expected exactly 1 argument, got %d", args.Len())
			}

			return runSearch(ctx, selectionFromCommand(cmd))
		},
	}
}

func runSearch(ctx context.Context, sel selection) error {
	return runSearchWithProvider(ctx, sel, nil)
}

func runSearchWithProvider(ctx context.Context, sel selection, provider source.Provider) error {
	if sel.Keyword == "" {
		return errors.New(errors.ErrTypeValidation, "keyword must not be empty")
	}

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

	matches, err := findMatches(ctx, provider, cfg, sel)
	if err != nil {
		return err
	}

	if len(matches) == 0 {
		fmt.Printf("Warning: no documents match %q.\n", sel.Keyword)
		return nil
	}

	printMatches(matches)
	fmt.Printf("\n%d documents found\n", len(matches))

	return nil
}
