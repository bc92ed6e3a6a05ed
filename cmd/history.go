package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/docs2ddl/internal/history"
)

func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:        "history",
		Usage:       "List previously generated scripts",
		Description: `Show the most recent generations recorded in the local history database.`,
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: history.DefaultListLimit, Usage: "Maximum number of generations to display"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runHistory(ctx, cmd.Int("limit"))
		},
		Commands: []*cli.Command{
			{
				Name:        "clear",
				Usage:       "Delete the generation history",
				Description: `Remove every recorded generation. This action requires confirmation.`,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Skip confirmation prompt"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runHistoryClear(ctx, cmd.Bool("force"))
				},
			},
		},
	}
}

func runHistory(ctx context.Context, limit int) error {
	return runHistoryWithStore(ctx, limit, nil)
}

func runHistoryWithStore(ctx context.Context, limit int, store history.Store) error {
	// Initialize storage if not provided (for testing)
	if store == nil {
		var err error

		store, err = initializeHistory(ctx, getConfigFromContext(ctx))
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}

		defer store.Close()
	}

	records, err := store.List(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No generations recorded yet.")
		return nil
	}

	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = []string{
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			r.DatabaseName + "." + r.TableName,
			strconv.Itoa(r.ColumnCount),
			r.Repository,
			r.Path,
			r.ScriptSHA256[:min(12, len(r.ScriptSHA256))],
		}
	}

	return renderTable(os.Stdout, []string{"Generated", "Table", "Columns", "Repository", "Path", "SHA-256"}, rows)
}

func runHistoryClear(ctx context.Context, force bool) error {
	return runHistoryClearWithStore(ctx, force, nil, os.Stdin)
}

func runHistoryClearWithStore(ctx context.Context, force bool, store history.Store, in io.Reader) error {
	// Initialize storage if not provided (for testing)
	if store == nil {
		var err error

		store, err = initializeHistory(ctx, getConfigFromContext(ctx))
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}

		defer store.Close()
	}

	// Get current stats to show what will be deleted
	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get statistics: %w", err)
	}

	if stats.TotalGenerations == 0 {
		fmt.Println("History is already empty.")
		return nil
	}

	fmt.Printf("This will delete:\n")
	fmt.Printf("  • %d generations\n", stats.TotalGenerations)
	fmt.Printf("  • %d distinct tables\n", stats.DistinctTables)

	// Confirmation prompt (unless force flag is used)
	if !force {
		fmt.Printf("\nAre you sure you want to clear the history? This action cannot be undone.\n")
		fmt.Printf("Type 'yes' to confirm: ")

		reader := bufio.NewReader(in)

		response, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read input: %w", err)
		}

		response = strings.TrimSpace(strings.ToLower(response))
		if response != "yes" {
			fmt.Println("Operation cancelled.")
			return nil
		}
	}

	if err := store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}

	fmt.Println("History cleared successfully.")

	return nil
}
