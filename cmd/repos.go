package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/kyleking/docs2ddl/internal/source"
)

func ReposCommand() *cli.Command {
	return &cli.Command{
		Name:        "repos",
		Usage:       "List the repositories visible to the configured credentials",
		Description: `Show every repository of the configured Azure DevOps project or GitHub owner.`,
		Action: func(ctx context.Context, _ *cli.Command) error {
			return runRepos(ctx)
		},
	}
}

func runRepos(ctx context.Context) error {
	return runReposWithProvider(ctx, nil)
}

func runReposWithProvider(ctx context.Context, provider source.Provider) error {
	// Initialize provider if not provided (for testing)
	if provider == nil {
		var (
			closer func()
			err    error
		)

		provider, closer, err = initializeProvider(getConfigFromContext(ctx))
		if err != nil {
			return err
		}

		defer closer()
	}

	stop := startSpinner("Listing repositories...")
	repos, err := provider.ListRepositories(ctx)
	stop()

	if err != nil {
		return err
	}

	if len(repos) == 0 {
		fmt.Println("No repositories found.")
		return nil
	}

	if err := renderTable(os.Stdout, []string{"Name", "ID", "Default branch"}, repositoryRows(repos)); err != nil {
		return err
	}

	fmt.Printf("\n%d repositories\n", len(repos))

	return nil
}

func repositoryRows(repos []source.Repository) [][]string {
	rows := make([][]string, len(repos))
	for i, repo := range repos {
		rows[i] = []string{repo.Name, repo.ID, repo.DefaultBranch}
	}

	return rows
}

// renderTable writes rows under header as an aligned terminal table
func renderTable(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)

	headerCells := make([]any, len(header))
	for i, h := range header {
		headerCells[i] = h
	}

	table.Header(headerCells...)

	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

// startSpinner shows progress on stderr until the returned function is called
func startSpinner(message string) func() {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + message
	s.Start()

	return s.Stop
}
