package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/urfave/cli/v3"

	"github.com/kyleking/docs2ddl/internal/config"
	"github.com/kyleking/docs2ddl/internal/errors"
	"github.com/kyleking/docs2ddl/internal/logging"
	"github.com/kyleking/docs2ddl/internal/source"
)

// selection describes which documents a command operates on: either one
// explicit repository and path, or the matches of a keyword search
type selection struct {
	Keyword  string   `json:"keyword"`
	Repos    []string `json:"repo"`
	Path     string   `json:"path"`
	Folder   string   `json:"folder"`
	AllFiles bool     `json:"all_files"`
	Pick     int      `json:"pick"`
	All      bool     `json:"all"`
}

// selectionFlags are shared by generate and inspect
func selectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{Name: "repo", Aliases: []string{"r"}, Usage: "Repository to search (repeatable); required with --path"},
		&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Document path inside --repo"},
		&cli.StringFlag{Name: "folder", Usage: "Only consider paths containing this folder"},
		&cli.BoolFlag{Name: "all-files", Usage: "Consider every file, not only markdown documents"},
		&cli.IntFlag{Name: "pick", Usage: "Use the Nth search match instead of prompting"},
		&cli.BoolFlag{Name: "all", Usage: "Process every search match"},
	}
}

func selectionFromCommand(cmd *cli.Command) selection {
	return selection{
		Keyword:  strings.TrimSpace(cmd.Args().First()),
		Repos:    cmd.StringSlice("repo"),
		Path:     strings.TrimSpace(cmd.String("path")),
		Folder:   cmd.String("folder"),
		AllFiles: cmd.Bool("all-files"),
		Pick:     cmd.Int("pick"),
		All:      cmd.Bool("all"),
	}
}

// Validate checks that the selection names exactly one way to find documents
func (s selection) Validate() error {
	explicit := s.Path != ""

	return validation.ValidateStruct(&s,
		validation.Field(&s.Keyword,
			validation.When(!explicit, validation.Required.Error("is required unless --repo and --path are given")),
			validation.When(explicit, validation.Empty.Error("cannot be combined with --path")),
		),
		validation.Field(&s.Repos,
			validation.When(explicit,
				validation.Required.Error("is required with --path"),
				validation.Length(1, 1).Error("must name exactly one repository with --path"),
			),
		),
		validation.Field(&s.Pick, validation.Min(0)),
		validation.Field(&s.All, validation.When(s.Pick > 0, validation.Empty.Error("cannot be combined with --pick"))),
	)
}

func (s selection) searchOptions(cfg *config.Config) source.SearchOptions {
	folder := s.Folder
	if folder == "" {
		folder = cfg.Generate.FolderFilter
	}

	return source.SearchOptions{
		Keyword:      s.Keyword,
		OnlyMarkdown: cfg.Generate.OnlyMarkdown && !s.AllFiles,
		FolderFilter: folder,
	}
}

// findMatches lists the selected repositories and searches their paths.
// Per-repository listing failures are logged when other repositories matched.
func findMatches(ctx context.Context, provider source.Provider, cfg *config.Config, sel selection) ([]source.Match, error) {
	all, err := provider.ListRepositories(ctx)
	if err != nil {
		return nil, err
	}

	repos, err := source.SelectRepositories(all, sel.Repos)
	if err != nil {
		return nil, err
	}

	stop := startSpinner(fmt.Sprintf("Searching %d repositories...", len(repos)))
	matches, err := source.NewFinder(provider, cfg.Source.Workers).Find(ctx, repos, sel.searchOptions(cfg))
	stop()

	if err != nil {
		if len(matches) == 0 {
			return nil, err
		}

		logging.WithError(err).Warn("Some repositories could not be searched")
	}

	return matches, nil
}

// resolveDocuments turns a selection into the documents to process. With
// several matches and neither --pick nor --all, the user is prompted on in.
func resolveDocuments(
	ctx context.Context,
	provider source.Provider,
	cfg *config.Config,
	sel selection,
	in io.Reader,
) ([]source.Match, error) {
	if err := sel.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeValidation, "invalid selection")
	}

	if sel.Path != "" {
		all, err := provider.ListRepositories(ctx)
		if err != nil {
			return nil, err
		}

		repos, err := source.SelectRepositories(all, sel.Repos)
		if err != nil {
			return nil, err
		}

		return []source.Match{{Repository: repos[0], Path: sel.Path}}, nil
	}

	matches, err := findMatches(ctx, provider, cfg, sel)
	if err != nil {
		return nil, err
	}

	switch {
	case len(matches) == 0:
		return nil, nil
	case sel.All:
		return matches, nil
	case sel.Pick > 0:
		if sel.Pick > len(matches) {
			return nil, errors.Newf(errors.ErrTypeValidation, "--pick %d is out of range: %d documents match", sel.Pick, len(matches))
		}

		return matches[sel.Pick-1 : sel.Pick], nil
	case len(matches) == 1:
		return matches, nil
	}

	choice, err := promptSelection(in, matches)
	if err != nil {
		return nil, err
	}

	return []source.Match{choice}, nil
}

// printMatches writes the numbered match labels
func printMatches(matches []source.Match) {
	for i, m := range matches {
		fmt.Printf("%3d. %s\n", i+1, m.Label())
	}
}

// promptSelection lists the matches and reads the chosen number from in
func promptSelection(in io.Reader, matches []source.Match) (source.Match, error) {
	printMatches(matches)
	fmt.Printf("\nSelect a document [1-%d]: ", len(matches))

	reader := bufio.NewReader(in)

	response, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || response == "") {
		return source.Match{}, fmt.Errorf("failed to read input: %w", err)
	}

	n, err := strconv.Atoi(strings.TrimSpace(response))
	if err != nil || n < 1 || n > len(matches) {
		return source.Match{}, errors.Newf(errors.ErrTypeValidation, "invalid selection %q", strings.TrimSpace(response)).
			WithSuggestion(fmt.Sprintf("Enter a number between 1 and %d, or pass --pick", len(matches)))
	}

	return matches[n-1], nil
}
