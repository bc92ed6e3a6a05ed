package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/kyleking/docs2ddl/internal/errors"
	"github.com/kyleking/docs2ddl/internal/logging"
)

// SearchOptions filters repository items by path
type SearchOptions struct {
	Keyword      string
	OnlyMarkdown bool
	FolderFilter string
}

// Matches reports whether item is a file whose path satisfies the options.
// Keyword and folder comparisons are case-insensitive.
func (o SearchOptions) Matches(item Item) bool {
	if item.IsFolder {
		return false
	}

	path := strings.ToLower(item.Path)

	if !strings.Contains(path, strings.ToLower(o.Keyword)) {
		return false
	}

	if o.OnlyMarkdown && !strings.HasSuffix(path, ".md") {
		return false
	}

	if o.FolderFilter != "" && !strings.Contains(path, strings.ToLower(o.FolderFilter)) {
		return false
	}

	return true
}

// Match is a document found by a search
type Match struct {
	Repository Repository `json:"repository"`
	Path       string     `json:"path"`
}

// Label renders the match the way it is offered for selection
func (m Match) Label() string {
	return fmt.Sprintf("%s - %s", m.Repository.Name, m.Path)
}

// Finder searches document paths across repositories
type Finder struct {
	provider Provider
	pool     *WorkerPool
}

// NewFinder creates a finder listing up to workers repositories at once
func NewFinder(provider Provider, workers int) *Finder {
	return &Finder{
		provider: provider,
		pool:     NewWorkerPool(workers, workers*2, time.Second, 30*time.Second),
	}
}

// Find lists the files of every repository and returns the matching documents,
// ordered by repository then by listing order. Repositories whose listing
// fails are skipped; their errors are joined into the returned error next to
// the matches that were found.
func (f *Finder) Find(ctx context.Context, repos []Repository, opts SearchOptions) ([]Match, error) {
	tasks := make([]Task, 0, len(repos))
	for _, repo := range repos {
		tasks = append(tasks, Task{
			ID: repo.Name,
			Func: func(ctx context.Context) (interface{}, error) {
				return f.provider.ListFiles(ctx, repo)
			},
		})
	}

	results := f.pool.Execute(ctx, tasks)

	var (
		matches []Match
		errs    []error
	)

	for i, result := range results {
		if result.Error != nil {
			logging.WithField("repository", repos[i].Name).WithError(result.Error).Warn("Skipping repository")
			errs = append(errs, result.Error)

			continue
		}

		items, _ := result.Data.([]Item)
		for _, item := range items {
			if opts.Matches(item) {
				matches = append(matches, Match{Repository: repos[i], Path: item.Path})
			}
		}
	}

	logging.WithFields(map[string]interface{}{
		"keyword":      opts.Keyword,
		"repositories": len(repos),
		"matches":      len(matches),
	}).Debug("Search finished")

	return matches, errors.Join(errs...)
}

// SelectRepositories returns the repositories named in names, in that order.
// Names match a repository's name or id, case-insensitively. No names selects all.
func SelectRepositories(all []Repository, names []string) ([]Repository, error) {
	if len(names) == 0 {
		return all, nil
	}

	var (
		selected []Repository
		unknown  []string
	)

	seen := make(map[string]bool, len(names))

	for _, name := range names {
		repo, ok := findRepository(all, name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}

		if seen[repo.ID+"\x00"+repo.Name] {
			continue
		}

		seen[repo.ID+"\x00"+repo.Name] = true
		selected = append(selected, repo)
	}

	if len(unknown) > 0 {
		return nil, apperrors.Newf(apperrors.ErrTypeValidation, "unknown repositories: %s", strings.Join(unknown, ", ")).
			WithSuggestion("Run 'docs2ddl repos' to list available repositories")
	}

	return selected, nil
}

func findRepository(all []Repository, name string) (Repository, bool) {
	for _, repo := range all {
		if strings.EqualFold(repo.Name, name) || repo.ID == name {
			return repo, true
		}
	}

	return Repository{}, false
}
