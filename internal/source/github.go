package source

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cli/go-gh/v2/pkg/api"

	"github.com/kyleking/docs2ddl/internal/config"
	apperrors "github.com/kyleking/docs2ddl/internal/errors"
	"github.com/kyleking/docs2ddl/internal/logging"
)

const perPage = 100

// GitHubProvider reads repositories of a user or organization through the GitHub REST API
type GitHubProvider struct {
	client RESTClient
	owner  string
}

type githubRepository struct {
	ID            int64  `json:"id"`
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
	HTMLURL       string `json:"html_url"`
}

type githubTree struct {
	Tree []struct {
		Path string `json:"path"`
		Type string `json:"type"`
	} `json:"tree"`
	Truncated bool `json:"truncated"`
}

type githubContent struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// NewGitHubProvider creates a provider using the token from cfg or, when empty,
// the existing GitHub CLI authentication
func NewGitHubProvider(cfg config.GitHubConfig, timeout time.Duration) (*GitHubProvider, error) {
	var (
		client *api.RESTClient
		err    error
	)

	if cfg.Token != "" {
		client, err = api.NewRESTClient(api.ClientOptions{Host: cfg.Host, AuthToken: cfg.Token, Timeout: timeout})
	} else {
		client, err = api.DefaultRESTClient()
	}

	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeAuth, "failed to create GitHub API client").
			WithSuggestion("Run 'gh auth login' or set DOCS2DDL_GITHUB_TOKEN")
	}

	return NewGitHubProviderWithClient(client, cfg.Owner), nil
}

// NewGitHubProviderWithClient creates a provider on top of an existing REST client.
// An empty owner lists the authenticated user's repositories.
func NewGitHubProviderWithClient(client RESTClient, owner string) *GitHubProvider {
	return &GitHubProvider{client: client, owner: owner}
}

// Name implements Provider
func (p *GitHubProvider) Name() string {
	if p.owner == "" {
		return "github:@me"
	}

	return "github:" + p.owner
}

// ListRepositories implements Provider
func (p *GitHubProvider) ListRepositories(ctx context.Context) ([]Repository, error) {
	base := "user/repos"
	if p.owner != "" {
		base = fmt.Sprintf("users/%s/repos", url.PathEscape(p.owner))
	}

	var all []Repository

	for page := 1; ; page++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		var repos []githubRepository

		path := fmt.Sprintf("%s?page=%d&per_page=%d", base, page, perPage)
		if err := p.client.DoWithContext(ctx, http.MethodGet, path, nil, &repos); err != nil {
			return nil, wrapListing(err, "failed to list repositories (page %d)", page)
		}

		for _, r := range repos {
			all = append(all, Repository{
				ID:            strconv.FormatInt(r.ID, 10),
				Name:          r.FullName,
				DefaultBranch: r.DefaultBranch,
				WebURL:        r.HTMLURL,
			})
		}

		if len(repos) < perPage {
			break
		}
	}

	logging.WithFields(map[string]interface{}{"provider": p.Name(), "count": len(all)}).Debug("Listed repositories")

	return all, nil
}

// ListFiles implements Provider
func (p *GitHubProvider) ListFiles(ctx context.Context, repo Repository) ([]Item, error) {
	branch := repo.DefaultBranch
	if branch == "" {
		branch = "HEAD"
	}

	var tree githubTree

	path := fmt.Sprintf("repos/%s/git/trees/%s?recursive=1", repo.Name, url.PathEscape(branch))
	if err := p.client.DoWithContext(ctx, http.MethodGet, path, nil, &tree); err != nil {
		return nil, wrapListing(err, "failed to list files of %s", describe(repo))
	}

	if tree.Truncated {
		logging.WithField("repository", repo.Name).Warn("File listing truncated by the API")
	}

	items := make([]Item, 0, len(tree.Tree))
	for _, entry := range tree.Tree {
		items = append(items, Item{Path: entry.Path, IsFolder: entry.Type == "tree"})
	}

	return items, nil
}

// FetchDocument implements Provider
func (p *GitHubProvider) FetchDocument(ctx context.Context, repo Repository, path string) (string, error) {
	endpoint := fmt.Sprintf("repos/%s/contents/%s", repo.Name, escapePath(path))
	if repo.DefaultBranch != "" {
		endpoint += "?ref=" + url.QueryEscape(repo.DefaultBranch)
	}

	var content githubContent
	if err := p.client.DoWithContext(ctx, http.MethodGet, endpoint, nil, &content); err != nil {
		return "", apperrors.NewDocumentUnavailable(path, err)
	}

	if content.Type != "" && content.Type != "file" {
		return "", apperrors.NewDocumentUnavailable(path, fmt.Errorf("%s is a %s", path, content.Type))
	}

	if content.Encoding != "base64" {
		return "", apperrors.NewDocumentUnavailable(path, fmt.Errorf("unsupported content encoding %q", content.Encoding))
	}

	data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content.Content, "\n", ""))
	if err != nil {
		return "", apperrors.NewDocumentUnavailable(path, err)
	}

	return string(data), nil
}

func escapePath(path string) string {
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}

	return strings.Join(segments, "/")
}
