// Package source lists repositories and documents on a remote Git host and
// downloads document text for DDL generation.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/cli/go-gh/v2/pkg/api"

	"github.com/kyleking/docs2ddl/internal/config"
	apperrors "github.com/kyleking/docs2ddl/internal/errors"
)

// Provider defines the operations the generator needs from a repository host.
type Provider interface {
	// Name identifies the provider and its scope, e.g. "azure:contoso/datos".
	Name() string

	// ListRepositories returns every repository visible to the credentials.
	ListRepositories(ctx context.Context) ([]Repository, error)

	// ListFiles returns every item of the repository's default branch, recursively.
	ListFiles(ctx context.Context, repo Repository) ([]Item, error)

	// FetchDocument returns the raw text of a file. Failures are reported as
	// document_unavailable errors, never as empty text.
	FetchDocument(ctx context.Context, repo Repository, path string) (string, error)
}

var (
	_ Provider = (*AzureProvider)(nil)
	_ Provider = (*GitHubProvider)(nil)
	_ Provider = (*CachedProvider)(nil)
)

// RESTClient is the subset of the go-gh REST client used by providers
type RESTClient interface {
	DoWithContext(ctx context.Context, method string, path string, body io.Reader, response interface{}) error
}

// Repository identifies a repository on the remote host
type Repository struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	DefaultBranch string `json:"default_branch,omitempty"`
	WebURL        string `json:"web_url,omitempty"`
}

// Item is a file or folder inside a repository
type Item struct {
	Path     string `json:"path"`
	IsFolder bool   `json:"is_folder"`
}

// New builds the provider selected by cfg
func New(cfg config.SourceConfig) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeConfig, "invalid source configuration").
			WithSuggestion("Set DOCS2DDL_AZURE_ORGANIZATION, DOCS2DDL_AZURE_PROJECT and DOCS2DDL_AZURE_TOKEN for Azure DevOps").
			WithSuggestion("Use --provider github to read from GitHub instead")
	}

	switch cfg.Provider {
	case config.ProviderGitHub:
		return NewGitHubProvider(cfg.GitHub, cfg.TimeoutDuration())
	default:
		return NewAzureProvider(cfg.Azure, cfg.TimeoutDuration())
	}
}

// classify maps a REST failure onto an error type
func classify(err error) apperrors.ErrorType {
	var httpErr *api.HTTPError
	if !errors.As(err, &httpErr) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return apperrors.ErrTypeNetwork
		}

		return apperrors.ErrTypeSourceAPI
	}

	switch {
	case httpErr.StatusCode == http.StatusUnauthorized:
		return apperrors.ErrTypeAuth
	case httpErr.StatusCode == http.StatusNotFound:
		return apperrors.ErrTypeNotFound
	case isRateLimitError(err):
		return apperrors.ErrTypeRateLimit
	case httpErr.StatusCode == http.StatusForbidden:
		return apperrors.ErrTypeAuth
	default:
		return apperrors.ErrTypeSourceAPI
	}
}

func wrapListing(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}

	wrapped := apperrors.Wrapf(err, classify(err), format, args...)
	if wrapped.Type == apperrors.ErrTypeAuth {
		wrapped.WithSuggestion("Check that the access token is valid and has read access to code")
	}

	return wrapped
}

func describe(repo Repository) string {
	if repo.Name != "" {
		return repo.Name
	}

	return fmt.Sprintf("repository %s", repo.ID)
}
