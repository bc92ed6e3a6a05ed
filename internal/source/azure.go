package source

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cli/go-gh/v2/pkg/api"

	"github.com/kyleking/docs2ddl/internal/config"
	apperrors "github.com/kyleking/docs2ddl/internal/errors"
	"github.com/kyleking/docs2ddl/internal/logging"
)

// AzureProvider reads repositories of one Azure DevOps project through the Git REST API
type AzureProvider struct {
	client       RESTClient
	baseURL      string
	organization string
	project      string
	apiVersion   string
}

type azureList[T any] struct {
	Count int `json:"count"`
	Value []T `json:"value"`
}

type azureRepository struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	DefaultBranch string `json:"defaultBranch"`
	WebURL        string `json:"webUrl"`
}

type azureItem struct {
	Path          string `json:"path"`
	IsFolder      bool   `json:"isFolder"`
	GitObjectType string `json:"gitObjectType"`
	Content       string `json:"content"`
}

// NewAzureProvider creates a provider authenticated with a personal access token
func NewAzureProvider(cfg config.AzureConfig, timeout time.Duration) (*AzureProvider, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Host == "" {
		return nil, apperrors.NewConfigError("invalid Azure DevOps base URL "+cfg.BaseURL, "source.azure.base_url")
	}

	client, err := api.NewRESTClient(azureClientOptions(base.Host, cfg.Token, timeout))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeSourceAPI, "failed to create Azure DevOps client")
	}

	return NewAzureProviderWithClient(client, cfg), nil
}

// azureClientOptions authenticates with Basic auth, an empty user and the PAT as password
func azureClientOptions(host, token string, timeout time.Duration) api.ClientOptions {
	return api.ClientOptions{
		Host:      host,
		AuthToken: token,
		Headers: map[string]string{
			"Authorization": "Basic " + base64.StdEncoding.EncodeToString([]byte(":"+token)),
			"Accept":        "application/json",
		},
		Timeout: timeout,
	}
}

// NewAzureProviderWithClient creates a provider on top of an existing REST client
func NewAzureProviderWithClient(client RESTClient, cfg config.AzureConfig) *AzureProvider {
	return &AzureProvider{
		client:       client,
		baseURL:      cfg.BaseURL,
		organization: cfg.Organization,
		project:      cfg.Project,
		apiVersion:   cfg.APIVersion,
	}
}

// Name implements Provider
func (p *AzureProvider) Name() string {
	return fmt.Sprintf("azure:%s/%s", p.organization, p.project)
}

func (p *AzureProvider) endpoint(suffix string, query url.Values) string {
	query.Set("api-version", p.apiVersion)

	return fmt.Sprintf("%s/%s/%s/_apis/git/repositories%s?%s",
		p.baseURL, url.PathEscape(p.organization), url.PathEscape(p.project), suffix, query.Encode())
}

// ListRepositories implements Provider
func (p *AzureProvider) ListRepositories(ctx context.Context) ([]Repository, error) {
	var resp azureList[azureRepository]
	if err := p.client.DoWithContext(ctx, http.MethodGet, p.endpoint("", url.Values{}), nil, &resp); err != nil {
		return nil, wrapListing(err, "failed to list repositories of %s", p.Name())
	}

	repos := make([]Repository, 0, len(resp.Value))
	for _, r := range resp.Value {
		repos = append(repos, Repository{
			ID:            r.ID,
			Name:          r.Name,
			DefaultBranch: r.DefaultBranch,
			WebURL:        r.WebURL,
		})
	}

	logging.WithFields(map[string]interface{}{"provider": p.Name(), "count": len(repos)}).Debug("Listed repositories")

	return repos, nil
}

// ListFiles implements Provider
func (p *AzureProvider) ListFiles(ctx context.Context, repo Repository) ([]Item, error) {
	query := url.Values{}
	query.Set("scopePath", "/")
	query.Set("recursionLevel", "Full")

	var resp azureList[azureItem]

	path := p.endpoint("/"+url.PathEscape(repo.ID)+"/items", query)
	if err := p.client.DoWithContext(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, wrapListing(err, "failed to list files of %s", describe(repo))
	}

	items := make([]Item, 0, len(resp.Value))
	for _, it := range resp.Value {
		items = append(items, Item{
			Path:     it.Path,
			IsFolder: it.IsFolder || it.GitObjectType == "tree",
		})
	}

	return items, nil
}

// FetchDocument implements Provider
func (p *AzureProvider) FetchDocument(ctx context.Context, repo Repository, path string) (string, error) {
	query := url.Values{}
	query.Set("path", path)
	query.Set("includeContent", "true")

	var item azureItem

	endpoint := p.endpoint("/"+url.PathEscape(repo.ID)+"/items", query)
	if err := p.client.DoWithContext(ctx, http.MethodGet, endpoint, nil, &item); err != nil {
		return "", apperrors.NewDocumentUnavailable(path, err)
	}

	if item.IsFolder {
		return "", apperrors.NewDocumentUnavailable(path, fmt.Errorf("%s is a folder", path))
	}

	return item.Content, nil
}
