package source

import (
	"context"
	"strings"

	"github.com/kyleking/docs2ddl/internal/cache"
	"github.com/kyleking/docs2ddl/internal/logging"
)

const repositoriesKey = "repositories"

// CachedProvider serves repository and file listings from the listing cache,
// namespaced by the wrapped provider's Name. Documents are always fetched.
type CachedProvider struct {
	provider Provider
	cache    cache.Cache
}

// NewCachedProvider wraps provider with the listing cache c
func NewCachedProvider(provider Provider, c cache.Cache) *CachedProvider {
	return &CachedProvider{provider: provider, cache: c}
}

// Name implements Provider
func (c *CachedProvider) Name() string {
	return c.provider.Name()
}

// ListRepositories implements Provider
func (c *CachedProvider) ListRepositories(ctx context.Context) ([]Repository, error) {
	var repos []Repository
	if c.load(ctx, repositoriesKey, &repos) {
		return repos, nil
	}

	repos, err := c.provider.ListRepositories(ctx)
	if err != nil {
		return nil, err
	}

	c.store(ctx, repositoriesKey, repos)

	return repos, nil
}

// ListFiles implements Provider
func (c *CachedProvider) ListFiles(ctx context.Context, repo Repository) ([]Item, error) {
	key := filesKey(repo)

	var items []Item
	if c.load(ctx, key, &items) {
		return items, nil
	}

	items, err := c.provider.ListFiles(ctx, repo)
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, items)

	return items, nil
}

// FetchDocument implements Provider without caching
func (c *CachedProvider) FetchDocument(ctx context.Context, repo Repository, path string) (string, error) {
	return c.provider.FetchDocument(ctx, repo, path)
}

// Invalidate drops this provider's cached listings. With repository names
// (or IDs) only their file listings and the repository listing are dropped.
func (c *CachedProvider) Invalidate(ctx context.Context, repos ...string) (int, error) {
	if len(repos) == 0 {
		return c.cache.Remove(ctx, c.Name(), nil)
	}

	return c.cache.Remove(ctx, c.Name(), func(e *cache.Entry) bool {
		if e.Key == repositoriesKey {
			return true
		}

		name, id, ok := parseFilesKey(e.Key)
		if !ok {
			return false
		}

		for _, r := range repos {
			if strings.EqualFold(r, name) || r == id {
				return true
			}
		}

		return false
	})
}

func (c *CachedProvider) load(ctx context.Context, key string, target interface{}) bool {
	entry, err := c.cache.Load(ctx, c.Name(), key, target)
	if err != nil {
		return false
	}

	logging.WithFields(map[string]interface{}{
		"source":    entry.Namespace,
		"key":       key,
		"stored_at": entry.StoredAt,
	}).Debug("Listing served from cache")

	return true
}

// store caches a listing; a failure only costs a future refetch
func (c *CachedProvider) store(ctx context.Context, key string, value interface{}) {
	if err := c.cache.Store(ctx, c.Name(), key, value); err != nil {
		logging.WithField("key", key).WithError(err).Debug("Failed to cache listing")
	}
}

// filesKey is "files/<name>/<id>@<branch>" so a changed default branch misses
func filesKey(repo Repository) string {
	return "files/" + repo.Name + "/" + repo.ID + "@" + repo.DefaultBranch
}

func parseFilesKey(key string) (name, id string, ok bool) {
	rest, found := strings.CutPrefix(key, "files/")
	if !found {
		return "", "", false
	}

	name, rest, found = strings.Cut(rest, "/")
	if !found {
		return "", "", false
	}

	id, _, _ = strings.Cut(rest, "@")

	return name, id, true
}
