// Package cache keeps repository and file listings on disk, grouped by the
// source they were listed from
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/kyleking/docs2ddl/internal/errors"
)

// ErrMiss is returned by Load when a listing is absent or expired
var ErrMiss = apperrors.New(apperrors.ErrTypeNotFound, "cache miss")

const entryExt = ".json"

// hashed names are the only directories and files the cache ever creates
var hashedName = regexp.MustCompile(`^[0-9a-f]{16}$`)

// Cache stores listings under a namespace, one per configured source
type Cache interface {
	Load(ctx context.Context, namespace, key string, target interface{}) (*Entry, error)
	Store(ctx context.Context, namespace, key string, value interface{}) error
	Remove(ctx context.Context, namespace string, match func(*Entry) bool) (int, error)
	Stats(ctx context.Context) (*Stats, error)
}

// Entry is one cached listing
type Entry struct {
	Namespace string          `json:"namespace"`
	Key       string          `json:"key"`
	StoredAt  time.Time       `json:"stored_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	Payload   json.RawMessage `json:"payload"`
}

// Expired reports whether the entry is past its TTL at now
func (e *Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// NamespaceStats summarizes the listings cached for one source
type NamespaceStats struct {
	Namespace string
	Entries   int
	Expired   int
	Size      int64
	Oldest    time.Time
}

// Stats summarizes the whole cache directory
type Stats struct {
	Entries    int
	Size       int64
	Namespaces []NamespaceStats
}

// FileCache stores each listing as a JSON file under a per-namespace directory
type FileCache struct {
	directory   string
	maxBytes    int64
	ttl         time.Duration
	cleanupFreq time.Duration
	now         func() time.Time

	mu       sync.Mutex
	stop     chan struct{}
	stopOnce sync.Once
}

// NewFileCache opens (creating if needed) a cache rooted at directory.
// A positive cleanupFreq starts a goroutine that drops expired listings until Close.
func NewFileCache(directory string, maxSizeMB int, ttl, cleanupFreq time.Duration) (*FileCache, error) {
	if strings.HasPrefix(directory, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}

		directory = filepath.Join(home, directory[2:])
	}

	if err := os.MkdirAll(directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &FileCache{
		directory:   directory,
		maxBytes:    int64(maxSizeMB) * 1024 * 1024,
		ttl:         ttl,
		cleanupFreq: cleanupFreq,
		now:         time.Now,
		stop:        make(chan struct{}),
	}

	if cleanupFreq > 0 {
		go c.backgroundCleanup()
	}

	return c, nil
}

// Directory returns the cache root
func (c *FileCache) Directory() string {
	return c.directory
}

// Load decodes the listing stored under namespace and key into target.
// Expired listings are deleted and reported as ErrMiss.
func (c *FileCache) Load(ctx context.Context, namespace, key string, target interface{}) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.entryPath(namespace, key)

	entry, err := readEntry(path)
	if os.IsNotExist(err) {
		return nil, ErrMiss
	}

	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("corrupt listing %s: %w", key, ErrMiss)
	}

	if entry.Expired(c.now()) {
		_ = os.Remove(path)
		return nil, fmt.Errorf("listing %s expired: %w", key, ErrMiss)
	}

	if err := json.Unmarshal(entry.Payload, target); err != nil {
		return nil, fmt.Errorf("failed to decode listing %s: %w", key, err)
	}

	return entry, nil
}

// Store encodes value and writes it under namespace and key with the cache TTL,
// evicting the oldest listings when the size limit would be exceeded
func (c *FileCache) Store(ctx context.Context, namespace, key string, value interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode listing %s: %w", key, err)
	}

	now := c.now()

	data, err := json.Marshal(Entry{
		Namespace: namespace,
		Key:       key,
		StoredAt:  now,
		ExpiresAt: now.Add(c.ttl),
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("failed to encode listing %s: %w", key, err)
	}

	size := int64(len(data))
	if size > c.maxBytes {
		return fmt.Errorf("listing %s is %d bytes, larger than the cache limit", key, size)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.entryPath(namespace, key)

	if err := c.makeRoom(size, path); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create namespace directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write listing %s: %w", key, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write listing %s: %w", key, err)
	}

	return nil
}

// Remove deletes the listings of namespace that match, returning how many were
// removed. An empty namespace covers every namespace; a nil match removes all.
func (c *FileCache) Remove(ctx context.Context, namespace string, match func(*Entry) bool) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	files, err := c.entryFiles(namespace)
	if err != nil {
		return 0, err
	}

	removed := 0

	for _, f := range files {
		if match != nil {
			entry, err := readEntry(f.path)
			if err == nil && !match(entry) {
				continue
			}
		}

		if err := os.Remove(f.path); err == nil {
			removed++
		}
	}

	c.pruneEmptyNamespaces()

	return removed, nil
}

// Cleanup deletes every expired listing
func (c *FileCache) Cleanup(ctx context.Context) error {
	now := c.now()

	_, err := c.Remove(ctx, "", func(e *Entry) bool { return e.Expired(now) })

	return err
}

// Stats reports entry counts and sizes per namespace, sorted by namespace
func (c *FileCache) Stats(ctx context.Context) (*Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	files, err := c.entryFiles("")
	if err != nil {
		return nil, err
	}

	now := c.now()
	byNamespace := make(map[string]*NamespaceStats)
	stats := &Stats{}

	for _, f := range files {
		entry, err := readEntry(f.path)
		if err != nil {
			continue
		}

		ns, ok := byNamespace[entry.Namespace]
		if !ok {
			ns = &NamespaceStats{Namespace: entry.Namespace}
			byNamespace[entry.Namespace] = ns
		}

		ns.Entries++
		ns.Size += f.size

		if entry.Expired(now) {
			ns.Expired++
		}

		if ns.Oldest.IsZero() || entry.StoredAt.Before(ns.Oldest) {
			ns.Oldest = entry.StoredAt
		}

		stats.Entries++
		stats.Size += f.size
	}

	for _, ns := range byNamespace {
		stats.Namespaces = append(stats.Namespaces, *ns)
	}

	sort.Slice(stats.Namespaces, func(i, j int) bool {
		return stats.Namespaces[i].Namespace < stats.Namespaces[j].Namespace
	})

	return stats, nil
}

// Close stops the background cleanup goroutine
func (c *FileCache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

type entryFile struct {
	path    string
	size    int64
	modTime time.Time
}

// entryFiles lists the entry files of namespace, or of all namespaces when empty
func (c *FileCache) entryFiles(namespace string) ([]entryFile, error) {
	var dirs []string

	if namespace != "" {
		dirs = []string{filepath.Join(c.directory, hashName(namespace))}
	} else {
		entries, err := os.ReadDir(c.directory)
		if err != nil {
			return nil, fmt.Errorf("failed to read cache directory: %w", err)
		}

		for _, e := range entries {
			if e.IsDir() && hashedName.MatchString(e.Name()) {
				dirs = append(dirs, filepath.Join(c.directory, e.Name()))
			}
		}
	}

	var files []entryFile

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("failed to read cache directory: %w", err)
		}

		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.HasSuffix(name, entryExt) || !hashedName.MatchString(strings.TrimSuffix(name, entryExt)) {
				continue
			}

			info, err := e.Info()
			if err != nil {
				continue
			}

			files = append(files, entryFile{
				path:    filepath.Join(dir, name),
				size:    info.Size(),
				modTime: info.ModTime(),
			})
		}
	}

	return files, nil
}

// makeRoom evicts the oldest listings until size more bytes fit; replace is
// the path about to be overwritten and does not count against the limit
func (c *FileCache) makeRoom(size int64, replace string) error {
	files, err := c.entryFiles("")
	if err != nil {
		return err
	}

	var current int64

	kept := files[:0]

	for _, f := range files {
		if f.path == replace {
			continue
		}

		current += f.size
		kept = append(kept, f)
	}

	if current+size <= c.maxBytes {
		return nil
	}

	sort.Slice(kept, func(i, j int) bool {
		return kept[i].modTime.Before(kept[j].modTime)
	})

	for _, f := range kept {
		if current+size <= c.maxBytes {
			break
		}

		if err := os.Remove(f.path); err == nil {
			current -= f.size
		}
	}

	return nil
}

// pruneEmptyNamespaces removes namespace directories left without entries
func (c *FileCache) pruneEmptyNamespaces() {
	entries, err := os.ReadDir(c.directory)
	if err != nil {
		return
	}

	for _, e := range entries {
		if e.IsDir() && hashedName.MatchString(e.Name()) {
			// fails while the directory still has files
			_ = os.Remove(filepath.Join(c.directory, e.Name()))
		}
	}
}

func (c *FileCache) entryPath(namespace, key string) string {
	return filepath.Join(c.directory, hashName(namespace), hashName(key)+entryExt)
}

func readEntry(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}

	return &entry, nil
}

// hashName maps a namespace or key onto a short file-safe name
func hashName(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}

func (c *FileCache) backgroundCleanup() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.Cleanup(context.Background())
		case <-c.stop:
			return
		}
	}
}
