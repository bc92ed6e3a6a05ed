package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kyleking/docs2ddl/internal/errors"
	"github.com/kyleking/docs2ddl/internal/history"
	"github.com/kyleking/docs2ddl/internal/source"
)

// MockProvider implements source.Provider for testing
type MockProvider struct {
	repos     []source.Repository
	files     map[string][]source.Item
	documents map[string]string
	listErr   error

	mu      sync.Mutex
	fetched []string
}

func (m *MockProvider) Name() string {
	return "mock:test"
}

func (m *MockProvider) ListRepositories(_ context.Context) ([]source.Repository, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}

	return m.repos, nil
}

func (m *MockProvider) ListFiles(_ context.Context, repo source.Repository) ([]source.Item, error) {
	items, ok := m.files[repo.Name]
	if !ok {
		return nil, fmt.Errorf("no listing for %s", repo.Name)
	}

	return items, nil
}

func (m *MockProvider) FetchDocument(_ context.Context, repo source.Repository, path string) (string, error) {
	m.mu.Lock()
	m.fetched = append(m.fetched, repo.Name+":"+path)
	m.mu.Unlock()

	doc, ok := m.documents[repo.Name+":"+path]
	if !ok {
		return "", errors.NewDocumentUnavailable(path, fmt.Errorf("HTTP 404"))
	}

	return doc, nil
}

// MockStore implements history.Store for testing
type MockStore struct {
	records  []history.Record
	stats    *history.Stats
	cleared  bool
	closed   bool
	failWith error
}

func (m *MockStore) Initialize(_ context.Context) error {
	return nil
}

func (m *MockStore) Record(_ context.Context, record history.Record) (*history.Record, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}

	record.ID = fmt.Sprintf("rec-%d", len(m.records)+1)
	m.records = append(m.records, record)

	return &record, nil
}

func (m *MockStore) List(_ context.Context, limit int) ([]history.Record, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}

	if limit > 0 && limit < len(m.records) {
		return m.records[:limit], nil
	}

	return m.records, nil
}

func (m *MockStore) Stats(_ context.Context) (*history.Stats, error) {
	if m.stats != nil {
		return m.stats, nil
	}

	tables := make(map[string]bool)
	for _, r := range m.records {
		tables[r.DatabaseName+"."+r.TableName] = true
	}

	return &history.Stats{TotalGenerations: len(m.records), DistinctTables: len(tables)}, nil
}

func (m *MockStore) Clear(_ context.Context) error {
	m.cleared = true
	m.records = nil

	return nil
}

func (m *MockStore) Close() error {
	m.closed = true
	return nil
}

var (
	_ source.Provider = (*MockProvider)(nil)
	_ history.Store   = (*MockStore)(nil)
)

// captureOutput runs fn with os.Stdout redirected and returns what it printed
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)

	os.Stdout = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.String()
	}()

	runErr := fn()

	w.Close()
	os.Stdout = oldStdout

	return <-done, runErr
}
