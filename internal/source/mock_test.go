package source

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/cli/go-gh/v2/pkg/api"
)

// mockRESTClient implements RESTClient for testing, keyed by request path
type mockRESTClient struct {
	mu        sync.RWMutex
	responses map[string]interface{}
	errors    map[string]error
	callCount map[string]int
}

func newMockRESTClient() *mockRESTClient {
	return &mockRESTClient{
		responses: make(map[string]interface{}),
		errors:    make(map[string]error),
		callCount: make(map[string]int),
	}
}

func (m *mockRESTClient) DoWithContext(_ context.Context, _ string, path string, _ io.Reader, response interface{}) error {
	m.mu.Lock()
	m.callCount[path]++
	err, exists := m.errors[path]
	resp, respExists := m.responses[path]
	m.mu.Unlock()

	if exists {
		return err
	}

	if respExists {
		jsonData, err := json.Marshal(resp)
		if err != nil {
			return err
		}

		return json.Unmarshal(jsonData, response)
	}

	return &api.HTTPError{StatusCode: http.StatusNotFound, Message: "Not Found"}
}

func (m *mockRESTClient) setResponse(path string, response interface{}) {
	m.mu.Lock()
	m.responses[path] = response
	m.mu.Unlock()
}

func (m *mockRESTClient) setError(path string, err error) {
	m.mu.Lock()
	m.errors[path] = err
	m.mu.Unlock()
}

func (m *mockRESTClient) getCallCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.callCount[path]
}

// mockProvider is an in-memory Provider
type mockProvider struct {
	name       string
	mu         sync.Mutex
	repos      []Repository
	files      map[string][]Item
	documents  map[string]string
	listErrors map[string]error
	listCalls  map[string]int
	repoCalls  int
}

func newMockProvider() *mockProvider {
	return &mockProvider{
		files:      make(map[string][]Item),
		documents:  make(map[string]string),
		listErrors: make(map[string]error),
		listCalls:  make(map[string]int),
	}
}

func (m *mockProvider) Name() string {
	if m.name != "" {
		return m.name
	}

	return "mock:test"
}

func (m *mockProvider) ListRepositories(context.Context) ([]Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.repoCalls++

	return m.repos, nil
}

func (m *mockProvider) ListFiles(_ context.Context, repo Repository) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.listCalls[repo.ID]++

	if err := m.listErrors[repo.ID]; err != nil {
		return nil, err
	}

	return m.files[repo.ID], nil
}

func (m *mockProvider) FetchDocument(_ context.Context, repo Repository, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.documents[repo.ID+":"+path]
	if !ok {
		return "", &api.HTTPError{StatusCode: http.StatusNotFound}
	}

	return doc, nil
}
