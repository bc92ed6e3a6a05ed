package history

import (
	"context"
	"path/filepath"
	"testing"
)

// NewTestStore creates an initialized store in a temporary directory that is
// closed when the test ends
func NewTestStore(t *testing.T) *DuckDBStore {
	t.Helper()

	store, err := NewDuckDBStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}

	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close test store: %v", err)
		}
	})

	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("failed to initialize test store: %v", err)
	}

	return store
}
