// Package testutil provides shared fixtures for tests that need a migrated
// database with budget data in it.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/the-budget-must-balance/internal/storage"
)

// Now is the fixed clock used by fixtures.
var Now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// SetupTestDB opens a migrated file-backed database in a temp directory.
// The database is closed on cleanup.
func SetupTestDB(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "budget.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
