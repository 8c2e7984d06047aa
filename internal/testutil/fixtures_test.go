package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-budget-must-balance/internal/storage"
)

func TestSeedOwner(t *testing.T) {
	store := SetupTestDB(t)
	fx := SeedOwner(t, store, "u1")

	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, storage.ExpectedSchemaVersion, version)

	count, err := store.CountOwnerRecords(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	got, err := store.GetBudget(context.Background(), "u1", fx.Budget.ID)
	require.NoError(t, err)
	assert.Equal(t, "Groceries", got.Name)
	assert.Len(t, got.Items, 1)
}
