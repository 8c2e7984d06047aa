package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/Veraticus/the-budget-must-balance/internal/storage"
	"github.com/Veraticus/the-budget-must-balance/internal/testutil"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func createTestStorage(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	return testutil.SetupTestDB(t)
}

func newTestService(t *testing.T, store *storage.SQLiteStorage) *Service {
	t.Helper()
	svc := New(store)
	svc.SetClock(func() time.Time { return testNow })
	return svc
}

func seedOwner(t *testing.T, store *storage.SQLiteStorage, owner string) {
	t.Helper()
	testutil.SeedOwner(t, store, owner)
}

func exportBytes(t *testing.T, svc *Service, owner string) []byte {
	t.Helper()
	doc, err := svc.Export(context.Background(), owner)
	require.NoError(t, err)
	data, err := Marshal(doc)
	require.NoError(t, err)
	return data
}

func TestExport_Summary(t *testing.T) {
	store := createTestStorage(t)
	seedOwner(t, store, "u1")
	seedOwner(t, store, "u2")
	svc := newTestService(t, store)

	doc, err := svc.Export(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 1, doc.Metadata.Summary.BudgetsCount)
	assert.Equal(t, 1, doc.Metadata.Summary.PaycheckBudgetsCount)
	assert.Equal(t, len(model.DefaultCategories), doc.Metadata.Summary.CategoriesCount)
	assert.Equal(t, "u1", doc.Metadata.OwnerID)
	assert.Equal(t, storage.ExpectedSchemaVersion, doc.Metadata.Version)
	assert.True(t, doc.Metadata.Timestamp.Equal(testNow))

	for _, b := range doc.Data.Budgets {
		assert.Equal(t, "u1", b.OwnerID)
	}
}

func TestExport_NothingToBackup(t *testing.T) {
	store := createTestStorage(t)
	seedOwner(t, store, "u2")
	svc := newTestService(t, store)

	_, err := svc.Export(context.Background(), "u1")
	assert.ErrorIs(t, err, common.ErrNothingToBackup)
}

func TestSerialize_Shape(t *testing.T) {
	store := createTestStorage(t)
	seedOwner(t, store, "u1")
	svc := newTestService(t, store)

	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(exportBytes(t, svc, "u1"), &raw))

	require.Contains(t, raw, "metadata")
	require.Contains(t, raw, "data")
	assert.Equal(t, "u1", raw["metadata"]["ownerId"])
	assert.Equal(t, "2024-03-01T12:00:00Z", raw["metadata"]["timestamp"])
	assert.Contains(t, raw["metadata"], "summary")
	for _, key := range []string{"budgets", "paycheckBudgets", "categories"} {
		assert.Contains(t, raw["data"], key)
	}

	budgets := raw["data"]["budgets"].([]any)
	first := budgets[0].(map[string]any)
	assert.Equal(t, 500.0, first["totalBudget"])
	assert.NotContains(t, first, "Revision")
}

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantErr   error
		wantOwner string
	}{
		{
			name:      "minimal document",
			input:     `{"metadata":{"version":4,"ownerId":"u1"},"data":{}}`,
			wantOwner: "u1",
		},
		{
			name:    "not json",
			input:   `budget,amount`,
			wantErr: common.ErrMalformedBackup,
		},
		{
			name:    "missing metadata",
			input:   `{"data":{"budgets":[]}}`,
			wantErr: common.ErrMalformedBackup,
		},
		{
			name:    "missing data",
			input:   `{"metadata":{"ownerId":"u1"}}`,
			wantErr: common.ErrMalformedBackup,
		},
		{
			name:    "null data",
			input:   `{"metadata":{"ownerId":"u1"},"data":null}`,
			wantErr: common.ErrMalformedBackup,
		},
		{
			name:    "wrong field types",
			input:   `{"metadata":{"ownerId":42},"data":{}}`,
			wantErr: common.ErrMalformedBackup,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse(strings.NewReader(tt.input))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOwner, doc.Metadata.OwnerID)
		})
	}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "budget-tracker-backup.json", FileName(testNow, false))
	assert.Equal(t, "budget-backup-2024-03-01.json", FileName(testNow, true))
}

func TestRestore_IntoEmptyAccountThenAlreadyHasData(t *testing.T) {
	source := createTestStorage(t)
	seedOwner(t, source, "u1")
	data := exportBytes(t, newTestService(t, source), "u1")

	dest := createTestStorage(t)
	svc := newTestService(t, dest)
	ctx := context.Background()

	var calls []int
	result, err := svc.Restore(ctx, bytes.NewReader(data), "u1", func(done, total int) {
		calls = append(calls, done)
		assert.Equal(t, 2+len(model.DefaultCategories), total)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.BudgetsRestored)
	assert.Equal(t, 1, result.PaycheckBudgetsRestored)
	assert.Zero(t, result.CategoriesRestored)
	assert.Equal(t, len(model.DefaultCategories), result.CategoriesSkipped)
	assert.Len(t, calls, 2+len(model.DefaultCategories))

	budgets, err := dest.GetBudgetsByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.True(t, budgets[0].TotalSpent().Equal(decimal.NewFromInt(120)))
	assert.True(t, budgets[0].CreatedAt.Equal(testNow), "timestamps survive the round trip")

	_, err = svc.Restore(ctx, bytes.NewReader(data), "u1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrAlreadyHasData)

	var restoreErr *RestoreError
	require.True(t, errors.As(err, &restoreErr))
	assert.Equal(t, StateClobberCheck, restoreErr.State)

	count, err := dest.CountOwnerRecords(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRestore_NonClobberPerformsNoWrites(t *testing.T) {
	source := createTestStorage(t)
	seedOwner(t, source, "u1")
	doc, err := newTestService(t, source).Export(context.Background(), "u1")
	require.NoError(t, err)
	doc.Data.Categories = append(doc.Data.Categories, model.Category{Name: "Pets"})

	dest := createTestStorage(t)
	ctx := context.Background()
	existing := model.NewPaycheckBudget("u1", "Only one", model.KindBusiness, "2024-01-01", decimal.Zero, testNow)
	require.NoError(t, dest.InsertPaycheckBudget(ctx, existing))

	_, err = newTestService(t, dest).RestoreDocument(ctx, doc, "u1", nil)
	assert.ErrorIs(t, err, common.ErrAlreadyHasData)

	count, err := dest.CountOwnerRecords(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = dest.GetCategoryByName(ctx, "Pets")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRestore_BeforeImportRunsOnlyAfterChecks(t *testing.T) {
	source := createTestStorage(t)
	seedOwner(t, source, "u1")
	data := exportBytes(t, newTestService(t, source), "u1")
	ctx := context.Background()

	dest := createTestStorage(t)
	svc := newTestService(t, dest)
	calls := 0
	svc.SetBeforeImport(func(ctx context.Context) error {
		calls++
		// The hook may use the store; no transaction is open yet.
		_, err := dest.CountOwnerRecords(ctx, "u1")
		return err
	})

	_, err := svc.Restore(ctx, bytes.NewReader(data), "u2", nil)
	assert.ErrorIs(t, err, common.ErrWrongOwner)
	_, err = svc.Restore(ctx, strings.NewReader("{"), "u1", nil)
	assert.ErrorIs(t, err, common.ErrMalformedBackup)
	assert.Zero(t, calls)

	_, err = svc.Restore(ctx, bytes.NewReader(data), "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	_, err = svc.Restore(ctx, bytes.NewReader(data), "u1", nil)
	assert.ErrorIs(t, err, common.ErrAlreadyHasData)
	assert.Equal(t, 1, calls, "a refused import does not run the hook")
}

func TestRestore_BeforeImportFailureWritesNothing(t *testing.T) {
	source := createTestStorage(t)
	seedOwner(t, source, "u1")
	data := exportBytes(t, newTestService(t, source), "u1")
	ctx := context.Background()

	dest := createTestStorage(t)
	svc := newTestService(t, dest)
	svc.SetBeforeImport(func(context.Context) error { return errors.New("disk full") })

	_, err := svc.Restore(ctx, bytes.NewReader(data), "u1", nil)
	assert.ErrorContains(t, err, "disk full")

	count, err := dest.CountOwnerRecords(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRestore_WrongOwner(t *testing.T) {
	source := createTestStorage(t)
	seedOwner(t, source, "u2")
	data := exportBytes(t, newTestService(t, source), "u2")

	dest := createTestStorage(t)
	ctx := context.Background()

	_, err := newTestService(t, dest).Restore(ctx, bytes.NewReader(data), "u1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrWrongOwner)

	var restoreErr *RestoreError
	require.True(t, errors.As(err, &restoreErr))
	assert.Equal(t, StateOwnershipCheck, restoreErr.State)

	for _, owner := range []string{"u1", "u2"} {
		count, err := dest.CountOwnerRecords(ctx, owner)
		require.NoError(t, err)
		assert.Zero(t, count)
	}
}

func TestRestore_RewritesOwner(t *testing.T) {
	source := createTestStorage(t)
	seedOwner(t, source, "u1")
	doc, err := newTestService(t, source).Export(context.Background(), "u1")
	require.NoError(t, err)

	// Records inside the file claim another owner; only metadata is checked.
	for i := range doc.Data.Budgets {
		doc.Data.Budgets[i].OwnerID = "someone-else"
	}
	for i := range doc.Data.PaycheckBudgets {
		doc.Data.PaycheckBudgets[i].OwnerID = ""
	}

	dest := createTestStorage(t)
	ctx := context.Background()
	_, err = newTestService(t, dest).RestoreDocument(ctx, doc, "u1", nil)
	require.NoError(t, err)

	budgets, err := dest.GetBudgetsByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.Equal(t, "u1", budgets[0].OwnerID)

	paychecks, err := dest.GetPaycheckBudgetsByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, paychecks, 1)
	assert.Equal(t, "u1", paychecks[0].OwnerID)

	others, err := dest.GetBudgetsByOwner(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestRestore_CategoryDedup(t *testing.T) {
	dest := createTestStorage(t)
	ctx := context.Background()

	doc := &Document{
		Metadata: Metadata{Version: 1, OwnerID: "u1"},
		Data: Data{
			Budgets: []model.Budget{*model.NewBudget("u1", "Pets", model.BudgetTypeOther, decimal.NewFromInt(50), testNow)},
			Categories: []model.Category{
				{ID: 1, Name: "Food"},
				{ID: 77, Name: "Pets"},
				{ID: 78, Name: "Pets"},
				{ID: 79, Name: "pets"},
			},
		},
	}

	result, err := newTestService(t, dest).RestoreDocument(ctx, doc, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.CategoriesRestored)
	assert.Equal(t, 2, result.CategoriesSkipped)

	categories, err := dest.GetCategories(ctx)
	require.NoError(t, err)
	seen := make(map[string]int)
	for _, c := range categories {
		seen[c.Name]++
	}
	for name, n := range seen {
		assert.Equal(t, 1, n, "category %q duplicated", name)
	}
	assert.Contains(t, seen, "Pets")
	assert.Contains(t, seen, "pets")
	assert.Len(t, categories, len(model.DefaultCategories)+2)

	pets, err := dest.GetCategoryByName(ctx, "Pets")
	require.NoError(t, err)
	assert.NotEqual(t, 77, pets.ID, "imported categories get fresh ids")
}

func TestRestore_PartialImportRollsBack(t *testing.T) {
	dest := createTestStorage(t)
	ctx := context.Background()

	// The second budget's id is already used by another owner.
	taken := model.NewBudget("u2", "Taken", model.BudgetTypeMonthly, decimal.NewFromInt(10), testNow)
	require.NoError(t, dest.InsertBudget(ctx, taken))

	clash := *model.NewBudget("u1", "Clash", model.BudgetTypeMonthly, decimal.NewFromInt(10), testNow)
	clash.ID = taken.ID

	doc := &Document{
		Metadata: Metadata{Version: storage.ExpectedSchemaVersion, OwnerID: "u1"},
		Data: Data{
			Budgets: []model.Budget{
				*model.NewBudget("u1", "Fine", model.BudgetTypeMonthly, decimal.NewFromInt(10), testNow),
				clash,
			},
			Categories: []model.Category{{Name: "Pets"}},
		},
	}

	_, err := newTestService(t, dest).RestoreDocument(ctx, doc, "u1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrPartialImport)
	assert.ErrorIs(t, err, common.ErrDuplicateKey)

	var restoreErr *RestoreError
	require.True(t, errors.As(err, &restoreErr))
	assert.Equal(t, StateImporting, restoreErr.State)

	count, err := dest.CountOwnerRecords(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, count, "the first budget is rolled back too")

	_, err = dest.GetCategoryByName(ctx, "Pets")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRestore_Validation(t *testing.T) {
	valid := func() *Document {
		return &Document{
			Metadata: Metadata{Version: storage.ExpectedSchemaVersion, OwnerID: "u1"},
			Data: Data{
				Budgets: []model.Budget{*model.NewBudget("u1", "A", model.BudgetTypeMonthly, decimal.NewFromInt(10), testNow)},
			},
		}
	}

	tests := []struct {
		mutate func(*Document)
		name   string
	}{
		{
			name:   "budget without id",
			mutate: func(d *Document) { d.Data.Budgets[0].ID = "" },
		},
		{
			name:   "negative item amount",
			mutate: func(d *Document) { d.Data.Budgets[0].Items = []model.BudgetItem{{ID: "i1", Category: "Food", Amount: decimal.NewFromInt(-1)}} },
		},
		{
			name: "unknown paycheck tag",
			mutate: func(d *Document) {
				p := model.NewPaycheckBudget("u1", "P", model.KindPaycheck, "2024-03-01", decimal.Zero, testNow)
				p.BudgetType = "salary"
				d.Data.PaycheckBudgets = []model.PaycheckBudget{*p}
			},
		},
		{
			name:   "unnamed category",
			mutate: func(d *Document) { d.Data.Categories = []model.Category{{ID: 3, Name: " "}} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest := createTestStorage(t)
			doc := valid()
			tt.mutate(doc)

			_, err := newTestService(t, dest).RestoreDocument(context.Background(), doc, "u1", nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrMalformedBackup)

			var restoreErr *RestoreError
			require.True(t, errors.As(err, &restoreErr))
			assert.Equal(t, StateValidating, restoreErr.State)

			count, err := dest.CountOwnerRecords(context.Background(), "u1")
			require.NoError(t, err)
			assert.Zero(t, count)
		})
	}
}

func TestRestore_VersionDoesNotGateImport(t *testing.T) {
	for _, version := range []int{1, storage.ExpectedSchemaVersion, storage.ExpectedSchemaVersion + 3} {
		t.Run(fmt.Sprintf("version %d", version), func(t *testing.T) {
			dest := createTestStorage(t)
			doc := &Document{
				Metadata: Metadata{Version: version, OwnerID: "u1"},
				Data: Data{
					Budgets: []model.Budget{*model.NewBudget("u1", "A", model.BudgetTypeMonthly, decimal.NewFromInt(10), testNow)},
				},
			}

			result, err := newTestService(t, dest).RestoreDocument(context.Background(), doc, "u1", nil)
			require.NoError(t, err)
			assert.Equal(t, 1, result.BudgetsRestored)
			assert.Zero(t, result.PaycheckBudgetsRestored)
		})
	}
}

func TestRestore_MalformedStream(t *testing.T) {
	dest := createTestStorage(t)
	_, err := newTestService(t, dest).Restore(context.Background(), strings.NewReader("{"), "u1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMalformedBackup)

	var restoreErr *RestoreError
	require.True(t, errors.As(err, &restoreErr))
	assert.Equal(t, StateValidating, restoreErr.State)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "ownership check", StateOwnershipCheck.String())
	assert.Equal(t, "state(42)", State(42).String())
}
