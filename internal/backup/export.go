package backup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/service"
)

// Service exports and restores backups against a storage backend.
type Service struct {
	store        service.Storage
	now          func() time.Time
	beforeImport func(ctx context.Context) error
}

// New creates a backup service over store.
func New(store service.Storage) *Service {
	return &Service{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source stamped into exported metadata.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetBeforeImport registers fn to run once a restore has passed its
// ownership and empty-account checks, just before the import transaction
// opens. An error from fn aborts the restore with nothing written.
func (s *Service) SetBeforeImport(fn func(ctx context.Context) error) {
	s.beforeImport = fn
}

// Export collects every budget and paycheck budget of ownerID plus all
// categories. An owner without budgets yields common.ErrNothingToBackup.
func (s *Service) Export(ctx context.Context, ownerID string) (*Document, error) {
	budgets, err := s.store.GetBudgetsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to read budgets: %w", err)
	}
	paychecks, err := s.store.GetPaycheckBudgetsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to read paycheck budgets: %w", err)
	}
	if len(budgets) == 0 && len(paychecks) == 0 {
		return nil, common.ErrNothingToBackup
	}

	categories, err := s.store.GetCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read categories: %w", err)
	}

	version, err := s.store.SchemaVersion(ctx)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Metadata: Metadata{
			Version:   version,
			Timestamp: s.now().UTC(),
			OwnerID:   ownerID,
			Summary: Summary{
				BudgetsCount:         len(budgets),
				PaycheckBudgetsCount: len(paychecks),
				CategoriesCount:      len(categories),
			},
		},
		Data: Data{
			Budgets:         budgets,
			PaycheckBudgets: paychecks,
			Categories:      categories,
		},
	}

	slog.Info("exported backup",
		"owner", ownerID,
		"budgets", len(budgets),
		"paycheck_budgets", len(paychecks),
		"categories", len(categories))
	return doc, nil
}
