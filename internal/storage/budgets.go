package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/model"
)

const budgetColumns = `id, owner_id, name, type, total_budget, items, created_at, updated_at, revision`

// GetBudgetsByOwner returns every generic budget belonging to ownerID, newest first.
func (s *SQLiteStorage) GetBudgetsByOwner(ctx context.Context, ownerID string) ([]model.Budget, error) {
	return getBudgetsByOwner(ctx, s.db, ownerID)
}

// GetBudget returns one budget of ownerID, or common.ErrNotFound.
func (s *SQLiteStorage) GetBudget(ctx context.Context, ownerID, id string) (*model.Budget, error) {
	return getBudget(ctx, s.db, ownerID, id)
}

// InsertBudget adds a new budget. It fails with common.ErrDuplicateKey when
// the id is already taken.
func (s *SQLiteStorage) InsertBudget(ctx context.Context, budget *model.Budget) error {
	return insertBudget(ctx, s.db, budget, s.now())
}

// PutBudget upserts a budget, stamping updatedAt. The stored revision must
// match budget.Revision or common.ErrStaleRevision is returned.
func (s *SQLiteStorage) PutBudget(ctx context.Context, budget *model.Budget) error {
	return putBudget(ctx, s.db, budget, s.now())
}

// DeleteBudget removes a budget and its items. Deleting a missing id is not an error.
func (s *SQLiteStorage) DeleteBudget(ctx context.Context, ownerID, id string) error {
	return deleteBudget(ctx, s.db, ownerID, id)
}

func (t *sqliteTransaction) GetBudgetsByOwner(ctx context.Context, ownerID string) ([]model.Budget, error) {
	return getBudgetsByOwner(ctx, t.tx, ownerID)
}

func (t *sqliteTransaction) GetBudget(ctx context.Context, ownerID, id string) (*model.Budget, error) {
	return getBudget(ctx, t.tx, ownerID, id)
}

func (t *sqliteTransaction) InsertBudget(ctx context.Context, budget *model.Budget) error {
	return insertBudget(ctx, t.tx, budget, t.now())
}

func (t *sqliteTransaction) PutBudget(ctx context.Context, budget *model.Budget) error {
	return putBudget(ctx, t.tx, budget, t.now())
}

func (t *sqliteTransaction) DeleteBudget(ctx context.Context, ownerID, id string) error {
	return deleteBudget(ctx, t.tx, ownerID, id)
}

func getBudgetsByOwner(ctx context.Context, q querier, ownerID string) ([]model.Budget, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(ownerID, "ownerID"); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE owner_id = ? ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query budgets: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Warn("failed to close rows", "error", err)
		}
	}()

	budgets := []model.Budget{}
	for rows.Next() {
		budget, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, *budget)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating budgets: %w", err)
	}

	slog.Debug("retrieved budgets", "owner", ownerID, "count", len(budgets))
	return budgets, nil
}

func getBudget(ctx context.Context, q querier, ownerID, id string) (*model.Budget, error) {
	if err := validateOwnerAndID(ctx, ownerID, id); err != nil {
		return nil, err
	}

	row := q.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE id = ? AND owner_id = ?`, id, ownerID)
	budget, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("budget %s: %w", id, common.ErrNotFound)
	}
	return budget, err
}

func insertBudget(ctx context.Context, q querier, budget *model.Budget, now time.Time) error {
	if err := validateRecord(ctx, budget, budget == nil, "budget"); err != nil {
		return err
	}

	items, err := marshalItems(budget.Items)
	if err != nil {
		return err
	}

	createdAt, updatedAt := budget.CreatedAt, budget.UpdatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO budgets (id, owner_id, name, type, total_budget, items, created_at, updated_at, revision)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		budget.ID, budget.OwnerID, budget.Name, string(budget.Type), budget.TotalBudget.String(),
		items, createdAt, updatedAt,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("budget %s: %w", budget.ID, common.ErrDuplicateKey)
		}
		return fmt.Errorf("failed to insert budget: %w", err)
	}

	budget.CreatedAt, budget.UpdatedAt = createdAt, updatedAt
	budget.Revision = 1
	return nil
}

func putBudget(ctx context.Context, q querier, budget *model.Budget, now time.Time) error {
	if err := validateRecord(ctx, budget, budget == nil, "budget"); err != nil {
		return err
	}

	items, err := marshalItems(budget.Items)
	if err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `
		UPDATE budgets
		SET name = ?, type = ?, total_budget = ?, items = ?, updated_at = ?, revision = revision + 1
		WHERE id = ? AND owner_id = ? AND revision = ?`,
		budget.Name, string(budget.Type), budget.TotalBudget.String(), items, now,
		budget.ID, budget.OwnerID, budget.Revision,
	)
	if err != nil {
		return fmt.Errorf("failed to update budget: %w", err)
	}

	updated, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if updated == 1 {
		budget.UpdatedAt = now
		budget.Revision++
		return nil
	}

	if err := checkConflict(ctx, q, "budgets", budget.ID, budget.OwnerID); err != nil {
		return err
	}

	// No row with this id yet: the put becomes an insert.
	budget.UpdatedAt = now
	return insertBudget(ctx, q, budget, now)
}

func deleteBudget(ctx context.Context, q querier, ownerID, id string) error {
	if err := validateOwnerAndID(ctx, ownerID, id); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM budgets WHERE id = ? AND owner_id = ?`, id, ownerID); err != nil {
		return fmt.Errorf("failed to delete budget: %w", err)
	}
	return nil
}

// checkConflict explains why a revision-guarded update touched no rows. It
// returns nil when the record does not exist at all.
func checkConflict(ctx context.Context, q querier, table, id, ownerID string) error {
	var owner string
	// #nosec G202 - table is one of two package constants
	err := q.QueryRowContext(ctx, `SELECT owner_id FROM `+table+` WHERE id = ?`, id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up %s %s: %w", table, id, err)
	}
	if owner != ownerID {
		return fmt.Errorf("%s %s: %w", table, id, common.ErrDuplicateKey)
	}
	return fmt.Errorf("%s %s: %w", table, id, common.ErrStaleRevision)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBudget(row rowScanner) (*model.Budget, error) {
	var (
		budget     model.Budget
		budgetType string
		items      string
	)
	err := row.Scan(
		&budget.ID, &budget.OwnerID, &budget.Name, &budgetType, &budget.TotalBudget,
		&items, &budget.CreatedAt, &budget.UpdatedAt, &budget.Revision,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan budget: %w", err)
	}
	budget.Type = model.BudgetType(budgetType)

	if err := json.Unmarshal([]byte(items), &budget.Items); err != nil {
		return nil, fmt.Errorf("failed to decode items of budget %s: %w", budget.ID, err)
	}
	if budget.Items == nil {
		budget.Items = []model.BudgetItem{}
	}
	return &budget, nil
}

func marshalItems(items any) (string, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode items: %w", err)
	}
	if string(data) == "null" {
		return "[]", nil
	}
	return string(data), nil
}
