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

const paycheckColumns = `id, owner_id, name, budget_type, date, amount, client, items, created_at, updated_at, revision`

// GetPaycheckBudgetsByOwner returns every paycheck and business budget of ownerID, newest first.
func (s *SQLiteStorage) GetPaycheckBudgetsByOwner(ctx context.Context, ownerID string) ([]model.PaycheckBudget, error) {
	return getPaycheckBudgetsByOwner(ctx, s.db, ownerID)
}

// GetPaycheckBudget returns one paycheck budget of ownerID, or common.ErrNotFound.
func (s *SQLiteStorage) GetPaycheckBudget(ctx context.Context, ownerID, id string) (*model.PaycheckBudget, error) {
	return getPaycheckBudget(ctx, s.db, ownerID, id)
}

// InsertPaycheckBudget adds a new paycheck budget, failing with
// common.ErrDuplicateKey when the id is taken.
func (s *SQLiteStorage) InsertPaycheckBudget(ctx context.Context, budget *model.PaycheckBudget) error {
	return insertPaycheckBudget(ctx, s.db, budget, s.now())
}

// PutPaycheckBudget upserts a paycheck budget under the revision guard.
func (s *SQLiteStorage) PutPaycheckBudget(ctx context.Context, budget *model.PaycheckBudget) error {
	return putPaycheckBudget(ctx, s.db, budget, s.now())
}

// DeletePaycheckBudget removes a paycheck budget. Missing ids are ignored.
func (s *SQLiteStorage) DeletePaycheckBudget(ctx context.Context, ownerID, id string) error {
	return deletePaycheckBudget(ctx, s.db, ownerID, id)
}

func (t *sqliteTransaction) GetPaycheckBudgetsByOwner(ctx context.Context, ownerID string) ([]model.PaycheckBudget, error) {
	return getPaycheckBudgetsByOwner(ctx, t.tx, ownerID)
}

func (t *sqliteTransaction) GetPaycheckBudget(ctx context.Context, ownerID, id string) (*model.PaycheckBudget, error) {
	return getPaycheckBudget(ctx, t.tx, ownerID, id)
}

func (t *sqliteTransaction) InsertPaycheckBudget(ctx context.Context, budget *model.PaycheckBudget) error {
	return insertPaycheckBudget(ctx, t.tx, budget, t.now())
}

func (t *sqliteTransaction) PutPaycheckBudget(ctx context.Context, budget *model.PaycheckBudget) error {
	return putPaycheckBudget(ctx, t.tx, budget, t.now())
}

func (t *sqliteTransaction) DeletePaycheckBudget(ctx context.Context, ownerID, id string) error {
	return deletePaycheckBudget(ctx, t.tx, ownerID, id)
}

func getPaycheckBudgetsByOwner(ctx context.Context, q querier, ownerID string) ([]model.PaycheckBudget, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(ownerID, "ownerID"); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx,
		`SELECT `+paycheckColumns+` FROM paycheck_budgets WHERE owner_id = ? ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query paycheck budgets: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Warn("failed to close rows", "error", err)
		}
	}()

	budgets := []model.PaycheckBudget{}
	for rows.Next() {
		budget, err := scanPaycheckBudget(rows)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, *budget)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating paycheck budgets: %w", err)
	}

	slog.Debug("retrieved paycheck budgets", "owner", ownerID, "count", len(budgets))
	return budgets, nil
}

func getPaycheckBudget(ctx context.Context, q querier, ownerID, id string) (*model.PaycheckBudget, error) {
	if err := validateOwnerAndID(ctx, ownerID, id); err != nil {
		return nil, err
	}

	row := q.QueryRowContext(ctx,
		`SELECT `+paycheckColumns+` FROM paycheck_budgets WHERE id = ? AND owner_id = ?`, id, ownerID)
	budget, err := scanPaycheckBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("paycheck budget %s: %w", id, common.ErrNotFound)
	}
	return budget, err
}

func insertPaycheckBudget(ctx context.Context, q querier, budget *model.PaycheckBudget, now time.Time) error {
	if err := validateRecord(ctx, budget, budget == nil, "paycheck budget"); err != nil {
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
		INSERT INTO paycheck_budgets
			(id, owner_id, name, budget_type, date, amount, client, items, created_at, updated_at, revision)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		budget.ID, budget.OwnerID, budget.Name, string(budget.Kind()), budget.Date, budget.Amount.String(),
		budget.Client, items, createdAt, updatedAt,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("paycheck budget %s: %w", budget.ID, common.ErrDuplicateKey)
		}
		return fmt.Errorf("failed to insert paycheck budget: %w", err)
	}

	budget.CreatedAt, budget.UpdatedAt = createdAt, updatedAt
	budget.Revision = 1
	return nil
}

func putPaycheckBudget(ctx context.Context, q querier, budget *model.PaycheckBudget, now time.Time) error {
	if err := validateRecord(ctx, budget, budget == nil, "paycheck budget"); err != nil {
		return err
	}

	items, err := marshalItems(budget.Items)
	if err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `
		UPDATE paycheck_budgets
		SET name = ?, budget_type = ?, date = ?, amount = ?, client = ?, items = ?, updated_at = ?,
			revision = revision + 1
		WHERE id = ? AND owner_id = ? AND revision = ?`,
		budget.Name, string(budget.Kind()), budget.Date, budget.Amount.String(), budget.Client, items, now,
		budget.ID, budget.OwnerID, budget.Revision,
	)
	if err != nil {
		return fmt.Errorf("failed to update paycheck budget: %w", err)
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

	if err := checkConflict(ctx, q, "paycheck_budgets", budget.ID, budget.OwnerID); err != nil {
		return err
	}

	budget.UpdatedAt = now
	return insertPaycheckBudget(ctx, q, budget, now)
}

func deletePaycheckBudget(ctx context.Context, q querier, ownerID, id string) error {
	if err := validateOwnerAndID(ctx, ownerID, id); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM paycheck_budgets WHERE id = ? AND owner_id = ?`, id, ownerID); err != nil {
		return fmt.Errorf("failed to delete paycheck budget: %w", err)
	}
	return nil
}

func scanPaycheckBudget(row rowScanner) (*model.PaycheckBudget, error) {
	var (
		budget model.PaycheckBudget
		kind   string
		items  string
	)
	err := row.Scan(
		&budget.ID, &budget.OwnerID, &budget.Name, &kind, &budget.Date, &budget.Amount, &budget.Client,
		&items, &budget.CreatedAt, &budget.UpdatedAt, &budget.Revision,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan paycheck budget: %w", err)
	}
	budget.BudgetType = model.PaycheckKind(kind)

	if err := json.Unmarshal([]byte(items), &budget.Items); err != nil {
		return nil, fmt.Errorf("failed to decode items of paycheck budget %s: %w", budget.ID, err)
	}
	if budget.Items == nil {
		budget.Items = []model.ExpenseItem{}
	}
	return &budget, nil
}
