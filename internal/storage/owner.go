package storage

import (
	"context"
	"fmt"
	"log/slog"
)

// CountOwnerRecords returns how many budgets and paycheck budgets belong to ownerID.
func (s *SQLiteStorage) CountOwnerRecords(ctx context.Context, ownerID string) (int, error) {
	return countOwnerRecords(ctx, s.db, ownerID)
}

// ClearOwner deletes every budget and paycheck budget of ownerID in a single
// transaction. Categories are shared and left alone.
func (s *SQLiteStorage) ClearOwner(ctx context.Context, ownerID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.Error("failed to rollback transaction", "error", rbErr)
			}
		}
	}()

	if err = clearOwner(ctx, tx, ownerID); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *sqliteTransaction) CountOwnerRecords(ctx context.Context, ownerID string) (int, error) {
	return countOwnerRecords(ctx, t.tx, ownerID)
}

func (t *sqliteTransaction) ClearOwner(ctx context.Context, ownerID string) error {
	return clearOwner(ctx, t.tx, ownerID)
}

func countOwnerRecords(ctx context.Context, q querier, ownerID string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(ownerID, "ownerID"); err != nil {
		return 0, err
	}

	var count int
	err := q.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM budgets WHERE owner_id = ?) +
		       (SELECT COUNT(*) FROM paycheck_budgets WHERE owner_id = ?)`,
		ownerID, ownerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count records of owner: %w", err)
	}
	return count, nil
}

func clearOwner(ctx context.Context, q querier, ownerID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(ownerID, "ownerID"); err != nil {
		return err
	}

	budgets, err := q.ExecContext(ctx, `DELETE FROM budgets WHERE owner_id = ?`, ownerID)
	if err != nil {
		return fmt.Errorf("failed to clear budgets: %w", err)
	}
	paychecks, err := q.ExecContext(ctx, `DELETE FROM paycheck_budgets WHERE owner_id = ?`, ownerID)
	if err != nil {
		return fmt.Errorf("failed to clear paycheck budgets: %w", err)
	}

	budgetCount, _ := budgets.RowsAffected()
	paycheckCount, _ := paychecks.RowsAffected()
	slog.Info("cleared owner data", "owner", ownerID, "budgets", budgetCount, "paycheck_budgets", paycheckCount)
	return nil
}
