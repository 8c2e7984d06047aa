package backup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/service"
)

// State is a step of the restore protocol.
type State int

// Restore states, in the order they are visited.
const (
	StateValidating State = iota
	StateOwnershipCheck
	StateClobberCheck
	StateImporting
	StateDone
)

func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateOwnershipCheck:
		return "ownership check"
	case StateClobberCheck:
		return "clobber check"
	case StateImporting:
		return "importing"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// RestoreError reports the step at which a restore failed. It unwraps to one
// of the common backup sentinels.
type RestoreError struct {
	Err   error
	State State
}

func (e *RestoreError) Error() string {
	return fmt.Sprintf("restore failed during %s: %v", e.State, e.Err)
}

func (e *RestoreError) Unwrap() error {
	return e.Err
}

// Result counts what a successful restore wrote.
type Result struct {
	BudgetsRestored         int `json:"budgetsRestored"`
	PaycheckBudgetsRestored int `json:"paycheckBudgetsRestored"`
	CategoriesRestored      int `json:"categoriesRestored"`
	CategoriesSkipped       int `json:"categoriesSkipped"`
}

// ProgressFunc is called after each imported record with the number of
// records handled so far and the total in the document.
type ProgressFunc func(done, total int)

// Restore reads a backup from r and imports it for ownerID.
func (s *Service) Restore(ctx context.Context, r io.Reader, ownerID string, progress ProgressFunc) (*Result, error) {
	doc, err := Parse(r)
	if err != nil {
		return nil, &RestoreError{State: StateValidating, Err: err}
	}
	return s.RestoreDocument(ctx, doc, ownerID, progress)
}

// RestoreDocument imports an already parsed document for ownerID. The
// account must be empty. All records are written in one transaction; if any
// insert fails nothing is kept and common.ErrPartialImport is returned.
func (s *Service) RestoreDocument(ctx context.Context, doc *Document, ownerID string, progress ProgressFunc) (*Result, error) {
	if progress == nil {
		progress = func(int, int) {}
	}

	r := &restorer{
		store:        s.store,
		doc:          doc,
		ownerID:      ownerID,
		progress:     progress,
		beforeImport: s.beforeImport,
	}
	result, err := r.run(ctx)
	if err != nil {
		slog.Warn("restore failed", "owner", ownerID, "state", r.state.String(), "error", err)
		return nil, err
	}

	slog.Info("restored backup",
		"owner", ownerID,
		"budgets", result.BudgetsRestored,
		"paycheck_budgets", result.PaycheckBudgetsRestored,
		"categories", result.CategoriesRestored,
		"categories_skipped", result.CategoriesSkipped)
	return result, nil
}

type restorer struct {
	store        service.Storage
	doc          *Document
	tx           service.Transaction
	progress     ProgressFunc
	beforeImport func(ctx context.Context) error
	ownerID      string
	state        State
}

func (r *restorer) fail(err error) error {
	if r.tx != nil {
		if rbErr := r.tx.Rollback(); rbErr != nil {
			slog.Error("failed to rollback restore transaction", "error", rbErr)
		}
		r.tx = nil
	}
	return &RestoreError{State: r.state, Err: err}
}

func (r *restorer) run(ctx context.Context) (*Result, error) {
	r.state = StateValidating
	if err := r.validate(ctx); err != nil {
		return nil, r.fail(err)
	}

	r.state = StateOwnershipCheck
	if r.doc.Metadata.OwnerID != r.ownerID {
		return nil, r.fail(fmt.Errorf("%w: file owner %q", common.ErrWrongOwner, r.doc.Metadata.OwnerID))
	}

	r.state = StateClobberCheck
	if err := r.checkEmpty(ctx, r.store); err != nil {
		return nil, r.fail(err)
	}
	if r.beforeImport != nil {
		if err := r.beforeImport(ctx); err != nil {
			return nil, r.fail(err)
		}
	}

	// The check is repeated inside the transaction that does the writes.
	tx, err := r.store.BeginTx(ctx)
	if err != nil {
		return nil, r.fail(err)
	}
	r.tx = tx
	if err := r.checkEmpty(ctx, tx); err != nil {
		return nil, r.fail(err)
	}

	r.state = StateImporting
	result, err := r.importAll(ctx)
	if err != nil {
		return nil, r.fail(fmt.Errorf("%w: %w", common.ErrPartialImport, err))
	}

	if err := tx.Commit(); err != nil {
		r.tx = nil
		return nil, &RestoreError{State: StateImporting, Err: fmt.Errorf("%w: commit: %w", common.ErrPartialImport, err)}
	}
	r.tx = nil

	r.state = StateDone
	return result, nil
}

func (r *restorer) checkEmpty(ctx context.Context, q service.RecordStore) error {
	existing, err := q.CountOwnerRecords(ctx, r.ownerID)
	if err != nil {
		return err
	}
	if existing > 0 {
		return fmt.Errorf("%w: %d existing records", common.ErrAlreadyHasData, existing)
	}
	return nil
}

func (r *restorer) validate(ctx context.Context) error {
	if r.doc == nil {
		return fmt.Errorf("%w: empty document", common.ErrMalformedBackup)
	}
	if strings.TrimSpace(r.ownerID) == "" {
		return fmt.Errorf("%w: no current owner", common.ErrWrongOwner)
	}

	live, err := r.store.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	// The version is informational; records are judged by their own validation.
	if r.doc.Metadata.Version != live {
		slog.Warn("backup schema version differs from the database",
			"backup_version", r.doc.Metadata.Version, "schema_version", live)
	}

	// Records are checked as they will be stored, under the current owner.
	for i := range r.doc.Data.Budgets {
		b := r.doc.Data.Budgets[i]
		b.OwnerID = r.ownerID
		if err := b.Validate(); err != nil {
			return fmt.Errorf("%w: budget at index %d: %w", common.ErrMalformedBackup, i, err)
		}
	}
	for i := range r.doc.Data.PaycheckBudgets {
		p := r.doc.Data.PaycheckBudgets[i]
		p.OwnerID = r.ownerID
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%w: paycheck budget at index %d: %w", common.ErrMalformedBackup, i, err)
		}
	}
	for i, c := range r.doc.Data.Categories {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("%w: category at index %d has no name", common.ErrMalformedBackup, i)
		}
	}

	summary := r.doc.Metadata.Summary
	if summary.BudgetsCount != len(r.doc.Data.Budgets) || summary.PaycheckBudgetsCount != len(r.doc.Data.PaycheckBudgets) {
		slog.Warn("backup summary does not match its contents",
			"budgets_count", summary.BudgetsCount, "budgets", len(r.doc.Data.Budgets),
			"paycheck_budgets_count", summary.PaycheckBudgetsCount, "paycheck_budgets", len(r.doc.Data.PaycheckBudgets))
	}
	return nil
}

func (r *restorer) importAll(ctx context.Context) (*Result, error) {
	data := r.doc.Data
	total := len(data.Budgets) + len(data.PaycheckBudgets) + len(data.Categories)
	done := 0
	result := &Result{}

	for i := range data.Budgets {
		b := data.Budgets[i]
		b.OwnerID = r.ownerID
		b.Revision = 0
		if err := r.tx.InsertBudget(ctx, &b); err != nil {
			return nil, fmt.Errorf("budget %s: %w", b.ID, err)
		}
		result.BudgetsRestored++
		done++
		r.progress(done, total)
	}

	for i := range data.PaycheckBudgets {
		p := data.PaycheckBudgets[i]
		p.OwnerID = r.ownerID
		p.Revision = 0
		if err := r.tx.InsertPaycheckBudget(ctx, &p); err != nil {
			return nil, fmt.Errorf("paycheck budget %s: %w", p.ID, err)
		}
		result.PaycheckBudgetsRestored++
		done++
		r.progress(done, total)
	}

	existing, err := r.tx.GetCategories(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]struct{}, len(existing)+len(data.Categories))
	for _, c := range existing {
		names[c.Name] = struct{}{}
	}

	for _, c := range data.Categories {
		if _, ok := names[c.Name]; ok {
			result.CategoriesSkipped++
		} else {
			if _, err := r.tx.CreateCategory(ctx, c.Name); err != nil {
				return nil, err
			}
			names[c.Name] = struct{}{}
			result.CategoriesRestored++
		}
		done++
		r.progress(done, total)
	}

	return result, nil
}
