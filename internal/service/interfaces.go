// Package service defines the interfaces shared between the persistence layer
// and its callers.
package service

import (
	"context"

	"github.com/Veraticus/the-budget-must-balance/internal/model"
)

// RecordStore is the owner-scoped CRUD surface over the three collections.
// Every budget operation takes the owner explicitly; categories are shared.
type RecordStore interface {
	// Generic budgets
	GetBudgetsByOwner(ctx context.Context, ownerID string) ([]model.Budget, error)
	GetBudget(ctx context.Context, ownerID, id string) (*model.Budget, error)
	InsertBudget(ctx context.Context, budget *model.Budget) error
	PutBudget(ctx context.Context, budget *model.Budget) error
	DeleteBudget(ctx context.Context, ownerID, id string) error

	// Paycheck and business budgets
	GetPaycheckBudgetsByOwner(ctx context.Context, ownerID string) ([]model.PaycheckBudget, error)
	GetPaycheckBudget(ctx context.Context, ownerID, id string) (*model.PaycheckBudget, error)
	InsertPaycheckBudget(ctx context.Context, budget *model.PaycheckBudget) error
	PutPaycheckBudget(ctx context.Context, budget *model.PaycheckBudget) error
	DeletePaycheckBudget(ctx context.Context, ownerID, id string) error

	// Categories
	GetCategories(ctx context.Context) ([]model.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*model.Category, error)
	CreateCategory(ctx context.Context, name string) (*model.Category, error)

	// Owner-wide operations
	CountOwnerRecords(ctx context.Context, ownerID string) (int, error)
	ClearOwner(ctx context.Context, ownerID string) error
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	RecordStore

	// Database management
	Migrate(ctx context.Context) error
	SchemaVersion(ctx context.Context) (int, error)
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction. Operations made through it
// become visible together on Commit or not at all.
type Transaction interface {
	Commit() error
	Rollback() error
	RecordStore
}
