// Package backup exports an owner's budgets to a self-describing JSON
// document and restores such documents into an empty account.
package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/model"
)

// File names offered for exported backups.
const (
	StaticFileName  = "budget-tracker-backup.json"
	datedFilePrefix = "budget-backup-"
)

// Document is the on-disk backup format.
type Document struct {
	Data     Data     `json:"data"`
	Metadata Metadata `json:"metadata"`
}

// Metadata describes where and when a backup was taken.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	OwnerID   string    `json:"ownerId"`
	Summary   Summary   `json:"summary"`
	Version   int       `json:"version"`
}

// Summary holds record counts for display and light validation on import.
type Summary struct {
	BudgetsCount         int `json:"budgetsCount"`
	PaycheckBudgetsCount int `json:"paycheckBudgetsCount"`
	CategoriesCount      int `json:"categoriesCount"`
}

// Data holds the exported collections.
type Data struct {
	Budgets         []model.Budget         `json:"budgets"`
	PaycheckBudgets []model.PaycheckBudget `json:"paycheckBudgets"`
	Categories      []model.Category       `json:"categories"`
}

// Serialize writes doc as indented UTF-8 JSON.
func Serialize(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}
	return nil
}

// Marshal returns the serialized form of doc.
func Marshal(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := Serialize(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Parse reads a backup document. It fails with common.ErrMalformedBackup when
// the input is not JSON or lacks the top-level metadata and data keys.
func Parse(r io.Reader) (*Document, error) {
	var raw struct {
		Metadata *Metadata `json:"metadata"`
		Data     *Data     `json:"data"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrMalformedBackup, err)
	}
	if raw.Metadata == nil {
		return nil, fmt.Errorf("%w: missing metadata", common.ErrMalformedBackup)
	}
	if raw.Data == nil {
		return nil, fmt.Errorf("%w: missing data", common.ErrMalformedBackup)
	}
	return &Document{Metadata: *raw.Metadata, Data: *raw.Data}, nil
}

// FileName returns the suggested file name for a backup taken at now.
func FileName(now time.Time, dated bool) string {
	if !dated {
		return StaticFileName
	}
	return datedFilePrefix + now.Format(model.DateLayout) + ".json"
}
