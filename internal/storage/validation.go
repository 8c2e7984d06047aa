// Package storage provides the data persistence layer for the budget application.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Validation errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = errors.New("string parameter cannot be empty")
	ErrNilParameter = errors.New("parameter cannot be nil")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateOwnerAndID checks the common arguments of single-record lookups.
func validateOwnerAndID(ctx context.Context, ownerID, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(ownerID, "ownerID"); err != nil {
		return err
	}
	return validateString(id, "id")
}

// validator is implemented by every persisted budget variant.
type validator interface {
	Validate() error
}

// validateRecord ensures a record is present and well formed before it is written.
func validateRecord(ctx context.Context, record validator, isNil bool, name string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if isNil {
		return fmt.Errorf("%w: %s", ErrNilParameter, name)
	}
	return record.Validate()
}
