// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Storage errors.
var (
	ErrStorageUnavailable = errors.New("cannot access local storage")
	ErrDuplicateKey       = errors.New("duplicate key")
	ErrNotFound           = errors.New("not found")
	ErrStaleRevision      = errors.New("record was modified since it was loaded")
	ErrUnknownCategory    = errors.New("unknown category")
)

// Backup and restore errors.
var (
	ErrNothingToBackup = errors.New("nothing to back up")
	ErrMalformedBackup = errors.New("malformed backup")
	ErrWrongOwner      = errors.New("backup belongs to a different account")
	ErrAlreadyHasData  = errors.New("account already has data")
	ErrPartialImport   = errors.New("import failed part way through")
)

// Configuration errors.
var (
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// Explain maps an error from the core to the message shown to the user.
// Errors outside the known taxonomy are returned unchanged.
func Explain(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStorageUnavailable):
		return NewUserError("Cannot access local storage", err)
	case errors.Is(err, ErrMalformedBackup):
		return NewUserError("The selected file is not a valid backup; re-export it or pick another file", err)
	case errors.Is(err, ErrWrongOwner):
		return NewUserError("This backup belongs to another account; log in as that account to restore it", err)
	case errors.Is(err, ErrAlreadyHasData):
		return NewUserError("Restore only works on an empty account; run 'budget reset' first", err)
	case errors.Is(err, ErrPartialImport):
		return NewUserError("The import failed and was rolled back; check your data", err)
	case errors.Is(err, ErrNothingToBackup):
		return NewUserError("There are no budgets to back up", err)
	case errors.Is(err, ErrStaleRevision):
		return NewUserError("The budget changed while you were editing it; reload and try again", err)
	case errors.Is(err, ErrDuplicateKey):
		return NewUserError("Something went wrong while saving", err)
	}
	return err
}
