package core

import (
	"errors"
	"fmt"
)

// Error categories. Every error surfaced by the record store matches one of
// these with errors.Is.
var (
	ErrValidation  = errors.New("validation error")
	ErrNotFound    = errors.New("not found")
	ErrPersistence = errors.New("persistence error")
	ErrUpload      = errors.New("upload error")
)

var (
	ErrInvalidAmount = fmt.Errorf("%w: amount must be a positive number", ErrValidation)
	// ErrAmbiguousAmount rejects input like "1,000"; the comma only ever
	// separates decimals.
	ErrAmbiguousAmount = fmt.Errorf("%w: comma is the decimal separator, write 1000 or 1000,50", ErrInvalidAmount)
	ErrEmptyName       = fmt.Errorf("%w: name cannot be empty", ErrValidation)
	ErrNameTooLong     = fmt.Errorf("%w: name too long (max %d characters)", ErrValidation, maxNameLength)
	ErrInvalidDate     = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrInvalidGoal     = fmt.Errorf("%w: goal must be a positive number", ErrValidation)
	ErrInvalidKind     = fmt.Errorf("%w: kind must be debts or incomes", ErrValidation)
)

// PersistenceError wraps a store failure on a write or point read.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// UploadError wraps a blob store failure while storing an attachment.
type UploadError struct {
	Path string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload of %q failed: %v", e.Path, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

func (e *UploadError) Is(target error) bool { return target == ErrUpload }

// Persistence classifies err as a PersistenceError unless it already belongs
// to the taxonomy. A nil err stays nil.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) || errors.Is(err, ErrPersistence) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
