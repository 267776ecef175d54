package store

import (
	"errors"
	"fmt"
)

// Store errors shared by every implementation. Entity-specific not-found
// errors wrap ErrNotFound.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrSubmissionNotFound indicates that the requested submission does not exist.
	ErrSubmissionNotFound = fmt.Errorf("%w: submission", ErrNotFound)

	// ErrRubricNotFound indicates that the requested rubric does not exist.
	ErrRubricNotFound = fmt.Errorf("%w: rubric", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
