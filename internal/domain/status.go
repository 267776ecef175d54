package domain

import (
	"errors"
	"fmt"
)

// Status represents the generation state of an entity field that is driven
// by an asynchronous AI task.
type Status string

// Possible status values
const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "INPROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusError      Status = "ERROR"

	// StatusGenerated marks an individual generated viva question. It is a
	// creation marker for the child row and never appears on a parent entity.
	StatusGenerated Status = "GENERATED"
)

// ErrInvalidStatus is returned when a status value is not recognised.
var ErrInvalidStatus = errors.New("invalid status")

// ErrInvalidStatusTransition is returned when a status change is not allowed
// by the generation state machine.
var ErrInvalidStatusTransition = errors.New("invalid status transition")

// IsValid reports whether s is a status a parent entity may hold.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusError:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether s ends a generation attempt.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// AllowedFrom returns the statuses from which an entity may move to s.
//
// PENDING is reachable from anywhere because a new submission always starts a
// fresh attempt. ERROR is reachable from PENDING (the source material could not
// be fetched) and from INPROGRESS (the response reported a failure).
func AllowedFrom(to Status) []Status {
	switch to {
	case StatusPending:
		return []Status{StatusPending, StatusInProgress, StatusCompleted, StatusError}
	case StatusInProgress:
		return []Status{StatusPending}
	case StatusCompleted:
		return []Status{StatusInProgress}
	case StatusError:
		return []Status{StatusPending, StatusInProgress}
	default:
		return nil
	}
}

// CanTransition reports whether an entity may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range AllowedFrom(to) {
		if s == from {
			return true
		}
	}
	return false
}

// ValidateTransition returns ErrInvalidStatusTransition, wrapped with the
// offending statuses, when from → to is not allowed.
func ValidateTransition(from, to Status) error {
	if !to.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, from, to)
	}
	return nil
}
