package clinic

import (
	"errors"
	"fmt"
)

// ErrNotFound is the store-level absence sentinel. Services translate it into
// a NotFoundError naming the entity before it crosses the API boundary.
var ErrNotFound = errors.New("record not found")

// Constraint rules reported through ConstraintError.
const (
	RuleDoctorSlot       = "doctor-slot"
	RuleRoomSlot         = "room-slot"
	RuleUniqueEmail      = "unique-email"
	RuleUniqueRoomNumber = "unique-room-number"
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

type NotFoundError struct {
	Entity string
	ID     uint64
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func IsNotFoundError(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// ConstraintError reports a violated scheduling or uniqueness rule. Detail is
// the client-facing message; Rule identifies which rule fired.
type ConstraintError struct {
	Rule   string
	Detail string
}

func (e ConstraintError) Error() string {
	return e.Detail
}

func IsConstraintError(err error) bool {
	var ce ConstraintError
	return errors.As(err, &ce)
}

// StorageError wraps an unexpected failure from the backing store.
type StorageError struct {
	Op  string
	Err error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e StorageError) Unwrap() error {
	return e.Err
}

func IsStorageError(err error) bool {
	var se StorageError
	return errors.As(err, &se)
}
