package migration

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrCatalog            = errors.New("migration catalog is unreadable")
	ErrNotFound           = errors.New("migration not found")
	ErrMissingSchema      = errors.New("migration is missing a schema")
	ErrMissingVersion     = errors.New("migration is missing a version")
	ErrMissingDescription = errors.New("migration is missing a description")
	ErrTargetNotFound     = errors.New("target version was never reached")
	ErrTargetFailed       = errors.New("target version is recorded as failed")
	ErrDuplicateEntry     = errors.New("migration is already in the ledger")
	ErrNoChangesRequired  = errors.New("no changes to the store required")
	ErrInvalidAction      = errors.New("invalid migration action")
	ErrItemNotFound       = errors.New("item not found")
	ErrMissingKey         = errors.New("item is missing a key attribute")
	ErrNoKeyLayout        = errors.New("active schema declares no primary index")
)

// Error is returned when the body of a migration fails, the cause is
// the error returned by the body itself
type Error struct {
	Version   string
	Direction Direction
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("migration [%s] %s failed: %v", e.Version, e.Direction, e.Err)
}

func (e *Error) Cause() error {
	return e.Err
}

func (e *Error) Unwrap() error {
	return e.Err
}
