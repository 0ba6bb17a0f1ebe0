package domain

import "github.com/cockroachdb/errors"

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInvalidInput         = errors.New("invalid input")

	// ErrMissingUser is returned by every cart mutation invoked without a
	// resolvable user identifier.
	ErrMissingUser = errors.New("missing user")
	// ErrStorageUnavailable marks failures of the snapshot backend itself.
	ErrStorageUnavailable  = errors.New("storage unavailable")
	ErrMissingEventDetails = errors.New("missing event details")
	ErrEmptyCart           = errors.New("cart is empty")
)
