package repository

import "errors"

// Sentinel errors returned by every repository implementation.
// Callers match them with errors.Is; the wrapped cause carries the driver detail.
var (
	// ErrStoreUnavailable means the backing store could not serve the request
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNotFound means no record exists for the key
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate means a unique key is already taken
	ErrDuplicate = errors.New("record already exists")
)

// unavailable marks err as a store failure while keeping the cause in the chain
func unavailable(err error) error {
	return errors.Join(ErrStoreUnavailable, err)
}
