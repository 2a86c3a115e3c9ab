package domain

import "errors"

var (
	// ErrStoreNotReady is returned when the local store is used before it
	// has been opened and migrated.
	ErrStoreNotReady = errors.New("local store not ready")

	// ErrNotFound is returned when a requested record does not exist,
	// locally or on the catalog service.
	ErrNotFound = errors.New("not found")
)
