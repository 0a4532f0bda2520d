package store

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrNotInitialized is returned when a store operation runs before
	// Initialize has completed. This is a programmer error; callers must
	// not retry.
	ErrNotInitialized = goerr.New("store not initialized")

	// ErrConstraintViolation is returned when an insert collides with an
	// existing (system_id, conversation_id) pair. Ingestion treats it as
	// confirmation that the record is already present.
	ErrConstraintViolation = goerr.New("conversation already stored")
)
