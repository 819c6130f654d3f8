package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadyRunning indicates an execution is already in flight for the operation
	ErrAlreadyRunning = errors.New("operation already running")

	// ErrInvalidState indicates the operation is not in a state that permits the request
	ErrInvalidState = errors.New("invalid operation state")

	// ErrConfirmationRequired indicates a live execution was requested without
	// clearing the confirmation flag in the safety config
	ErrConfirmationRequired = errors.New("confirmation required")

	// ErrPartialFailure indicates the executor stopped early after exceeding max_failures
	ErrPartialFailure = errors.New("partial failure")

	// ErrBackupNotFound indicates the referenced backup does not exist
	ErrBackupNotFound = errors.New("backup not found")

	// ErrRollbackFailed indicates a restore attempt did not complete
	ErrRollbackFailed = errors.New("rollback failed")

	// ErrStoreNotFound indicates the referenced store is not registered
	ErrStoreNotFound = errors.New("store not found")

	// ErrStoreDisabled indicates the store exists but is not enabled
	ErrStoreDisabled = errors.New("store disabled")

	// ErrSyncInProgress indicates a sync is already running for the source store
	ErrSyncInProgress = errors.New("sync already in progress")
)

// RemoteError represents a non-2xx response from a remote store.
// It always carries the upstream status code and response body so callers
// can distinguish remote rejections from transport failures.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote store returned %d: %s", e.StatusCode, e.Body)
}

// IsRemoteError reports whether err is (or wraps) a RemoteError.
func IsRemoteError(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
