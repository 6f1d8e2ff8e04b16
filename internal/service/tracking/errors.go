package tracking

import "errors"

// Sentinel errors for the tracking service layer. Handlers map the first
// two to 400 responses and the storage pair to 500s; wrapped causes stay
// inspectable via errors.Is.
var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrStorageUnavailable   = errors.New("storage unavailable")
	ErrStorageWriteFailed   = errors.New("storage write failed")

	// ErrNotFound is returned by repositories when a single entry lookup
	// misses. Absence of tracking state is not an error at the service
	// level; it means "never sent".
	ErrNotFound = errors.New("tracking entry not found")
)
