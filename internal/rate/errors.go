package rate

import "errors"

var (
	// ErrRateLimited is returned when a policy's limit is exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrStoreUnavailable is returned when the backing store cannot be reached
	// and the limiter is not configured to fail open.
	ErrStoreUnavailable = errors.New("rate limit store unavailable")
	// ErrInvalidPolicy is returned for a policy without a name, limit or window.
	ErrInvalidPolicy = errors.New("invalid rate limit policy")
)
