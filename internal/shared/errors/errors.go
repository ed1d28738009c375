package errors

import "errors"

// Domain errors
var (
	// Input errors
	ErrEmptyURL = errors.New("url cannot be empty")

	// ML scorer errors. ErrModelUnavailable must stay distinguishable from
	// ErrScoringFailed so callers can omit the ML signal instead of
	// fabricating a neutral score.
	ErrModelUnavailable = errors.New("ml model artifact unavailable")
	ErrScoringFailed    = errors.New("ml scoring failed")

	// Registration lookup errors
	ErrNoRegistrationData = errors.New("no registration data available from RDAP or fallback")
)
