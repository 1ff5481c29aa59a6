package driven

import (
	"fmt"
	"time"
)

// APIError is a remote call failure normalized by the adapters. It carries
// only what the retry policy and callers need to classify the failure.
type APIError struct {
	StatusCode int
	Message    string
	// Secondary is set when the remote signalled a secondary (abuse) rate limit.
	Secondary bool
	// RateRemaining is the primary quota left, or -1 when the response did not say.
	RateRemaining int
	// RateReset is when the primary quota refills. Zero when unknown.
	RateReset time.Time
	Err       error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote api: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("remote api: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}
