package github

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit/github_primary_ratelimit"
	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/repoobserver/internal/domain/port/driven"
)

const (
	headerRateRemaining = "X-RateLimit-Remaining"
	headerRateReset     = "X-RateLimit-Reset"
)

// mapError normalizes a go-github error into *driven.APIError so the retry
// policy can classify it. Transport failures without an HTTP response are
// returned unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return &driven.APIError{
			StatusCode:    statusOf(rateErr.Response, http.StatusForbidden),
			Message:       rateErr.Message,
			RateRemaining: 0,
			RateReset:     rateErr.Rate.Reset.Time,
			Err:           err,
		}
	}

	// The ratelimit middleware fails the round trip itself once the primary
	// quota is spent, so no go-github error type is involved.
	var reachedErr *github_primary_ratelimit.RateLimitReachedError
	if errors.As(err, &reachedErr) {
		apiErr := &driven.APIError{
			StatusCode:    statusOf(reachedErr.Response, http.StatusForbidden),
			Message:       "primary rate limit reached",
			RateRemaining: 0,
			Err:           err,
		}
		if reachedErr.ResetTime != nil {
			apiErr.RateReset = reachedErr.ResetTime.UTC()
		}
		return apiErr
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &driven.APIError{
			StatusCode:    statusOf(abuseErr.Response, http.StatusForbidden),
			Message:       abuseErr.Message,
			Secondary:     true,
			RateRemaining: -1,
			Err:           err,
		}
	}

	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		apiErr := apiErrorFromResponse(respErr.Response, respErr.Message)
		apiErr.Err = err
		return apiErr
	}

	return err
}

// apiErrorFromResponse builds an APIError from a failed response's status and
// rate limit headers.
func apiErrorFromResponse(resp *http.Response, message string) *driven.APIError {
	apiErr := &driven.APIError{
		StatusCode:    resp.StatusCode,
		Message:       message,
		RateRemaining: -1,
	}

	if v := resp.Header.Get(headerRateRemaining); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			apiErr.RateRemaining = n
		}
	}
	if v := resp.Header.Get(headerRateReset); v != "" {
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
			apiErr.RateReset = time.Unix(secs, 0).UTC()
		}
	}

	if strings.Contains(strings.ToLower(message), "secondary rate limit") {
		apiErr.Secondary = true
	}

	return apiErr
}

func statusOf(resp *http.Response, fallback int) int {
	if resp == nil {
		return fallback
	}
	return resp.StatusCode
}
