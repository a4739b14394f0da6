package types

import "errors"

// Sentinel errors shared by the catalog core. Callers wrap them with %w and
// match with errors.Is.
var (
	// ErrNotFound means an external identifier could not be mapped to a slug.
	// Mutating callers skip the action; it is never fatal to a request.
	ErrNotFound = errors.New("item not found")

	// ErrInvalidRating is returned before any network call for star values
	// outside the half-star range 0.5..5.0.
	ErrInvalidRating = errors.New("invalid rating")

	// ErrAuthenticationFailed means the login transcript did not reach a
	// signed-in page (credentials rejected, challenge unresolved, timeout).
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrSessionInvalidated means the site rejected an authenticated action.
	// The session is discarded and the next action logs in again.
	ErrSessionInvalidated = errors.New("session invalidated")

	// ErrUpstreamUnexpectedResponse covers 2xx responses with a payload that
	// cannot be parsed or does not report success.
	ErrUpstreamUnexpectedResponse = errors.New("unexpected upstream response")

	// ErrNetworkTimeout means a bounded navigation or request wait elapsed.
	ErrNetworkTimeout = errors.New("network timeout")

	// ErrNoSession is reported by mutating operations when no credentials are configured.
	ErrNoSession = errors.New("no session: credentials not configured")
)
