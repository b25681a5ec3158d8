package domain

import "errors"

var (
	// ErrNotFound covers absent keys as well as rows filtered out by
	// expiry. Access denials are mapped to the same empty response at the
	// boundary so callers cannot probe for key existence.
	ErrNotFound = errors.New("record not found")

	// ErrKeyExhausted is returned when the collision-retry loop gives up.
	// The HTTP layer turns it into a failure payload, never a 5xx.
	ErrKeyExhausted = errors.New("key generation attempts exhausted")

	// ErrNoURL is returned when a create request carries no target URL.
	ErrNoURL = errors.New("no URL specified")

	// ErrStoreUnavailable is only surfaced on the liveness-check path.
	// Normal operations degrade to empty responses instead.
	ErrStoreUnavailable = errors.New("store unavailable")
)
