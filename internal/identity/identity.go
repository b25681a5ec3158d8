// Package identity extracts the optional caller identity from a request.
//
// Authentication itself happens upstream (an auth proxy validates the
// session and forwards the username in a trusted header). A missing
// identity is never an error: every operation degrades to the
// anonymous-caller policy of its handler.
package identity

import (
	"net/http"
	"strings"
)

// Extractor reads the caller's username from the configured header.
type Extractor struct {
	Header string
}

func New(header string) *Extractor {
	return &Extractor{Header: header}
}

// Username returns the caller's username, or "" for anonymous requests.
func (e *Extractor) Username(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(e.Header))
}
