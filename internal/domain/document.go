package domain

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// Document is the stored payload of a permalink or bookmark: the query
// parameters of the target URL plus the opaque application state posted
// by the client.
type Document struct {
	Query map[string]string `json:"query"`
	State json.RawMessage   `json:"state"`
}

// Encode serializes the document to its canonical stored form. The same
// bytes are used for key derivation and for the database row, so a
// resolve returns exactly what was hashed.
func (d Document) Encode() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// Normalize decomposes a target URL into a Document carrying the URL's
// query parameters (first value per key, blank values kept) and the given
// state. It also returns the URL prefix (scheme://host/path) used to build
// the permalink URL in responses.
func Normalize(target string, state json.RawMessage) (Document, string, error) {
	if target == "" {
		return Document{}, "", ErrNoURL
	}

	parts, err := url.Parse(target)
	if err != nil {
		return Document{}, "", fmt.Errorf("%w: %v", ErrNoURL, err)
	}

	values, err := url.ParseQuery(parts.RawQuery)
	if err != nil {
		return Document{}, "", fmt.Errorf("parse query of %q: %w", target, err)
	}

	query := make(map[string]string, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			query[key] = vals[0]
		} else {
			query[key] = ""
		}
	}

	if state == nil {
		state = json.RawMessage("{}")
	}

	doc := Document{Query: query, State: state}
	prefix := parts.Scheme + "://" + parts.Host + parts.Path
	return doc, prefix, nil
}
