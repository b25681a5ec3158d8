package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

var errInvalidJSON = errors.New("request body is not valid JSON")

// maxBodyBytes caps the accepted state payload size.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRaw writes stored document bytes verbatim; they were validated as
// JSON on the way in.
func writeRaw(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeEmptyObject(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{})
}

func writeSuccess(w http.ResponseWriter, ok bool) {
	writeJSON(w, http.StatusOK, map[string]any{"success": ok})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"message": msg})
}

// targetAndState reads the JSON state body and extracts the target URL.
// A "url" member inside the state takes precedence and is removed before
// storing; otherwise the url query parameter is used. An empty body is
// treated as an empty state document.
func targetAndState(r *http.Request) (string, json.RawMessage, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return "", nil, err
	}

	state := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &state); err != nil {
			return "", nil, err
		}
	}

	target, _ := state["url"].(string)
	if target != "" {
		delete(state, "url")
	} else {
		target = r.URL.Query().Get("url")
	}

	encoded, err := json.Marshal(state)
	if err != nil {
		return "", nil, err
	}
	return target, encoded, nil
}

// rawBody reads the request body as an opaque JSON document.
func rawBody(r *http.Request) (json.RawMessage, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return json.RawMessage("{}"), nil
	}
	if !json.Valid(raw) {
		return nil, errInvalidJSON
	}
	return raw, nil
}
