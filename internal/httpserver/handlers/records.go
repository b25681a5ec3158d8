package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/statelink/statelink/internal/domain"
	"github.com/statelink/statelink/internal/httpserver/deps"
	"github.com/statelink/statelink/internal/httpserver/mw"
	"github.com/statelink/statelink/internal/logger"
)

// publicOwner is the shared pseudo-user for anonymous bookmark access when
// public bookmarks are enabled.
const publicOwner = "public"

// recordOwner resolves the owner partition for a record operation. An
// anonymous caller maps to the public pseudo-user only when the deployment
// allows it.
func recordOwner(d deps.Deps, r *http.Request) (string, bool) {
	username := d.Identity.Username(r)
	if username != "" {
		return username, true
	}
	if d.AllowPublicBookmarks {
		return publicOwner, true
	}
	return "", false
}

// recordData builds the stored payload for one record. Bookmarks go
// through the URL normalizer like permalinks do; visibility presets store
// the posted JSON verbatim.
func recordData(kind domain.RecordKind, r *http.Request) ([]byte, error) {
	if kind == domain.VisibilityPresets {
		return rawBody(r)
	}

	target, state, err := targetAndState(r)
	if err != nil {
		return nil, err
	}
	doc, _, err := domain.Normalize(target, state)
	if err != nil {
		return nil, err
	}
	return doc.Encode()
}

// ListRecords returns the caller's records of one kind, ordered per tenant
// configuration.
func ListRecords(d deps.Deps, kind domain.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := mw.TenantFrom(r.Context())

		owner, ok := recordOwner(d, r)
		if !ok {
			writeJSON(w, http.StatusOK, []domain.RecordSummary{})
			return
		}

		records, err := d.Store.ListOwnerRecords(r.Context(), tenant, kind, owner)
		if err != nil {
			d.Logger.Error("record listing failed",
				logger.String("tenant", tenant.Name),
				logger.String("kind", kind.String()),
				logger.Error(err))
			writeJSON(w, http.StatusOK, []domain.RecordSummary{})
			return
		}
		writeJSON(w, http.StatusOK, records)
	}
}

// CreateRecord stores a new record under a generated key.
func CreateRecord(d deps.Deps, kind domain.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := mw.TenantFrom(r.Context())

		owner, ok := recordOwner(d, r)
		if !ok {
			d.Logger.Debug("rejecting anonymous record create")
			writeSuccess(w, false)
			return
		}

		data, err := recordData(kind, r)
		if err != nil {
			if errors.Is(err, domain.ErrNoURL) {
				writeMessage(w, http.StatusBadRequest, "No URL specified")
			} else {
				writeMessage(w, http.StatusBadRequest, "Invalid request body")
			}
			return
		}

		description := r.URL.Query().Get("description")
		key, err := d.Store.CreateOwnerRecord(r.Context(), tenant, kind, owner, data, description)
		if err != nil {
			d.Logger.Error("record create failed",
				logger.String("tenant", tenant.Name),
				logger.String("kind", kind.String()),
				logger.Error(err))
			writeJSON(w, http.StatusOK, map[string]any{"success": false, "key": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "key": key})
	}
}

// GetRecord returns one record's stored document.
func GetRecord(d deps.Deps, kind domain.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := mw.TenantFrom(r.Context())

		owner, ok := recordOwner(d, r)
		if !ok {
			writeSuccess(w, false)
			return
		}

		key := chi.URLParam(r, "key")
		data, err := d.Store.GetOwnerRecord(r.Context(), tenant, kind, owner, key)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				d.Logger.Error("record lookup failed",
					logger.String("tenant", tenant.Name),
					logger.String("kind", kind.String()),
					logger.String("key", key),
					logger.Error(err))
			}
			writeEmptyObject(w)
			return
		}
		writeRaw(w, data)
	}
}

// ReplaceRecord overwrites an existing record in full. Absent keys are not
// created; use CreateRecord for that.
func ReplaceRecord(d deps.Deps, kind domain.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := mw.TenantFrom(r.Context())

		owner, ok := recordOwner(d, r)
		if !ok {
			writeSuccess(w, false)
			return
		}

		data, err := recordData(kind, r)
		if err != nil {
			if errors.Is(err, domain.ErrNoURL) {
				writeMessage(w, http.StatusBadRequest, "No URL specified")
			} else {
				writeMessage(w, http.StatusBadRequest, "Invalid request body")
			}
			return
		}

		key := chi.URLParam(r, "key")
		description := r.URL.Query().Get("description")
		if err := d.Store.ReplaceOwnerRecord(r.Context(), tenant, kind, owner, key, data, description); err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				d.Logger.Error("record replace failed",
					logger.String("tenant", tenant.Name),
					logger.String("kind", kind.String()),
					logger.String("key", key),
					logger.Error(err))
			}
			writeSuccess(w, false)
			return
		}
		writeSuccess(w, true)
	}
}

// DeleteRecord removes one record. Deleting an absent key still succeeds.
func DeleteRecord(d deps.Deps, kind domain.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := mw.TenantFrom(r.Context())

		owner, ok := recordOwner(d, r)
		if !ok {
			writeSuccess(w, false)
			return
		}

		key := chi.URLParam(r, "key")
		if err := d.Store.DeleteOwnerRecord(r.Context(), tenant, kind, owner, key); err != nil {
			d.Logger.Error("record delete failed",
				logger.String("tenant", tenant.Name),
				logger.String("kind", kind.String()),
				logger.String("key", key),
				logger.Error(err))
			writeSuccess(w, false)
			return
		}
		writeSuccess(w, true)
	}
}
