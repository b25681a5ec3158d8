package handlers

import (
	"errors"
	"net/http"

	"github.com/statelink/statelink/internal/domain"
	"github.com/statelink/statelink/internal/httpserver/deps"
	"github.com/statelink/statelink/internal/httpserver/mw"
	"github.com/statelink/statelink/internal/logger"
)

// GetUserPermalink returns the caller's single-slot permalink document, or
// an empty object for anonymous callers and users without one.
func GetUserPermalink(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := mw.TenantFrom(r.Context())

		username := d.Identity.Username(r)
		if username == "" {
			writeEmptyObject(w)
			return
		}

		data, err := d.Store.GetUserPermalink(r.Context(), tenant, username)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				d.Logger.Error("user permalink lookup failed",
					logger.String("tenant", tenant.Name),
					logger.String("username", username),
					logger.Error(err))
			}
			writeEmptyObject(w)
			return
		}
		writeRaw(w, data)
	}
}

// SetUserPermalink replaces the caller's single-slot permalink. Every
// write overwrites the previous document; there is exactly one slot per
// user.
func SetUserPermalink(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := mw.TenantFrom(r.Context())

		username := d.Identity.Username(r)
		if username == "" {
			writeSuccess(w, false)
			return
		}

		target, state, err := targetAndState(r)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		doc, _, err := domain.Normalize(target, state)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "No URL specified")
			return
		}

		data, err := doc.Encode()
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if err := d.Store.UpsertUserPermalink(r.Context(), tenant, username, data); err != nil {
			d.Logger.Error("user permalink upsert failed",
				logger.String("tenant", tenant.Name),
				logger.String("username", username),
				logger.Error(err))
			writeSuccess(w, false)
			return
		}
		writeSuccess(w, true)
	}
}
