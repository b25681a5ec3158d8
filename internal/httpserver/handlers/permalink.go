package handlers

import (
	"errors"
	"net/http"

	"github.com/statelink/statelink/internal/domain"
	"github.com/statelink/statelink/internal/httpserver/deps"
	"github.com/statelink/statelink/internal/httpserver/mw"
	"github.com/statelink/statelink/internal/logger"
	"github.com/statelink/statelink/internal/permissions"
)

const dateFormat = "2006-01-02"

type createPermalinkResponse struct {
	Permalink string  `json:"permalink"`
	Expires   *string `json:"expires"`
}

// CreatePermalink stores the posted state under a generated key and
// returns the shareable permalink URL.
func CreatePermalink(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := mw.TenantFrom(r.Context())

		target, state, err := targetAndState(r)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		doc, prefix, err := domain.Normalize(target, state)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "No URL specified")
			return
		}

		data, err := doc.Encode()
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		permittedGroup := r.URL.Query().Get("permitted_group")
		key, expires, err := d.Store.CreatePermalink(r.Context(), tenant, data, permittedGroup)
		if err != nil {
			// Key exhaustion and store failures both yield a failure
			// payload; the service stays up and explains itself.
			d.Logger.Error("failed to create permalink",
				logger.String("tenant", tenant.Name),
				logger.Error(err))
			writeJSON(w, http.StatusOK, map[string]any{
				"message": "Failed to generate compact permalink",
			})
			return
		}

		var expiresStr *string
		if expires != nil {
			s := expires.Format(dateFormat)
			expiresStr = &s
		}
		writeJSON(w, http.StatusOK, createPermalinkResponse{
			Permalink: prefix + "?k=" + key,
			Expires:   expiresStr,
		})
	}
}

// ResolvePermalink returns the stored document for a key. Missing keys,
// expired rows, and denied group restrictions all produce the same empty
// object so callers cannot tell them apart.
func ResolvePermalink(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := mw.TenantFrom(r.Context())

		key := r.URL.Query().Get("key")
		if key == "" {
			writeMessage(w, http.StatusBadRequest, "Missing required parameter: key")
			return
		}

		data, permittedGroup, err := d.Store.ResolvePermalink(r.Context(), tenant, key)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				d.Logger.Error("permalink resolve failed",
					logger.String("tenant", tenant.Name),
					logger.String("key", key),
					logger.Error(err))
			}
			writeEmptyObject(w)
			return
		}

		if permittedGroup != "" {
			username := d.Identity.Username(r)
			d.Logger.Debugf("permalink %s is restricted to group %s", key, permittedGroup)

			groups, err := d.Permissions.Groups(tenant, username)
			if err != nil {
				d.Logger.Error("group lookup failed",
					logger.String("tenant", tenant.Name),
					logger.String("username", username),
					logger.Error(err))
			}
			if !permissions.Authorized(permittedGroup, groups) {
				d.Logger.Debugf("user %q is not in group %s, returning empty response", username, permittedGroup)
				writeEmptyObject(w)
				return
			}
		}

		writeRaw(w, data)
	}
}
