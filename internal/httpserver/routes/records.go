package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/statelink/statelink/internal/domain"
	"github.com/statelink/statelink/internal/httpserver/deps"
	"github.com/statelink/statelink/internal/httpserver/handlers"
	"github.com/statelink/statelink/internal/httpserver/mw"
)

func init() { Register(registerRecords) }

func registerRecords(r chi.Router, d deps.Deps) {
	sub := r.With(mw.Tenant(d.Tenants, d.TenantHeader, d.Logger))
	mountRecordRoutes(sub, "/bookmarks", d, domain.Bookmarks)
	mountRecordRoutes(sub, "/visibility_presets", d, domain.VisibilityPresets)
}

func mountRecordRoutes(r chi.Router, prefix string, d deps.Deps, kind domain.RecordKind) {
	r.Route(prefix, func(r chi.Router) {
		r.Get("/", handlers.ListRecords(d, kind))
		r.Post("/", handlers.CreateRecord(d, kind))
		r.Get("/{key}", handlers.GetRecord(d, kind))
		r.Put("/{key}", handlers.ReplaceRecord(d, kind))
		r.Delete("/{key}", handlers.DeleteRecord(d, kind))
	})
}
