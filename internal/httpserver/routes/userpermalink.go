package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/statelink/statelink/internal/httpserver/deps"
	"github.com/statelink/statelink/internal/httpserver/handlers"
	"github.com/statelink/statelink/internal/httpserver/mw"
)

func init() { Register(registerUserPermalink) }

func registerUserPermalink(r chi.Router, d deps.Deps) {
	sub := r.With(mw.Tenant(d.Tenants, d.TenantHeader, d.Logger))
	sub.Get("/userpermalink", handlers.GetUserPermalink(d))
	sub.Post("/userpermalink", handlers.SetUserPermalink(d))
}
