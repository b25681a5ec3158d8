package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/statelink/statelink/internal/httpserver/deps"
	"github.com/statelink/statelink/internal/httpserver/handlers"
	"github.com/statelink/statelink/internal/httpserver/mw"
)

func init() { Register(registerInfra) }

func registerInfra(r chi.Router, d deps.Deps) {
	restricted := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
	restricted.Get("/ready", handlers.Ready(d))
	restricted.Get("/healthz", handlers.Healthz(d))
}
