package mw

import (
	"context"
	"net/http"

	"github.com/statelink/statelink/internal/config"
	"github.com/statelink/statelink/internal/logger"
)

type tenantCtxKey struct{}

// Tenant resolves the caller's tenant from the configured header and puts
// its configuration into the request context. Unknown tenants get a 404
// before any handler runs.
func Tenant(tenants *config.Tenants, header string, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name := r.Header.Get(header)
			tenant, ok := tenants.Resolve(name)
			if !ok {
				log.Debugf("Tenant: unknown tenant %q", name)
				http.NotFound(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), tenantCtxKey{}, tenant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TenantFrom returns the tenant configuration resolved by the Tenant
// middleware. Panics if the middleware did not run; that is a wiring bug,
// not a runtime condition.
func TenantFrom(ctx context.Context) config.TenantConfig {
	return ctx.Value(tenantCtxKey{}).(config.TenantConfig)
}
