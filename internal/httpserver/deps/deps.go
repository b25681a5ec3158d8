package deps

import (
	"context"
	"time"

	"github.com/statelink/statelink/internal/config"
	"github.com/statelink/statelink/internal/domain"
	"github.com/statelink/statelink/internal/identity"
	"github.com/statelink/statelink/internal/logger"
	"github.com/statelink/statelink/internal/permissions"
)

// Store is the record store contract the handlers depend on. The postgres
// adapter implements it; tests substitute a fake.
type Store interface {
	CreatePermalink(ctx context.Context, tenant config.TenantConfig, data []byte, permittedGroup string) (key string, expires *time.Time, err error)
	ResolvePermalink(ctx context.Context, tenant config.TenantConfig, key string) (data []byte, permittedGroup string, err error)

	UpsertUserPermalink(ctx context.Context, tenant config.TenantConfig, username string, data []byte) error
	GetUserPermalink(ctx context.Context, tenant config.TenantConfig, username string) ([]byte, error)

	ListOwnerRecords(ctx context.Context, tenant config.TenantConfig, kind domain.RecordKind, owner string) ([]domain.RecordSummary, error)
	CreateOwnerRecord(ctx context.Context, tenant config.TenantConfig, kind domain.RecordKind, owner string, data []byte, description string) (string, error)
	GetOwnerRecord(ctx context.Context, tenant config.TenantConfig, kind domain.RecordKind, owner, key string) ([]byte, error)
	ReplaceOwnerRecord(ctx context.Context, tenant config.TenantConfig, kind domain.RecordKind, owner, key string, data []byte, description string) error
	DeleteOwnerRecord(ctx context.Context, tenant config.TenantConfig, kind domain.RecordKind, owner, key string) error

	Ping(ctx context.Context) error
}

// GroupLookup resolves a username's group memberships for a tenant.
type GroupLookup interface {
	Groups(tenant config.TenantConfig, username string) ([]string, error)
}

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	Commit    string
	BuildDate string
	GoVersion string

	Store        Store
	Tenants      *config.Tenants
	TenantHeader string
	Identity     *identity.Extractor
	Permissions  GroupLookup

	AllowPublicBookmarks bool // anonymous bookmark callers act as the "public" user

	AllowedCIDRS []string // IPs allowed to reach the infra endpoints
	TrustProxy   bool     // true if running behind a trusted reverse proxy
}

var _ GroupLookup = (*permissions.Reader)(nil)
