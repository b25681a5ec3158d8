package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/statelink/statelink/internal/domain"
)

// DefaultTenant is used when a request carries no tenant header.
const DefaultTenant = "default"

// identPattern is the allow-list for table identifiers coming from tenant
// configuration. Identifiers are interpolated into query text, so anything
// not matching "name" or "schema.name" is rejected at load time.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// sortOrders is the closed set of accepted ORDER BY expressions for record
// listings.
var sortOrders = map[string]bool{
	"date, description": true,
	"description, date": true,
	"date":              true,
	"description":       true,
}

// TenantConfig carries the per-tenant settings resolved once per request
// and passed to the store as data.
type TenantConfig struct {
	Name string

	PermalinksTable        string
	UserPermalinkTable     string
	BookmarksTable         string
	VisibilityPresetsTable string
	UsersTable             string

	DefaultExpiryDays int    // 0 = permalinks never expire
	SortOrder         string // validated against sortOrders
	Addressing        domain.OwnerAddressing
	PermissionsFile   string // path to the tenant's permissions JSON, empty = no group restrictions resolvable
}

// RecordTable maps a record kind to the tenant's table for it.
func (c TenantConfig) RecordTable(kind domain.RecordKind) string {
	if kind == domain.VisibilityPresets {
		return c.VisibilityPresetsTable
	}
	return c.BookmarksTable
}

// tenantYAML is the on-disk shape of one tenant entry.
type tenantYAML struct {
	PermalinksTable            string `yaml:"permalinks_table"`
	UserPermalinkTable         string `yaml:"user_permalink_table"`
	UserBookmarkTable          string `yaml:"user_bookmark_table"`
	UserVisibilityPresetsTable string `yaml:"user_visibility_presets_table"`
	UsersTable                 string `yaml:"users_table"`
	DefaultExpiryPeriod        int    `yaml:"default_expiry_period"`
	BookmarksSortOrder         string `yaml:"bookmarks_sort_order"`
	StoreBookmarksByUserID     *bool  `yaml:"store_bookmarks_by_userid"`
	PermissionsFile            string `yaml:"permissions_file"`
}

type tenantsYAML struct {
	Tenants map[string]tenantYAML `yaml:"tenants"`
}

// Tenants resolves tenant names to their configuration.
type Tenants struct {
	byName map[string]TenantConfig
}

// LoadTenants reads and validates the tenants file. An empty path yields a
// single default tenant with built-in table names.
func LoadTenants(path string) (*Tenants, error) {
	if path == "" {
		def, err := buildTenant(DefaultTenant, tenantYAML{})
		if err != nil {
			return nil, err
		}
		return &Tenants{byName: map[string]TenantConfig{DefaultTenant: def}}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tenants file: %w", err)
	}

	var parsed tenantsYAML
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse tenants file %s: %w", path, err)
	}
	if len(parsed.Tenants) == 0 {
		return nil, fmt.Errorf("tenants file %s defines no tenants", path)
	}

	byName := make(map[string]TenantConfig, len(parsed.Tenants))
	for name, entry := range parsed.Tenants {
		cfg, err := buildTenant(name, entry)
		if err != nil {
			return nil, fmt.Errorf("tenant %q: %w", name, err)
		}
		byName[name] = cfg
	}

	return &Tenants{byName: byName}, nil
}

// Resolve returns the configuration for the named tenant. An empty name
// resolves to the default tenant.
func (t *Tenants) Resolve(name string) (TenantConfig, bool) {
	if name == "" {
		name = DefaultTenant
	}
	cfg, ok := t.byName[name]
	return cfg, ok
}

// Names lists the configured tenants, for startup logging.
func (t *Tenants) Names() []string {
	names := make([]string, 0, len(t.byName))
	for name := range t.byName {
		names = append(names, name)
	}
	return names
}

func buildTenant(name string, entry tenantYAML) (TenantConfig, error) {
	cfg := TenantConfig{
		Name:                   name,
		PermalinksTable:        withDefault(entry.PermalinksTable, "permalinks"),
		UserPermalinkTable:     withDefault(entry.UserPermalinkTable, "user_permalinks"),
		BookmarksTable:         withDefault(entry.UserBookmarkTable, "user_bookmarks"),
		VisibilityPresetsTable: withDefault(entry.UserVisibilityPresetsTable, "user_visibility_presets"),
		UsersTable:             withDefault(entry.UsersTable, "users"),
		DefaultExpiryDays:      entry.DefaultExpiryPeriod,
		SortOrder:              withDefault(strings.TrimSpace(entry.BookmarksSortOrder), "date, description"),
		Addressing:             domain.ByID,
		PermissionsFile:        entry.PermissionsFile,
	}

	if entry.StoreBookmarksByUserID != nil && !*entry.StoreBookmarksByUserID {
		cfg.Addressing = domain.ByUsername
	}

	for _, table := range []string{
		cfg.PermalinksTable,
		cfg.UserPermalinkTable,
		cfg.BookmarksTable,
		cfg.VisibilityPresetsTable,
		cfg.UsersTable,
	} {
		if !identPattern.MatchString(table) {
			return TenantConfig{}, fmt.Errorf("invalid table identifier %q", table)
		}
	}

	if !sortOrders[cfg.SortOrder] {
		return TenantConfig{}, fmt.Errorf("invalid bookmarks_sort_order %q", cfg.SortOrder)
	}
	if cfg.DefaultExpiryDays < 0 {
		return TenantConfig{}, fmt.Errorf("negative default_expiry_period %d", cfg.DefaultExpiryDays)
	}

	return cfg, nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
