// Package permissions resolves group memberships and gates access to
// group-restricted permalinks.
package permissions

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/statelink/statelink/internal/config"
)

// permissionsFile is the on-disk shape of a tenant's permissions document.
type permissionsFile struct {
	UserGroups map[string][]string `json:"user_groups"`
}

// Reader looks up group memberships from the tenant's permissions file.
// The file is read per lookup; permission edits take effect without a
// restart and no state is shared between requests.
type Reader struct{}

func NewReader() *Reader {
	return &Reader{}
}

// Groups returns the group names the username belongs to under the given
// tenant. Unknown users and tenants without a permissions file have no
// groups.
func (p *Reader) Groups(tenant config.TenantConfig, username string) ([]string, error) {
	if tenant.PermissionsFile == "" || username == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(tenant.PermissionsFile)
	if err != nil {
		return nil, fmt.Errorf("read permissions file: %w", err)
	}

	var doc permissionsFile
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse permissions file %s: %w", tenant.PermissionsFile, err)
	}

	return doc.UserGroups[username], nil
}

// Authorized decides whether a caller may read a permalink restricted to
// permittedGroup. An empty restriction is default-open. Anonymous callers
// belong to no groups, so any restricted permalink is denied to them.
func Authorized(permittedGroup string, groups []string) bool {
	if permittedGroup == "" {
		return true
	}
	return slices.Contains(groups, permittedGroup)
}
