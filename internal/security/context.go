// Package security implements the security envelope: every public
// operation passes authenticate, authorize, rate-limit, validate, and audit
// before touching anything else, with multi-tenant isolation throughout.
package security

import (
	"strings"
	"time"
)

// DefaultTenant is assumed when a token carries no tenant claim.
const DefaultTenant = "default-tenant"

// AnonymousUser is assumed when a token carries no user claim.
const AnonymousUser = "anonymous"

// Context is the authenticated identity every downstream operation
// receives. Immutable once authenticated; the tenant always derives from
// the token, never from the caller.
type Context struct {
	TenantID    string    `json:"tenant_id"`
	UserID      string    `json:"user_id"`
	SessionID   string    `json:"session_id"`
	Roles       []string  `json:"roles,omitempty"`
	Permissions []string  `json:"permissions,omitempty"`
	IPAddress   string    `json:"ip_address,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// HasPermission reports whether the context carries the permission, either
// exactly or via the "*" wildcard.
func (c *Context) HasPermission(permission string) bool {
	for _, p := range c.Permissions {
		if p == permission || p == "*" {
			return true
		}
	}
	return false
}

// HasRole reports whether the context carries the role.
func (c *Context) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ScopedID builds the tenant-scoped form of a raw identifier:
// "{tenantId}:{rawId}".
func ScopedID(tenantID, rawID string) string {
	return tenantID + ":" + rawID
}

// SplitScopedID splits a tenant-scoped identifier back into tenant and raw
// parts. Unscoped identifiers return an empty tenant.
func SplitScopedID(id string) (tenantID, rawID string) {
	if i := strings.Index(id, ":"); i >= 0 {
		return id[:i], id[i+1:]
	}
	return "", id
}

// OwnedByTenant reports whether a scoped resource identifier belongs to the
// tenant. Unscoped identifiers belong to no one and fail the check when a
// tenant prefix is present on neither side.
func OwnedByTenant(resourceID, tenantID string) bool {
	owner, _ := SplitScopedID(resourceID)
	return owner != "" && owner == tenantID
}
